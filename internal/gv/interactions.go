package gv

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Interactions applies user actions to the local stores before the server
// confirms them, then reconciles with the server's answer or rolls back.
//
// Votes run through a per-post state machine that permits one request in
// flight. Intents arriving while a vote is pending are queued and coalesced:
// only the latest one runs once the in-flight request settles, and it is
// skipped if it matches the settled choice.
type Interactions struct {
	notifications *Store[Notification]
	postAPI       PostAPI
	notifAPI      NotificationAPI
	idgen         IDGenerator
	clock         Clock
	logger        Logger

	mu       sync.Mutex
	posts    []*Store[Post]
	trackers map[int64]*voteTracker
	threads  map[int64]*Store[Comment]
	tempSeq  int64
}

type voteTracker struct {
	mu         sync.Mutex
	pending    bool
	before     VoteState
	optimistic VoteState
	queued     *queuedVote
}

// queuedVote is shared by every caller whose intent was coalesced into it.
type queuedVote struct {
	choice VoteChoice
	done   chan struct{}
	state  VoteState
	err    error
}

// NewInteractions creates the optimistic layer over the given stores.
func NewInteractions(posts *Store[Post], notifications *Store[Notification], postAPI PostAPI, notifAPI NotificationAPI, idgen IDGenerator, clock Clock, logger Logger) *Interactions {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Interactions{
		posts:         []*Store[Post]{posts},
		notifications: notifications,
		postAPI:       postAPI,
		notifAPI:      notifAPI,
		idgen:         idgen,
		clock:         clock,
		logger:        logger,
		trackers:      make(map[int64]*voteTracker),
		threads:       make(map[int64]*Store[Comment]),
	}
}

// TrackPosts adds another store whose copy of a post is kept in step with
// votes and comment counts, e.g. posts opened outside the feed.
func (l *Interactions) TrackPosts(s *Store[Post]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.posts = append(l.posts, s)
}

func (l *Interactions) postStores() []*Store[Post] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Store[Post](nil), l.posts...)
}

// lookupPost returns the post from the first store that holds it.
func (l *Interactions) lookupPost(id int64) (Post, bool) {
	for _, s := range l.postStores() {
		if p, ok := s.Get(id); ok {
			return p, true
		}
	}
	return Post{}, false
}

// modifyPost applies fn to every stored copy of the post.
func (l *Interactions) modifyPost(id int64, fn func(Post) Post) {
	for _, s := range l.postStores() {
		s.Modify(id, fn)
	}
}

func (l *Interactions) tracker(postID int64) *voteTracker {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trackers[postID]
	if !ok {
		t = &voteTracker{}
		l.trackers[postID] = t
	}
	return t
}

// Phase returns the vote state machine phase for postID.
func (l *Interactions) Phase(postID int64) VotePhase {
	t := l.tracker(postID)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending {
		return PhasePending
	}
	post, ok := l.lookupPost(postID)
	if !ok {
		return PhaseNone
	}
	return phaseOf(post.UserVote)
}

// QueuedIntent returns the intent waiting behind an in-flight vote on postID.
func (l *Interactions) QueuedIntent(postID int64) (VoteChoice, bool) {
	t := l.tracker(postID)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.queued == nil {
		return VoteNone, false
	}
	return t.queued.choice, true
}

// Upvote sets the user's vote on postID to up.
func (l *Interactions) Upvote(ctx context.Context, postID int64) (VoteState, error) {
	return l.Vote(ctx, postID, VoteUp)
}

// Downvote sets the user's vote on postID to down.
func (l *Interactions) Downvote(ctx context.Context, postID int64) (VoteState, error) {
	return l.Vote(ctx, postID, VoteDown)
}

// Unvote withdraws the user's vote on postID.
func (l *Interactions) Unvote(ctx context.Context, postID int64) (VoteState, error) {
	return l.Vote(ctx, postID, VoteNone)
}

// Vote moves the user's vote on postID to choice. The post must be in the
// store. On success the tallies are the server's; on failure they are
// exactly what they were before the call and the error is returned.
func (l *Interactions) Vote(ctx context.Context, postID int64, choice VoteChoice) (VoteState, error) {
	t := l.tracker(postID)

	t.mu.Lock()
	// A queued intent with nothing pending is about to be drained by the
	// caller whose request just settled; joining it keeps the latest intent last.
	if t.pending || t.queued != nil {
		q := t.queued
		if q == nil {
			q = &queuedVote{done: make(chan struct{})}
			t.queued = q
		}
		q.choice = choice
		t.mu.Unlock()

		l.logger.Debug("vote queued", "post_id", postID, "choice", choice.String())
		select {
		case <-q.done:
			return q.state, q.err
		case <-ctx.Done():
			return VoteState{}, ctx.Err()
		}
	}

	state, err := l.runVote(ctx, postID, t, choice)
	l.drainVotes(ctx, postID, t)
	return state, err
}

// runVote must be called with t.mu held; it returns with t.mu released.
func (l *Interactions) runVote(ctx context.Context, postID int64, t *voteTracker, choice VoteChoice) (VoteState, error) {
	post, ok := l.lookupPost(postID)
	if !ok {
		t.mu.Unlock()
		return VoteState{}, &Error{Kind: KindNotFound, Message: fmt.Sprintf("post %d is not loaded", postID)}
	}

	current := post.VoteState()
	if !needsTransition(phaseOf(current.UserVote), choice) {
		t.mu.Unlock()
		return current, nil
	}

	next := current.applyChoice(choice)
	t.pending = true
	t.before = current
	t.optimistic = next
	l.modifyPost(postID, func(p Post) Post { return p.WithVoteState(next) })
	t.mu.Unlock()

	l.logger.Debug("vote applied optimistically", "post_id", postID, "from", current.String(), "to", next.String())

	var (
		tally VoteTally
		err   error
	)
	if choice == VoteNone {
		tally, err = l.postAPI.Unvote(ctx, postID)
	} else {
		tally, err = l.postAPI.Vote(ctx, postID, choice)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = false

	if err != nil {
		before := t.before
		l.modifyPost(postID, func(p Post) Post { return p.WithVoteState(before) })
		l.logger.Warn("vote rolled back", "post_id", postID, "error", err)
		return before, fmt.Errorf("voting on post %d: %w", postID, err)
	}

	final := confirmed(choice, tally)
	l.modifyPost(postID, func(p Post) Post { return p.WithVoteState(final) })
	l.logger.Info("vote confirmed", "post_id", postID, "state", final.String())
	return final, nil
}

// drainVotes runs coalesced intents until none remain. A request started
// by another caller in the meantime owns the queue, so draining stops there.
func (l *Interactions) drainVotes(ctx context.Context, postID int64, t *voteTracker) {
	ctx = context.WithoutCancel(ctx)
	for {
		t.mu.Lock()
		q := t.queued
		if q == nil || t.pending {
			t.mu.Unlock()
			return
		}
		t.queued = nil
		q.state, q.err = l.runVote(ctx, postID, t, q.choice)
		close(q.done)
	}
}

// Overlay returns p with any pending optimistic vote re-applied, so a fetch
// that lands mid-flight does not erase the local state.
func (l *Interactions) Overlay(p Post) Post {
	l.mu.Lock()
	t, ok := l.trackers[p.ID]
	l.mu.Unlock()
	if !ok {
		return p
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending {
		return p.WithVoteState(t.optimistic)
	}
	return p
}

// Thread returns the comment store for postID.
func (l *Interactions) Thread(postID int64) *Store[Comment] {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.threads[postID]
	if !ok {
		s = NewStore[Comment]()
		l.threads[postID] = s
	}
	return s
}

// LoadComments fetches a page of comments. Page 1 replaces the thread;
// later pages append. Pending placeholders stay at the tail.
func (l *Interactions) LoadComments(ctx context.Context, postID int64, page int) (Page[Comment], error) {
	if page < 1 {
		page = 1
	}
	result, err := l.postAPI.Comments(ctx, postID, page)
	if err != nil {
		return Page[Comment]{}, fmt.Errorf("loading comments for post %d: %w", postID, err)
	}

	thread := l.Thread(postID)
	if page == 1 {
		var pending []Comment
		for _, c := range thread.All() {
			if c.Pending {
				pending = append(pending, c)
			}
		}
		if err := thread.ReplaceAll(append(append([]Comment{}, result.Items...), pending...)); err != nil {
			return Page[Comment]{}, err
		}
	} else if _, err := thread.Append(result.Items); err != nil {
		return Page[Comment]{}, err
	}
	return result, nil
}

func (l *Interactions) nextTempID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tempSeq--
	return l.tempSeq
}

// SubmitComment appends a pending placeholder, posts the comment, and swaps
// the placeholder for the server's comment. On failure the placeholder is
// removed and the post's comment count restored.
func (l *Interactions) SubmitComment(ctx context.Context, postID int64, content string) (Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, &Error{Kind: KindValidation, Message: "comment content is required"}
	}

	placeholder := Comment{
		ID:        l.nextTempID(),
		PostID:    postID,
		Content:   content,
		CreatedAt: l.clock.Now(),
		Pending:   true,
		ClientRef: l.idgen.New(),
	}
	thread := l.Thread(postID)
	if err := thread.Upsert(placeholder); err != nil {
		return Comment{}, err
	}
	l.modifyPost(postID, func(p Post) Post {
		p.CommentsCount++
		return p
	})

	c, err := l.postAPI.AddComment(ctx, postID, content)
	if err != nil {
		thread.Remove(placeholder.ID)
		l.modifyPost(postID, func(p Post) Post {
			if p.CommentsCount > 0 {
				p.CommentsCount--
			}
			return p
		})
		l.logger.Warn("comment rolled back", "post_id", postID, "client_ref", placeholder.ClientRef, "error", err)
		return Comment{}, fmt.Errorf("commenting on post %d: %w", postID, err)
	}

	if err := thread.Swap(placeholder.ID, *c); err != nil {
		return Comment{}, fmt.Errorf("reconciling comment: %w", err)
	}
	l.logger.Info("comment confirmed", "post_id", postID, "comment_id", c.ID)
	return *c, nil
}

// MarkRead marks a notification read locally, then on the server. The local
// change is reverted if the server rejects it.
func (l *Interactions) MarkRead(ctx context.Context, id int64) (Notification, error) {
	before, known := l.notifications.Get(id)
	if known && before.IsRead() {
		return before, nil
	}
	if known {
		now := l.clock.Now()
		l.notifications.Modify(id, func(n Notification) Notification {
			n.ReadAt = &now
			return n
		})
	}

	n, err := l.notifAPI.MarkRead(ctx, id)
	if err != nil {
		if known {
			l.notifications.Modify(id, func(Notification) Notification { return before })
		}
		return Notification{}, fmt.Errorf("marking notification %d read: %w", id, err)
	}
	if err := l.notifications.Upsert(*n); err != nil {
		return Notification{}, err
	}
	return *n, nil
}

// Reset drops all vote trackers and comment threads.
func (l *Interactions) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.trackers = make(map[int64]*voteTracker)
	l.threads = make(map[int64]*Store[Comment])
}
