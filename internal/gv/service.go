package gv

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Resource names, also used as snapshot keys and URL paths.
const (
	ResourceDonations     = "donations"
	ResourceRequests      = "requests"
	ResourceVerifications = "verifications"
	ResourceNotifications = "notifications"
	ResourcePosts         = "posts"
)

// feedSnapshotKey holds the community feed across process runs.
const feedSnapshotKey = "feed"

// Remote bundles the remote clients the service depends on.
type Remote struct {
	Auth          AuthAPI
	Donations     DonationAPI
	Requests      Resource[Request]
	Verifications Resource[Verification]
	Notifications NotificationAPI
	Posts         PostAPI
}

// FeedResult is a feed load plus where it came from. SavedAt is set when
// the feed was restored from cache.
type FeedResult struct {
	FeedUpdate
	Source  Source
	SavedAt time.Time
	Err     error
}

// GVService is the orchestration layer the CLI talks to. It owns one
// collection per resource, the community feed and the optimistic layer,
// all sharing the injected session.
type GVService struct {
	session *Session
	remote  Remote
	cache   Cache
	logger  Logger
	clock   Clock

	Donations     *Collection[Donation]
	Requests      *Collection[Request]
	Verifications *Collection[Verification]
	Notifications *Collection[Notification]
	Posts         *Collection[Post]

	feed         *Feed[Post]
	interactions *Interactions
}

// NewGVService wires the stores, feed and optimistic layer. cache may be nil.
// Logging out clears every store and the cache.
func NewGVService(remote Remote, session *Session, cache Cache, logger Logger, clock Clock, idgen IDGenerator) *GVService {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}

	// The feed owns posts in page order; posts opened on their own live in
	// a separate store so they never land at an arbitrary feed position.
	posts := NewStore[Post]()
	details := NewStore[Post]()
	notifications := NewStore[Notification]()

	s := &GVService{
		session:       session,
		remote:        remote,
		cache:         cache,
		logger:        logger,
		clock:         clock,
		Donations:     NewCollection[Donation](ResourceDonations, remote.Donations, nil, cache, clock, logger),
		Requests:      NewCollection[Request](ResourceRequests, remote.Requests, nil, cache, clock, logger),
		Verifications: NewCollection[Verification](ResourceVerifications, remote.Verifications, nil, cache, clock, logger),
		Notifications: NewCollection[Notification](ResourceNotifications, remote.Notifications, notifications, cache, clock, logger),
		Posts:         NewCollection[Post](ResourcePosts, remote.Posts, details, cache, clock, logger),
	}

	s.interactions = NewInteractions(posts, notifications, remote.Posts, remote.Notifications, idgen, clock, logger)
	s.interactions.TrackPosts(details)
	s.feed = NewFeed(posts, func(ctx context.Context, page int) (Page[Post], error) {
		return remote.Posts.List(ctx, ListQuery{Page: page})
	}, logger)
	s.feed.SetOverlay(s.interactions.Overlay)
	s.Posts.SetOverlay(s.interactions.Overlay)

	if session != nil {
		session.OnEnd(s.Teardown)
	}
	return s
}

// Session returns the injected session.
func (s *GVService) Session() *Session { return s.session }

// Feed returns the community feed controller.
func (s *GVService) Feed() *Feed[Post] { return s.feed }

// Interactions returns the optimistic layer.
func (s *GVService) Interactions() *Interactions { return s.interactions }

// Login exchanges email and password for a session.
func (s *GVService) Login(ctx context.Context, email, password string) (*Credentials, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &Error{Kind: KindValidation, Message: "email and password are required"}
	}
	creds, err := s.remote.Auth.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	if creds.IssuedAt.IsZero() {
		creds.IssuedAt = s.clock.Now()
	}
	if err := s.session.Login(creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// LoginWithToken installs a bearer token obtained elsewhere.
func (s *GVService) LoginWithToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return &Error{Kind: KindValidation, Message: "token is required"}
	}
	return s.session.Login(&Credentials{Token: token, IssuedAt: s.clock.Now()})
}

// Logout ends the session and tears down local state.
func (s *GVService) Logout() error {
	return s.session.Logout()
}

// Teardown clears every store, the feed, the optimistic layer and the cache.
func (s *GVService) Teardown() {
	s.Donations.Store().Clear()
	s.Requests.Store().Clear()
	s.Verifications.Store().Clear()
	s.Notifications.Store().Clear()
	s.Posts.Store().Clear()
	s.feed.Reset()
	s.interactions.Reset()
	if s.cache != nil {
		if err := s.cache.Clear(); err != nil {
			s.logger.Warn("clearing cache failed", "error", err)
		}
	}
}

// Donate gives amount to donation id. The stored donation afterwards is
// exactly what the server returned.
func (s *GVService) Donate(ctx context.Context, id int64, amount int64) (*Donation, error) {
	if amount <= 0 {
		return nil, &Error{Kind: KindValidation, Message: "amount must be positive"}
	}
	d, err := s.remote.Donations.Donate(ctx, id, amount)
	if err != nil {
		return nil, fmt.Errorf("donating to %d: %w", id, err)
	}
	if err := s.Donations.Store().Upsert(*d); err != nil {
		return nil, err
	}
	s.logger.Info("donation confirmed", "donation_id", id, "amount", amount, "current_amount", d.CurrentAmount)
	return d, nil
}

// LoadFeed loads the first page of the community feed, or the next page
// when more is set. The feed is persisted so that more can continue it in
// a later process. If the first page cannot be fetched for a fallbackable
// reason, the persisted feed is restored and flagged SourceCache.
func (s *GVService) LoadFeed(ctx context.Context, more bool) (*FeedResult, error) {
	if more {
		if _, loaded := s.feed.Cursor(); !loaded {
			if _, err := s.restoreFeed(); err != nil {
				s.logger.Warn("restoring feed failed", "error", err)
			}
		}
		u, err := s.feed.LoadNextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading feed: %w", err)
		}
		s.saveFeed()
		return &FeedResult{FeedUpdate: u, Source: SourceLive}, nil
	}

	u, err := s.feed.LoadFirstPage(ctx)
	if err != nil {
		if !IsFallbackable(err) {
			return nil, fmt.Errorf("loading feed: %w", err)
		}
		savedAt, rerr := s.restoreFeed()
		if rerr != nil {
			s.logger.Warn("restoring feed failed", "error", rerr)
			return nil, fmt.Errorf("loading feed: %w", err)
		}
		cursor, loaded := s.feed.Cursor()
		if !loaded {
			return nil, fmt.Errorf("loading feed: %w", err)
		}
		return &FeedResult{
			FeedUpdate: FeedUpdate{Added: s.feed.Store().Len(), Exhausted: cursor.Exhausted(), Cursor: cursor},
			Source:     SourceCache,
			SavedAt:    savedAt,
			Err:        err,
		}, nil
	}
	s.saveFeed()
	return &FeedResult{FeedUpdate: u, Source: SourceLive}, nil
}

// restoreFeed loads the persisted feed, if any, and returns when it was saved.
func (s *GVService) restoreFeed() (time.Time, error) {
	if s.cache == nil {
		return time.Time{}, nil
	}
	snap, err := s.cache.LoadSnapshot(feedSnapshotKey)
	if err != nil {
		return time.Time{}, err
	}
	if snap == nil {
		return time.Time{}, nil
	}
	items, err := decodeSnapshot[Post](snap)
	if err != nil {
		return time.Time{}, err
	}
	return snap.SavedAt, s.feed.Restore(snap.Cursor, items)
}

func (s *GVService) saveFeed() {
	if s.cache == nil {
		return
	}
	cursor, loaded := s.feed.Cursor()
	if !loaded {
		return
	}
	snap, err := encodeSnapshot(feedSnapshotKey, cursor, s.feed.Store().All(), s.clock.Now())
	if err == nil {
		err = s.cache.SaveSnapshot(snap)
	}
	if err != nil {
		s.logger.Warn("saving feed failed", "error", err)
	}
}

// CreatePost creates a post and injects it at the head of the feed.
func (s *GVService) CreatePost(ctx context.Context, p Payload) (*Post, error) {
	post, err := s.remote.Posts.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}
	if _, err := s.feed.Inject(*post); err != nil {
		return nil, err
	}
	s.saveFeed()
	s.logger.Info("post created", "post_id", post.ID)
	return post, nil
}

// Post fetches one post, keeping any pending optimistic vote.
// An absent post yields (nil, nil).
func (s *GVService) Post(ctx context.Context, id int64) (*Post, error) {
	return s.Posts.Get(ctx, id)
}

// ensurePost makes sure id is held by the feed or the detail store,
// fetching it into the detail store if needed.
func (s *GVService) ensurePost(ctx context.Context, id int64) error {
	if _, loaded := s.feed.Cursor(); !loaded {
		if _, err := s.restoreFeed(); err != nil {
			s.logger.Warn("restoring feed failed", "error", err)
		}
	}
	if _, ok := s.feed.Store().Get(id); ok {
		return nil
	}
	if _, ok := s.Posts.Store().Get(id); ok {
		return nil
	}
	p, err := s.Post(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf("post %d not found", id)}
	}
	return nil
}

// Vote sets the user's vote on post id and persists the resulting feed.
func (s *GVService) Vote(ctx context.Context, id int64, choice VoteChoice) (VoteState, error) {
	if err := s.ensurePost(ctx, id); err != nil {
		return VoteState{}, err
	}
	state, err := s.interactions.Vote(ctx, id, choice)
	s.saveFeed()
	return state, err
}

// Comments loads a page of comments on post id.
func (s *GVService) Comments(ctx context.Context, id int64, page int) ([]Comment, Cursor, error) {
	result, err := s.interactions.LoadComments(ctx, id, page)
	if err != nil {
		return nil, Cursor{}, err
	}
	return s.interactions.Thread(id).All(), result.Cursor, nil
}

// Comment submits a comment on post id.
func (s *GVService) Comment(ctx context.Context, id int64, content string) (Comment, error) {
	if err := s.ensurePost(ctx, id); err != nil {
		return Comment{}, err
	}
	c, err := s.interactions.SubmitComment(ctx, id, content)
	s.saveFeed()
	return c, err
}

// MarkNotificationRead marks notification id read.
func (s *GVService) MarkNotificationRead(ctx context.Context, id int64) (Notification, error) {
	return s.interactions.MarkRead(ctx, id)
}
