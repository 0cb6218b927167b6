package gv

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Entity is a server-owned record identified by an integer id.
// Validate reports missing required fields; a response that fails it is
// treated as malformed rather than stored partially.
type Entity interface {
	EntityID() int64
	Validate() error
}

var errMissingID = errors.New("missing id")

func requireID(id int64) error {
	if id <= 0 {
		return errMissingID
	}
	return nil
}

func requireText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("missing %s", field)
	}
	return nil
}

// Donation is a fundraising event that supporters give to.
type Donation struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	GoalAmount    int64     `json:"goal_amount"`
	CurrentAmount int64     `json:"current_amount"`
	Status        string    `json:"status,omitempty"`
	UserID        int64     `json:"user_id,omitempty"`
	LocationID    int64     `json:"location_id,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (d Donation) EntityID() int64 { return d.ID }

func (d Donation) Validate() error {
	if err := requireID(d.ID); err != nil {
		return fmt.Errorf("donation: %w", err)
	}
	if err := requireText("title", d.Title); err != nil {
		return fmt.Errorf("donation %d: %w", d.ID, err)
	}
	return nil
}

// Request is a beneficiary's request for help.
type Request struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	AmountNeeded int64     `json:"amount_needed"`
	Status       string    `json:"status,omitempty"`
	UserID       int64     `json:"user_id,omitempty"`
	LocationID   int64     `json:"location_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r Request) EntityID() int64 { return r.ID }

func (r Request) Validate() error {
	if err := requireID(r.ID); err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if err := requireText("title", r.Title); err != nil {
		return fmt.Errorf("request %d: %w", r.ID, err)
	}
	return nil
}

// Post is a community feed entry. Upvotes, Downvotes and UserVote form its vote state.
type Post struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id,omitempty"`
	Title         string     `json:"title,omitempty"`
	Content       string     `json:"content"`
	Upvotes       int        `json:"upvotes"`
	Downvotes     int        `json:"downvotes"`
	UserVote      VoteChoice `json:"user_vote"`
	CommentsCount int        `json:"comments_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (p Post) EntityID() int64 { return p.ID }

func (p Post) Validate() error {
	if err := requireID(p.ID); err != nil {
		return fmt.Errorf("post: %w", err)
	}
	if err := requireText("content", p.Content); err != nil {
		return fmt.Errorf("post %d: %w", p.ID, err)
	}
	if p.Upvotes < 0 || p.Downvotes < 0 {
		return fmt.Errorf("post %d: negative vote tally", p.ID)
	}
	return nil
}

// VoteState returns the post's current vote state.
func (p Post) VoteState() VoteState {
	return VoteState{Upvotes: p.Upvotes, Downvotes: p.Downvotes, UserVote: p.UserVote}
}

// WithVoteState returns a copy of p carrying v.
func (p Post) WithVoteState(v VoteState) Post {
	p.Upvotes = v.Upvotes
	p.Downvotes = v.Downvotes
	p.UserVote = v.UserVote
	return p
}

// Comment belongs to a post. Pending comments are local placeholders
// awaiting server confirmation; they carry a negative ID and a ClientRef.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	UserID    int64     `json:"user_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	Pending   bool   `json:"-"`
	ClientRef string `json:"-"`
}

func (c Comment) EntityID() int64 { return c.ID }

func (c Comment) Validate() error {
	if !c.Pending {
		if err := requireID(c.ID); err != nil {
			return fmt.Errorf("comment: %w", err)
		}
	}
	if err := requireText("content", c.Content); err != nil {
		return fmt.Errorf("comment %d: %w", c.ID, err)
	}
	return nil
}

// Verification is a user's identity verification submission.
// Only approved users may donate.
type Verification struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id,omitempty"`
	Status       string    `json:"status"`
	DocumentType string    `json:"document_type,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (v Verification) EntityID() int64 { return v.ID }

func (v Verification) Validate() error {
	if err := requireID(v.ID); err != nil {
		return fmt.Errorf("verification: %w", err)
	}
	if err := requireText("status", v.Status); err != nil {
		return fmt.Errorf("verification %d: %w", v.ID, err)
	}
	return nil
}

// Notification is a message addressed to the signed-in user.
type Notification struct {
	ID        int64      `json:"id"`
	Type      string     `json:"type,omitempty"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (n Notification) EntityID() int64 { return n.ID }

func (n Notification) Validate() error {
	if err := requireID(n.ID); err != nil {
		return fmt.Errorf("notification: %w", err)
	}
	if err := requireText("message", n.Message); err != nil {
		return fmt.Errorf("notification %d: %w", n.ID, err)
	}
	return nil
}

// IsRead reports whether the notification has been marked read.
func (n Notification) IsRead() bool { return n.ReadAt != nil }

// User is the signed-in account as returned by the login endpoint.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}
