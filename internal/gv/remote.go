package gv

import (
	"context"
	"fmt"
	"io"
)

// Cursor is the pagination position of a collection.
type Cursor struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// Validate checks the invariants the server must satisfy. A last page below
// the current page is clamped rather than rejected: the collection shrank
// while being paged and the feed is treated as exhausted.
func (c *Cursor) Validate() error {
	if c.CurrentPage < 1 {
		return fmt.Errorf("cursor: current_page %d < 1", c.CurrentPage)
	}
	if c.LastPage < 1 {
		return fmt.Errorf("cursor: last_page %d < 1", c.LastPage)
	}
	if c.PerPage <= 0 {
		return fmt.Errorf("cursor: per_page %d <= 0", c.PerPage)
	}
	if c.LastPage < c.CurrentPage {
		c.LastPage = c.CurrentPage
	}
	return nil
}

// Exhausted reports whether no page follows the current one.
func (c Cursor) Exhausted() bool {
	return c.CurrentPage >= c.LastPage
}

// Page is one page of a collection.
type Page[T any] struct {
	Items  []T
	Cursor Cursor
}

// ListQuery selects a page and optional exact-match filters.
type ListQuery struct {
	Page    int
	Filters map[string]string
}

// Attachment is a file sent with a create request. Its presence switches the
// request to multipart/form-data.
type Attachment interface {
	FieldName() string
	FileName() string
	Open() (io.ReadCloser, error)
}

// Payload is the body of a create or update request.
type Payload struct {
	Fields      map[string]any
	Attachments []Attachment
}

// Resource is the remote contract for one resource family.
// Get returns (nil, nil) when the entity does not exist; every other
// operation reports absence as an *Error of KindNotFound.
type Resource[T Entity] interface {
	List(ctx context.Context, q ListQuery) (Page[T], error)
	Get(ctx context.Context, id int64) (*T, error)
	Create(ctx context.Context, p Payload) (*T, error)
	Update(ctx context.Context, id int64, p Payload) (*T, error)
	Delete(ctx context.Context, id int64) error
}

// DonationAPI adds giving to a donation event.
type DonationAPI interface {
	Resource[Donation]
	Donate(ctx context.Context, id int64, amount int64) (*Donation, error)
}

// PostAPI adds voting and comments to community posts.
type PostAPI interface {
	Resource[Post]
	Vote(ctx context.Context, id int64, choice VoteChoice) (VoteTally, error)
	Unvote(ctx context.Context, id int64) (VoteTally, error)
	Comments(ctx context.Context, postID int64, page int) (Page[Comment], error)
	AddComment(ctx context.Context, postID int64, content string) (*Comment, error)
}

// NotificationAPI adds marking notifications read.
type NotificationAPI interface {
	Resource[Notification]
	MarkRead(ctx context.Context, id int64) (*Notification, error)
}

// AuthAPI exchanges account credentials for a bearer token.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*Credentials, error)
}
