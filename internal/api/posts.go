package api

import (
	"context"
	"errors"
	"net/http"

	"gv-go/internal/gv"
)

// Posts is the community post client.
type Posts struct {
	*Resource[gv.Post]
}

var _ gv.PostAPI = (*Posts)(nil)

// NewPosts creates the post client.
func NewPosts(c *Client) *Posts {
	return &Posts{Resource: NewResource[gv.Post](c, gv.ResourcePosts)}
}

type tallyEnvelope struct {
	Data *struct {
		Upvotes   *int `json:"upvotes"`
		Downvotes *int `json:"downvotes"`
	} `json:"data"`
}

func decodeTally(body []byte) (gv.VoteTally, error) {
	var env tallyEnvelope
	if err := decode(body, &env); err != nil {
		return gv.VoteTally{}, err
	}
	if env.Data == nil || env.Data.Upvotes == nil || env.Data.Downvotes == nil {
		return gv.VoteTally{}, gv.Malformed(errors.New("vote response missing tallies"))
	}
	if *env.Data.Upvotes < 0 || *env.Data.Downvotes < 0 {
		return gv.VoteTally{}, gv.Malformed(errors.New("vote response has negative tallies"))
	}
	return gv.VoteTally{Upvotes: *env.Data.Upvotes, Downvotes: *env.Data.Downvotes}, nil
}

// Vote casts choice on post id and returns the server's tallies.
func (p *Posts) Vote(ctx context.Context, id int64, choice gv.VoteChoice) (gv.VoteTally, error) {
	if choice == gv.VoteNone {
		return p.Unvote(ctx, id)
	}
	body, err := jsonBody(map[string]string{"type": string(choice)})
	if err != nil {
		return gv.VoteTally{}, err
	}
	_, resp, err := p.c.do(ctx, request{
		method:      http.MethodPost,
		path:        p.itemPath(id, "vote"),
		body:        body,
		contentType: "application/json",
		write:       true,
	})
	if err != nil {
		return gv.VoteTally{}, err
	}
	return decodeTally(resp)
}

// Unvote withdraws the user's vote on post id.
func (p *Posts) Unvote(ctx context.Context, id int64) (gv.VoteTally, error) {
	_, resp, err := p.c.do(ctx, request{method: http.MethodDelete, path: p.itemPath(id, "vote"), write: true})
	if err != nil {
		return gv.VoteTally{}, err
	}
	return decodeTally(resp)
}

// Comments lists a page of comments on post postID.
func (p *Posts) Comments(ctx context.Context, postID int64, page int) (gv.Page[gv.Comment], error) {
	return listPage[gv.Comment](ctx, p.c, p.itemPath(postID, "comments"), gv.ListQuery{Page: page})
}

// AddComment posts a comment and returns the server's copy.
func (p *Posts) AddComment(ctx context.Context, postID int64, content string) (*gv.Comment, error) {
	body, err := jsonBody(map[string]string{"content": content})
	if err != nil {
		return nil, err
	}
	_, resp, err := p.c.do(ctx, request{
		method:      http.MethodPost,
		path:        p.itemPath(postID, "comments"),
		body:        body,
		contentType: "application/json",
		write:       true,
	})
	if err != nil {
		return nil, err
	}
	return decodeItem[gv.Comment](resp)
}
