package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/existflow/instafeed/internal/model"
)

func postPath(id int64) string {
	return fmt.Sprintf("/api/posts/%d", id)
}

// ListPosts returns one page of the feed. Pages start at 1.
func (c *Client) ListPosts(ctx context.Context, page int) ([]model.Post, error) {
	r := request{
		method:     http.MethodGet,
		path:       "/api/posts",
		query:      url.Values{"page": {strconv.Itoa(page)}},
		authed:     true,
		idempotent: true,
	}
	var wire []wirePost
	if err := c.do(ctx, r, &wire); err != nil {
		return nil, err
	}
	posts := make([]model.Post, 0, len(wire))
	for _, w := range wire {
		p := w.toModel()
		if p.PostID == 0 {
			return nil, &Error{Op: r.op(), Status: http.StatusOK, Kind: ErrMalformedResponse, Message: "post without id"}
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// GetPost returns a single post
func (c *Client) GetPost(ctx context.Context, id int64) (model.Post, error) {
	var wire wirePost
	err := c.do(ctx, request{method: http.MethodGet, path: postPath(id), authed: true, idempotent: true}, &wire)
	if err != nil {
		return model.Post{}, err
	}
	return wire.toModel(), nil
}

// CreatePost creates a post and returns its server assigned id
func (c *Client) CreatePost(ctx context.Context, in model.PostInput) (int64, error) {
	r := request{method: http.MethodPost, path: "/api/posts", body: in, authed: true}
	var out struct {
		PostID flexID `json:"postId"`
	}
	if err := c.do(ctx, r, &out); err != nil {
		return 0, err
	}
	if out.PostID == 0 {
		return 0, &Error{Op: r.op(), Status: http.StatusOK, Kind: ErrMalformedResponse, Message: "missing postId"}
	}
	return int64(out.PostID), nil
}

// UpdatePost changes the content of a post (author only)
func (c *Client) UpdatePost(ctx context.Context, id int64, content string) error {
	body := map[string]string{"content": content}
	return c.do(ctx, request{method: http.MethodPatch, path: postPath(id), body: body, authed: true}, nil)
}

// ReplacePost replaces content and image of a post (author only)
func (c *Client) ReplacePost(ctx context.Context, id int64, in model.PostInput) error {
	return c.do(ctx, request{method: http.MethodPut, path: postPath(id), body: in, authed: true}, nil)
}

// DeletePost removes a post (author only)
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: postPath(id), authed: true}, nil)
}

// SetLike sets the viewer's like on a post to liked and returns the
// server's counts
func (c *Client) SetLike(ctx context.Context, id int64, liked bool) (model.LikeResult, error) {
	r := request{
		method: http.MethodPost,
		path:   postPath(id) + "/like",
		body:   map[string]bool{"liked": liked},
		authed: true,
	}
	var raw json.RawMessage
	if err := c.do(ctx, r, &raw); err != nil {
		return model.LikeResult{}, err
	}
	var out struct {
		Liked      *bool `json:"liked"`
		TotalLikes *int  `json:"totalLikes"`
		Likes      *int  `json:"likes"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.LikeResult{}, &Error{Op: r.op(), Status: http.StatusOK, Kind: ErrMalformedResponse, Err: err}
	}
	total := out.TotalLikes
	if total == nil {
		total = out.Likes
	}
	if total == nil {
		return model.LikeResult{}, &Error{Op: r.op(), Status: http.StatusOK, Kind: ErrMalformedResponse, Message: "missing totalLikes"}
	}
	res := model.LikeResult{Liked: liked, TotalLikes: *total}
	if out.Liked != nil {
		res.Liked = *out.Liked
	}
	return res, nil
}
