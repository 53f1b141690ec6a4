package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/existflow/instafeed/internal/model"
)

func commentsPath(postID int64) string {
	return fmt.Sprintf("/api/posts/%d/comments", postID)
}

// ListComments returns every comment of a post. No session required.
func (c *Client) ListComments(ctx context.Context, postID int64) ([]model.Comment, error) {
	var wire []wireComment
	err := c.do(ctx, request{method: http.MethodGet, path: commentsPath(postID), idempotent: true}, &wire)
	if err != nil {
		return nil, err
	}
	out := make([]model.Comment, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toModel(postID))
	}
	return out, nil
}

// CreateComment adds a comment and returns the stored copy
func (c *Client) CreateComment(ctx context.Context, postID int64, text string) (model.Comment, error) {
	r := request{
		method: http.MethodPost,
		path:   commentsPath(postID),
		body:   map[string]string{"comment": text},
		authed: true,
	}
	var wire wireComment
	if err := c.do(ctx, r, &wire); err != nil {
		return model.Comment{}, err
	}
	if wire.ID == 0 {
		return model.Comment{}, &Error{Op: r.op(), Status: http.StatusOK, Kind: ErrMalformedResponse, Message: "missing comment id"}
	}
	return wire.toModel(postID), nil
}

// DeleteComment removes a comment (author only)
func (c *Client) DeleteComment(ctx context.Context, postID, commentID int64) error {
	path := fmt.Sprintf("%s/%d", commentsPath(postID), commentID)
	return c.do(ctx, request{method: http.MethodDelete, path: path, authed: true}, nil)
}
