package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// handleListComments is public
func (s *Server) handleListComments(c echo.Context) error {
	postID, valid := idParam(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid post id")
	}
	ctx := c.Request().Context()
	if _, err := s.store.getPost(ctx, postID); errors.Is(err, errNotFound) {
		return fail(c, http.StatusNotFound, "post not found")
	} else if err != nil {
		return s.internal(c, "get post", err)
	}

	list, err := s.store.listComments(ctx, postID)
	if err != nil {
		return s.internal(c, "list comments", err)
	}
	return ok(c, http.StatusOK, list)
}

func (s *Server) handleCreateComment(c echo.Context) error {
	postID, valid := idParam(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid post id")
	}
	var req struct {
		Comment string `json:"comment"`
		Text    string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	text := strings.TrimSpace(req.Comment)
	if text == "" {
		text = strings.TrimSpace(req.Text)
	}
	if text == "" {
		return fail(c, http.StatusBadRequest, "comment required")
	}

	ctx := c.Request().Context()
	if _, err := s.store.getPost(ctx, postID); errors.Is(err, errNotFound) {
		return fail(c, http.StatusNotFound, "post not found")
	} else if err != nil {
		return s.internal(c, "get post", err)
	}

	created, err := s.store.createComment(ctx, postID, currentUser(c), text)
	if err != nil {
		return s.internal(c, "create comment", err)
	}
	return ok(c, http.StatusCreated, created)
}

func (s *Server) handleDeleteComment(c echo.Context) error {
	postID, valid := idParam(c, "id")
	commentID, validC := idParam(c, "cid")
	if !valid || !validC {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	cm, err := s.store.getComment(ctx, postID, commentID)
	if errors.Is(err, errNotFound) {
		return fail(c, http.StatusNotFound, "comment not found")
	}
	if err != nil {
		return s.internal(c, "get comment", err)
	}
	if cm.AuthorID != currentUser(c).ID {
		return fail(c, http.StatusForbidden, "not the author")
	}

	if err := s.store.deleteComment(ctx, commentID); err != nil {
		return s.internal(c, "delete comment", err)
	}
	return ok(c, http.StatusOK, nil)
}
