package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/existflow/instafeed/internal/model"
	"github.com/labstack/echo/v4"
)

type postResponse struct {
	model.Post
	TotalLikes int  `json:"totalLikes"`
	Liked      bool `json:"liked"`
}

func present(p model.Post, viewer string) postResponse {
	return postResponse{Post: p, TotalLikes: p.TotalLikes(), Liked: p.LikedByUser(viewer)}
}

// handleListPosts returns one page, newest first
func (s *Server) handleListPosts(c echo.Context) error {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}

	posts, err := s.store.listPosts(c.Request().Context(), (page-1)*s.pageSize, s.pageSize)
	if err != nil {
		return s.internal(c, "list posts", err)
	}

	viewer := currentUser(c).Email
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, present(p, viewer))
	}
	return ok(c, http.StatusOK, out)
}

func (s *Server) handleGetPost(c echo.Context) error {
	id, valid := idParam(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid post id")
	}
	p, err := s.store.getPost(c.Request().Context(), id)
	if errors.Is(err, errNotFound) {
		return fail(c, http.StatusNotFound, "post not found")
	}
	if err != nil {
		return s.internal(c, "get post", err)
	}
	return ok(c, http.StatusOK, present(p.Post, currentUser(c).Email))
}

func (s *Server) handleCreatePost(c echo.Context) error {
	var in model.PostInput
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return fail(c, http.StatusBadRequest, "content required")
	}

	id, err := s.store.createPost(c.Request().Context(), currentUser(c).ID, in)
	if err != nil {
		return s.internal(c, "create post", err)
	}
	return ok(c, http.StatusCreated, map[string]int64{"postId": id})
}

// authorPost loads the post named by :id and checks that the caller wrote it.
// A zero PostID means the error response has already been written.
func (s *Server) authorPost(c echo.Context) (postRow, error) {
	id, valid := idParam(c, "id")
	if !valid {
		return postRow{}, fail(c, http.StatusBadRequest, "invalid post id")
	}
	p, err := s.store.getPost(c.Request().Context(), id)
	if errors.Is(err, errNotFound) {
		return postRow{}, fail(c, http.StatusNotFound, "post not found")
	}
	if err != nil {
		return postRow{}, s.internal(c, "get post", err)
	}
	if p.AuthorID != currentUser(c).ID {
		return postRow{}, fail(c, http.StatusForbidden, "not the author")
	}
	return p, nil
}

func (s *Server) handlePatchPost(c echo.Context) error {
	return s.editPost(c, false)
}

func (s *Server) handlePutPost(c echo.Context) error {
	return s.editPost(c, true)
}

func (s *Server) editPost(c echo.Context, replace bool) error {
	var in model.PostInput
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return fail(c, http.StatusBadRequest, "content required")
	}

	p, err := s.authorPost(c)
	if err != nil || p.PostID == 0 {
		return err
	}

	var img *string
	if replace {
		img = &in.PostImg
	}
	if err := s.store.updatePost(c.Request().Context(), p.PostID, in.Content, img); err != nil {
		return s.internal(c, "update post", err)
	}
	return ok(c, http.StatusOK, nil)
}

func (s *Server) handleDeletePost(c echo.Context) error {
	p, err := s.authorPost(c)
	if err != nil || p.PostID == 0 {
		return err
	}
	if err := s.store.deletePost(c.Request().Context(), p.PostID); err != nil {
		return s.internal(c, "delete post", err)
	}
	return ok(c, http.StatusOK, nil)
}

// handleLike sets the caller's like. The body names the desired state as
// liked or isLiked; without one the like is toggled.
func (s *Server) handleLike(c echo.Context) error {
	id, valid := idParam(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid post id")
	}
	var req struct {
		Liked   *bool `json:"liked"`
		IsLiked *bool `json:"isLiked"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid request")
		}
	}

	ctx := c.Request().Context()
	if _, err := s.store.getPost(ctx, id); errors.Is(err, errNotFound) {
		return fail(c, http.StatusNotFound, "post not found")
	} else if err != nil {
		return s.internal(c, "get post", err)
	}

	user := currentUser(c)
	var liked bool
	switch {
	case req.Liked != nil:
		liked = *req.Liked
	case req.IsLiked != nil:
		liked = *req.IsLiked
	default:
		has, err := s.store.hasLiked(ctx, id, user.ID)
		if err != nil {
			return s.internal(c, "like state", err)
		}
		liked = !has
	}

	total, err := s.store.setLike(ctx, id, user.ID, liked)
	if err != nil {
		return s.internal(c, "set like", err)
	}
	return ok(c, http.StatusOK, model.LikeResult{Liked: liked, TotalLikes: total})
}
