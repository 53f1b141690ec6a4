package server

import (
	"context"
	"fmt"

	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// DemoPassword is the password of the seeded demo accounts
const DemoPassword = "secret1"

type demoPost struct {
	author   int
	content  string
	img      string
	likedBy  []int
	comments []demoComment
}

type demoComment struct {
	author int
	text   string
}

// seed fills an empty database with two users and a few posts
func (s *Server) seed(ctx context.Context) error {
	var n int
	if err := s.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	users := []model.User{}
	for _, u := range [][2]string{{"af@naver.com", "af"}, {"user2@example.com", "user2"}} {
		created, err := s.store.createUser(ctx, u[0], u[1], string(hash))
		if err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
		users = append(users, created)
	}

	posts := []demoPost{
		{author: 0, content: "On the road again", img: "https://picsum.photos/id/1015/600/400", likedBy: []int{1},
			comments: []demoComment{{1, "Great shot!"}, {0, "Thanks!"}}},
		{author: 1, content: "Meet the cat", img: "https://picsum.photos/id/40/600/400",
			comments: []demoComment{{0, "What is its name?"}}},
		{author: 0, content: "Coffee first", likedBy: []int{0, 1}},
	}
	for _, p := range posts {
		id, err := s.store.createPost(ctx, users[p.author].ID, model.PostInput{Content: p.content, PostImg: p.img})
		if err != nil {
			return fmt.Errorf("seed post: %w", err)
		}
		for _, u := range p.likedBy {
			if _, err := s.store.setLike(ctx, id, users[u].ID, true); err != nil {
				return fmt.Errorf("seed like: %w", err)
			}
		}
		for _, c := range p.comments {
			if _, err := s.store.createComment(ctx, id, users[c.author], c.text); err != nil {
				return fmt.Errorf("seed comment: %w", err)
			}
		}
	}

	s.log.Info("Seeded demo data", logger.F("users", len(users)), logger.F("posts", len(posts)))
	return nil
}
