package model

import "time"

// Comment belongs to exactly one post
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	UserID    string    `json:"userId"` // author email
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// LocalID marks an optimistic entry that the server has not confirmed yet
	LocalID string `json:"-"`
}

// Pending reports whether the comment is still an unconfirmed local copy
func (c Comment) Pending() bool {
	return c.LocalID != "" && c.ID == 0
}
