package model

import "time"

// Post is a feed entry as stored by the backend
type Post struct {
	PostID    int64     `json:"postId"`
	Content   string    `json:"content"`
	PostImg   string    `json:"postImg,omitempty"`
	Author    string    `json:"author"` // email
	CreatedAt time.Time `json:"createdAt"`
	LikedBy   []string  `json:"likedBy"`
}

// LikedByUser reports whether email is in LikedBy
func (p Post) LikedByUser(email string) bool {
	for _, e := range p.LikedBy {
		if e == email {
			return true
		}
	}
	return false
}

// TotalLikes is |LikedBy|
func (p Post) TotalLikes() int {
	return len(p.LikedBy)
}

// FeedPost is a Post projected for one viewer
type FeedPost struct {
	Post
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

// ForViewer builds the viewer-specific projection of p
func ForViewer(p Post, viewer string) FeedPost {
	return FeedPost{
		Post:      p,
		Liked:     viewer != "" && p.LikedByUser(viewer),
		LikeCount: p.TotalLikes(),
	}
}

// PostInput is the body of create and edit requests
type PostInput struct {
	Content string `json:"content"`
	PostImg string `json:"postImg,omitempty"`
}

// LikeResult is the server's answer to a like request
type LikeResult struct {
	Liked      bool `json:"liked"`
	TotalLikes int  `json:"totalLikes"`
}
