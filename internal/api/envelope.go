package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/existflow/instafeed/internal/model"
)

// envelope is the {success, data, error} wrapper most endpoints use
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
}

// unwrap returns the payload of a 2xx body. Bodies without an envelope
// are returned whole, so bare arrays and objects are accepted.
func unwrap(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, ErrMalformedResponse
	}
	if body[0] != '{' {
		return body, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, ErrMalformedResponse
	}
	_, hasSuccess := probe["success"]
	data, hasData := probe["data"]
	if !hasSuccess && !hasData {
		return body, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrMalformedResponse
	}
	if env.Success != nil && !*env.Success {
		return nil, fmt.Errorf("%w: success=false: %s", ErrMalformedResponse, env.message())
	}
	if !hasData {
		// {success:true, user:{...}, token:...} style
		return body, nil
	}
	return data, nil
}

func (e envelope) message() string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Message != "":
		return e.Message
	default:
		return e.Msg
	}
}

// errorMessage extracts a human readable message from an error body,
// tolerating non-JSON bodies.
func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var env envelope
	if json.Unmarshal(body, &env) == nil {
		if m := env.message(); m != "" {
			return m
		}
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return ""
	}
	return s
}

// EnvelopeKind tags the shape a user payload arrived in
type EnvelopeKind int

const (
	EnvelopeBare    EnvelopeKind = iota // {id, email, ...}
	EnvelopeWrapped                     // {user: {...}, token}
	EnvelopeArray                       // [{...}]
)

func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeBare:
		return "bare"
	case EnvelopeWrapped:
		return "wrapped"
	case EnvelopeArray:
		return "array"
	default:
		return "unknown"
	}
}

// UserEnvelope is a user payload after its shape has been recognised.
// Everything past the API boundary only sees User.
type UserEnvelope struct {
	Kind  EnvelopeKind
	User  model.User
	Token string
}

// flexID accepts numbers and numeric strings
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("id %q: %w", s, err)
	}
	*f = flexID(n)
	return nil
}

type wireUser struct {
	ID         flexID  `json:"id"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	Username   string  `json:"username"`
	ProfileImg *string `json:"profileImg"`
}

func (w wireUser) toModel() model.User {
	name := w.Name
	if name == "" {
		name = w.Username
	}
	var img *string
	if w.ProfileImg != nil && *w.ProfileImg != "" {
		v := *w.ProfileImg
		img = &v
	}
	return model.User{ID: int64(w.ID), Email: w.Email, Name: name, ProfileImg: img}
}

// ParseUserEnvelope normalises the three user shapes seen on the wire
func ParseUserEnvelope(raw json.RawMessage) (UserEnvelope, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return UserEnvelope{}, fmt.Errorf("%w: empty user payload", ErrMalformedResponse)
	}

	var env UserEnvelope
	switch raw[0] {
	case '[':
		var users []wireUser
		if err := json.Unmarshal(raw, &users); err != nil {
			return UserEnvelope{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if len(users) == 0 {
			return UserEnvelope{}, fmt.Errorf("%w: empty user array", ErrMalformedResponse)
		}
		env = UserEnvelope{Kind: EnvelopeArray, User: users[0].toModel()}

	case '{':
		var wrapped struct {
			User  *wireUser `json:"user"`
			Token string    `json:"token"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return UserEnvelope{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if wrapped.User != nil {
			env = UserEnvelope{Kind: EnvelopeWrapped, User: wrapped.User.toModel(), Token: wrapped.Token}
			break
		}
		var bare wireUser
		if err := json.Unmarshal(raw, &bare); err != nil {
			return UserEnvelope{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		env = UserEnvelope{Kind: EnvelopeBare, User: bare.toModel(), Token: wrapped.Token}

	default:
		return UserEnvelope{}, fmt.Errorf("%w: unexpected user payload", ErrMalformedResponse)
	}

	if env.User.Email == "" {
		return UserEnvelope{}, fmt.Errorf("%w: user payload has no email", ErrMalformedResponse)
	}
	return env, nil
}

type wirePost struct {
	PostID    flexID   `json:"postId"`
	ID        flexID   `json:"id"`
	Content   string   `json:"content"`
	PostImg   string   `json:"postImg"`
	Author    string   `json:"author"`
	Email     string   `json:"email"`
	CreatedAt string   `json:"createdAt"`
	LikedBy   []string `json:"likedBy"`
}

func (w wirePost) toModel() model.Post {
	id := int64(w.PostID)
	if id == 0 {
		id = int64(w.ID)
	}
	author := w.Author
	if author == "" {
		author = w.Email
	}
	likedBy := w.LikedBy
	if likedBy == nil {
		likedBy = []string{}
	}
	return model.Post{
		PostID:    id,
		Content:   w.Content,
		PostImg:   w.PostImg,
		Author:    author,
		CreatedAt: parseTime(w.CreatedAt),
		LikedBy:   likedBy,
	}
}

type wireComment struct {
	ID        flexID `json:"id"`
	PostID    flexID `json:"postId"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Comment   string `json:"comment"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (w wireComment) toModel(postID int64) model.Comment {
	c := model.Comment{
		ID:        int64(w.ID),
		PostID:    int64(w.PostID),
		UserID:    w.UserID,
		Comment:   w.Comment,
		CreatedAt: parseTime(w.CreatedAt),
		UpdatedAt: parseTime(w.UpdatedAt),
	}
	if c.PostID == 0 {
		c.PostID = postID
	}
	if c.UserID == "" {
		c.UserID = w.Email
	}
	if c.Comment == "" {
		c.Comment = w.Text
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	return c
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
