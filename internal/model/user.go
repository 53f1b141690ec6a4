package model

import "strings"

// User is the identity of an account as seen by the client
type User struct {
	ID         int64   `json:"id"`
	Email      string  `json:"email"`
	Name       string  `json:"name,omitempty"`
	ProfileImg *string `json:"profileImg"`
}

// Session is what the session store persists: the identity plus the bearer token
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token,omitempty"`
}

// Valid reports whether the session carries a usable identity
func (s *Session) Valid() bool {
	return s != nil && s.User.Email != ""
}

// DisplayName returns the name, falling back to the local part of the email
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if i := strings.IndexByte(u.Email, '@'); i > 0 {
		return u.Email[:i]
	}
	return u.Email
}

// UserPatch is a shallow partial update of the current identity.
// Nil fields are left untouched; an empty ProfileImg clears the image.
type UserPatch struct {
	Name       *string `json:"name,omitempty"`
	ProfileImg *string `json:"profileImg,omitempty"`
}

// Apply returns u with the patch merged in
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.ProfileImg != nil {
		if *p.ProfileImg == "" {
			u.ProfileImg = nil
		} else {
			img := *p.ProfileImg
			u.ProfileImg = &img
		}
	}
	return u
}

// Fields returns the patched fields as a flat map, used as event payloads
func (p UserPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.Name != nil {
		out["name"] = *p.Name
	}
	if p.ProfileImg != nil {
		out["profileImg"] = *p.ProfileImg
	}
	return out
}

// StringPtr is a helper for building patches
func StringPtr(s string) *string {
	return &s
}
