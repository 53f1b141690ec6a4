package auth

import "github.com/existflow/instafeed/internal/model"

// Status is the three-valued login state. StatusUnknown is distinct from
// StatusUnauthenticated: it means the first check has not finished.
type Status int

const (
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is the client's view of who is logged in. User is nil unless
// Status is StatusAuthenticated.
type State struct {
	Status Status
	User   *model.User
}

// IsAuthenticated reports Status == StatusAuthenticated
func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

// Known reports whether the first check has settled
func (s State) Known() bool {
	return s.Status != StatusUnknown
}

func userPayload(u model.User) map[string]any {
	p := map[string]any{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
	}
	if u.ProfileImg != nil {
		p["profileImg"] = *u.ProfileImg
	} else {
		p["profileImg"] = nil
	}
	return p
}
