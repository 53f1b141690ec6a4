package model

import "testing"

func TestUserPatch_Apply(t *testing.T) {
	img := "https://img.test/a.png"
	u := User{ID: 1, Email: "a@x.com", Name: "A", ProfileImg: &img}

	got := UserPatch{ProfileImg: StringPtr("https://img.test/b.png")}.Apply(u)
	if got.ProfileImg == nil || *got.ProfileImg != "https://img.test/b.png" {
		t.Errorf("ProfileImg = %v, want b.png", got.ProfileImg)
	}
	if got.Name != "A" || got.Email != "a@x.com" {
		t.Errorf("untouched fields changed: %+v", got)
	}
	if *u.ProfileImg != img {
		t.Error("Apply mutated the original user")
	}

	cleared := UserPatch{ProfileImg: StringPtr("")}.Apply(u)
	if cleared.ProfileImg != nil {
		t.Errorf("empty ProfileImg should clear, got %v", *cleared.ProfileImg)
	}
}

func TestForViewer(t *testing.T) {
	p := Post{PostID: 7, LikedBy: []string{"a@x.com", "b@x.com"}}

	fp := ForViewer(p, "b@x.com")
	if !fp.Liked || fp.LikeCount != 2 {
		t.Errorf("ForViewer(b) = liked %v count %d", fp.Liked, fp.LikeCount)
	}
	if ForViewer(p, "c@x.com").Liked {
		t.Error("c@x.com should not be liked")
	}
	if ForViewer(p, "").Liked {
		t.Error("anonymous viewer should not be liked")
	}
}

func TestDisplayName(t *testing.T) {
	if got := (User{Email: "hee_min@naver.com"}).DisplayName(); got != "hee_min" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := (User{Email: "a@x.com", Name: "Ann"}).DisplayName(); got != "Ann" {
		t.Errorf("DisplayName = %q", got)
	}
}
