package api

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseUserEnvelope_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantKind  EnvelopeKind
		wantID    int64
		wantName  string
		wantToken string
	}{
		{"bare", `{"id":1,"email":"a@x.com","name":"Ann","profileImg":null}`, EnvelopeBare, 1, "Ann", ""},
		{"wrapped", `{"user":{"id":1,"email":"a@x.com"},"token":"t1"}`, EnvelopeWrapped, 1, "", "t1"},
		{"array", `[{"id":"2","email":"a@x.com","username":"hee_min"}]`, EnvelopeArray, 2, "hee_min", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseUserEnvelope(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("ParseUserEnvelope: %v", err)
			}
			if env.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", env.Kind, tt.wantKind)
			}
			if env.User.ID != tt.wantID || env.User.Email != "a@x.com" || env.User.Name != tt.wantName {
				t.Errorf("User = %+v", env.User)
			}
			if env.Token != tt.wantToken {
				t.Errorf("Token = %q, want %q", env.Token, tt.wantToken)
			}
		})
	}
}

func TestParseUserEnvelope_Malformed(t *testing.T) {
	for _, raw := range []string{``, `[]`, `"nope"`, `{"id":1}`, `{"user":{"id":1}}`, `[{"id":"x","email":"a@x.com"}]`} {
		_, err := ParseUserEnvelope(json.RawMessage(raw))
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("ParseUserEnvelope(%q) err = %v, want ErrMalformedResponse", raw, err)
		}
	}
}

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"enveloped array", `{"success":true,"data":[1,2]}`, `[1,2]`, false},
		{"bare array", `[1,2]`, `[1,2]`, false},
		{"bare object", `{"id":1}`, `{"id":1}`, false},
		{"success without data", `{"success":true,"user":{"id":1}}`, `{"success":true,"user":{"id":1}}`, false},
		{"success false", `{"success":false,"error":"boom"}`, ``, true},
		{"not json", `<html>oops</html>`, ``, true},
		{"empty", ``, ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unwrap([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestErrorMessage_ToleratesGarbage(t *testing.T) {
	if got := errorMessage([]byte(`{"error":"이메일 또는 비밀번호가 올바르지 않습니다."}`)); got == "" {
		t.Error("expected JSON error message")
	}
	if got := errorMessage([]byte("Bad Gateway")); got != "Bad Gateway" {
		t.Errorf("plain text message = %q", got)
	}
	if got := errorMessage([]byte(`{"unexpected":true}`)); got != "" {
		t.Errorf("unknown JSON should give empty message, got %q", got)
	}
}
