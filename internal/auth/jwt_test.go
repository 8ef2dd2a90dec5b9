package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("teacher-1", "teacher", "classtrack", "test-key", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("Issue() returned empty tokens")
	}

	claims, err := Parse(pair.AccessToken, "test-key", "classtrack")
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if claims.Subject != "teacher-1" {
		t.Errorf("subject = %q, want teacher-1", claims.Subject)
	}
	if claims.Role != "teacher" {
		t.Errorf("role = %q, want teacher", claims.Role)
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	pair, err := Issue("teacher-1", "teacher", "classtrack", "test-key", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		key    string
		issuer string
	}{
		{"wrong key", pair.AccessToken, "other-key", "classtrack"},
		{"wrong issuer", pair.AccessToken, "test-key", "other"},
		{"garbage token", "not.a.token", "test-key", "classtrack"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.token, tt.key, tt.issuer); err == nil {
				t.Error("Parse() should have failed")
			}
		})
	}
}

func TestPasswordHashRoundtrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	if !CheckPassword(hash, "s3cret") {
		t.Error("CheckPassword() rejected the right password")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("CheckPassword() accepted the wrong password")
	}
}
