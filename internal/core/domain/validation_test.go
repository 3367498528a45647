package domain

import (
	"strings"
	"testing"
)

func TestValidateFullName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		valid bool
	}{
		{"accepts plain name", "Jane Doe", true},
		{"accepts accented letters", "José Pérez", true},
		{"rejects empty", "", false},
		{"rejects whitespace only", "   ", false},
		{"rejects too short", "Jo", false},
		{"rejects too long", strings.Repeat("a", MaxNameLength+1), false},
		{"rejects digits", "Jane 2 Doe", false},
		{"rejects punctuation", "Jane-Doe", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFullName(tc.input)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	cases := []struct {
		name  string
		input string
		valid bool
	}{
		{"accepts lowercase with digits", "jdoe42", true},
		{"accepts underscore", "j_doe", true},
		{"rejects empty", "", false},
		{"rejects too short", "jdo", false},
		{"rejects too long", strings.Repeat("a", MaxUsernameLength+1), false},
		{"rejects uppercase", "JDoe", false},
		{"rejects spaces", "j doe", false},
		{"rejects leading digit", "1jdoe", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateUsername(tc.input)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateSecret(t *testing.T) {
	cases := []struct {
		name  string
		input string
		valid bool
	}{
		{"accepts letter and digit mix", "abc12", true},
		{"accepts long mixed secret", "correct4horse", true},
		{"rejects empty", "", false},
		{"rejects below minimum", "ab1", false},
		{"rejects above maximum", strings.Repeat("a", MaxSecretLength) + "1", false},
		{"rejects letters only", "abcdef", false},
		{"rejects digits only", "123456", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSecret(tc.input)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("  Supervisor ")
	if err != nil {
		t.Fatalf("ParseRole returned error: %v", err)
	}
	if role != RoleSupervisor {
		t.Fatalf("expected supervisor, got %s", role)
	}

	if _, err := ParseRole("wizard"); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if _, err := ParseRole(""); err == nil {
		t.Fatal("expected error for empty role")
	}
}

func TestNormalizeUsername(t *testing.T) {
	if got := NormalizeUsername("  JDoe "); got != "jdoe" {
		t.Fatalf("expected jdoe, got %q", got)
	}
}
