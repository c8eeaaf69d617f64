package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/quill/internal/apperr"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Project Ideas", "project_ideas"},
		{"  spaced   out  ", "spaced_out"},
		{"a/b\\c:d", "a_b_c_d"},
		{"What? <Why>", "what___why"},
		{"tab\there", "tab_here"},
		{"Ünïcode Title", "ünïcode_title"},
		{"bell\a", "bell"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTitleFromSlug(t *testing.T) {
	if got := TitleFromSlug("project_ideas"); got != "project ideas" {
		t.Errorf("got %q", got)
	}
}

func TestValidateTitle(t *testing.T) {
	slug, err := ValidateTitle(" Hello World ")
	if err != nil || slug != "hello_world" {
		t.Fatalf("ValidateTitle = %q, %v", slug, err)
	}

	bad := []string{"", "\t", "line\nbreak", "with [bracket", "close]", "///", ".dot", strings.Repeat("é", 120)}
	for _, title := range bad {
		if _, err := ValidateTitle(title); !errors.Is(err, apperr.ErrInvalidTitle) {
			t.Errorf("ValidateTitle(%q) err = %v", title, err)
		}
	}
}
