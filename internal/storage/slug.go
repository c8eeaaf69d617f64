package storage

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/starford/quill/internal/apperr"
)

// MaxSlugBytes bounds file names well below common filesystem limits.
const MaxSlugBytes = 200

const reservedChars = `/\:*?"<>|`

// Slugify derives the file-system-safe name (without extension) for a title.
//
// The mapping lower-cases the title, turns every run of whitespace and every
// reserved path character into "_", drops control characters, and trims
// leading and trailing underscores. It is total; ValidateTitle rejects the
// titles whose slug is unusable.
func Slugify(title string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		case unicode.IsControl(r):
		case strings.ContainsRune(reservedChars, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
		inSpace = false
	}
	return strings.Trim(b.String(), "_")
}

// TitleFromSlug recovers a display title from a file name stem.
func TitleFromSlug(slug string) string {
	return strings.ReplaceAll(slug, "_", " ")
}

// FileName returns the note file name for a slug.
func FileName(slug string) string {
	return slug + ".md"
}

// ValidateTitle checks that title can name a note and returns its slug.
func ValidateTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	switch {
	case t == "":
		return "", fmt.Errorf("%w: title is empty", apperr.ErrInvalidTitle)
	case strings.ContainsAny(t, "\r\n"):
		return "", fmt.Errorf("%w: title contains a line break", apperr.ErrInvalidTitle)
	case strings.ContainsAny(t, "[]"):
		// A bracket could never be written inside a [[link]].
		return "", fmt.Errorf("%w: title contains square brackets", apperr.ErrInvalidTitle)
	}
	slug := Slugify(t)
	switch {
	case slug == "":
		return "", fmt.Errorf("%w: %q has no usable file name", apperr.ErrInvalidTitle, t)
	case strings.HasPrefix(slug, "."):
		return "", fmt.Errorf("%w: %q maps to a hidden file name", apperr.ErrInvalidTitle, t)
	case len(FileName(slug)) > MaxSlugBytes:
		return "", fmt.Errorf("%w: %q is too long", apperr.ErrInvalidTitle, t)
	}
	return slug, nil
}
