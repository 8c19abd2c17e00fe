package tenant

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Name limits for a tenant's display name.
const (
	MinNameLength = 3
	MaxNameLength = 50
)

// InviteCodeLength is the length of every tenant invite code.
const InviteCodeLength = 8

const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Name validation errors carry the message shown to the user.
var (
	ErrNameRequired  = errors.New("school name is required")
	ErrNameTooShort  = fmt.Errorf("school name must be at least %d characters", MinNameLength)
	ErrNameTooLong   = fmt.Errorf("school name cannot exceed %d characters", MaxNameLength)
	ErrNameCharset   = errors.New("school name can only contain letters, numbers, spaces, and hyphens")
	ErrNameNoLetters = errors.New("school name must contain at least one letter or number")
)

var (
	nameCharset    = regexp.MustCompile(`^[a-zA-Z0-9\s-]+$`)
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugNonWord    = regexp.MustCompile(`[^\w-]+`)
	slugHyphens    = regexp.MustCompile(`-{2,}`)
	inviteCodeRe   = regexp.MustCompile(`^[A-Z0-9]{8}$`)
)

// Slugify derives the URL-safe identifier for a tenant name: lower-cased,
// whitespace runs become a hyphen, non-word characters are dropped, and
// hyphen runs are collapsed and trimmed.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugNonWord.ReplaceAllString(s, "")
	s = slugHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ValidateName checks a proposed tenant name against the length and character rules.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		return ErrNameRequired
	case n < MinNameLength:
		return ErrNameTooShort
	case n > MaxNameLength:
		return ErrNameTooLong
	case !nameCharset.MatchString(name):
		return ErrNameCharset
	case Slugify(name) == "":
		return ErrNameNoLetters
	}
	return nil
}

// NormalizeInviteCode trims and upper-cases a user-entered invite code.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidInviteCode reports whether code (already normalized) has the invite code shape.
func ValidInviteCode(code string) bool {
	return inviteCodeRe.MatchString(code)
}

// GenerateInviteCode returns a random 8-character uppercase alphanumeric code.
func GenerateInviteCode() (string, error) {
	// 252 is the largest multiple of 36 that fits in a byte; higher bytes are
	// rejected to keep the distribution uniform.
	const limit = 252

	code := make([]byte, 0, InviteCodeLength)
	buf := make([]byte, 2*InviteCodeLength)
	for len(code) < InviteCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating invite code: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, inviteAlphabet[int(b)%len(inviteAlphabet)])
			if len(code) == InviteCodeLength {
				break
			}
		}
	}
	return string(code), nil
}
