package validate

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reEmail       = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID          = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reQuoteNumber = regexp.MustCompile(`^SHC-Q-[0-9]{6}$`)
	reOrderNumber = regexp.MustCompile(`^SHC-S-[0-9]{6}$`)
	reSlug        = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,79}$`)
	reBrand       = regexp.MustCompile(`^[A-Za-z0-9 &.'-]{1,40}$`)
	reEventType   = regexp.MustCompile(`^[\x20-\x7e]{1,64}$`)
)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 50 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// QuoteNumber accepts SHC-Q-NNNNNN, case-insensitively.
func QuoteNumber(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, reQuoteNumber.MatchString(s)
}

// OrderNumber accepts SHC-S-NNNNNN, case-insensitively.
func OrderNumber(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, reOrderNumber.MatchString(s)
}

// ID validates a simple resource identifier (variant ids, user ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

func Slug(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, reSlug.MatchString(s)
}

// Brand is optional; an empty brand is valid and means "any".
func Brand(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	return s, reBrand.MatchString(s)
}

// EventType accepts any short printable carrier code, known or not.
func EventType(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, reEventType.MatchString(s)
}

// Line parses a 1-based order item line.
func Line(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 1000 {
		return 0, false
	}
	return n, true
}

// Page clamps a page query parameter.
func Page(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	if n > 1000 {
		return 1000
	} // clamp to avoid abuse
	return n
}

// Reason trims free text and enforces a max length.
func Reason(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return "", false
	}
	return s, true
}

// Password enforces a simple length window for login checks.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 20 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
