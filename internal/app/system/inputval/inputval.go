// Package inputval holds the validation rules applied to organization and
// administrator input before it reaches the stores.
package inputval

import (
	"regexp"
	"strings"
)

// MinPasswordLen is the minimum administrator password length.
const MinPasswordLen = 8

var orgNameRe = regexp.MustCompile(`^[a-zA-Z0-9\-]+$`)

// IsValidOrgName reports whether s is an acceptable organization name:
// letters, digits, and hyphens only.
func IsValidOrgName(s string) bool {
	return orgNameRe.MatchString(s)
}

// IsValidPassword reports whether a password meets the length rule.
func IsValidPassword(s string) bool {
	return len(s) >= MinPasswordLen
}

const localSpecials = "!#$%&'*+/=?^_`{|}~-."

// IsValidEmail performs a structural check of a bare address (no display
// name). Single-label domains are accepted.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	local, domain := s[:at], s[at+1:]

	if !dotted(local) || !dotted(domain) {
		return false
	}
	for _, r := range local {
		if !isAlnum(r) && !strings.ContainsRune(localSpecials, r) {
			return false
		}
	}
	for _, label := range strings.Split(domain, ".") {
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if !isAlnum(r) && r != '-' {
				return false
			}
		}
	}
	return true
}

// dotted rejects empty parts, leading/trailing dots, and consecutive dots.
func dotted(s string) bool {
	return s != "" &&
		!strings.HasPrefix(s, ".") &&
		!strings.HasSuffix(s, ".") &&
		!strings.Contains(s, "..")
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
