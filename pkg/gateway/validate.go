package gateway

import (
	"strings"
	"unicode/utf8"

	"github.com/burrowlabs/burrow/pkg/apierr"
)

const maxObjectNameBytes = 1024

// ValidateBucketName enforces the bucket naming rules: 3 to 63 characters,
// lowercase dot-separated labels, no leading or trailing hyphen in a
// label, and nothing that reads like an IPv4 address.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return apierr.InvalidBucketName(name)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return apierr.InvalidBucketName(name)
	}
	if looksLikeIP(name) {
		return apierr.InvalidBucketName(name)
	}
	for _, label := range strings.Split(name, ".") {
		if !validLabel(label) {
			return apierr.InvalidBucketName(name)
		}
	}
	return nil
}

func validLabel(label string) bool {
	if label == "" {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-':
			if i == 0 || i == len(label)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// looksLikeIP reports whether name is four dot-separated groups of one to
// three digits.
func looksLikeIP(name string) bool {
	groups := strings.Split(name, ".")
	if len(groups) != 4 {
		return false
	}
	for _, g := range groups {
		if len(g) < 1 || len(g) > 3 {
			return false
		}
		for i := 0; i < len(g); i++ {
			if g[i] < '0' || g[i] > '9' {
				return false
			}
		}
	}
	return true
}

// ValidateObjectName enforces the object naming rules: 1 to 1024 bytes of
// valid UTF-8 with no NUL byte.
func ValidateObjectName(name string) error {
	if len(name) < 1 || len(name) > maxObjectNameBytes {
		return apierr.InvalidObjectName(name)
	}
	if strings.IndexByte(name, 0) >= 0 || !utf8.ValidString(name) {
		return apierr.InvalidObjectName(name)
	}
	return nil
}
