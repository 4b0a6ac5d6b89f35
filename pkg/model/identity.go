package model

import (
	"net/url"
	"strings"
	"unicode"
)

// NormalizeIdentity canonicalizes a raw problem reference into the stable
// global key used everywhere an item is referenced. Two references to the
// same problem must normalize to the same string, and normalization is
// idempotent: NormalizeIdentity(NormalizeIdentity(s)) == NormalizeIdentity(s).
//
// For well-formed URLs the fragment and query are stripped and trailing
// slashes removed. Anything else gets a best-effort treatment: split on '#',
// split on '?', trim whitespace, strip trailing slashes. Never fails.
func NormalizeIdentity(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	if u, err := url.Parse(trimmed); err == nil && u.Scheme != "" && u.Host != "" {
		u.Fragment = ""
		u.RawFragment = ""
		u.RawQuery = ""
		u.ForceQuery = false
		return strings.TrimRight(u.String(), "/")
	}

	// Not a parseable absolute URL. Same stripping, by hand.
	s := trimmed
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	// Trailing slashes and whitespace in any mix, so a second pass is a no-op.
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})
}
