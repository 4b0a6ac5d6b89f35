package model

import (
	"testing"

	"pgregory.net/rapid"
)

func TestNormalizeIdentityURLs(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "https://leetcode.com/problems/two-sum", "https://leetcode.com/problems/two-sum"},
		{"trailing slash", "https://leetcode.com/problems/two-sum/", "https://leetcode.com/problems/two-sum"},
		{"query stripped", "https://leetcode.com/problems/two-sum?envType=daily", "https://leetcode.com/problems/two-sum"},
		{"fragment stripped", "https://leetcode.com/problems/two-sum#solutions", "https://leetcode.com/problems/two-sum"},
		{"query and fragment", "https://leetcode.com/problems/two-sum/?tab=desc#top", "https://leetcode.com/problems/two-sum"},
		{"double trailing slash", "https://leetcode.com/problems/two-sum//", "https://leetcode.com/problems/two-sum"},
		{"surrounding space", "  https://leetcode.com/problems/two-sum  ", "https://leetcode.com/problems/two-sum"},
		{"host only", "https://leetcode.com/", "https://leetcode.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeIdentity(tc.in); got != tc.want {
				t.Errorf("NormalizeIdentity(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdentityNonURLs(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"bare slug", "two-sum", "two-sum"},
		{"slug with fragment", "two-sum#notes", "two-sum"},
		{"slug with query", "two-sum?x=1", "two-sum"},
		{"slug fragment then query", "two-sum#a?b", "two-sum"},
		{"slug trailing slash", "problems/two-sum/", "problems/two-sum"},
		{"relative path", "/problems/two-sum/", "/problems/two-sum"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeIdentity(tc.in); got != tc.want {
				t.Errorf("NormalizeIdentity(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdentityIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		once := NormalizeIdentity(s)
		twice := NormalizeIdentity(once)
		if once != twice {
			t.Fatalf("not idempotent: %q -> %q -> %q", s, once, twice)
		}
	})
}

func TestNormalizeIdentityEquivalentReferences(t *testing.T) {
	// Different spellings of the same problem reference must collide.
	refs := []string{
		"https://leetcode.com/problems/two-sum",
		"https://leetcode.com/problems/two-sum/",
		"https://leetcode.com/problems/two-sum?envType=study-plan",
		"https://leetcode.com/problems/two-sum/#community",
	}
	want := NormalizeIdentity(refs[0])
	for _, r := range refs[1:] {
		if got := NormalizeIdentity(r); got != want {
			t.Errorf("NormalizeIdentity(%q) = %q, want %q", r, got, want)
		}
	}
}
