package blog

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\-\s]`)
	slugSpaces     = regexp.MustCompile(`\s+`)
	slugDashes     = regexp.MustCompile(`-+`)
)

// CleanSlug normalises free text into a URL-safe slug: lowercase ASCII
// letters, digits and single dashes, with no leading or trailing dash.
func CleanSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugDisallowed.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SlugCandidate returns the n-th candidate for base: base itself for n <= 1,
// otherwise base-n.
func SlugCandidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}
