package rules

import (
	"regexp"
	"strings"
)

// WildcardMatch reports whether value matches pattern, where pattern is a
// glob-style string in which * matches any run of characters. Matching is
// case-insensitive and anchored at both ends, so an empty pattern matches
// only the empty string.
func WildcardMatch(value, pattern string) bool {
	segments := strings.Split(pattern, "*")
	quoted := make([]string, 0, len(segments))
	for _, seg := range segments {
		quoted = append(quoted, regexp.QuoteMeta(seg))
	}
	expr := "(?i)^" + strings.Join(quoted, ".*") + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}
