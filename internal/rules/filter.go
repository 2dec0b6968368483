package rules

import (
	"fmt"
	"strings"

	"tfs-autotasks/internal/errs"
)

// FilterRule is one parsed element of an applywhen array. Scalar and array
// rule values are normalized into a uniform accepted-value representation at
// parse time; only the recognized fields are retained. Fields combine with
// AND: the rule matches an item only if every constrained field matches.
type FilterRule struct {
	// scalars holds lower-cased accepted values (OR) per non-title,
	// non-tag field, keyed by canonical reference name.
	scalars map[string][]string
	// titlePatterns holds wildcard patterns for System.Title; the rule's
	// title constraint is satisfied by any one of them.
	titlePatterns []string
	// tags holds the lower-cased required tag set (AND/subset).
	tags map[string]struct{}
}

// ParseFilterRule validates one raw applywhen entry. Unrecognized keys are
// ignored; a recognized key with an unusable value (an object, or an array of
// objects) makes the whole rule malformed.
func ParseFilterRule(raw map[string]interface{}) (FilterRule, error) {
	rule := FilterRule{scalars: make(map[string][]string)}
	for key, value := range raw {
		field := canonicalField(key)
		if field == "" || value == nil {
			continue
		}
		switch field {
		case FieldTitle:
			patterns, err := scalarList(value)
			if err != nil {
				return FilterRule{}, err
			}
			rule.titlePatterns = patterns
		case FieldTags:
			required, err := tagList(value)
			if err != nil {
				return FilterRule{}, err
			}
			rule.tags = required
		default:
			values, err := scalarList(value)
			if err != nil {
				return FilterRule{}, err
			}
			lowered := make([]string, 0, len(values))
			for _, v := range values {
				lowered = append(lowered, strings.ToLower(v))
			}
			rule.scalars[field] = lowered
		}
	}
	return rule, nil
}

// Matches reports whether every field the rule constrains is satisfied by
// item. Evaluation follows the cheapest-first field order so exact-match
// mismatches short-circuit before wildcard and tag work.
func (r FilterRule) Matches(item *NormalizedWorkItem) bool {
	for _, field := range RecognizedFields {
		if !r.MatchField(field, item) {
			return false
		}
	}
	return true
}

// MatchField compares one named field of item against the rule's constraint
// for that field. An unconstrained field always matches.
func (r FilterRule) MatchField(field string, item *NormalizedWorkItem) bool {
	canonical := canonicalField(field)
	switch canonical {
	case FieldTitle:
		if r.titlePatterns == nil {
			return true
		}
		for _, pattern := range r.titlePatterns {
			if WildcardMatch(item.Title, pattern) {
				return true
			}
		}
		return false
	case FieldTags:
		// Subset semantics: every required tag must be present on the
		// item. Intentionally asymmetric with the any-of semantics of
		// the other fields; tag OR is expressed with multiple rules.
		for tag := range r.tags {
			if _, ok := item.Tags[tag]; !ok {
				return false
			}
		}
		return true
	case "":
		return true
	default:
		accepted, ok := r.scalars[canonical]
		if !ok {
			return true
		}
		current := item.Scalar(canonical)
		// A missing value never satisfies a constraint, even when the
		// rule value is itself empty.
		if current == "" {
			return false
		}
		for _, v := range accepted {
			if current == v {
				return true
			}
		}
		return false
	}
}

func canonicalField(key string) string {
	for _, field := range RecognizedFields {
		if strings.EqualFold(key, field) {
			return field
		}
	}
	return ""
}

// scalarList flattens a scalar or array rule value to strings. JSON numbers
// and booleans are accepted via their printed form; nested objects are not.
func scalarList(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := scalarString(value)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func scalarString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", errs.New(errs.CodeInvalidArgs, "unsupported rule value", fmt.Sprintf("%T", value))
	}
}

// tagList builds the required tag set from a scalar (delimiter-joined) or
// array rule value.
func tagList(value interface{}) (map[string]struct{}, error) {
	values, err := scalarList(value)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, v := range values {
		for tag := range SplitTags(v) {
			set[tag] = struct{}{}
		}
	}
	return set, nil
}
