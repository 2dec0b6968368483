package rules

import (
	"fmt"
	"reflect"
	"strings"
)

// Field reference names the filter language recognizes.
const (
	FieldWorkItemType  = "System.WorkItemType"
	FieldState         = "System.State"
	FieldAreaPath      = "System.AreaPath"
	FieldIterationPath = "System.IterationPath"
	FieldBoardColumn   = "System.BoardColumn"
	FieldBoardLane     = "System.BoardLane"
	FieldTitle         = "System.Title"
	FieldTags          = "System.Tags"
)

// RecognizedFields lists the comparison fields in cheapest-first evaluation
// order: exact-match fields before the wildcard title and the tag set.
var RecognizedFields = []string{
	FieldWorkItemType,
	FieldState,
	FieldAreaPath,
	FieldIterationPath,
	FieldBoardColumn,
	FieldBoardLane,
	FieldTitle,
	FieldTags,
}

// NormalizedWorkItem is the lookup-friendly projection of a work item's
// fields: lower-cased scalars plus a lower-cased tag token set.
type NormalizedWorkItem struct {
	WorkItemType  string
	State         string
	AreaPath      string
	IterationPath string
	BoardColumn   string
	BoardLane     string
	Title         string
	Tags          map[string]struct{}
}

// Scalar returns the normalized value for one of the non-tag fields, matching
// field names case-insensitively. Unknown fields normalize to "".
func (n *NormalizedWorkItem) Scalar(field string) string {
	switch {
	case strings.EqualFold(field, FieldWorkItemType):
		return n.WorkItemType
	case strings.EqualFold(field, FieldState):
		return n.State
	case strings.EqualFold(field, FieldAreaPath):
		return n.AreaPath
	case strings.EqualFold(field, FieldIterationPath):
		return n.IterationPath
	case strings.EqualFold(field, FieldBoardColumn):
		return n.BoardColumn
	case strings.EqualFold(field, FieldBoardLane):
		return n.BoardLane
	case strings.EqualFold(field, FieldTitle):
		return n.Title
	}
	return ""
}

// Normalizer derives NormalizedWorkItem views, memoized per field-map
// instance. One template-matching pass evaluates the same parent against
// potentially dozens of rules, so normalization runs at most once per item.
// The cache is an explicit side table keyed by map identity; it is scoped to
// one orchestration run and must not be shared across runs.
type Normalizer struct {
	cache map[uintptr]*NormalizedWorkItem
}

func NewNormalizer() *Normalizer {
	return &Normalizer{cache: make(map[uintptr]*NormalizedWorkItem)}
}

func (n *Normalizer) Normalize(fields map[string]interface{}) *NormalizedWorkItem {
	key := reflect.ValueOf(fields).Pointer()
	if cached, ok := n.cache[key]; ok {
		return cached
	}
	norm := &NormalizedWorkItem{
		WorkItemType:  lowerField(fields, FieldWorkItemType),
		State:         lowerField(fields, FieldState),
		AreaPath:      lowerField(fields, FieldAreaPath),
		IterationPath: lowerField(fields, FieldIterationPath),
		BoardColumn:   lowerField(fields, FieldBoardColumn),
		BoardLane:     lowerField(fields, FieldBoardLane),
		Title:         lowerField(fields, FieldTitle),
		Tags:          SplitTags(stringForm(fields[FieldTags])),
	}
	n.cache[key] = norm
	return norm
}

// SplitTags explodes a delimiter-joined tag string into a lower-cased token
// set. Semicolon is the canonical delimiter; comma and newline are accepted
// for robustness. Empty tokens are dropped.
func SplitTags(raw string) map[string]struct{} {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ',' || r == '\n'
	})
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

func lowerField(fields map[string]interface{}, key string) string {
	return strings.ToLower(stringForm(fields[key]))
}

// stringForm coerces a field value to its string form; nil becomes "".
func stringForm(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
