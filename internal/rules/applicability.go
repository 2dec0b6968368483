package rules

import (
	"strings"

	"go.uber.org/zap"
)

// ApplyWhenKey is the property carrying the filter rule array inside a
// template description's embedded JSON object.
const ApplyWhenKey = "applywhen"

// Engine decides whether templates apply to a parent work item. It owns the
// per-run normalization cache, so one Engine instance is scoped to a single
// orchestration run.
type Engine struct {
	normalizer *Normalizer
	log        *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{normalizer: NewNormalizer(), log: log}
}

// Mode classifies how a template description encodes its applicability.
type Mode string

const (
	ModeJSON    Mode = "json"
	ModeBracket Mode = "bracket"
	ModeNone    Mode = "none"
)

// DescriptionMode reports which applicability syntax a description uses.
func DescriptionMode(description string) Mode {
	if obj := ExtractEmbeddedJSON(description); obj != nil {
		if _, ok := obj[ApplyWhenKey].([]interface{}); ok {
			return ModeJSON
		}
	}
	if _, ok := bracketTokens(description); ok {
		return ModeBracket
	}
	return ModeNone
}

// IsApplicable decides whether a template whose description encodes the
// applicability rules applies to the parent's fields.
//
// A JSON object with an applywhen array is evaluated rule by rule: fields
// within a rule combine with AND, rules combine with OR, and a malformed rule
// is skipped rather than failing the template. Without applywhen the
// description is treated as a legacy bracket list of work item type names.
// A description with neither syntax never applies; authors opt in explicitly.
func (e *Engine) IsApplicable(parent map[string]interface{}, description string) bool {
	item := e.normalizer.Normalize(parent)

	if obj := ExtractEmbeddedJSON(description); obj != nil {
		if rawRules, ok := obj[ApplyWhenKey].([]interface{}); ok {
			return e.anyRuleMatches(item, rawRules)
		}
	}

	tokens, ok := bracketTokens(description)
	if !ok {
		return false
	}
	for _, token := range tokens {
		if strings.EqualFold(token, item.WorkItemType) {
			return true
		}
	}
	return false
}

func (e *Engine) anyRuleMatches(item *NormalizedWorkItem, rawRules []interface{}) bool {
	for _, raw := range rawRules {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			e.log.Warn("skipping non-object applywhen entry")
			continue
		}
		rule, err := ParseFilterRule(entry)
		if err != nil {
			e.log.Warn("skipping malformed applywhen entry", zap.Error(err))
			continue
		}
		if rule.Matches(item) {
			return true
		}
	}
	return false
}

// bracketTokens extracts the comma-separated tokens of a legacy bracket-list
// description. The second return is false when no bracket pair is present.
func bracketTokens(description string) ([]string, bool) {
	open := strings.Index(description, "[")
	if open < 0 {
		return nil, false
	}
	end := strings.Index(description[open:], "]")
	if end < 0 {
		return nil, false
	}
	inner := description[open+1 : open+end]
	parts := strings.Split(inner, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens, true
}
