package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalizedItem(t *testing.T, fields map[string]interface{}) *NormalizedWorkItem {
	t.Helper()
	return NewNormalizer().Normalize(fields)
}

func mustRule(t *testing.T, raw map[string]interface{}) FilterRule {
	t.Helper()
	rule, err := ParseFilterRule(raw)
	require.NoError(t, err)
	return rule
}

func TestMatchFieldUnconstrained(t *testing.T) {
	rule := mustRule(t, map[string]interface{}{})
	item := normalizedItem(t, map[string]interface{}{"System.State": "Active"})
	for _, field := range RecognizedFields {
		assert.True(t, rule.MatchField(field, item), field)
	}
}

func TestMatchFieldScalarEquality(t *testing.T) {
	rule := mustRule(t, map[string]interface{}{"System.State": "Approved"})
	assert.True(t, rule.MatchField("System.State", normalizedItem(t, map[string]interface{}{"System.State": "APPROVED"})))
	assert.False(t, rule.MatchField("System.State", normalizedItem(t, map[string]interface{}{"System.State": "Active"})))
}

func TestMatchFieldAbsentValueNeverSatisfiesScalar(t *testing.T) {
	rule := mustRule(t, map[string]interface{}{"System.State": ""})
	item := normalizedItem(t, map[string]interface{}{})
	assert.False(t, rule.MatchField("System.State", item))
}

func TestMatchFieldArrayOr(t *testing.T) {
	rule := mustRule(t, map[string]interface{}{
		"System.State": []interface{}{"Approved", "Committed", "Done"},
	})
	for _, state := range []string{"approved", "Committed", "DONE"} {
		item := normalizedItem(t, map[string]interface{}{"System.State": state})
		assert.True(t, rule.MatchField("System.State", item), state)
	}
	item := normalizedItem(t, map[string]interface{}{"System.State": "New"})
	assert.False(t, rule.MatchField("System.State", item))
}

func TestMatchFieldTagsSubsetAnd(t *testing.T) {
	item := normalizedItem(t, map[string]interface{}{
		"System.Tags": "Security;Backend;Urgent",
	})
	subset := mustRule(t, map[string]interface{}{
		"System.Tags": []interface{}{"Security", "Backend"},
	})
	assert.True(t, subset.MatchField("System.Tags", item))

	notSubset := mustRule(t, map[string]interface{}{
		"System.Tags": []interface{}{"Security", "Frontend"},
	})
	assert.False(t, notSubset.MatchField("System.Tags", item))
}

func TestMatchFieldTagsScalarString(t *testing.T) {
	item := normalizedItem(t, map[string]interface{}{
		"System.Tags": "Security;Backend",
	})
	rule := mustRule(t, map[string]interface{}{"System.Tags": "backend; security"})
	assert.True(t, rule.MatchField("System.Tags", item))
}

func TestMatchFieldTitleWildcard(t *testing.T) {
	item := normalizedItem(t, map[string]interface{}{"System.Title": "Refactor login page"})
	assert.True(t, mustRule(t, map[string]interface{}{"System.Title": "refactor*"}).MatchField("System.Title", item))
	assert.False(t, mustRule(t, map[string]interface{}{"System.Title": "login*"}).MatchField("System.Title", item))
	assert.True(t, mustRule(t, map[string]interface{}{"System.Title": "*"}).MatchField("System.Title", normalizedItem(t, map[string]interface{}{})))
}

func TestMatchesFieldAnd(t *testing.T) {
	rule := mustRule(t, map[string]interface{}{
		"System.WorkItemType": "Bug",
		"System.State":        "Active",
	})
	assert.True(t, rule.Matches(normalizedItem(t, map[string]interface{}{
		"System.WorkItemType": "Bug",
		"System.State":        "Active",
	})))
	assert.False(t, rule.Matches(normalizedItem(t, map[string]interface{}{
		"System.WorkItemType": "Bug",
		"System.State":        "Resolved",
	})))
}

func TestParseFilterRuleIgnoresUnknownKeys(t *testing.T) {
	rule := mustRule(t, map[string]interface{}{
		"Custom.Field": "x",
		"System.State": "Active",
	})
	assert.True(t, rule.Matches(normalizedItem(t, map[string]interface{}{"System.State": "Active"})))
}

func TestParseFilterRuleNullValueUnconstrains(t *testing.T) {
	rule := mustRule(t, map[string]interface{}{"System.State": nil})
	assert.True(t, rule.MatchField("System.State", normalizedItem(t, map[string]interface{}{})))
}

func TestParseFilterRuleRejectsObjects(t *testing.T) {
	_, err := ParseFilterRule(map[string]interface{}{
		"System.State": map[string]interface{}{"bad": "shape"},
	})
	assert.Error(t, err)
}
