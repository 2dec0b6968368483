package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tfs-autotasks/internal/api"
)

func opsByPath(ops []api.PatchOp) map[string][]interface{} {
	out := make(map[string][]interface{})
	for _, op := range ops {
		out[op.Path] = append(out[op.Path], op.Value)
	}
	return out
}

func TestSynthesizeInheritsTitleAndAreaPath(t *testing.T) {
	parent := map[string]interface{}{
		"System.Title":    "Parent T",
		"System.AreaPath": `P\A`,
	}
	ops := Synthesize(parent, api.Template{Fields: map[string]interface{}{}}, api.TeamSettings{}, nil, nil)

	byPath := opsByPath(ops)
	require.Len(t, byPath["/fields/System.Title"], 1)
	assert.Equal(t, "Parent T", byPath["/fields/System.Title"][0])
	require.Len(t, byPath["/fields/System.AreaPath"], 1)
	assert.Equal(t, `P\A`, byPath["/fields/System.AreaPath"][0])
}

func TestSynthesizeTemplateTitleWinsOverInheritance(t *testing.T) {
	parent := map[string]interface{}{"System.Title": "Parent T"}
	tmpl := api.Template{Fields: map[string]interface{}{"System.Title": "Child task"}}
	ops := Synthesize(parent, tmpl, api.TeamSettings{}, nil, nil)

	byPath := opsByPath(ops)
	require.Len(t, byPath["/fields/System.Title"], 1, "no duplicate title ops")
	assert.Equal(t, "Child task", byPath["/fields/System.Title"][0])
}

func TestSynthesizeEmptyValueInheritsFromParent(t *testing.T) {
	parent := map[string]interface{}{"Custom.Field": "from parent"}
	tmpl := api.Template{Fields: map[string]interface{}{"Custom.Field": ""}}
	ops := Synthesize(parent, tmpl, api.TeamSettings{}, nil, nil)
	assert.Equal(t, []interface{}{"from parent"}, opsByPath(ops)["/fields/Custom.Field"])
}

func TestSynthesizeEmptyValueWithMissingParentFieldEmitsNothing(t *testing.T) {
	tmpl := api.Template{Fields: map[string]interface{}{"Custom.Field": ""}}
	ops := Synthesize(map[string]interface{}{}, tmpl, api.TeamSettings{}, nil, nil)
	assert.NotContains(t, opsByPath(ops), "/fields/Custom.Field")
}

func TestSynthesizePlaceholderSubstitution(t *testing.T) {
	parent := map[string]interface{}{"System.Title": "Foo"}
	tmpl := api.Template{Fields: map[string]interface{}{
		"System.Title": "Sub for {System.Title}",
	}}
	ops := Synthesize(parent, tmpl, api.TeamSettings{}, nil, nil)
	assert.Equal(t, []interface{}{"Sub for Foo"}, opsByPath(ops)["/fields/System.Title"])
}

func TestSynthesizeUnresolvablePlaceholderBecomesEmpty(t *testing.T) {
	tmpl := api.Template{Fields: map[string]interface{}{
		"System.Title": "Sub for {Missing.Field}!",
	}}
	ops := Synthesize(map[string]interface{}{}, tmpl, api.TeamSettings{}, nil, nil)
	assert.Equal(t, []interface{}{"Sub for !"}, opsByPath(ops)["/fields/System.Title"])
}

func TestSynthesizeCurrentIteration(t *testing.T) {
	parent := map[string]interface{}{"System.IterationPath": `P\Sprint 1`}
	tmpl := api.Template{Fields: map[string]interface{}{
		"System.IterationPath": "@CurrentIteration",
	}}
	settings := api.TeamSettings{
		BacklogIteration: &api.TeamsIterRef{Name: "P"},
		DefaultIteration: &api.TeamsIterRef{Path: `\Sprint 9`},
	}
	ops := Synthesize(parent, tmpl, settings, nil, nil)
	assert.Equal(t, []interface{}{`P\Sprint 9`}, opsByPath(ops)["/fields/System.IterationPath"])
}

func TestSynthesizeCurrentIterationFallsBackToParent(t *testing.T) {
	parent := map[string]interface{}{"System.IterationPath": `P\Sprint 1`}
	tmpl := api.Template{Fields: map[string]interface{}{
		"System.IterationPath": "@currentiteration",
	}}
	ops := Synthesize(parent, tmpl, api.TeamSettings{}, nil, nil)
	byPath := opsByPath(ops)
	require.Len(t, byPath["/fields/System.IterationPath"], 1)
	assert.Equal(t, `P\Sprint 1`, byPath["/fields/System.IterationPath"][0])
}

func TestSynthesizeIterationInheritedWhenUnspecified(t *testing.T) {
	parent := map[string]interface{}{"System.IterationPath": `P\Sprint 2`}
	ops := Synthesize(parent, api.Template{Fields: map[string]interface{}{}}, api.TeamSettings{}, nil, nil)
	assert.Equal(t, []interface{}{`P\Sprint 2`}, opsByPath(ops)["/fields/System.IterationPath"])
}

func TestSynthesizeAssignedToMe(t *testing.T) {
	tmpl := api.Template{Fields: map[string]interface{}{
		"System.AssignedTo": "@Me",
	}}
	ops := Synthesize(map[string]interface{}{}, tmpl, api.TeamSettings{}, "Alex Doe<alex@example.com>", nil)
	assert.Equal(t, []interface{}{"Alex Doe<alex@example.com>"}, opsByPath(ops)["/fields/System.AssignedTo"])
}

func TestSynthesizeAssignedToMeUnresolvedSkips(t *testing.T) {
	tmpl := api.Template{Fields: map[string]interface{}{
		"System.AssignedTo": "@me",
	}}
	ops := Synthesize(map[string]interface{}{}, tmpl, api.TeamSettings{}, nil, nil)
	assert.NotContains(t, opsByPath(ops), "/fields/System.AssignedTo")
}

func TestSynthesizeTagsAdd(t *testing.T) {
	tmpl := api.Template{Fields: map[string]interface{}{
		"System.Tags-Add": "auto;generated",
		"System.Tags":     "ignored;completely",
	}}
	ops := Synthesize(map[string]interface{}{}, tmpl, api.TeamSettings{}, nil, nil)
	byPath := opsByPath(ops)
	assert.Equal(t, []interface{}{"auto;generated"}, byPath["/fields/System.Tags"])
	assert.NotContains(t, byPath, "/fields/System.Tags-Add")
}

func TestSynthesizeNonStringValuePassedThrough(t *testing.T) {
	tmpl := api.Template{Fields: map[string]interface{}{
		"Microsoft.VSTS.Scheduling.RemainingWork": float64(4),
	}}
	ops := Synthesize(map[string]interface{}{}, tmpl, api.TeamSettings{}, nil, nil)
	assert.Equal(t, []interface{}{float64(4)}, opsByPath(ops)["/fields/Microsoft.VSTS.Scheduling.RemainingWork"])
}

func TestSynthesizeDeterministicOrder(t *testing.T) {
	tmpl := api.Template{Fields: map[string]interface{}{
		"B.Field": "b",
		"A.Field": "a",
		"C.Field": "c",
	}}
	first := Synthesize(map[string]interface{}{}, tmpl, api.TeamSettings{}, nil, nil)
	second := Synthesize(map[string]interface{}{}, tmpl, api.TeamSettings{}, nil, nil)
	require.Equal(t, first, second)
	assert.Equal(t, "/fields/A.Field", first[0].Path)
	assert.Equal(t, "/fields/B.Field", first[1].Path)
	assert.Equal(t, "/fields/C.Field", first[2].Path)
}

func TestRequestsMe(t *testing.T) {
	assert.True(t, RequestsMe(api.Template{Fields: map[string]interface{}{"System.AssignedTo": "@ME"}}))
	assert.False(t, RequestsMe(api.Template{Fields: map[string]interface{}{"System.AssignedTo": "someone"}}))
	assert.False(t, RequestsMe(api.Template{}))
}
