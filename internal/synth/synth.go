// Package synth builds the JSON Patch operations for a child work item from
// a template's field map plus the parent's fields and the team's backlog
// settings.
package synth

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"tfs-autotasks/internal/api"
)

const (
	tokenMe               = "@me"
	tokenCurrentIteration = "@currentiteration"

	fieldTitle         = "System.Title"
	fieldAreaPath      = "System.AreaPath"
	fieldIterationPath = "System.IterationPath"
	fieldAssignedTo    = "System.AssignedTo"
	fieldTags          = "System.Tags"
	fieldTagsAdd       = "System.Tags-Add"
)

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Identity is the resolved current-user value substituted for @me. It is
// either a display string or an identity-reference object; the caller decides
// which form the server accepts.
type Identity interface{}

// Synthesize produces the ordered field-assignment operations for a new
// child item.
//
// Template values are taken literally after {ParentField} placeholder
// substitution; an empty template value inherits the parent's value when the
// parent has one. Title, area path and iteration path are inherited from the
// parent when the template leaves them unspecified. The reserved tokens @me
// and @currentiteration resolve to the current identity and the team's
// default iteration; System.Tags-Add carries the tags for the new item.
func Synthesize(parent map[string]interface{}, tmpl api.Template, settings api.TeamSettings, me Identity, log *zap.Logger) []api.PatchOp {
	if log == nil {
		log = zap.NewNop()
	}
	ops := make([]api.PatchOp, 0, len(tmpl.Fields)+4)

	// Sorted key order keeps the emitted patch stable run-to-run.
	keys := make([]string, 0, len(tmpl.Fields))
	for k := range tmpl.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	specified := make(map[string]string, len(keys))
	for _, key := range keys {
		value := tmpl.Fields[key]
		str, isString := value.(string)
		if isString {
			specified[strings.ToLower(key)] = str
		} else {
			specified[strings.ToLower(key)] = fmt.Sprint(value)
		}

		// Tags fields are handled after the main loop.
		if isTagsField(key) {
			continue
		}
		// Reserved tokens resolve below, not as literals.
		if isString && (strings.EqualFold(str, tokenMe) || strings.EqualFold(str, tokenCurrentIteration)) {
			continue
		}
		if !isString {
			ops = append(ops, api.AddField(key, value))
			continue
		}
		if str == "" {
			if pv, ok := parent[key]; ok && pv != nil {
				ops = append(ops, api.AddField(key, pv))
			}
			continue
		}
		ops = append(ops, api.AddField(key, substitutePlaceholders(str, parent)))
	}

	if _, ok := specified[strings.ToLower(fieldTitle)]; !ok {
		ops = appendParentCopy(ops, parent, fieldTitle)
	}
	if _, ok := specified[strings.ToLower(fieldAreaPath)]; !ok {
		ops = appendParentCopy(ops, parent, fieldAreaPath)
	}

	iteration, iterationSpecified := specified[strings.ToLower(fieldIterationPath)]
	switch {
	case !iterationSpecified:
		ops = appendParentCopy(ops, parent, fieldIterationPath)
	case strings.EqualFold(iteration, tokenCurrentIteration):
		if settings.DefaultIteration != nil && settings.DefaultIteration.Path != "" {
			name := ""
			if settings.BacklogIteration != nil {
				name = settings.BacklogIteration.Name
			}
			ops = append(ops, api.AddField(fieldIterationPath, name+settings.DefaultIteration.Path))
		} else {
			log.Warn("no default iteration configured for team, falling back to parent iteration path",
				zap.String("template", tmpl.Name))
			ops = appendParentCopy(ops, parent, fieldIterationPath)
		}
	}

	if assigned, ok := specified[strings.ToLower(fieldAssignedTo)]; ok && strings.EqualFold(assigned, tokenMe) {
		if me != nil {
			ops = append(ops, api.AddField(fieldAssignedTo, me))
		} else {
			log.Warn("current identity unresolved, leaving assignment unset",
				zap.String("template", tmpl.Name))
		}
	}

	if tags, ok := specified[strings.ToLower(fieldTagsAdd)]; ok {
		ops = append(ops, api.AddField(fieldTags, tags))
	}

	return ops
}

// RequestsMe reports whether any template field asks for the current user,
// letting callers skip identity resolution when no template needs it.
func RequestsMe(tmpl api.Template) bool {
	for _, value := range tmpl.Fields {
		if s, ok := value.(string); ok && strings.EqualFold(s, tokenMe) {
			return true
		}
	}
	return false
}

func appendParentCopy(ops []api.PatchOp, parent map[string]interface{}, field string) []api.PatchOp {
	if pv, ok := parent[field]; ok && pv != nil {
		ops = append(ops, api.AddField(field, pv))
	}
	return ops
}

// substitutePlaceholders replaces every {ParentFieldName} occurrence with the
// parent's string value for that field. A missing parent field substitutes as
// the empty string, removing the placeholder text.
func substitutePlaceholders(value string, parent map[string]interface{}) string {
	return placeholderRe.ReplaceAllStringFunc(value, func(match string) string {
		name := match[1 : len(match)-1]
		switch pv := parent[name].(type) {
		case nil:
			return ""
		case string:
			return pv
		default:
			return fmt.Sprint(pv)
		}
	})
}

func isTagsField(key string) bool {
	return strings.EqualFold(key, fieldTags) || strings.EqualFold(key, fieldTagsAdd)
}
