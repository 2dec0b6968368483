package engine

import (
	"strings"

	"tfs-autotasks/internal/api"
)

// Process category reference names used for parent-to-child type routing.
const (
	CategoryEpic        = "Microsoft.EpicCategory"
	CategoryFeature     = "Microsoft.FeatureCategory"
	CategoryRequirement = "Microsoft.RequirementCategory"
	CategoryTask        = "Microsoft.TaskCategory"
	CategoryBug         = "Microsoft.BugCategory"
)

// childCategory maps a parent's process category to the category its
// children are created from.
var childCategory = map[string]string{
	CategoryEpic:        CategoryFeature,
	CategoryFeature:     CategoryRequirement,
	CategoryRequirement: CategoryTask,
	CategoryTask:        CategoryTask,
}

// ResolveChildTypes determines the work item type names that children of a
// parent type may be created as, given the process categories and the team's
// bug routing.
//
// A Bug parent is routed by bugsBehavior: asRequirements places bugs at the
// requirement level (children come from the task category), asTasks places
// them at the task level, and off leaves a Bug parent unresolvable. When bugs
// share a backlog level with requirements or tasks, the bug types join the
// candidate child types of the level above. An empty result is a legitimate
// "nothing to do" outcome, not an error.
func ResolveChildTypes(categories []api.Category, parentType string, settings api.TeamSettings) []string {
	parentCategory := categoryOfType(categories, parentType)
	if parentCategory == "" {
		return nil
	}

	behavior := settings.BugsBehavior
	if parentCategory == CategoryBug {
		switch {
		case strings.EqualFold(behavior, api.BugsBehaviorAsRequirements):
			parentCategory = CategoryRequirement
		case strings.EqualFold(behavior, api.BugsBehaviorAsTasks):
			parentCategory = CategoryTask
		default:
			return nil
		}
	}

	childRef, ok := childCategory[parentCategory]
	if !ok {
		return nil
	}

	types := typesOfCategory(categories, childRef)
	if childRef == CategoryRequirement && strings.EqualFold(behavior, api.BugsBehaviorAsRequirements) {
		types = append(types, typesOfCategory(categories, CategoryBug)...)
	}
	if childRef == CategoryTask && strings.EqualFold(behavior, api.BugsBehaviorAsTasks) {
		types = append(types, typesOfCategory(categories, CategoryBug)...)
	}
	return dedupeFold(types)
}

func categoryOfType(categories []api.Category, typeName string) string {
	for _, cat := range categories {
		for _, wit := range cat.WorkItemTypes {
			if strings.EqualFold(wit.Name, typeName) {
				return cat.ReferenceName
			}
		}
	}
	return ""
}

func typesOfCategory(categories []api.Category, referenceName string) []string {
	for _, cat := range categories {
		if strings.EqualFold(cat.ReferenceName, referenceName) {
			names := make([]string, 0, len(cat.WorkItemTypes))
			for _, wit := range cat.WorkItemTypes {
				names = append(names, wit.Name)
			}
			return names
		}
	}
	return nil
}

func dedupeFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(v)
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}
