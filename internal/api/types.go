package api

type WorkItem struct {
	ID        int                    `json:"id"`
	Rev       int                    `json:"rev,omitempty"`
	Fields    map[string]interface{} `json:"fields"`
	Relations []Relation             `json:"relations,omitempty"`
	URL       string                 `json:"url"`
}

type Relation struct {
	Rel        string                 `json:"rel"`
	URL        string                 `json:"url"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// PatchOp is one JSON Patch operation as accepted by the work item write
// endpoints (content type application/json-patch+json).
type PatchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

// AddField builds the common "add a field" patch operation.
func AddField(field string, value interface{}) PatchOp {
	return PatchOp{Op: "add", Path: "/fields/" + field, Value: value}
}

// AddRelation builds the patch operation appending one relation.
func AddRelation(rel, url string) PatchOp {
	return PatchOp{
		Op:   "add",
		Path: "/relations/-",
		Value: Relation{
			Rel: rel,
			URL: url,
		},
	}
}

// TemplateReference is the shallow shape returned by the template list
// endpoint; Fields are only present on the detail shape.
type TemplateReference struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	WorkItemTypeName string `json:"workItemTypeName"`
}

type Template struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Description      string                 `json:"description"`
	WorkItemTypeName string                 `json:"workItemTypeName"`
	Fields           map[string]interface{} `json:"fields"`
}

type TemplatesResponse struct {
	Count int                 `json:"count"`
	Value []TemplateReference `json:"value"`
}

type WorkItemTypeReference struct {
	Name          string `json:"name"`
	ReferenceName string `json:"referenceName,omitempty"`
	URL           string `json:"url,omitempty"`
}

type Category struct {
	ReferenceName       string                  `json:"referenceName"`
	Name                string                  `json:"name"`
	DefaultWorkItemType WorkItemTypeReference   `json:"defaultWorkItemType"`
	WorkItemTypes       []WorkItemTypeReference `json:"workItemTypes"`
}

type CategoriesResponse struct {
	Count int        `json:"count"`
	Value []Category `json:"value"`
}

// TeamSettings is the subset of the team's backlog configuration the engine
// consumes: bug routing plus iteration defaults for @currentiteration.
type TeamSettings struct {
	BugsBehavior     string        `json:"bugsBehavior"`
	BacklogIteration *TeamsIterRef `json:"backlogIteration"`
	DefaultIteration *TeamsIterRef `json:"defaultIteration"`
}

type TeamsIterRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Recognized bugsBehavior values.
const (
	BugsBehaviorOff            = "off"
	BugsBehaviorAsTasks        = "asTasks"
	BugsBehaviorAsRequirements = "asRequirements"
)

type Identity struct {
	ID                  string                 `json:"id"`
	Descriptor          string                 `json:"descriptor"`
	SubjectDescriptor   string                 `json:"subjectDescriptor"`
	ProviderDisplayName string                 `json:"providerDisplayName"`
	Properties          map[string]interface{} `json:"properties"`
}

type IdentitiesResponse struct {
	Count int        `json:"count"`
	Value []Identity `json:"value"`
}

type Profile struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	ID           string `json:"id"`
}

type HeaderIdentity struct {
	ID         string
	UniqueName string
	Raw        string
}
