// Package engine orchestrates one "add child items" run per parent work
// item: resolve the permitted child types, collect the team's templates,
// filter them through the applicability rules, then synthesize, create and
// link each child sequentially.
package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tfs-autotasks/internal/api"
	"tfs-autotasks/internal/errs"
	"tfs-autotasks/internal/rules"
	"tfs-autotasks/internal/synth"
)

const (
	// opTimeout bounds each individual network operation; a timeout fails
	// that one operation, not the whole run.
	opTimeout = 8 * time.Second

	// prefetchLimit caps concurrent template detail GETs. Reads are safe
	// to parallelize; the create/link phase stays strictly sequential.
	prefetchLimit = 4
)

// Reader is the read-only slice of the client the orchestrator consumes.
type Reader interface {
	GetWorkItem(ctx context.Context, id int, fields []string) (api.WorkItem, error)
	GetWorkItemTypeCategories(ctx context.Context) ([]api.Category, error)
	GetTeamSettings(ctx context.Context) (api.TeamSettings, error)
	GetTemplates(ctx context.Context, workItemType string) ([]api.TemplateReference, error)
	GetTemplateDetail(ctx context.Context, id string) (api.Template, error)
}

// CreatedChild records one successfully created and linked child item.
type CreatedChild struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	WorkItemType string `json:"workItemType"`
	TemplateName string `json:"templateName"`
	URL          string `json:"url"`
}

// TemplateFailure records one template whose child could not be created or
// linked; the run continues past it.
type TemplateFailure struct {
	TemplateID   string `json:"templateId"`
	TemplateName string `json:"templateName"`
	Stage        string `json:"stage"`
	Error        string `json:"error"`
}

// Result is the outcome of one run. Message carries the user-visible text
// for the legitimate "nothing to do" outcomes.
type Result struct {
	ParentID int               `json:"parentId"`
	Created  []CreatedChild    `json:"created"`
	Failures []TemplateFailure `json:"failures,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// Orchestrator runs the template matching and child synthesis pipeline. One
// value serves many parents; per-run state (the normalization cache) is
// created inside Run.
type Orchestrator struct {
	reader   Reader
	identity IdentityAPI
	writer   ItemWriter
	log      *zap.Logger
}

func New(reader Reader, identity IdentityAPI, writer ItemWriter, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{reader: reader, identity: identity, writer: writer, log: log}
}

// RunMany processes each parent id independently; a fatal failure on one
// parent does not stop the others.
func (o *Orchestrator) RunMany(ctx context.Context, parentIDs []int) []Result {
	results := make([]Result, 0, len(parentIDs))
	for _, id := range parentIDs {
		result, err := o.Run(ctx, id)
		if err != nil {
			o.log.Error("run aborted for parent", zap.Int("parentId", id), zap.Error(err))
			result.ParentID = id
			result.Message = "failed to process parent: " + err.Error()
		}
		results = append(results, result)
	}
	return results
}

// Run executes one orchestration for a single parent work item.
func (o *Orchestrator) Run(ctx context.Context, parentID int) (Result, error) {
	log := o.log.With(zap.String("runId", uuid.NewString()), zap.Int("parentId", parentID))
	result := Result{ParentID: parentID, Created: []CreatedChild{}}

	parent, err := o.getWorkItem(ctx, parentID)
	if err != nil {
		return result, errs.Wrap(errs.CodeParentFetchFailed, "fetching parent work item", err)
	}
	settings, err := o.getTeamSettings(ctx)
	if err != nil {
		return result, errs.Wrap(errs.CodeHTTPError, "fetching team settings", err)
	}
	categories, err := o.getCategories(ctx)
	if err != nil {
		return result, errs.Wrap(errs.CodeHTTPError, "fetching work item type categories", err)
	}

	parentType := stringField(parent.Fields, rules.FieldWorkItemType)
	childTypes := ResolveChildTypes(categories, parentType, settings)
	if len(childTypes) == 0 {
		log.Info("no child category resolvable for parent type", zap.String("parentType", parentType))
		result.Message = "No child item types could be resolved for '" + parentType + "'."
		return result, nil
	}

	matched := o.collectApplicable(ctx, log, parent.Fields, childTypes)
	if len(matched) == 0 {
		result.Message = "No applicable templates found. Add applicability rules to your team templates to opt them in."
		return result, nil
	}

	// Creation order follows case-insensitive template name order, which
	// is the order children appear under the parent.
	sort.SliceStable(matched, func(i, j int) bool {
		return strings.ToLower(matched[i].Name) < strings.ToLower(matched[j].Name)
	})

	details := o.prefetchDetails(ctx, log, matched)

	var me synth.Identity
	meResolved := false
	for _, ref := range matched {
		detail, ok := details[ref.ID]
		if !ok {
			result.Failures = append(result.Failures, TemplateFailure{
				TemplateID:   ref.ID,
				TemplateName: ref.Name,
				Stage:        "detail",
				Error:        "template detail could not be fetched",
			})
			continue
		}
		if !meResolved && synth.RequestsMe(detail) {
			meResolved = true
			resolved, meErr := o.resolveMe(ctx)
			if meErr != nil {
				log.Warn("could not resolve current user for @me", zap.Error(meErr))
			} else {
				me = resolved
			}
		}
		ops := synth.Synthesize(parent.Fields, detail, settings, me, log)

		child, createErr := o.createChild(ctx, detail.WorkItemTypeName, ops)
		if createErr != nil {
			log.Error("creating child from template failed",
				zap.String("template", ref.Name),
				zap.String("templateId", ref.ID),
				zap.Error(createErr))
			result.Failures = append(result.Failures, TemplateFailure{
				TemplateID:   ref.ID,
				TemplateName: ref.Name,
				Stage:        "create",
				Error:        createErr.Error(),
			})
			continue
		}
		if linkErr := o.linkChild(ctx, parentID, child.URL); linkErr != nil {
			log.Error("linking child to parent failed",
				zap.String("template", ref.Name),
				zap.Int("childId", child.ID),
				zap.Error(linkErr))
			result.Failures = append(result.Failures, TemplateFailure{
				TemplateID:   ref.ID,
				TemplateName: ref.Name,
				Stage:        "link",
				Error:        linkErr.Error(),
			})
			continue
		}
		result.Created = append(result.Created, CreatedChild{
			ID:           child.ID,
			Title:        stringField(child.Fields, rules.FieldTitle),
			WorkItemType: detail.WorkItemTypeName,
			TemplateName: ref.Name,
			URL:          child.URL,
		})
	}
	log.Info("run finished",
		zap.Int("created", len(result.Created)),
		zap.Int("failed", len(result.Failures)))
	return result, nil
}

// collectApplicable lists the team templates for each candidate child type
// and prefilters them through the applicability engine using the shallow
// description from the list response. The rules engine instance, and with it
// the normalization cache, lives for exactly this pass.
func (o *Orchestrator) collectApplicable(ctx context.Context, log *zap.Logger, parentFieldsMap map[string]interface{}, childTypes []string) []api.TemplateReference {
	ruleEngine := rules.NewEngine(log)
	matched := make([]api.TemplateReference, 0)
	seen := make(map[string]bool)
	for _, childType := range childTypes {
		refs, err := o.getTemplates(ctx, childType)
		if err != nil {
			log.Warn("listing templates failed for type",
				zap.String("workItemType", childType),
				zap.Error(err))
			continue
		}
		for _, ref := range refs {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			if ruleEngine.IsApplicable(parentFieldsMap, ref.Description) {
				matched = append(matched, ref)
			}
		}
	}
	return matched
}

// prefetchDetails fetches full template details concurrently. These are
// independent read-only GETs; failures surface later as per-template
// failures, never as a run abort.
func (o *Orchestrator) prefetchDetails(ctx context.Context, log *zap.Logger, refs []api.TemplateReference) map[string]api.Template {
	type fetched struct {
		id     string
		detail api.Template
	}
	results := make(chan fetched, len(refs))
	var eg errgroup.Group
	eg.SetLimit(prefetchLimit)
	for _, ref := range refs {
		ref := ref
		eg.Go(func() error {
			detail, err := o.getTemplateDetail(ctx, ref.ID)
			if err != nil {
				log.Warn("fetching template detail failed",
					zap.String("template", ref.Name),
					zap.String("templateId", ref.ID),
					zap.Error(err))
				return nil
			}
			results <- fetched{id: ref.ID, detail: detail}
			return nil
		})
	}
	_ = eg.Wait()
	close(results)
	details := make(map[string]api.Template, len(refs))
	for item := range results {
		details[item.id] = item.detail
	}
	return details
}

func (o *Orchestrator) resolveMe(ctx context.Context) (synth.Identity, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return ResolveCurrentUser(opCtx, o.identity)
}

// getWorkItem fetches the parent with its full field set: templates may
// inherit or substitute any parent field, not just the matcher's eight.
func (o *Orchestrator) getWorkItem(ctx context.Context, id int) (api.WorkItem, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return o.reader.GetWorkItem(opCtx, id, nil)
}

func (o *Orchestrator) getTeamSettings(ctx context.Context) (api.TeamSettings, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return o.reader.GetTeamSettings(opCtx)
}

func (o *Orchestrator) getCategories(ctx context.Context) ([]api.Category, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return o.reader.GetWorkItemTypeCategories(opCtx)
}

func (o *Orchestrator) getTemplates(ctx context.Context, workItemType string) ([]api.TemplateReference, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return o.reader.GetTemplates(opCtx, workItemType)
}

func (o *Orchestrator) getTemplateDetail(ctx context.Context, id string) (api.Template, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return o.reader.GetTemplateDetail(opCtx, id)
}

func (o *Orchestrator) createChild(ctx context.Context, workItemType string, ops []api.PatchOp) (api.WorkItem, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return o.writer.CreateChild(opCtx, workItemType, ops)
}

func (o *Orchestrator) linkChild(ctx context.Context, parentID int, childURL string) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return o.writer.LinkChild(opCtx, parentID, childURL)
}

func stringField(fields map[string]interface{}, key string) string {
	if fields == nil {
		return ""
	}
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}
