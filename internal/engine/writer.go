package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"tfs-autotasks/internal/api"
)

// ItemWriter creates child items and links them under a parent. The REST
// writer performs the real mutations; the dry-run writer prints what would be
// sent. The writer is chosen once per run, never per call site.
type ItemWriter interface {
	CreateChild(ctx context.Context, workItemType string, ops []api.PatchOp) (api.WorkItem, error)
	LinkChild(ctx context.Context, parentID int, childURL string) error
}

type restWriter struct {
	client *api.Client
}

// NewRESTWriter returns the writer backed by the work item REST endpoints.
func NewRESTWriter(client *api.Client) ItemWriter {
	return &restWriter{client: client}
}

func (w *restWriter) CreateChild(ctx context.Context, workItemType string, ops []api.PatchOp) (api.WorkItem, error) {
	return w.client.CreateWorkItem(ctx, workItemType, ops)
}

func (w *restWriter) LinkChild(ctx context.Context, parentID int, childURL string) error {
	patch := []api.PatchOp{api.AddRelation(api.HierarchyForward, childURL)}
	_, err := w.client.UpdateWorkItemRelations(ctx, parentID, patch)
	return err
}

type dryRunWriter struct {
	out  io.Writer
	next int
}

// NewDryRunWriter returns a writer that prints the patch documents instead of
// creating anything. Fabricated ids keep the run's output readable.
func NewDryRunWriter(out io.Writer) ItemWriter {
	return &dryRunWriter{out: out, next: -1}
}

func (w *dryRunWriter) CreateChild(_ context.Context, workItemType string, ops []api.PatchOp) (api.WorkItem, error) {
	data, err := json.MarshalIndent(ops, "", "  ")
	if err != nil {
		return api.WorkItem{}, err
	}
	id := w.next
	w.next--
	fmt.Fprintf(w.out, "dry-run: create %s\n%s\n", workItemType, data)
	fields := map[string]interface{}{"System.WorkItemType": workItemType}
	for _, op := range ops {
		if len(op.Path) > len("/fields/") && op.Path[:len("/fields/")] == "/fields/" {
			fields[op.Path[len("/fields/"):]] = op.Value
		}
	}
	return api.WorkItem{ID: id, Fields: fields, URL: fmt.Sprintf("dry-run://workitems/%d", id)}, nil
}

func (w *dryRunWriter) LinkChild(_ context.Context, parentID int, childURL string) error {
	fmt.Fprintf(w.out, "dry-run: link %s under parent %d\n", childURL, parentID)
	return nil
}
