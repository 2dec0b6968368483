package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"tfs-autotasks/internal/engine"
	"tfs-autotasks/internal/errs"
)

func TestWriteErrorJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, errs.New(errs.CodeInvalidArgs, "bad input", "detail"), true)

	var env ErrorEnvelope
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope: %v", err)
	}
	if env.Error.Code != errs.CodeInvalidArgs {
		t.Fatalf("unexpected code: %s", env.Error.Code)
	}
	if env.Error.Message != "bad input" {
		t.Fatalf("unexpected message: %s", env.Error.Message)
	}
	if env.Error.Details != "detail" {
		t.Fatalf("unexpected details: %v", env.Error.Details)
	}
}

func TestWriteErrorPlainText(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, errs.New("x", "boom", nil), false)
	if strings.TrimSpace(buf.String()) != "boom" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	results := []engine.Result{
		{
			ParentID: 1,
			Created: []engine.CreatedChild{
				{ID: 10, Title: "Child A", WorkItemType: "Task", TemplateName: "Alpha"},
			},
			Failures: []engine.TemplateFailure{
				{TemplateName: "Broken", Stage: "create", Error: "boom"},
			},
		},
		{ParentID: 2, Message: "No applicable templates found."},
	}
	PrintResults(&buf, results)
	out := buf.String()
	for _, want := range []string{"Child A", "Alpha", "Broken", "create", "No applicable templates"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintTemplateTable(t *testing.T) {
	var buf bytes.Buffer
	yes := true
	rows := []TemplateRow{
		{ID: "t1", Name: "Alpha", WorkItemType: "Task", Mode: "json", Applicable: &yes},
	}
	PrintTemplateTable(&buf, rows, true)
	out := buf.String()
	if !strings.Contains(out, "APPLIES") || !strings.Contains(out, "yes") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}
