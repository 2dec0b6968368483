package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"tfs-autotasks/internal/engine"
	"tfs-autotasks/internal/errs"
)

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

func WriteError(w io.Writer, err error, jsonMode bool) {
	if jsonMode {
		env := ErrorEnvelope{Error: ErrorDetail{Code: "internal_error", Message: err.Error()}}
		if appErr, ok := err.(errs.AppError); ok {
			env.Error.Code = appErr.Code
			env.Error.Message = appErr.Error()
			env.Error.Details = appErr.Details
		}
		data, _ := json.Marshal(env)
		fmt.Fprintln(w, string(data))
		return
	}
	fmt.Fprintln(w, err.Error())
}

func PrintJSON(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// Message prints a user-visible informational message, the CLI equivalent of
// the host dialog for "no templates found" style outcomes.
func Message(w io.Writer, text string) {
	fmt.Fprintln(w, text)
}

// PrintResults renders the outcome of one or more orchestration runs as a
// table, one row per created child, with failures listed after.
func PrintResults(w io.Writer, results []engine.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARENT\tCHILD\tTYPE\tTEMPLATE\tTITLE")
	rows := 0
	for _, result := range results {
		for _, child := range result.Created {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
				result.ParentID,
				child.ID,
				child.WorkItemType,
				child.TemplateName,
				child.Title,
			)
			rows++
		}
	}
	if rows > 0 {
		_ = tw.Flush()
	}
	for _, result := range results {
		if result.Message != "" {
			fmt.Fprintf(w, "parent %d: %s\n", result.ParentID, result.Message)
		}
		for _, failure := range result.Failures {
			fmt.Fprintf(w, "parent %d: template %q failed at %s: %s\n",
				result.ParentID, failure.TemplateName, failure.Stage, failure.Error)
		}
	}
}

// TemplateRow is one row of the templates listing.
type TemplateRow struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	WorkItemType string `json:"workItemType"`
	Mode         string `json:"mode"`
	Applicable   *bool  `json:"applicable,omitempty"`
}

func PrintTemplateTable(w io.Writer, rows []TemplateRow, withApplicability bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if withApplicability {
		fmt.Fprintln(tw, "NAME\tTYPE\tMODE\tAPPLIES\tID")
	} else {
		fmt.Fprintln(tw, "NAME\tTYPE\tMODE\tID")
	}
	for _, row := range rows {
		if withApplicability {
			applies := ""
			if row.Applicable != nil {
				applies = "no"
				if *row.Applicable {
					applies = "yes"
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.Name, row.WorkItemType, row.Mode, applies, row.ID)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Name, row.WorkItemType, row.Mode, row.ID)
	}
	_ = tw.Flush()
}
