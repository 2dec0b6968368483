package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"tfs-autotasks/internal/engine"
	"tfs-autotasks/internal/errs"
	"tfs-autotasks/internal/output"
)

func newAddTasksCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-tasks <work-item-id>...",
		Short: "Create child items under each parent from applicable team templates",
		Long: `For every given parent work item id: resolves the permitted child item
types, lists the team's templates for them, keeps the templates whose
description rules match the parent, then creates one child per template
(sorted by name) and links it under the parent.

Each parent is processed independently; a failure on one parent or one
template does not stop the rest.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int, 0, len(args))
			for _, arg := range args {
				id, err := strconv.Atoi(arg)
				if err != nil {
					return errs.New(errs.CodeInvalidArgs, "work item id must be a number", arg)
				}
				ids = append(ids, id)
			}
			if err := st.requireProject(); err != nil {
				return err
			}
			client, err := st.newClient()
			if err != nil {
				return err
			}
			writer := engine.NewRESTWriter(client)
			if st.dryRun {
				var dryOut io.Writer = st.stdout
				if st.jsonMode {
					dryOut = st.stderr
				}
				writer = engine.NewDryRunWriter(dryOut)
			}
			orch := engine.New(client, client, writer, st.logger)
			results := orch.RunMany(cmd.Context(), ids)
			if st.jsonMode {
				return output.PrintJSON(st.stdout, results)
			}
			output.PrintResults(st.stdout, results)
			return nil
		},
	}
	cmd.Flags().BoolVar(&st.dryRun, "dry-run", false, "Print the patch documents instead of creating items")
	return cmd
}
