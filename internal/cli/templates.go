package cli

import (
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tfs-autotasks/internal/engine"
	"tfs-autotasks/internal/errs"
	"tfs-autotasks/internal/output"
	"tfs-autotasks/internal/rules"
)

func newTemplatesCmd(st *state) *cobra.Command {
	var typeFilter string
	var against string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List team templates and their applicability rules",
		Long: `Lists the team's work item templates with the applicability syntax each
description uses: json (an applywhen filter), bracket (a legacy [Type, ...]
list) or none (the template never applies).

With --against <parent-id> the candidate child types are resolved from the
parent and each template is evaluated against the parent's current fields.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.requireProject(); err != nil {
				return err
			}
			client, err := st.newClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var parentFields map[string]interface{}
			childTypes := []string{typeFilter}
			if against != "" {
				parentID, err := strconv.Atoi(against)
				if err != nil {
					return errs.New(errs.CodeInvalidArgs, "--against must be a work item id", against)
				}
				parent, err := client.GetWorkItem(ctx, parentID, nil)
				if err != nil {
					return errs.Wrap(errs.CodeParentFetchFailed, "fetching parent work item", err)
				}
				settings, err := client.GetTeamSettings(ctx)
				if err != nil {
					return err
				}
				categories, err := client.GetWorkItemTypeCategories(ctx)
				if err != nil {
					return err
				}
				parentFields = parent.Fields
				parentType, _ := parent.Fields[rules.FieldWorkItemType].(string)
				childTypes = engine.ResolveChildTypes(categories, parentType, settings)
				if len(childTypes) == 0 {
					if st.jsonMode {
						return output.PrintJSON(st.stdout, []output.TemplateRow{})
					}
					output.Message(st.stdout, "No child item types could be resolved for '"+parentType+"'.")
					return nil
				}
			}

			ruleEngine := rules.NewEngine(st.logger)
			seen := make(map[string]bool)
			rows := make([]output.TemplateRow, 0)
			for _, childType := range childTypes {
				refs, err := client.GetTemplates(ctx, childType)
				if err != nil {
					st.logger.Warn("listing templates failed for type",
						zap.String("workItemType", childType),
						zap.Error(err))
					continue
				}
				for _, ref := range refs {
					if seen[ref.ID] {
						continue
					}
					seen[ref.ID] = true
					row := output.TemplateRow{
						ID:           ref.ID,
						Name:         ref.Name,
						WorkItemType: ref.WorkItemTypeName,
						Mode:         string(rules.DescriptionMode(ref.Description)),
					}
					if parentFields != nil {
						applicable := ruleEngine.IsApplicable(parentFields, ref.Description)
						row.Applicable = &applicable
					}
					rows = append(rows, row)
				}
			}
			if st.jsonMode {
				return output.PrintJSON(st.stdout, rows)
			}
			output.PrintTemplateTable(st.stdout, rows, parentFields != nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&typeFilter, "type", "", "Only list templates for this work item type")
	cmd.Flags().StringVar(&against, "against", "", "Evaluate applicability against this parent work item id")
	return cmd
}
