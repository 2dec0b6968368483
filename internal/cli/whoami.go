package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tfs-autotasks/internal/engine"
	"tfs-autotasks/internal/output"
)

func newWhoamiCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity resolved from the PAT, as used for @me",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := st.newClient()
			if err != nil {
				return err
			}
			me, err := engine.ResolveCurrentUser(cmd.Context(), client)
			if err != nil {
				return err
			}
			if st.jsonMode {
				return output.PrintJSON(st.stdout, map[string]interface{}{"assignedTo": me})
			}
			fmt.Fprintf(st.stdout, "AssignedTo: %v\n", me)
			return nil
		},
	}
}
