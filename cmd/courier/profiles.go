package main

import (
	"fmt"
	"io"

	"github.com/hyperengineering/courier/internal/store"
	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List local profiles",
	Long: `List the profiles that have a local database under the Courier home
directory (COURIER_HOME, default ~/.courier).`,
	Args: cobra.NoArgs,
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	ids, err := store.ListProfiles()
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}

	current, err := store.ResolveProfile(cfgProfile)
	if err != nil {
		return err
	}

	return output(cmd, ids, func(w io.Writer) error {
		if len(ids) == 0 {
			printInfo(w, "No profiles yet under %s", store.DefaultProfileRoot())
			return nil
		}
		rows := make([][]string, len(ids))
		for i, id := range ids {
			mark := ""
			if id == current {
				mark = "*"
			}
			rows[i] = []string{id, mark, store.ProfileDBPath(id)}
		}
		_, err := fmt.Fprintln(w, renderTable([]string{"PROFILE", "ACTIVE", "DATABASE"}, rows))
		return err
	})
}
