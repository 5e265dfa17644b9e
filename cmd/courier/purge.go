package main

import (
	"fmt"
	"io"
	"time"

	"github.com/hyperengineering/courier"
	"github.com/spf13/cobra"
)

var purgeOlderThan time.Duration

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete synced call and SMS logs",
	Long: `Delete call and SMS log rows that were already pushed to the backend.

Unsynced rows are never deleted, however old they are.`,
	Example: `  courier purge
  courier purge --older-than 168h`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 720*time.Hour, "Only delete rows older than this")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	if purgeOlderThan < 0 {
		return fmt.Errorf("--older-than must not be negative")
	}
	cutoff := time.Now().Add(-purgeOlderThan)

	return withClient(func(c *courier.Client) error {
		n, err := c.PurgeSyncedLogs(cutoff)
		if err != nil {
			return err
		}
		result := struct {
			Purged int64     `json:"purged"`
			Cutoff time.Time `json:"cutoff"`
		}{n, cutoff.UTC()}

		return output(cmd, result, func(w io.Writer) error {
			if n == 0 {
				printInfo(w, "No synced logs older than %s", purgeOlderThan)
				return nil
			}
			printSuccess(w, "Purged %d synced log record(s)", n)
			return nil
		})
	})
}
