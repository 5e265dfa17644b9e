package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/hyperengineering/courier"
	"github.com/spf13/cobra"
)

var prefCmd = &cobra.Command{
	Use:     "pref",
	Aliases: []string{"prefs"},
	Short:   "Read and change preferences",
	Long: `Read and change preferences in the local store.

Changes are saved immediately and queued for the next sync.`,
}

var prefListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every preference",
	Args:  cobra.NoArgs,
	RunE:  runPrefList,
}

var prefGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one preference",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrefGet,
}

var prefSetCmd = &cobra.Command{
	Use:   "set <key> <value> [<key> <value>...]",
	Short: "Change one or more preferences",
	Example: `  courier pref set autoReplyEnabled true
  courier pref set voiceLanguage de conversationTimeout 120`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return fmt.Errorf("expected key/value pairs, got %d argument(s)", len(args))
		}
		return nil
	},
	RunE: runPrefSet,
}

func init() {
	prefCmd.AddCommand(prefListCmd, prefGetCmd, prefSetCmd)
	rootCmd.AddCommand(prefCmd)
}

// prefRow is one preference in list output.
type prefRow struct {
	Key     courier.PreferenceKey `json:"key"`
	Value   courier.Value         `json:"value"`
	Kind    string                `json:"kind"`
	Pending bool                  `json:"pending"`
}

func runPrefList(cmd *cobra.Command, args []string) error {
	return withClient(func(c *courier.Client) error {
		prefs, err := c.Preferences().GetAllPreferences()
		if err != nil {
			return fmt.Errorf("read preferences: %w", err)
		}
		rows := preferenceRows(prefs, c.Preferences().PendingChanges())

		if outputFormat != "text" {
			return output(cmd, prefs, nil)
		}
		return writePrefTable(cmd.OutOrStdout(), rows)
	})
}

func preferenceRows(prefs courier.Preferences, pending []courier.LedgerEntry) []prefRow {
	isPending := make(map[courier.PreferenceKey]bool, len(pending))
	for _, e := range pending {
		isPending[e.Key] = true
	}

	rows := make([]prefRow, 0, len(prefs))
	for _, key := range courier.PreferenceKeys() {
		rows = append(rows, prefRow{
			Key:     key,
			Value:   prefs.Get(key),
			Kind:    key.Kind().String(),
			Pending: isPending[key],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

func writePrefTable(w io.Writer, rows []prefRow) error {
	table := make([][]string, len(rows))
	for i, r := range rows {
		state := "synced"
		if r.Pending {
			state = "pending"
		}
		table[i] = []string{string(r.Key), r.Value.String(), r.Kind, state}
	}
	_, err := fmt.Fprintln(w, renderTable([]string{"KEY", "VALUE", "KIND", "STATE"}, table))
	return err
}

func runPrefGet(cmd *cobra.Command, args []string) error {
	key, err := courier.ParsePreferenceKey(args[0])
	if err != nil {
		return err
	}

	return withClient(func(c *courier.Client) error {
		v, err := c.Preferences().Get(key)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		return output(cmd, map[courier.PreferenceKey]courier.Value{key: v}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, v)
			return err
		})
	})
}

func runPrefSet(cmd *cobra.Command, args []string) error {
	updates := make(courier.Preferences, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, err := courier.ParsePreferenceKey(args[i])
		if err != nil {
			return err
		}
		v, err := key.Parse(args[i+1])
		if err != nil {
			return err
		}
		updates[key] = v
	}

	return withClient(func(c *courier.Client) error {
		if err := c.Preferences().UpdatePreferences(updates); err != nil {
			return err
		}

		st := c.Status()
		return output(cmd, updates, func(w io.Writer) error {
			for _, key := range courier.PreferenceKeys() {
				if v, ok := updates[key]; ok {
					printSuccess(w, "%s = %s", key, v)
				}
			}
			printMuted(w, "%d change(s) pending sync", st.PendingChanges)
			return nil
		})
	})
}
