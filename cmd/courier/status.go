package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hyperengineering/courier"
	"github.com/spf13/cobra"
)

var statusHealth bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state and local store statistics",
	Example: `  courier status
  courier status --health -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusHealth, "health", false, "Also probe the backend")
	rootCmd.AddCommand(statusCmd)
}

// statusReport is the machine-readable form of courier status.
type statusReport struct {
	Profile string                `json:"profile"`
	DBPath  string                `json:"db_path"`
	Backend string                `json:"backend,omitempty"`
	UserID  int64                 `json:"user_id,omitempty"`
	Message string                `json:"message"`
	Sync    courier.SyncStatus    `json:"sync"`
	Stats   *courier.StoreStats   `json:"stats"`
	Health  *courier.HealthStatus `json:"health,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withClient(func(c *courier.Client) error {
		stats, err := c.Stats()
		if err != nil {
			return fmt.Errorf("read stats: %w", err)
		}

		cfg := c.Config()
		st := c.Status()
		report := statusReport{
			Profile: cfg.Profile,
			DBPath:  cfg.LocalPath,
			Backend: cfg.BackendURL,
			UserID:  cfg.UserID,
			Message: st.Message(),
			Sync:    st,
			Stats:   stats,
		}
		if statusHealth {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			h := c.HealthCheck(ctx)
			report.Health = &h
		}

		return output(cmd, report, func(w io.Writer) error {
			return writeStatus(w, report)
		})
	})
}

func writeStatus(w io.Writer, r statusReport) error {
	backend := r.Backend
	if backend == "" {
		backend = "none (offline mode)"
	}
	user := "not set"
	if r.UserID > 0 {
		user = strconv.FormatInt(r.UserID, 10)
	}

	lines := [][2]string{
		{"Profile", r.Profile},
		{"Database", r.DBPath},
		{"Backend", scrubSensitiveData(backend)},
		{"User", user},
		{"Sync", r.Message},
		{"Pending changes", strconv.Itoa(r.Sync.PendingChanges)},
		{"Last sync", formatTime(r.Stats.LastSync)},
	}
	if r.Sync.LastError != "" {
		lines = append(lines, [2]string{"Last error", r.Sync.LastError})
	}
	lines = append(lines,
		[2]string{"Preferences stored", strconv.Itoa(r.Stats.PreferenceCount)},
		[2]string{"Call logs", fmt.Sprintf("%d (%d unsynced)", r.Stats.CallLogs, r.Stats.UnsyncedCalls)},
		[2]string{"SMS logs", fmt.Sprintf("%d (%d unsynced)", r.Stats.SMSLogs, r.Stats.UnsyncedSMS)},
		[2]string{"Last log sync", formatTime(r.Stats.LastLogSync)},
		[2]string{"Schema version", r.Stats.SchemaVersion},
	)
	if _, err := fmt.Fprintln(w, renderPanel("Courier Status", lines)); err != nil {
		return err
	}

	if h := r.Health; h != nil {
		switch {
		case !h.Healthy:
			printError(w, "Unhealthy: %s", h.Error)
		case !h.BackendReachable && r.Backend != "":
			printWarning(w, "Backend unreachable: %s", h.Error)
		case r.Backend == "":
			printInfo(w, "Local store OK, no backend configured")
		default:
			printSuccess(w, "Local store and backend OK")
		}
	}
	return nil
}
