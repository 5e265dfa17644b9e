package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// output writes v in the format chosen by --output. human renders the
// text form.
func output(cmd *cobra.Command, v any, human func(w io.Writer) error) error {
	switch outputFormat {
	case "json":
		return outputAsJSON(cmd, v)
	case "yaml":
		return outputAsYAML(cmd, v)
	default:
		return human(cmd.OutOrStdout())
	}
}

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputAsYAML writes v as YAML using its JSON field names, so both
// formats agree on keys and on how preference values are encoded.
func outputAsYAML(cmd *cobra.Command, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// outputError prints an error to stderr with credentials scrubbed from any
// URL it mentions.
func outputError(w io.Writer, err error) {
	printError(w, "Error: %s", scrubSensitiveData(err.Error()))
}

// scrubSensitiveData redacts userinfo embedded in the backend URL.
func scrubSensitiveData(msg string) string {
	for _, raw := range []string{cfgBackendURL, os.Getenv("COURIER_BACKEND_URL")} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.User == nil {
			continue
		}
		msg = strings.ReplaceAll(msg, u.User.String(), "[REDACTED]")
	}
	return msg
}

// formatTime renders t with how long ago it was, or "never".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s (%s ago)", t.Local().Format(time.RFC3339), formatAgo(time.Since(t)))
}

func formatAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
