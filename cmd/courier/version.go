package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version, commit hash, build date, and runtime information.`,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := versionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}

	return output(cmd, info, func(w io.Writer) error {
		if isTTY() {
			fmt.Fprintln(w, renderBannerWithTagline())
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "courier %s\n", info.Version)
		fmt.Fprintf(w, "  commit: %s\n", info.Commit)
		fmt.Fprintf(w, "  built:  %s\n", info.Date)
		fmt.Fprintf(w, "  go:     %s\n", info.Go)
		fmt.Fprintf(w, "  os:     %s/%s\n", info.OS, info.Arch)
		return nil
	})
}
