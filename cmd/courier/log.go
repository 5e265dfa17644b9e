package main

import (
	"io"
	"time"

	"github.com/hyperengineering/courier"
	"github.com/spf13/cobra"
)

var (
	logNumber    string
	logDirection string
	logDuration  time.Duration
	logFailed    bool
	logError     string
	logText      string
	logDecision  string
	logReply     string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record call and SMS events",
	Long: `Record call and SMS events in the local log tables.

Records are stored immediately and pushed to the backend on the next log sync.`,
}

var logCallCmd = &cobra.Command{
	Use:   "call",
	Short: "Record a handled call",
	Example: `  courier log call --number +15550100 --direction incoming --duration 42s
  courier log call --number +15550100 --direction missed --failed --error "no answer"`,
	Args: cobra.NoArgs,
	RunE: runLogCall,
}

var logSMSCmd = &cobra.Command{
	Use:   "sms",
	Short: "Record an incoming SMS and the reply decision",
	Example: `  courier log sms --number +15550100 --text "running late?" --decision yes --reply "10 minutes"`,
	Args:    cobra.NoArgs,
	RunE:    runLogSMS,
}

func init() {
	logCallCmd.Flags().StringVar(&logNumber, "number", "", "Phone number (required)")
	logCallCmd.Flags().StringVar(&logDirection, "direction", string(courier.CallIncoming), "incoming, outgoing or missed")
	logCallCmd.Flags().DurationVar(&logDuration, "duration", 0, "Call duration")
	logCallCmd.Flags().BoolVar(&logFailed, "failed", false, "Mark the call as unsuccessful")
	logCallCmd.Flags().StringVar(&logError, "error", "", "Error message for a failed call")
	_ = logCallCmd.MarkFlagRequired("number")

	logSMSCmd.Flags().StringVar(&logNumber, "number", "", "Phone number (required)")
	logSMSCmd.Flags().StringVar(&logText, "text", "", "Incoming message text")
	logSMSCmd.Flags().StringVar(&logDecision, "decision", "", "yes or no (required)")
	logSMSCmd.Flags().StringVar(&logReply, "reply", "", "Reply that was sent")
	_ = logSMSCmd.MarkFlagRequired("number")
	_ = logSMSCmd.MarkFlagRequired("decision")

	logCmd.AddCommand(logCallCmd, logSMSCmd)
	rootCmd.AddCommand(logCmd)
}

func runLogCall(cmd *cobra.Command, args []string) error {
	rec := courier.CallLog{
		PhoneNumber:     logNumber,
		Direction:       courier.CallDirection(logDirection),
		DurationSeconds: logDuration.Seconds(),
		Success:         !logFailed,
		ErrorMessage:    logError,
	}

	return withClient(func(c *courier.Client) error {
		saved, err := c.RecordCall(cmd.Context(), rec)
		if err != nil {
			return err
		}
		return output(cmd, saved, func(w io.Writer) error {
			printSuccess(w, "Recorded %s call %s", saved.Direction, saved.ID)
			return nil
		})
	})
}

func runLogSMS(cmd *cobra.Command, args []string) error {
	rec := courier.SMSLog{
		PhoneNumber:  logNumber,
		IncomingText: logText,
		Decision:     courier.SMSDecision(logDecision),
		ReplyText:    logReply,
	}

	return withClient(func(c *courier.Client) error {
		saved, err := c.RecordSMS(cmd.Context(), rec)
		if err != nil {
			return err
		}
		return output(cmd, saved, func(w io.Writer) error {
			printSuccess(w, "Recorded SMS %s (decision: %s)", saved.ID, saved.Decision)
			if saved.ReplyText != "" {
				printMuted(w, "reply: %q", saved.ReplyText)
			}
			return nil
		})
	})
}
