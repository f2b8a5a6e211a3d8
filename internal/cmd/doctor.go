package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/doctor"
	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

var doctorSampleSize int

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupDiag,
	Short:   "Run storage health checks",
}

var doctorCheckCmd = &cobra.Command{
	Use:   "check <team>",
	Short: "Run the diagnostics battery against a team's store",
	Long: `Run the storage diagnostics battery:

  index_integrity                 every index entry has a matching log line
                                  (byte offsets verified where recorded)
  malformed_jsonl                 fresh scan of every log for damaged lines
  snapshot_monotonicity           task updated_at never precedes created_at
  index_inbox_sample_consistency  sampled message ids round-trip through
                                  the index fast path
  ack_index_consistency           every ack has its message and a matching
                                  message_acked event

The exit code is 0 when healthy, 1 on warnings, 2 when unhealthy. Most
index problems are repaired by 'tc rehydrate'.`,
	Args: cobra.ExactArgs(1),
	RunE: runDoctorCheck,
}

func init() {
	doctorCheckCmd.Flags().IntVar(&doctorSampleSize, "sample-size", doctor.DefaultSampleSize, "Messages sampled per inbox for consistency checks")
	doctorCmd.AddCommand(doctorCheckCmd)
	rootCmd.AddCommand(doctorCmd)
}

func runDoctorCheck(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	report, err := svc.DoctorCheck(args[0], doctorSampleSize)
	if err != nil {
		return err
	}
	exitCode = report.ExitCode
	if rootJSON {
		return printJSON(report)
	}

	fmt.Printf("%s team %s: %s\n", statusGlyph(report.OverallStatus), style.Bold.Render(report.Team), string(report.OverallStatus))
	for _, check := range report.Checks {
		fmt.Printf("  %s %s: %s\n", statusGlyph(check.Status), check.Name, check.Summary)
	}
	if len(report.Recommendations) > 0 {
		fmt.Println("recommendations:")
		for _, r := range report.Recommendations {
			fmt.Printf("  %s %s\n", style.ArrowPrefix, r)
		}
	}
	return nil
}

func statusGlyph(s doctor.Status) string {
	switch s {
	case doctor.StatusUnhealthy:
		return style.ErrorPrefix
	case doctor.StatusWarn:
		return style.WarningPrefix
	default:
		return style.SuccessPrefix
	}
}
