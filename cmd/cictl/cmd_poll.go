package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pollFlags struct {
	participationID uint
	planKey         string
	asJSON          bool
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Fetch the latest build result of a participation and record it",
	RunE:  runPoll,
}

func init() {
	f := pollCmd.Flags()
	f.UintVar(&pollFlags.participationID, "participation", 0, "Participation ID")
	f.StringVar(&pollFlags.planKey, "plan", "", "Build plan key, resolved to its participation")
	f.BoolVar(&pollFlags.asJSON, "json", false, "Print the recorded result as JSON")

	pollCmd.MarkFlagsOneRequired("participation", "plan")
	pollCmd.MarkFlagsMutuallyExclusive("participation", "plan")
}

func runPoll(cmd *cobra.Command, _ []string) error {
	env, err := newCLIEnv()
	if err != nil {
		return err
	}
	defer env.close()

	ctx, cancel := commandContext(cmd, 2*time.Minute)
	defer cancel()

	reconciler, err := env.reconciler(ctx)
	if err != nil {
		return err
	}

	participationID := pollFlags.participationID
	if pollFlags.planKey != "" {
		participationID, err = env.participationForPlan(ctx, pollFlags.planKey)
		if err != nil {
			return err
		}
	}

	outcome, err := reconciler.ProcessLatestBuildResult(ctx, participationID)
	if err != nil {
		return fmt.Errorf("poll participation %d: %w", participationID, err)
	}

	out := cmd.OutOrStdout()
	if pollFlags.asJSON {
		return printJSON(out, outcome.Response())
	}

	switch {
	case outcome.Ignored:
		fmt.Fprintf(out, "Participation #%d: latest build ignored\n", participationID)
	case outcome.AlreadyRecorded:
		fmt.Fprintf(out, "Participation #%d: result #%d already recorded\n", participationID, outcome.Result.ID)
	case outcome.Result != nil:
		fmt.Fprintf(out, "Participation #%d: recorded result #%d\n", participationID, outcome.Result.ID)
		fmt.Fprintf(out, "  Score:   %d\n", outcome.Result.Score)
		fmt.Fprintf(out, "  Result:  %s\n", outcome.Result.ResultString)
		if outcome.Submission != nil {
			fmt.Fprintf(out, "  Commit:  %s\n", outcome.Submission.CommitHash)
		}
	}
	return nil
}
