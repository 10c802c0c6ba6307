package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <plan-key>",
	Short: "Show whether a build plan is inactive, queued or building",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var logsFlags struct {
	asJSON bool
}

var logsCmd = &cobra.Command{
	Use:   "logs <plan-key>",
	Short: "Print the filtered log of the latest build",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <plan-key>",
	Short: "Queue a build of a plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrigger,
}

func init() {
	logsCmd.Flags().BoolVar(&logsFlags.asJSON, "json", false, "Print the log entries as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := newCLIEnv()
	if err != nil {
		return err
	}
	plans, err := env.buildPlans(false)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, 30*time.Second)
	defer cancel()

	status, err := plans.BuildStatus(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", status.PlanKey, status.Status)
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	env, err := newCLIEnv()
	if err != nil {
		return err
	}
	plans, err := env.buildPlans(false)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, time.Minute)
	defer cancel()

	logs, err := plans.BuildLogs(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if logsFlags.asJSON {
		return printJSON(out, logs)
	}
	for _, entry := range logs {
		fmt.Fprintf(out, "%s  %s\n", entry.Time.Format(time.RFC3339), entry.Log)
	}
	return nil
}

func runTrigger(cmd *cobra.Command, args []string) error {
	env, err := newCLIEnv()
	if err != nil {
		return err
	}
	plans, err := env.buildPlans(false)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, 30*time.Second)
	defer cancel()

	if err := plans.TriggerBuild(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Build of %s queued\n", args[0])
	return nil
}
