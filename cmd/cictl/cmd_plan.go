package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
)

var planFlags struct {
	projectKey      string
	planKey         string
	name            string
	repositoryURL   string
	testRepoURL     string
	participationID uint
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Create, clone, enable or delete build plans",
}

var planCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a build plan for a repository",
	RunE:  runPlanCreate,
}

var planCloneCmd = &cobra.Command{
	Use:   "clone <source-plan-key> <target-plan-key>",
	Short: "Copy a plan, usually the template plan of an exercise",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlanClone,
}

var planEnableCmd = &cobra.Command{
	Use:   "enable <plan-key>",
	Short: "Enable a build plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanEnable,
}

var planDeleteCmd = &cobra.Command{
	Use:   "delete <plan-key>",
	Short: "Delete a build plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanDelete,
}

func init() {
	f := planCreateCmd.Flags()
	f.StringVar(&planFlags.projectKey, "project", "", "CI project key (required)")
	f.StringVar(&planFlags.planKey, "plan", "", "Plan key inside the project (required)")
	f.StringVar(&planFlags.name, "name", "", "Plan display name (required)")
	f.StringVar(&planFlags.repositoryURL, "repo", "", "Assignment repository URL (required)")
	f.StringVar(&planFlags.testRepoURL, "test-repo", "", "Test repository URL")
	_ = planCreateCmd.MarkFlagRequired("project")
	_ = planCreateCmd.MarkFlagRequired("plan")
	_ = planCreateCmd.MarkFlagRequired("name")
	_ = planCreateCmd.MarkFlagRequired("repo")

	for _, cmd := range []*cobra.Command{planCreateCmd, planCloneCmd} {
		cmd.Flags().UintVar(&planFlags.participationID, "participation", 0, "Attach the plan to this participation")
	}

	planCmd.AddCommand(planCreateCmd, planCloneCmd, planEnableCmd, planDeleteCmd)
}

func participationFlag() *uint {
	if planFlags.participationID == 0 {
		return nil
	}
	id := planFlags.participationID
	return &id
}

func runPlanCreate(cmd *cobra.Command, _ []string) error {
	env, err := newCLIEnv()
	if err != nil {
		return err
	}
	defer env.close()

	participationID := participationFlag()
	plans, err := env.buildPlans(participationID != nil)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, time.Minute)
	defer cancel()

	plan, err := plans.CreateBuildPlan(ctx, dto.CreateBuildPlanRequest{
		ProjectKey:        planFlags.projectKey,
		PlanKey:           planFlags.planKey,
		Name:              planFlags.name,
		RepositoryURL:     planFlags.repositoryURL,
		TestRepositoryURL: planFlags.testRepoURL,
		ParticipationID:   participationID,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", plan.PlanKey)
	return nil
}

func runPlanClone(cmd *cobra.Command, args []string) error {
	sourceProject, sourcePlan, err := splitPlanKey(args[0])
	if err != nil {
		return err
	}
	targetProject, targetPlan, err := splitPlanKey(args[1])
	if err != nil {
		return err
	}

	env, err := newCLIEnv()
	if err != nil {
		return err
	}
	defer env.close()

	participationID := participationFlag()
	plans, err := env.buildPlans(participationID != nil)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, time.Minute)
	defer cancel()

	plan, err := plans.ClonePlan(ctx, dto.ClonePlanRequest{
		SourceProjectKey: sourceProject,
		SourcePlanKey:    sourcePlan,
		TargetProjectKey: targetProject,
		TargetPlanKey:    targetPlan,
		ParticipationID:  participationID,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cloned %s to %s\n", args[0], plan.PlanKey)
	return nil
}

func runPlanEnable(cmd *cobra.Command, args []string) error {
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

	if err := plans.EnablePlan(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Enabled %s\n", args[0])
	return nil
}

func runPlanDelete(cmd *cobra.Command, args []string) error {
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

	if err := plans.DeletePlan(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}

func splitPlanKey(key string) (string, string, error) {
	project, plan, ok := strings.Cut(strings.TrimSpace(key), "-")
	if !ok || project == "" || plan == "" {
		return "", "", fmt.Errorf("plan key %q must look like PROJECT-PLAN", key)
	}
	return project, plan, nil
}
