package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-improver/internal/observability"
	"github.com/jonathan/skill-improver/internal/types"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Open a manual improvement request for a skill's active version",
	RunE:  runRequest,
}

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List improvement requests, newest first",
	RunE:  runRequests,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Approve a pending request and promote a new skill version",
	RunE:  runApply,
}

var rejectCmd = &cobra.Command{
	Use:   "reject",
	Short: "Reject a pending improvement request",
	RunE:  runReject,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Reactivate the previous version of a skill",
	RunE:  runRollback,
}

var (
	requestSkillID string

	requestsSkillID string
	requestsStatus  string

	reviewRequestID string
	reviewer        string
	reviewNotes     string

	rollbackSkillID string
	rollbackReason  string
)

func init() {
	requestCmd.Flags().StringVar(&requestSkillID, "skill", "", "Skill ID (required)")
	if err := requestCmd.MarkFlagRequired("skill"); err != nil {
		panic(fmt.Sprintf("failed to mark skill flag as required: %v", err))
	}
	rootCmd.AddCommand(requestCmd)

	requestsCmd.Flags().StringVar(&requestsSkillID, "skill", "", "Only requests for this skill")
	requestsCmd.Flags().StringVar(&requestsStatus, "status", "", "Only requests in this status")
	rootCmd.AddCommand(requestsCmd)

	for _, c := range []*cobra.Command{applyCmd, rejectCmd} {
		c.Flags().StringVar(&reviewRequestID, "request", "", "Improvement request ID (required)")
		c.Flags().StringVar(&reviewer, "reviewer", "", "Reviewer name recorded on the request")
		c.Flags().StringVar(&reviewNotes, "notes", "", "Review notes")
		if err := c.MarkFlagRequired("request"); err != nil {
			panic(fmt.Sprintf("failed to mark request flag as required: %v", err))
		}
		rootCmd.AddCommand(c)
	}

	rollbackCmd.Flags().StringVar(&rollbackSkillID, "skill", "", "Skill ID (required)")
	rollbackCmd.Flags().StringVar(&rollbackReason, "reason", "", "Why the active version is being rolled back (required)")
	for _, name := range []string{"skill", "reason"} {
		if err := rollbackCmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}
	rootCmd.AddCommand(rollbackCmd)
}

func printRequest(cmd *cobra.Command, a *app, req *types.ImprovementRequest) error {
	if a.cfg.Verbose {
		p := observability.NewPrinter(cmd.OutOrStdout())
		p.PrintRequest(req)
		p.PrintProposedChanges(req.ProposedChanges)
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), req)
}

func reviewInput() (types.ReviewInput, error) {
	in := types.ReviewInput{ReviewedBy: reviewer, Notes: reviewNotes}
	if err := in.Validate(); err != nil {
		return in, fmt.Errorf("invalid review: %w", err)
	}
	return in, nil
}

// notPending explains why a review action on requestID did nothing.
func notPending(cmd *cobra.Command, a *app, requestID string) error {
	req, err := a.engine.GetRequest(cmd.Context(), requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("improvement request %s not found", requestID)
	}
	return fmt.Errorf("improvement request %s is %s, not pending", requestID, req.Status)
}

func runRequest(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(a *app) error {
		req, err := a.engine.RequestImprovement(cmd.Context(), requestSkillID)
		if err != nil {
			return fmt.Errorf("failed to request improvement: %w", err)
		}
		if req == nil {
			return fmt.Errorf("skill %s has no active version", requestSkillID)
		}
		return printRequest(cmd, a, req)
	})
}

func runRequests(cmd *cobra.Command, _ []string) error {
	status := types.RequestStatus(requestsStatus)
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", requestsStatus)
	}

	return withApp(cmd, func(a *app) error {
		requests, err := a.engine.ListRequests(cmd.Context(), requestsSkillID, status)
		if err != nil {
			return fmt.Errorf("failed to list requests: %w", err)
		}
		if a.cfg.Verbose {
			p := observability.NewPrinter(cmd.OutOrStdout())
			for i := range requests {
				p.PrintRequest(&requests[i])
			}
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), requests)
	})
}

func runApply(cmd *cobra.Command, _ []string) error {
	review, err := reviewInput()
	if err != nil {
		return err
	}

	return withApp(cmd, func(a *app) error {
		v, err := a.engine.ApplyImprovementsAs(cmd.Context(), reviewRequestID, review)
		if err != nil {
			return fmt.Errorf("failed to apply improvement: %w", err)
		}
		if v == nil {
			return notPending(cmd, a, reviewRequestID)
		}
		if a.cfg.Verbose {
			observability.NewPrinter(cmd.OutOrStdout()).PrintVersion(v)
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), v)
	})
}

func runReject(cmd *cobra.Command, _ []string) error {
	review, err := reviewInput()
	if err != nil {
		return err
	}

	return withApp(cmd, func(a *app) error {
		req, err := a.engine.RejectImprovement(cmd.Context(), reviewRequestID, review)
		if err != nil {
			return fmt.Errorf("failed to reject improvement: %w", err)
		}
		if req == nil {
			return notPending(cmd, a, reviewRequestID)
		}
		return printRequest(cmd, a, req)
	})
}

func runRollback(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(a *app) error {
		v, err := a.engine.RollbackVersion(cmd.Context(), rollbackSkillID, rollbackReason)
		if err != nil {
			return fmt.Errorf("failed to roll back: %w", err)
		}
		if v == nil {
			return fmt.Errorf("skill %s has no active version with a predecessor", rollbackSkillID)
		}
		if a.cfg.Verbose {
			observability.NewPrinter(cmd.OutOrStdout()).PrintVersion(v)
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), v)
	})
}
