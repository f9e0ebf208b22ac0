package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-improver/internal/improvement"
	"github.com/jonathan/skill-improver/internal/observability"
	"github.com/jonathan/skill-improver/internal/prompts"
	"github.com/jonathan/skill-improver/internal/schemas"
	"github.com/jonathan/skill-improver/internal/types"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a skill and create its first version",
	Long:  "Registers a skill from a JSON file (validated against the skill schema) or from flags. Fails if the skill already exists.",
	RunE:  runRegister,
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompt a skill execution should use",
	Long:  "Resolves the active version of a skill, falling back to the given prompt when the skill has no active version.",
	RunE:  runPrompt,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show a skill's version lineage and score trajectory",
	RunE:  runHistory,
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List every version of a skill",
	RunE:  runVersions,
}

var (
	registerFile        string
	registerSkillID     string
	registerInstruction string
	registerTemplate    string

	promptSkillID        string
	promptFallbackSystem string
	promptFallbackUser   string
	promptVars           map[string]string

	historySkillID  string
	versionsSkillID string
)

func init() {
	registerCmd.Flags().StringVarP(&registerFile, "file", "f", "", "Path to a skill registration JSON file")
	registerCmd.Flags().StringVar(&registerSkillID, "skill", "", "Skill ID")
	registerCmd.Flags().StringVar(&registerInstruction, "instruction", "", "System instruction, or @path to read it from a file")
	registerCmd.Flags().StringVar(&registerTemplate, "template", "", "User prompt template, or @path to read it from a file")
	rootCmd.AddCommand(registerCmd)

	promptCmd.Flags().StringVar(&promptSkillID, "skill", "", "Skill ID (required)")
	promptCmd.Flags().StringVar(&promptFallbackSystem, "fallback-system", "", "System instruction used when the skill has no active version")
	promptCmd.Flags().StringVar(&promptFallbackUser, "fallback-user", "", "User prompt used when the skill has no active version")
	promptCmd.Flags().StringToStringVar(&promptVars, "var", nil, "Template values as key=value, substituted into {{key}} placeholders")
	if err := promptCmd.MarkFlagRequired("skill"); err != nil {
		panic(fmt.Sprintf("failed to mark skill flag as required: %v", err))
	}
	rootCmd.AddCommand(promptCmd)

	historyCmd.Flags().StringVar(&historySkillID, "skill", "", "Skill ID (required)")
	if err := historyCmd.MarkFlagRequired("skill"); err != nil {
		panic(fmt.Sprintf("failed to mark skill flag as required: %v", err))
	}
	rootCmd.AddCommand(historyCmd)

	versionsCmd.Flags().StringVar(&versionsSkillID, "skill", "", "Skill ID (required)")
	if err := versionsCmd.MarkFlagRequired("skill"); err != nil {
		panic(fmt.Sprintf("failed to mark skill flag as required: %v", err))
	}
	rootCmd.AddCommand(versionsCmd)
}

// readArg returns s, or the contents of the file when s is "@path".
func readArg(s string) (string, error) {
	path, ok := strings.CutPrefix(s, "@")
	if !ok {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func registerInput() (types.RegisterSkillInput, error) {
	var in types.RegisterSkillInput
	if registerFile != "" {
		if err := readValidated(schemas.SkillSchema, registerFile, &in); err != nil {
			return in, err
		}
		return in, nil
	}

	instruction, err := readArg(registerInstruction)
	if err != nil {
		return in, err
	}
	template, err := readArg(registerTemplate)
	if err != nil {
		return in, err
	}
	in = types.RegisterSkillInput{
		SkillID:            registerSkillID,
		SystemInstruction:  instruction,
		UserPromptTemplate: template,
		CreatedBy:          types.AuthorUser,
	}
	return in, nil
}

func runRegister(cmd *cobra.Command, _ []string) error {
	in, err := registerInput()
	if err != nil {
		return err
	}

	return withApp(cmd, func(a *app) error {
		v, err := a.engine.RegisterSkill(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("failed to register skill: %w", err)
		}
		if a.cfg.Verbose {
			observability.NewPrinter(cmd.OutOrStdout()).PrintVersion(v)
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), v)
	})
}

func runPrompt(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(a *app) error {
		resolved := a.engine.EffectivePrompt(cmd.Context(), promptSkillID, improvement.FallbackPrompt{
			SystemInstruction: promptFallbackSystem,
			UserPrompt:        promptFallbackUser,
		})
		if len(promptVars) > 0 {
			values := make(map[string]any, len(promptVars))
			for k, v := range promptVars {
				values[k] = v
			}
			resolved.UserPrompt = prompts.Interpolate(resolved.UserPrompt, values)
		}
		return writeJSON(cmd.OutOrStdout(), resolved)
	})
}

func runHistory(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(a *app) error {
		history, err := a.engine.GetImprovementHistory(cmd.Context(), historySkillID)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if a.cfg.Verbose {
			observability.NewPrinter(cmd.OutOrStdout()).PrintHistory(history)
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), history)
	})
}

func runVersions(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(a *app) error {
		versions, err := a.engine.ListVersions(cmd.Context(), versionsSkillID)
		if err != nil {
			return fmt.Errorf("failed to list versions: %w", err)
		}
		if len(versions) == 0 {
			return fmt.Errorf("skill %s is not registered", versionsSkillID)
		}
		if a.cfg.Verbose {
			p := observability.NewPrinter(cmd.OutOrStdout())
			for i := range versions {
				p.PrintVersion(&versions[i])
			}
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), versions)
	})
}
