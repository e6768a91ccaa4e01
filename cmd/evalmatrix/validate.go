package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openprocure/evalmatrix/infrastructure/memory"
	"github.com/openprocure/evalmatrix/internal/domain"
	"github.com/openprocure/evalmatrix/internal/ports"
)

var validateCmd = &cobra.Command{
	Use:   "validate <rubric.yaml>",
	Short: "Validate a rubric definition without running an evaluation.",
	Long:  `Validate parses a rubric file, checks its structural rules, and verifies the weight-sum invariant required for activation.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return validateRubric(args[0])
	},
}

func validateRubric(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading rubric: %w", err)
	}
	var spec ports.RubricSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("parsing rubric: %w", err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	if !cfg.UseColors {
		green = fmt.Sprint
		red = fmt.Sprint
	}

	// A dry-run through the store exercises the same checks a live
	// Create plus Activate would apply.
	store := memory.NewRubricStore()
	rubric, err := store.Create(rootCtx, spec)
	if err != nil {
		reportValidationFailure(red, err)
		return err
	}
	if _, err := store.Activate(rootCtx, rubric.ID); err != nil {
		reportValidationFailure(red, err)
		return err
	}

	fmt.Fprintf(os.Stdout, "%s rubric %q is valid: %d criteria, weights sum to %.2f, passing threshold %.2f\n",
		green("ok"), rubric.Name, len(rubric.Criteria), rubric.TotalWeight(), rubric.PassingThreshold)
	return nil
}

func reportValidationFailure(red func(...any) string, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintf(os.Stderr, "%s rubric invalid:\n", red("error"))
		for _, msg := range verr.Errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", msg)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", red("error"), err)
}
