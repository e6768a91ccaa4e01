package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openprocure/evalmatrix/infrastructure/export"
	"github.com/openprocure/evalmatrix/infrastructure/memory"
	"github.com/openprocure/evalmatrix/infrastructure/middleware"
	"github.com/openprocure/evalmatrix/internal/application"
	"github.com/openprocure/evalmatrix/internal/domain"
	"github.com/openprocure/evalmatrix/internal/ports"
	"golang.org/x/time/rate"
)

// scenario is the on-disk description of one evaluation exercise: a
// rubric, a matrix configuration, and the committee's submissions.
type scenario struct {
	Rubric      ports.RubricSpec         `yaml:"rubric"`
	Matrix      application.MatrixConfig `yaml:"matrix"`
	Chair       string                   `yaml:"chair"`
	Reviewer    string                   `yaml:"reviewer"`
	Submissions []scenarioSubmission     `yaml:"submissions"`

	// Finalize drives the matrix through Review to Final after the
	// submissions, sealing the results. When false the run stops after
	// the last submission and exports the live snapshot.
	Finalize bool `yaml:"finalize"`
}

type scenarioSubmission struct {
	VendorID    string             `yaml:"vendor_id"`
	EvaluatorID string             `yaml:"evaluator_id"`
	Scores      map[string]float64 `yaml:"scores"`
	Comments    string             `yaml:"comments,omitempty"`
}

var outputFlag string

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run an evaluation scenario and export the results.",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runScenario(args[0])
	},
}

func init() {
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output format: table, csv, json")
}

func loadScenario(path string) (*scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc := &scenario{Matrix: application.DefaultMatrixConfig()}
	if err := yaml.Unmarshal(raw, sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if sc.Matrix.Consensus.ThresholdPoints == 0 {
		sc.Matrix.Consensus.ThresholdPoints = cfg.ConsensusThreshold
	}
	if sc.Matrix.Compliance.MinorFloor == 0 {
		sc.Matrix.Compliance.MinorFloor = cfg.MinorFloor
	}
	if sc.Chair == "" || sc.Reviewer == "" {
		return nil, fmt.Errorf("scenario must name a chair and a reviewer")
	}
	return sc, nil
}

func runScenario(path string) error {
	sc, err := loadScenario(path)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	if !cfg.UseColors {
		green = fmt.Sprint
		yellow = fmt.Sprint
	}

	store := memory.NewRubricStore()
	rubric, err := store.Create(rootCtx, sc.Rubric)
	if err != nil {
		return fmt.Errorf("creating rubric: %w", err)
	}
	if _, err := store.Activate(rootCtx, rubric.ID); err != nil {
		return fmt.Errorf("activating rubric: %w", err)
	}
	snap, err := store.Bind(rootCtx, rubric.ID)
	if err != nil {
		return fmt.Errorf("binding rubric: %w", err)
	}
	fmt.Fprintf(os.Stderr, "%s rubric %q v%d bound\n", green("ok"), rubric.Name, snap.Rubric.Version)

	// The observer traces against the global provider, a no-op unless
	// the embedding environment configured an exporter.
	opts := []application.Option{
		application.WithObserver(middleware.NewOtelMatrixObserver(nil)),
	}
	if cfg.SubmissionRate > 0 {
		opts = append(opts, application.WithSubmissionRate(rate.Limit(cfg.SubmissionRate), cfg.SubmissionBurst))
	}
	matrix, err := application.NewEvaluationMatrix(sc.Matrix, snap, opts...)
	if err != nil {
		return fmt.Errorf("building matrix: %w", err)
	}

	accepted := 0
	for _, sub := range sc.Submissions {
		_, err := matrix.Submit(rootCtx, application.SubmitRequest{
			VendorID:    sub.VendorID,
			EvaluatorID: sub.EvaluatorID,
			RawScores:   sub.Scores,
			Comments:    sub.Comments,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s submission %s/%s rejected: %v\n",
				yellow("warn"), sub.VendorID, sub.EvaluatorID, err)
			continue
		}
		accepted++
	}
	fmt.Fprintf(os.Stderr, "%s %d of %d submissions accepted, matrix %s\n",
		green("ok"), accepted, len(sc.Submissions), matrix.Status())

	if sc.Finalize {
		if err := finalizeMatrix(sc, matrix); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s matrix finalized\n", green("ok"))
	}

	format := export.Format(cfg.Output)
	if outputFlag != "" {
		format = export.Format(outputFlag)
	}
	results := matrix.Results()
	return export.WriteResults(os.Stdout, results, export.Options{
		Format:    format,
		Precision: cfg.Precision,
		UseColors: cfg.UseColors && format == export.TableOut,
	})
}

// finalizeMatrix walks the matrix through the remaining lifecycle. The
// chair closes evaluation when the roster did not complete on its own.
func finalizeMatrix(sc *scenario, matrix *application.EvaluationMatrix) error {
	chair := application.Actor{ID: sc.Chair, Role: domain.RoleChair}
	reviewer := application.Actor{ID: sc.Reviewer, Role: domain.RoleReviewer}

	if matrix.Status() == domain.MatrixInProgress {
		if err := matrix.CloseEvaluation(rootCtx, chair); err != nil {
			return fmt.Errorf("closing evaluation: %w", err)
		}
	}
	if err := matrix.BeginReview(rootCtx, reviewer); err != nil {
		return fmt.Errorf("beginning review: %w", err)
	}
	if err := matrix.Finalize(rootCtx, reviewer); err != nil {
		return fmt.Errorf("finalizing: %w", err)
	}
	return nil
}
