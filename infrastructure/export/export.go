// Package export renders sealed evaluation results for consumption
// outside the engine: human-readable tables for committee review, CSV
// for spreadsheet import, and JSON for downstream systems.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/openprocure/evalmatrix/internal/domain"
)

// Format selects the output encoding for exported results.
type Format string

// Supported output formats.
const (
	TableOut Format = "table"
	CSVOut   Format = "csv"
	JSONOut  Format = "json"
)

// Options controls result rendering.
type Options struct {
	// Format selects the encoding. Zero value renders a table.
	Format Format

	// Precision is the number of decimal places for scores.
	Precision int

	// UseColors enables ANSI color on recommendation cells in table
	// output. Ignored for CSV and JSON.
	UseColors bool
}

// DefaultOptions returns table output with two-decimal scores.
func DefaultOptions() Options {
	return Options{Format: TableOut, Precision: 2}
}

// WriteResults renders a results snapshot to w, dispatching on the
// configured output format.
func WriteResults(w io.Writer, results domain.MatrixResults, opts Options) error {
	if opts.Precision <= 0 {
		opts.Precision = 2
	}
	switch opts.Format {
	case JSONOut:
		if err := writeJSONResults(w, results); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case CSVOut:
		csvWriter := csv.NewWriter(w)
		defer csvWriter.Flush()
		if err := writeCSVResults(csvWriter, results, opts.Precision); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		return writeResultsTable(w, results, opts)
	}
	return nil
}

// writeResultsTable renders the rankings as a human-readable table
// followed by the matrix-level summary lines.
func writeResultsTable(w io.Writer, results domain.MatrixResults, opts Options) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{
		"Rank",
		"Vendor",
		"Score",
		"Variance",
		"Compliant",
		"Consensus",
		"Evaluators",
		"Recommendation",
	})

	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var green, yellow, red func(...any) string
	if opts.UseColors {
		green = color.New(color.FgGreen).SprintFunc()
		yellow = color.New(color.FgYellow).SprintFunc()
		red = color.New(color.FgRed).SprintFunc()
	} else {
		green = fmt.Sprint
		yellow = fmt.Sprint
		red = fmt.Sprint
	}

	var data [][]string
	for _, r := range results.Rankings {
		var rec string
		switch r.Recommendation {
		case domain.RecommendAward:
			rec = green(strings.ToUpper(string(r.Recommendation)))
		case domain.RecommendConsider:
			rec = yellow(string(r.Recommendation))
		default:
			rec = red(string(r.Recommendation))
		}
		data = append(data, []string{
			strconv.Itoa(r.Rank),
			r.VendorID,
			formatFloat(r.WeightedScore, opts.Precision),
			formatFloat(r.Variance, opts.Precision),
			formatBool(r.TechnicalCompliance),
			formatBool(r.ConsensusReached),
			strconv.Itoa(r.EvaluatorCount),
			rec,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Evaluated %d of %d expected submissions across %d vendors\n",
		results.TotalEvaluated, results.ExpectedSubmissions, len(results.Rankings)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Average score: %s, mean variance: %s, consensus reached: %v\n",
		formatFloat(results.AverageScore, opts.Precision),
		formatFloat(results.ScoreVariance, opts.Precision),
		results.ConsensusReached); err != nil {
		return err
	}
	if results.RecommendedAward != "" {
		if _, err := fmt.Fprintf(w, "Recommended award: %s\n", results.RecommendedAward); err != nil {
			return err
		}
	}
	return nil
}

// writeCSVResults writes the flattened export rows to a CSV writer.
func writeCSVResults(w *csv.Writer, results domain.MatrixResults, precision int) error {
	header := []string{
		"rank",
		"vendor_id",
		"technical_score",
		"final_score",
		"compliant",
		"recommendation",
		"evaluators",
		"consensus",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range results.ExportRows() {
		row := []string{
			strconv.Itoa(r.Rank),
			r.VendorID,
			formatFloat(r.TechnicalScore, precision),
			formatFloat(r.FinalScore, precision),
			strconv.FormatBool(r.Compliant),
			r.Recommendation,
			strconv.Itoa(r.Evaluators),
			strconv.FormatBool(r.Consensus),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// jsonEnvelope wraps the flat rows with the matrix-level summary so a
// single JSON document carries the whole outcome.
type jsonEnvelope struct {
	Rows    []domain.ExportRow   `json:"rows"`
	Summary domain.MatrixResults `json:"summary"`
}

// writeJSONResults marshals the results snapshot to indented JSON.
func writeJSONResults(w io.Writer, results domain.MatrixResults) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonEnvelope{Rows: results.ExportRows(), Summary: results})
}

func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

func formatBool(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
