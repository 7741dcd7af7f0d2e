package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/gridcalc"
	"github.com/vogtb/go-spreadsheet/packages/gridcalc/internal/config"
)

var (
	evalOutput     string
	evalShowPasses bool
	evalQueries    []string
)

var evalCmd = &cobra.Command{
	Use:   "eval <cell=input>...",
	Short: "Apply cell assignments to a fresh table and print the results",
	Long: `Apply cell assignments, in order, to a fresh table and print every
occupied cell with its computed value.

Each assignment is CELL=INPUT. An INPUT starting with '=' is a formula,
anything that parses as a number is a number, everything else is text,
and an empty INPUT clears the cell.

Behavior:
  - A parse error or a circular reference stops at the offending
    assignment and returns exit code 1.
  - Returns exit code 2 when any cell or query ends in an error.
  - Use --query to evaluate extra formulas against the final table
    without storing them.
  - Use --show-passes to print the cells recalculated by each assignment.

Examples:
  gridcalc eval A1=1 A2=2 B1==SUM(A1:A2)
  gridcalc eval A1=10 B1==A1*2 A1=15 --show-passes
  gridcalc eval A1=4 -q "=A1*A1" -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVarP(&evalOutput, "output", "o", "text", "output format: text, json or yaml")
	evalCmd.Flags().BoolVar(&evalShowPasses, "show-passes", false, "print the cells recalculated by each assignment")
	evalCmd.Flags().StringArrayVarP(&evalQueries, "query", "q", nil, "formula to evaluate against the final table (repeatable)")
}

type assignment struct {
	addr  gridcalc.CellAddress
	input string
}

func parseAssignment(arg string) (assignment, error) {
	ref, input, ok := strings.Cut(arg, "=")
	if !ok {
		return assignment{}, fmt.Errorf("assignment %q: expected CELL=INPUT", arg)
	}
	addr, err := gridcalc.ParseA1(ref)
	if err != nil {
		return assignment{}, fmt.Errorf("assignment %q: %w", arg, err)
	}
	return assignment{addr: addr, input: input}, nil
}

type cellReport struct {
	Address string  `json:"address" yaml:"address"`
	Type    string  `json:"type" yaml:"type"`
	Input   string  `json:"input" yaml:"input"`
	Value   float64 `json:"value" yaml:"value"`
	Display string  `json:"display" yaml:"display"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

type outcomeReport struct {
	Address string  `json:"address" yaml:"address"`
	Value   float64 `json:"value" yaml:"value"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

type passReport struct {
	Assignment string          `json:"assignment" yaml:"assignment"`
	Outcomes   []outcomeReport `json:"outcomes" yaml:"outcomes"`
}

type queryReport struct {
	Formula string  `json:"formula" yaml:"formula"`
	Value   float64 `json:"value" yaml:"value"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

type evalReport struct {
	Cells   []cellReport  `json:"cells" yaml:"cells"`
	Passes  []passReport  `json:"passes,omitempty" yaml:"passes,omitempty"`
	Queries []queryReport `json:"queries,omitempty" yaml:"queries,omitempty"`
	Errors  int           `json:"errors" yaml:"errors"`
}

func errorText(e *gridcalc.EvalError) string {
	if e == nil {
		return ""
	}
	return e.Code().String() + " " + e.Error()
}

func runEval(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	switch evalOutput {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", evalOutput)
	}

	assignments := make([]assignment, len(args))
	for i, arg := range args {
		a, err := parseAssignment(arg)
		if err != nil {
			return err
		}
		assignments[i] = a
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := config.NewStore(cfg.Engine.Store)
	if err != nil {
		return err
	}
	table := gridcalc.NewTable(gridcalc.WithStore(store), gridcalc.WithLogger(cfg.NewLogger(cmd.ErrOrStderr())))

	var report evalReport
	for i, a := range assignments {
		outcomes, err := table.SetCell(a.addr, gridcalc.CellFromInput(a.input))
		if err != nil {
			return fmt.Errorf("%s: %w", args[i], err)
		}
		if evalShowPasses {
			pass := passReport{Assignment: args[i], Outcomes: make([]outcomeReport, len(outcomes))}
			for j, o := range outcomes {
				pass.Outcomes[j] = outcomeReport{Address: o.Address.String(), Value: o.Value, Error: errorText(o.Err)}
			}
			report.Passes = append(report.Passes, pass)
		}
	}

	views, err := table.Snapshot()
	if err != nil {
		return err
	}
	for _, v := range views {
		cr := cellReport{
			Address: v.Address.String(),
			Type:    v.Cell.Type.String(),
			Value:   v.Cell.Value(),
			Display: v.Cell.Display(),
			Error:   errorText(v.Cell.Err),
		}
		switch v.Cell.Type {
		case gridcalc.CellTypeFormula:
			cr.Input = v.Cell.Formula
		case gridcalc.CellTypeText:
			cr.Input = v.Cell.Text
		default:
			cr.Input = v.Cell.Display()
		}
		if cr.Error != "" {
			report.Errors++
		}
		report.Cells = append(report.Cells, cr)
	}

	for _, q := range evalQueries {
		qr := queryReport{Formula: q}
		value, err := table.EvalFormula(q)
		var evalErr *gridcalc.EvalError
		switch {
		case errors.As(err, &evalErr):
			qr.Error = errorText(evalErr)
			report.Errors++
		case err != nil:
			return fmt.Errorf("query %q: %w", q, err)
		default:
			qr.Value = value
		}
		report.Queries = append(report.Queries, qr)
	}

	out := cmd.OutOrStdout()
	switch evalOutput {
	case "json":
		err = jsonPrint(out, report)
	case "yaml":
		err = yamlPrint(out, report)
	default:
		err = textPrint(out, report)
	}
	if err != nil {
		return err
	}

	if report.Errors > 0 {
		return &ExitError{Code: 2}
	}
	return nil
}

func textPrint(w io.Writer, report evalReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	for _, pass := range report.Passes {
		fmt.Fprintf(tw, "pass\t%s\t", pass.Assignment)
		if len(pass.Outcomes) == 0 {
			fmt.Fprint(tw, "-")
		}
		for i, o := range pass.Outcomes {
			if i > 0 {
				fmt.Fprint(tw, ", ")
			}
			if o.Error != "" {
				fmt.Fprintf(tw, "%s=%s", o.Address, strings.Fields(o.Error)[0])
			} else {
				fmt.Fprintf(tw, "%s=%g", o.Address, o.Value)
			}
		}
		fmt.Fprintln(tw)
	}

	for _, c := range report.Cells {
		if c.Type == gridcalc.CellTypeFormula.String() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Address, c.Input, c.Display)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t\n", c.Address, c.Display)
		}
	}

	for _, q := range report.Queries {
		if q.Error != "" {
			fmt.Fprintf(tw, "?\t%s\t%s\n", q.Formula, strings.Fields(q.Error)[0])
		} else {
			fmt.Fprintf(tw, "?\t%s\t%g\n", q.Formula, q.Value)
		}
	}

	return tw.Flush()
}
