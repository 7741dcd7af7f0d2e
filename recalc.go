package gridcalc

import (
	"errors"
	"log/slog"
	"time"
)

// PassState is the state of one recalculation pass
type PassState int

const (
	PassIdle PassState = iota
	PassCollecting
	PassOrdering
	PassEvaluating
	PassFailed
)

func (s PassState) String() string {
	switch s {
	case PassIdle:
		return "idle"
	case PassCollecting:
		return "collecting"
	case PassOrdering:
		return "ordering"
	case PassEvaluating:
		return "evaluating"
	case PassFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result of re-evaluating one formula cell during a pass.
// Err is set when the cell now holds an error; Value is then 0.
type Outcome struct {
	Address CellAddress
	Value   float64
	Err     *EvalError
}

// recalcPass drives a single edit through
// Idle -> Collecting -> Ordering -> Evaluating -> Idle, or into Failed
type recalcPass struct {
	id      uint64
	origin  CellAddress
	state   PassState
	started time.Time
	logger  *slog.Logger
}

func (p *recalcPass) transition(next PassState) {
	p.logger.Debug("recalc pass state",
		slog.Uint64("pass", p.id),
		slog.String("cell", p.origin.String()),
		slog.String("from", p.state.String()),
		slog.String("to", next.String()))
	p.state = next
}

// SetCell writes content to addr and recalculates everything that depends
// on it. the returned outcomes follow evaluation order. a *ParseError or
// *CycleError rejects the edit and leaves the table exactly as it was;
// evaluation errors are stored in the failing cells and do not stop the
// pass.
func (t *Table) SetCell(addr CellAddress, content Cell) ([]Outcome, error) {
	var ast ASTNode
	if content.Type == CellTypeFormula {
		var err error
		if ast, err = Parse(content.Formula); err != nil {
			return nil, err
		}
	}

	t.passes++
	pass := &recalcPass{id: t.passes, origin: addr, state: PassIdle, started: time.Now(), logger: t.logger}

	pass.transition(PassCollecting)
	prevCells, prevRanges, hadReads := t.graph.Reads(addr)
	if ast != nil {
		cells, ranges := References(ast)
		t.graph.Record(addr, cells, ranges)
	} else {
		t.graph.Remove(addr)
	}
	affected := t.graph.AffectedBy([]CellAddress{addr})

	pass.transition(PassOrdering)
	order, err := t.graph.TopoOrder(append(affected, addr))
	if err != nil {
		// roll the graph back; the store was never touched
		if hadReads {
			t.graph.Record(addr, prevCells, prevRanges)
		} else {
			t.graph.Remove(addr)
		}
		pass.transition(PassFailed)

		var cycle *CycleError
		if errors.As(err, &cycle) {
			t.logger.Debug("edit rejected", slog.String("cell", addr.String()), slog.String("cycle", cycle.Error()))
		}
		return nil, err
	}

	pass.transition(PassEvaluating)
	if ast != nil {
		t.formulas.Set(addr, ast)
		content.Result, content.Err = 0, nil
	} else {
		t.formulas.Remove(addr)
	}
	t.store.Put(addr, content)

	outcomes := make([]Outcome, 0, len(order))
	for _, cellAddr := range order {
		node, isFormula := t.formulas.AST(cellAddr)
		if !isFormula {
			continue
		}
		outcomes = append(outcomes, t.evaluateCell(cellAddr, node))
	}

	pass.transition(PassIdle)
	t.logger.Debug("recalc pass done",
		slog.Uint64("pass", pass.id),
		slog.String("cell", addr.String()),
		slog.Int("evaluated", len(outcomes)),
		slog.Duration("elapsed", time.Since(pass.started)))

	return outcomes, nil
}

// evaluateCell recomputes one formula cell and writes the result back
func (t *Table) evaluateCell(addr CellAddress, node ASTNode) Outcome {
	cell := t.store.Get(addr)
	if cell.Type != CellTypeFormula {
		// the store lost the source; rebuild it from the AST
		cell = FormulaCell(node.String())
	}

	value, err := Evaluate(node, t.store)
	if err != nil {
		var evalErr *EvalError
		if !errors.As(err, &evalErr) {
			t.logger.Error("formula evaluation failed", slog.String("cell", addr.String()), slog.Any("error", err))
			evalErr = newEvalError(EvalErrorInternal)
		}
		cell.Result, cell.Err = 0, evalErr
		t.store.Put(addr, cell)
		return Outcome{Address: addr, Err: evalErr}
	}

	cell.Result, cell.Err = value, nil
	t.store.Put(addr, cell)
	return Outcome{Address: addr, Value: value}
}
