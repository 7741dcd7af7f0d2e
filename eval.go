package gridcalc

// Evaluator reads cell values out of a store while an AST is evaluated.
// it never writes.
type Evaluator struct {
	store CellStore
}

func NewEvaluator(store CellStore) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate computes the numeric value of node against store. a failure is
// an *EvalError describing what the cell should display.
func Evaluate(node ASTNode, store CellStore) (float64, error) {
	return node.Eval(NewEvaluator(store))
}

// cellValue resolves a single reference. text and empty cells read as 0;
// a formula cell yields its cached result or propagates its error.
func (ev *Evaluator) cellValue(addr CellAddress) (float64, error) {
	cell := ev.store.Get(addr)
	switch cell.Type {
	case CellTypeNumber:
		return cell.Number, nil
	case CellTypeFormula:
		if cell.Err != nil {
			return 0, propagate(addr, cell.Err)
		}
		return cell.Result, nil
	}
	return 0, nil
}

// eachNumber walks the occupied cells of r and feeds every numeric
// contribution to fn. text and empty cells are skipped.
func (ev *Evaluator) eachNumber(r RangeAddress, fn func(float64)) error {
	for addr, cell := range ev.store.GetRange(r) {
		switch cell.Type {
		case CellTypeNumber:
			fn(cell.Number)
		case CellTypeFormula:
			if cell.Err != nil {
				return propagate(addr, cell.Err)
			}
			fn(cell.Result)
		}
	}
	return nil
}
