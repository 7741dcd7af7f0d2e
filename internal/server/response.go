package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vogtb/go-spreadsheet/packages/gridcalc"
)

// CellError describes an evaluation error stored in a formula cell
type CellError struct {
	Code   string `json:"code"`
	Kind   string `json:"kind"`
	Source string `json:"source,omitempty"`
}

func newCellError(e *gridcalc.EvalError) *CellError {
	if e == nil {
		return nil
	}
	ce := &CellError{Code: e.Code().String(), Kind: e.Kind.String()}
	if e.Kind == gridcalc.EvalErrorPropagated {
		ce.Source = e.Source.String()
	}
	return ce
}

// CellView is the wire form of a cell
type CellView struct {
	Address string     `json:"address"`
	Type    string     `json:"type"`
	Value   float64    `json:"value"`
	Display string     `json:"display"`
	Text    string     `json:"text,omitempty"`
	Formula string     `json:"formula,omitempty"`
	Error   *CellError `json:"error,omitempty"`
}

func newCellView(addr gridcalc.CellAddress, cell gridcalc.Cell) CellView {
	return CellView{
		Address: addr.String(),
		Type:    cell.Type.String(),
		Value:   cell.Value(),
		Display: cell.Display(),
		Text:    cell.Text,
		Formula: cell.Formula,
		Error:   newCellError(cell.Err),
	}
}

// Outcome is the wire form of one re-evaluated formula cell
type Outcome struct {
	Address string     `json:"address"`
	Value   float64    `json:"value"`
	Error   *CellError `json:"error,omitempty"`
}

func newOutcomes(outcomes []gridcalc.Outcome) []Outcome {
	out := make([]Outcome, len(outcomes))
	for i, o := range outcomes {
		out[i] = Outcome{Address: o.Address.String(), Value: o.Value, Error: newCellError(o.Err)}
	}
	return out
}

// CellInput is the body of PUT /cells/{addr}. at most one field may be
// set; an empty object clears the cell.
type CellInput struct {
	Number  *float64 `json:"number,omitempty"`
	Text    *string  `json:"text,omitempty"`
	Formula *string  `json:"formula,omitempty"`
}

func (in CellInput) cell() (gridcalc.Cell, error) {
	set := 0
	cell := gridcalc.EmptyCell()
	if in.Number != nil {
		set++
		cell = gridcalc.NumberCell(*in.Number)
	}
	if in.Text != nil {
		set++
		cell = gridcalc.TextCell(*in.Text)
	}
	if in.Formula != nil {
		set++
		cell = gridcalc.FormulaCell(*in.Formula)
	}
	if set > 1 {
		return gridcalc.Cell{}, gridcalc.NewApplicationError(gridcalc.InvalidArgument, "set only one of number, text or formula")
	}
	return cell, nil
}

// ErrorBody is the payload of every non-2xx response
type ErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Kind    string   `json:"kind,omitempty"`
	Offset  *int     `json:"offset,omitempty"`
	Members []string `json:"members,omitempty"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

var appErrorStatus = map[gridcalc.AppErrorCode]int{
	gridcalc.InvalidArgument:    http.StatusBadRequest,
	gridcalc.NotFound:           http.StatusNotFound,
	gridcalc.FailedPrecondition: http.StatusConflict,
	gridcalc.Unimplemented:      http.StatusNotImplemented,
	gridcalc.Internal:           http.StatusInternalServerError,
}

// errorStatus maps an engine error onto an HTTP status and body
func errorStatus(err error) (int, ErrorBody) {
	var (
		parseErr *gridcalc.ParseError
		cycleErr *gridcalc.CycleError
		appErr   *gridcalc.AppError
	)

	switch {
	case errors.As(err, &parseErr):
		offset := parseErr.Offset
		return http.StatusUnprocessableEntity, ErrorBody{
			Code:    "parse_error",
			Message: parseErr.Error(),
			Kind:    parseErr.Kind.String(),
			Offset:  &offset,
		}
	case errors.As(err, &cycleErr):
		members := make([]string, len(cycleErr.Members))
		for i, m := range cycleErr.Members {
			members[i] = m.String()
		}
		return http.StatusUnprocessableEntity, ErrorBody{
			Code:    "circular_reference",
			Message: cycleErr.Error(),
			Members: members,
		}
	case errors.As(err, &appErr):
		status, ok := appErrorStatus[appErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		return status, ErrorBody{Code: appErr.Code.String(), Message: appErr.Error()}
	}
	return http.StatusInternalServerError, ErrorBody{Code: gridcalc.Internal.String(), Message: err.Error()}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
