package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vogtb/go-spreadsheet/packages/gridcalc"
)

const maxBodyBytes = 1 << 20

type engineResult struct {
	SumResult float64 `json:"sum_result"`
	Message   string  `json:"message"`
}

// handleTestEngine is a smoke test for the engine: A1=10.5, A2=20,
// A3=SUM(A1:A2)
func (s *Server) handleTestEngine(w http.ResponseWriter, r *http.Request) {
	table := gridcalc.NewTable(gridcalc.WithLogger(s.logger))
	a3 := gridcalc.CellAddress{Row: 2}

	steps := []struct {
		addr gridcalc.CellAddress
		cell gridcalc.Cell
	}{
		{gridcalc.CellAddress{Row: 0}, gridcalc.NumberCell(10.5)},
		{gridcalc.CellAddress{Row: 1}, gridcalc.NumberCell(20)},
		{a3, gridcalc.FormulaCell("=SUM(A1:A2)")},
	}
	for _, step := range steps {
		if _, err := table.SetCell(step.addr, step.cell); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, engineResult{
		SumResult: table.GetCellValue(a3),
		Message:   "Calculated via Go engine",
	})
}

type createTableResponse struct {
	Handle string `json:"handle"`
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	h := s.registry.CreateTable()
	s.logger.Debug("table created", "handle", h.String())
	writeJSON(w, http.StatusCreated, createTableResponse{Handle: h.String()})
}

func (s *Server) handleDestroyTable(w http.ResponseWriter, r *http.Request) {
	h, err := gridcalc.ParseHandle(r.PathValue("handle"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.registry.DestroyTable(h); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.hub.closeTable(h)
	w.WriteHeader(http.StatusNoContent)
}

// pathCell resolves the {handle} and {addr} path values
func pathCell(r *http.Request) (gridcalc.Handle, gridcalc.CellAddress, error) {
	h, err := gridcalc.ParseHandle(r.PathValue("handle"))
	if err != nil {
		return gridcalc.Handle{}, gridcalc.CellAddress{}, err
	}
	addr, err := gridcalc.ParseA1(r.PathValue("addr"))
	if err != nil {
		return gridcalc.Handle{}, gridcalc.CellAddress{}, err
	}
	return h, addr, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &gridcalc.AppError{Code: gridcalc.InvalidArgument, Message: "malformed request body", Err: err}
	}
	return nil
}

type setCellResponse struct {
	Cell     CellView  `json:"cell"`
	Outcomes []Outcome `json:"outcomes"`
}

func (s *Server) handleSetCell(w http.ResponseWriter, r *http.Request) {
	h, addr, err := pathCell(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var in CellInput
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	content, err := in.cell()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	outcomes, err := s.registry.SetCell(h, addr, content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cell, err := s.registry.GetCell(h, addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := setCellResponse{Cell: newCellView(addr, cell), Outcomes: newOutcomes(outcomes)}
	s.hub.publish(h, Event{Cell: resp.Cell, Outcomes: resp.Outcomes})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCell(w http.ResponseWriter, r *http.Request) {
	h, addr, err := pathCell(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cell, err := s.registry.GetCell(h, addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCellView(addr, cell))
}

type snapshotResponse struct {
	Cells []CellView `json:"cells"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	h, err := gridcalc.ParseHandle(r.PathValue("handle"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views, err := s.registry.Snapshot(h)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := snapshotResponse{Cells: make([]CellView, len(views))}
	for i, v := range views {
		resp.Cells[i] = newCellView(v.Address, v.Cell)
	}
	writeJSON(w, http.StatusOK, resp)
}

type evalRequest struct {
	Formula string `json:"formula"`
}

type evalResponse struct {
	Value float64    `json:"value"`
	Error *CellError `json:"error,omitempty"`
}

// handleEval evaluates a formula against the table without storing it.
// evaluation errors are part of a successful answer, just like in a cell.
func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	h, err := gridcalc.ParseHandle(r.PathValue("handle"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req evalRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	value, err := s.registry.EvalFormula(h, req.Formula)
	var evalErr *gridcalc.EvalError
	switch {
	case errors.As(err, &evalErr):
		writeJSON(w, http.StatusOK, evalResponse{Error: newCellError(evalErr)})
	case err != nil:
		s.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, evalResponse{Value: value})
	}
}
