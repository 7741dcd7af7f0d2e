package gridcalc

import (
	"iter"
	"math/bits"
	"slices"
)

// ChunkKey represents the key for indexing chunks in a ChunkStore
type ChunkKey struct {
	ChunkRow uint32
	ChunkCol uint32
}

const (
	ChunkRows uint32 = 256                   // rows per chunk - power of 2 for efficient modulo
	ChunkCols uint32 = 256                   // columns per chunk - matches typical viewport size
	ChunkSize        = ChunkRows * ChunkCols // 65536 cells per chunk
)

// Chunk represents a 256x256 region of cells using structure-of-arrays
// layout. only Types and OccupiedBitmap exist initially; the value arrays
// are allocated the first time a cell needs them.
type Chunk struct {
	// always allocated fields.

	Types          []uint8  // CellType for each position
	NonEmptyCount  int      // count of non-empty cells
	OccupiedBitmap []uint64 // one bit per position

	// lazily allocated fields.

	Numbers   []float64             // NUMBER values and FORMULA results
	StringIDs []uint32              // TEXT contents and FORMULA sources
	Errors    map[uint32]*EvalError // FORMULA errors by position
}

// ChunkStore is a CellStore optimized for clustered data.
//
// architecture:
// - cells are partitioned into 256x256 chunks for spatial locality
// - each chunk allocates arrays lazily based on the cell types present
// - text and formula sources are interned in a StringTable
//
// a chunk is dropped as soon as its last cell is cleared.
type ChunkStore struct {
	chunks      map[ChunkKey]*Chunk
	strings     *StringTable
	totalCells  int
	cellsByType [4]uint32
}

func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks:  make(map[ChunkKey]*Chunk),
		strings: NewStringTable(),
	}
}

// locate splits an address into its chunk key and position inside the
// chunk. positions are column-first.
func locate(addr CellAddress) (ChunkKey, uint32) {
	key := ChunkKey{ChunkRow: addr.Row / ChunkRows, ChunkCol: addr.Column / ChunkCols}
	localRow := addr.Row % ChunkRows
	localCol := addr.Column % ChunkCols
	return key, localCol*ChunkRows + localRow
}

// addressOf is the inverse of locate
func addressOf(key ChunkKey, idx uint32) CellAddress {
	return CellAddress{
		Row:    key.ChunkRow*ChunkRows + idx%ChunkRows,
		Column: key.ChunkCol*ChunkCols + idx/ChunkRows,
	}
}

// getChunk retrieves or creates a chunk
func (s *ChunkStore) getChunk(key ChunkKey) *Chunk {
	chunk, exists := s.chunks[key]
	if !exists {
		chunk = &Chunk{
			Types:          make([]uint8, ChunkSize),
			OccupiedBitmap: make([]uint64, (ChunkSize+63)/64),
		}
		s.chunks[key] = chunk
	}
	return chunk
}

func (s *ChunkStore) Get(addr CellAddress) Cell {
	key, idx := locate(addr)
	chunk, exists := s.chunks[key]
	if !exists {
		return EmptyCell()
	}
	return s.cellAt(chunk, idx)
}

func (s *ChunkStore) cellAt(chunk *Chunk, idx uint32) Cell {
	cell := Cell{Type: CellType(chunk.Types[idx])}

	switch cell.Type {
	case CellTypeNumber:
		cell.Number = numberAt(chunk, idx)
	case CellTypeText:
		cell.Text, _ = s.strings.Lookup(chunk.StringIDs[idx])
	case CellTypeFormula:
		cell.Formula, _ = s.strings.Lookup(chunk.StringIDs[idx])
		if err, ok := chunk.Errors[idx]; ok {
			cell.Err = err
		} else {
			cell.Result = numberAt(chunk, idx)
		}
	}

	return cell
}

// numberAt reads the numeric slot, which stays unallocated while every
// value in the chunk is 0
func numberAt(chunk *Chunk, idx uint32) float64 {
	if chunk.Numbers == nil {
		return 0
	}
	return chunk.Numbers[idx]
}

func (s *ChunkStore) Put(addr CellAddress, cell Cell) {
	if cell.IsEmpty() {
		s.remove(addr)
		return
	}

	key, idx := locate(addr)
	chunk := s.getChunk(key)

	oldType := CellType(chunk.Types[idx])
	if oldType == CellTypeEmpty {
		chunk.NonEmptyCount++
		s.totalCells++
	} else {
		s.cellsByType[oldType]--
	}

	// intern the new string before releasing the old one so rewriting the
	// same formula never drops its entry
	var stringID uint32
	switch cell.Type {
	case CellTypeText:
		stringID = s.strings.Intern(cell.Text)
	case CellTypeFormula:
		stringID = s.strings.Intern(cell.Formula)
	}
	if oldType == CellTypeText || oldType == CellTypeFormula {
		s.strings.Release(chunk.StringIDs[idx])
	}

	if stringID != 0 {
		if chunk.StringIDs == nil {
			chunk.StringIDs = make([]uint32, ChunkSize)
		}
		chunk.StringIDs[idx] = stringID
	} else if chunk.StringIDs != nil {
		chunk.StringIDs[idx] = 0
	}

	if chunk.Errors != nil {
		delete(chunk.Errors, idx)
	}

	switch cell.Type {
	case CellTypeNumber:
		s.setNumber(chunk, idx, cell.Number)
	case CellTypeFormula:
		if cell.Err != nil {
			if chunk.Errors == nil {
				chunk.Errors = make(map[uint32]*EvalError)
			}
			chunk.Errors[idx] = cell.Err
			s.setNumber(chunk, idx, 0)
		} else {
			s.setNumber(chunk, idx, cell.Result)
		}
	}

	chunk.Types[idx] = uint8(cell.Type)
	s.cellsByType[cell.Type]++
	chunk.OccupiedBitmap[idx/64] |= 1 << (idx % 64)
}

func (s *ChunkStore) setNumber(chunk *Chunk, idx uint32, v float64) {
	if chunk.Numbers == nil {
		if v == 0 {
			return
		}
		chunk.Numbers = make([]float64, ChunkSize)
	}
	chunk.Numbers[idx] = v
}

// remove clears a cell and drops its chunk when it becomes empty
func (s *ChunkStore) remove(addr CellAddress) {
	key, idx := locate(addr)
	chunk, exists := s.chunks[key]
	if !exists {
		return
	}

	cellType := CellType(chunk.Types[idx])
	if cellType == CellTypeEmpty {
		return
	}

	if cellType == CellTypeText || cellType == CellTypeFormula {
		s.strings.Release(chunk.StringIDs[idx])
		chunk.StringIDs[idx] = 0
	}
	if chunk.Numbers != nil {
		chunk.Numbers[idx] = 0
	}
	if chunk.Errors != nil {
		delete(chunk.Errors, idx)
	}

	chunk.Types[idx] = uint8(CellTypeEmpty)
	chunk.NonEmptyCount--
	chunk.OccupiedBitmap[idx/64] &^= 1 << (idx % 64)
	s.totalCells--
	s.cellsByType[cellType]--

	if chunk.NonEmptyCount == 0 {
		delete(s.chunks, key)
	}
}

// GetRange scans the occupancy bitmaps of the chunks overlapping r
func (s *ChunkStore) GetRange(r RangeAddress) iter.Seq2[CellAddress, Cell] {
	return func(yield func(CellAddress, Cell) bool) {
		for _, addr := range s.occupied(r) {
			if !yield(addr, s.Get(addr)) {
				return
			}
		}
	}
}

// All yields every occupied cell in row-major order
func (s *ChunkStore) All() iter.Seq2[CellAddress, Cell] {
	return s.GetRange(RangeAddress{EndRow: ^uint32(0), EndColumn: ^uint32(0)})
}

// occupied returns the occupied addresses inside r, sorted row-major
func (s *ChunkStore) occupied(r RangeAddress) []CellAddress {
	var result []CellAddress
	for key, chunk := range s.chunks {
		bounds := RangeAddress{
			StartRow:    key.ChunkRow * ChunkRows,
			StartColumn: key.ChunkCol * ChunkCols,
			EndRow:      key.ChunkRow*ChunkRows + ChunkRows - 1,
			EndColumn:   key.ChunkCol*ChunkCols + ChunkCols - 1,
		}
		if !bounds.Overlaps(r) {
			continue
		}

		for word, bitsSet := range chunk.OccupiedBitmap {
			for bitsSet != 0 {
				bit := uint32(bits.TrailingZeros64(bitsSet))
				bitsSet &^= 1 << bit
				addr := addressOf(key, uint32(word)*64+bit)
				if r.Contains(addr) {
					result = append(result, addr)
				}
			}
		}
	}
	slices.SortFunc(result, compareAddresses)
	return result
}

// Len returns the total number of non-empty cells
func (s *ChunkStore) Len() int {
	return s.totalCells
}

// CellTypeCount returns the number of cells of the given type
func (s *ChunkStore) CellTypeCount(t CellType) uint32 {
	if int(t) < len(s.cellsByType) {
		return s.cellsByType[t]
	}
	return 0
}

// ChunkCount returns the number of allocated chunks
func (s *ChunkStore) ChunkCount() int {
	return len(s.chunks)
}

// Strings exposes the intern table for diagnostics
func (s *ChunkStore) Strings() *StringTable {
	return s.strings
}
