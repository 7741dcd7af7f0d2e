package gridcalc

// StringTable interns text cell contents and formula sources so that
// repeated strings are stored once. entries are reference counted and
// dropped when the last cell using them goes away.
type StringTable struct {
	ids       map[string]uint32
	values    map[uint32]string
	refCounts map[uint32]int
	nextID    uint32
}

func NewStringTable() *StringTable {
	return &StringTable{
		ids:       make(map[string]uint32),
		values:    make(map[uint32]string),
		refCounts: make(map[uint32]int),
		nextID:    1, // 0 means "no string"
	}
}

// Intern returns the ID for s, adding a reference
func (st *StringTable) Intern(s string) uint32 {
	if id, exists := st.ids[s]; exists {
		st.refCounts[id]++
		return id
	}

	id := st.nextID
	st.ids[s] = id
	st.values[id] = s
	st.refCounts[id] = 1
	st.nextID++

	return id
}

// Lookup resolves an ID back to its string
func (st *StringTable) Lookup(id uint32) (string, bool) {
	s, exists := st.values[id]
	return s, exists
}

// Release drops one reference to id. returns true when the string was
// removed from the table.
func (st *StringTable) Release(id uint32) bool {
	s, exists := st.values[id]
	if !exists {
		return false
	}

	st.refCounts[id]--
	if st.refCounts[id] > 0 {
		return false
	}

	delete(st.ids, s)
	delete(st.values, id)
	delete(st.refCounts, id)
	return true
}

// RefCount returns the number of cells holding id
func (st *StringTable) RefCount(id uint32) int {
	return st.refCounts[id]
}

// Len returns the number of distinct strings
func (st *StringTable) Len() int {
	return len(st.ids)
}
