package gridcalc

import (
	"fmt"
	"math"
	"strings"
)

// ColumnName converts a zero-based column index to letters (0 -> A,
// 25 -> Z, 26 -> AA)
func ColumnName(col uint32) string {
	var buf [8]byte
	i := len(buf)
	n := uint64(col) + 1
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// splitCellRef splits "AB12" into its letter and digit parts. both parts
// must be non-empty and nothing else may follow the digits.
func splitCellRef(s string) (letters, digits string, ok bool) {
	letterEnd := 0
	for letterEnd < len(s) && isLetter(s[letterEnd]) {
		letterEnd++
	}
	if letterEnd == 0 || letterEnd == len(s) {
		return "", "", false
	}
	for i := letterEnd; i < len(s); i++ {
		if !isDigit(s[i]) {
			return "", "", false
		}
	}
	return s[:letterEnd], s[letterEnd:], true
}

// parseCellRef converts an A1 reference into a zero-based address. it
// fails on row 0 and on rows or columns that do not fit a uint32.
func parseCellRef(s string) (CellAddress, error) {
	letters, digits, ok := splitCellRef(s)
	if !ok {
		return CellAddress{}, fmt.Errorf("%q is not a cell reference", s)
	}

	var col uint64
	for i := 0; i < len(letters); i++ {
		col = col*26 + uint64(toUpperByte(letters[i])-'A') + 1
		if col > math.MaxUint32+1 {
			return CellAddress{}, fmt.Errorf("column %s out of range", letters)
		}
	}

	var row uint64
	for i := 0; i < len(digits); i++ {
		row = row*10 + uint64(digits[i]-'0')
		if row > math.MaxUint32 {
			return CellAddress{}, fmt.Errorf("row %s out of range", digits)
		}
	}
	if row == 0 {
		return CellAddress{}, fmt.Errorf("row 0 does not exist in %q", s)
	}

	return CellAddress{Row: uint32(row - 1), Column: uint32(col - 1)}, nil
}

// ParseA1 parses an A1 reference such as "B12" into a CellAddress
func ParseA1(s string) (CellAddress, error) {
	addr, err := parseCellRef(strings.TrimSpace(s))
	if err != nil {
		return CellAddress{}, &AppError{Code: InvalidArgument, Message: "invalid address", Err: err}
	}
	return addr, nil
}

// MustParseA1 is ParseA1 for literals known to be valid
func MustParseA1(s string) CellAddress {
	addr, err := ParseA1(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// ParseRange parses "A1:B2" (or a single cell, as a 1x1 range) into a
// normalized RangeAddress
func ParseRange(s string) (RangeAddress, error) {
	s = strings.TrimSpace(s)
	first, second, found := strings.Cut(s, ":")
	start, err := parseCellRef(first)
	if err != nil {
		return RangeAddress{}, &AppError{Code: InvalidArgument, Message: "invalid range", Err: err}
	}
	if !found {
		return NewRangeAddress(start, start), nil
	}
	end, err := parseCellRef(second)
	if err != nil {
		return RangeAddress{}, &AppError{Code: InvalidArgument, Message: "invalid range", Err: err}
	}
	return NewRangeAddress(start, end), nil
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func toUpperByte(ch byte) byte {
	if ch >= 'a' && ch <= 'z' {
		return ch - ('a' - 'A')
	}
	return ch
}
