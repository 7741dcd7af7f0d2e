package gridcalc

import (
	"fmt"
	"strings"
)

// ParseErrorKind classifies why a formula failed to parse
type ParseErrorKind uint8

const (
	ParseErrorUnexpectedToken ParseErrorKind = iota + 1
	ParseErrorUnterminatedExpression
	ParseErrorInvalidReference
)

func (k ParseErrorKind) String() string {
	switch k {
	case ParseErrorUnexpectedToken:
		return "unexpected token"
	case ParseErrorUnterminatedExpression:
		return "unterminated expression"
	case ParseErrorInvalidReference:
		return "invalid reference"
	}
	return "unknown parse error"
}

// ParseError is returned for malformed formula text. Offset is a byte
// offset into the source as written, including any leading '='.
type ParseError struct {
	Kind   ParseErrorKind
	Offset int
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Detail)
}

// CycleError rejects an edit that would close a dependency cycle. Members
// lists the cells of the cycle in traversal order.
type CycleError struct {
	Members []CellAddress
}

func (e *CycleError) Error() string {
	names := make([]string, 0, len(e.Members)+1)
	for _, m := range e.Members {
		names = append(names, m.String())
	}
	if len(e.Members) > 0 {
		names = append(names, e.Members[0].String())
	}
	return "circular reference: " + strings.Join(names, " -> ")
}

// ErrorCode is the spreadsheet-facing code shown in an errored cell
type ErrorCode uint8

const (
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeOther ErrorCode = 8 // #ERROR! - all other errors
)

// ErrorMapper maps error codes to their display strings
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeOther: "#ERROR!",
}

func (c ErrorCode) String() string {
	if s, ok := ErrorMapper[c]; ok {
		return s
	}
	return ErrorMapper[ErrorCodeOther]
}

// EvalErrorKind classifies a per-cell evaluation failure
type EvalErrorKind uint8

const (
	EvalErrorDivideByZero EvalErrorKind = iota + 1
	EvalErrorRangeNotAllowed
	EvalErrorPropagated
	EvalErrorInternal
)

func (k EvalErrorKind) String() string {
	switch k {
	case EvalErrorDivideByZero:
		return "divide by zero"
	case EvalErrorRangeNotAllowed:
		return "range not allowed here"
	case EvalErrorPropagated:
		return "propagated error"
	case EvalErrorInternal:
		return "internal error"
	}
	return "unknown evaluation error"
}

// EvalError is stored in a formula cell whose evaluation failed. for a
// propagated error Source names the errored cell that was read and Root
// keeps the kind of the error that started the chain.
type EvalError struct {
	Kind   EvalErrorKind
	Source CellAddress
	Root   EvalErrorKind
}

func newEvalError(kind EvalErrorKind) *EvalError {
	return &EvalError{Kind: kind, Root: kind}
}

// propagate wraps the error found in cell src so that the reader carries it
func propagate(src CellAddress, cause *EvalError) *EvalError {
	root := cause.Root
	if root == 0 {
		root = cause.Kind
	}
	return &EvalError{Kind: EvalErrorPropagated, Source: src, Root: root}
}

func (e *EvalError) Error() string {
	if e.Kind == EvalErrorPropagated {
		return fmt.Sprintf("%s from %s (%s)", e.Kind, e.Source, e.Root)
	}
	return e.Kind.String()
}

// Code maps the error to its display code
func (e *EvalError) Code() ErrorCode {
	root := e.Root
	if root == 0 {
		root = e.Kind
	}
	switch root {
	case EvalErrorDivideByZero:
		return ErrorCodeDiv0
	case EvalErrorRangeNotAllowed:
		return ErrorCodeValue
	}
	return ErrorCodeOther
}

// AppErrorCode represents gRPC-style error codes for application-level
// errors. codes that make no sense here, like unauthenticated, are skipped.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// InvalidArgument indicates the caller supplied a malformed address,
	// formula or request.
	InvalidArgument AppErrorCode = 3

	// NotFound means a table handle is unknown or was destroyed.
	NotFound AppErrorCode = 5

	// FailedPrecondition indicates the edit was rejected because of the
	// current table state, e.g. it would close a cycle.
	FailedPrecondition AppErrorCode = 9

	// Unimplemented indicates the configured store does not support the
	// operation.
	Unimplemented AppErrorCode = 12

	// Internal means an invariant of the engine was broken.
	Internal AppErrorCode = 13
)

func (c AppErrorCode) String() string {
	switch c {
	case OK:
		return "ok"
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case FailedPrecondition:
		return "failed_precondition"
	case Unimplemented:
		return "unimplemented"
	case Internal:
		return "internal"
	}
	return "unknown"
}

// AppError represents errors at the application level, as opposed to
// formula errors stored in cells
type AppError struct {
	Code    AppErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}
