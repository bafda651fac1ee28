package vm

import "fmt"

// ErrorType represents the type of runtime error.
type ErrorType string

const (
	ErrorStackOverflow    ErrorType = "STACK_OVERFLOW"
	ErrorStackUnderflow   ErrorType = "STACK_UNDERFLOW"
	ErrorDivisionByZero   ErrorType = "DIVISION_BY_ZERO"
	ErrorIndexOutOfRange  ErrorType = "INDEX_OUT_OF_RANGE"
	ErrorInvalidOpcode    ErrorType = "INVALID_OPCODE"
	ErrorUnsupported      ErrorType = "UNSUPPORTED"
	ErrorUndefinedKernel  ErrorType = "UNDEFINED_KERNEL"
	ErrorStepLimit        ErrorType = "STEP_LIMIT"
	ErrorInvalidOperation ErrorType = "INVALID_OPERATION"
)

// RuntimeError represents a runtime error in the machine. PC is the address
// of the failing instruction.
type RuntimeError struct {
	Type    ErrorType
	Message string
	PC      int
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.PC >= 0 {
		return fmt.Sprintf("[%s] %s at %04x", e.Type, e.Message, e.PC)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(errType ErrorType, pc int, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		PC:      pc,
	}
}
