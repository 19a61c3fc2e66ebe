package tools

import (
	"errors"
	"fmt"
	"strings"
)

// InvocationError reports a failed tool call: either an upstream service
// failure in live mode, or a sandbox cache miss. Sandbox misses are hard
// errors; the pipeline never fabricates tool data.
type InvocationError struct {
	Tool        string
	Fingerprint string
	Reason      string
	Err         error
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("tool %s: %s", e.Tool, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvocationError) Unwrap() error { return e.Err }

// IsInvocationError reports whether err wraps an InvocationError.
func IsInvocationError(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}

// SchemaViolationError reports tool arguments that do not satisfy the
// tool's declared schema. It is non-fatal: the executor records the call
// as failed and the tool-use metric scores it as a compliance failure.
type SchemaViolationError struct {
	Tool       string
	Violations []string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("tool %s: arguments violate schema: %s", e.Tool, strings.Join(e.Violations, "; "))
}

// IsSchemaViolation reports whether err wraps a SchemaViolationError.
func IsSchemaViolation(err error) bool {
	var sv *SchemaViolationError
	return errors.As(err, &sv)
}
