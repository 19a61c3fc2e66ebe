package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess   = 0 // Run completed, all pairs passed
	ExitRunFailed = 1 // Run completed, one or more pairs failed
	ExitError     = 2 // Configuration or runtime error
)

// RunFailureError indicates the benchmark executed, but one or more
// (model, case) pairs ended in a failed state.
type RunFailureError struct {
	Message string
}

func (e *RunFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var runFailure *RunFailureError
		if errors.As(err, &runFailure) {
			os.Exit(ExitRunFailed)
		}
		os.Exit(ExitError)
	}
}
