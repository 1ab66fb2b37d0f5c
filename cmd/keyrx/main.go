// Command keyrx is the thin CLI wrapper over the core: compile a DSL
// profile to a sealed artifact, replay it against a recorded scenario,
// or serve it live against a platform backend.
package main

import (
	"context"
	"errors"
	"os"

	charmlog "github.com/charmbracelet/log"

	"github.com/keyrx/keyrx/errs"
)

// Exit codes, per spec.md section 6.
const (
	exitSuccess = 0
	exitLoad    = 1
	exitRuntime = 2
	exitSignal  = 130
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to one of the four codes the CLI
// surface promises. errs.CompileError/LoadError/Diagnostics are
// load-time failures (1); a canceled context means serve's signal
// handler already requested shutdown (130); everything else that made
// it out of a RunE is a runtime/platform failure (2).
func exitCodeFor(err error) int {
	if errors.Is(err, context.Canceled) {
		return exitSignal
	}
	var diag errs.Diagnostics
	var compileErr *errs.CompileError
	var loadErr *errs.LoadError
	switch {
	case errors.As(err, &diag), errors.As(err, &compileErr), errors.As(err, &loadErr):
		return exitLoad
	default:
		return exitRuntime
	}
}

func newLogger() *charmlog.Logger {
	logger := charmlog.New(os.Stderr)
	logger.SetReportTimestamp(true)
	return logger
}
