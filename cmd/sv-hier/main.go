// =============================================================================
// sv-hier - Main Entry Point
// =============================================================================
//
// sv-hier turns per-module records produced by a SystemVerilog parser into
// instantiation hierarchies.
//
// THE PIPELINE:
//   1. Record files are found with the configured glob patterns
//   2. Each entry is checked against the CUE record contract, then decoded
//   3. Modules are registered by name (later declarations win)
//   4. Top modules are detected (or taken from config / --top)
//   5. Each top is expanded into a tree; cycles become unresolved nodes
//   6. OPA evaluates lint rules against the registry and the trees
//
// WHEN A TREE LOOKS WRONG:
//   Check the records first (sv-hier lint reports rejected entries),
//   then the registry overrides, then the tree.
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// exitError ends the process with code after output was already written.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
