// Package hierarchy detects top-level modules in a registry and expands each
// into its instantiation tree.
package hierarchy

// =============================================================================
// EXPANSION GUARD
// =============================================================================
//
// Module records come from user source and may instantiate each other in a
// loop (typos, half-edited files, or a module that instantiates itself). The
// builder keeps the chain of module names currently being expanded; an
// instance whose type is already on that chain becomes an Unresolved node and
// the chain is reported as a Cycle. Recursion depth is therefore bounded by
// the number of distinct modules in the registry.
// =============================================================================

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robert-at-pretension-io/sv-hier/internal/record"
	"github.com/robert-at-pretension-io/sv-hier/internal/registry"
)

// ErrCyclicInstantiation is wrapped by every CycleError.
var ErrCyclicInstantiation = errors.New("cyclic instantiation")

// Cycle is an instantiation that would re-enter a module already being
// expanded. Chain runs from the repeated ancestor down to the instantiating
// module and ends with the repeated name again.
type Cycle struct {
	Top      string   `json:"top"`
	Parent   string   `json:"parent"`
	Instance string   `json:"instance"`
	Chain    []string `json:"chain"`
}

func (c Cycle) String() string {
	return strings.Join(c.Chain, " -> ")
}

// Err returns the cycle as an error.
func (c Cycle) Err() error {
	return &CycleError{Cycle: c}
}

// CycleError reports a Cycle through the error interface.
type CycleError struct {
	Cycle Cycle
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic instantiation under %s: %s (instance %s)", e.Cycle.Top, e.Cycle, e.Cycle.Instance)
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicInstantiation
}

// Forest is the result of Build: one tree per requested top module.
type Forest struct {
	// Tops lists the requested names in request order, without repeats.
	Tops  []string
	Trees map[string]*Node
	// Cycles found while expanding, in discovery order.
	Cycles []Cycle
	// Missing lists requested names with no record in the registry.
	Missing []string
}

// Tree returns the tree built for top.
func (f *Forest) Tree(top string) (*Node, bool) {
	n, ok := f.Trees[top]
	return n, ok
}

// Roots returns the trees in request order.
func (f *Forest) Roots() []*Node {
	roots := make([]*Node, 0, len(f.Tops))
	for _, top := range f.Tops {
		roots = append(roots, f.Trees[top])
	}
	return roots
}

// Builder expands top modules into instantiation trees.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder returns a Builder. A nil logger discards output.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{logger: logger}
}

// Build expands every name in tops, in order. A name with no record yields an
// Unresolved root. Build never fails and always terminates.
func (b *Builder) Build(reg *registry.Registry, tops []string) *Forest {
	forest := &Forest{
		Tops:  make([]string, 0, len(tops)),
		Trees: make(map[string]*Node, len(tops)),
	}

	for _, top := range tops {
		if _, seen := forest.Trees[top]; seen {
			b.logger.Debug("top module requested twice", slog.String("module", top))
			continue
		}
		forest.Tops = append(forest.Tops, top)

		rec, ok := reg.Lookup(top)
		if !ok {
			b.logger.Warn("requested top module not found", slog.String("module", top))
			forest.Missing = append(forest.Missing, top)
			forest.Trees[top] = Unresolved(top, top)
			continue
		}

		ex := &expansion{
			builder: b,
			reg:     reg,
			top:     top,
			onPath:  make(map[string]int),
		}
		ex.push(top)
		children := ex.expand(rec)
		ex.pop()

		forest.Trees[top] = Root(top, rec, children)
		forest.Cycles = append(forest.Cycles, ex.cycles...)
	}
	return forest
}

// expansion is the state of one top module's expansion.
type expansion struct {
	builder *Builder
	reg     *registry.Registry
	top     string
	stack   []string
	onPath  map[string]int
	cycles  []Cycle
}

func (ex *expansion) push(name string) {
	ex.onPath[name] = len(ex.stack)
	ex.stack = append(ex.stack, name)
}

func (ex *expansion) pop() {
	name := ex.stack[len(ex.stack)-1]
	ex.stack = ex.stack[:len(ex.stack)-1]
	delete(ex.onPath, name)
}

func (ex *expansion) expand(rec *record.ModuleRecord) []*Node {
	var children []*Node
	for _, inst := range rec.Instances {
		children = append(children, ex.child(rec, inst))
	}
	return children
}

func (ex *expansion) child(parent *record.ModuleRecord, inst record.Instance) *Node {
	resolved, ok := ex.reg.Lookup(inst.Type)
	if !ok {
		ex.builder.logger.Debug("unresolved instance",
			slog.String("module", parent.Name),
			slog.String("instance", inst.Name),
			slog.String("type", inst.Type))
		return Unresolved(inst.Name, inst.Type)
	}

	if at, active := ex.onPath[inst.Type]; active {
		chain := make([]string, 0, len(ex.stack)-at+1)
		chain = append(chain, ex.stack[at:]...)
		chain = append(chain, inst.Type)
		cycle := Cycle{Top: ex.top, Parent: parent.Name, Instance: inst.Name, Chain: chain}
		ex.cycles = append(ex.cycles, cycle)
		ex.builder.logger.Warn("cyclic instantiation",
			slog.String("top", ex.top),
			slog.String("instance", inst.Name),
			slog.String("chain", cycle.String()),
			slog.Any("error", cycle.Err()))
		return Unresolved(inst.Name, inst.Type)
	}

	if !resolved.HasInstances() {
		return Leaf(inst.Name, resolved)
	}

	ex.push(inst.Type)
	children := ex.expand(resolved)
	ex.pop()
	return Branch(inst.Name, resolved, children)
}
