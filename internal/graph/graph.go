// Package graph runs a fixed directed acyclic graph of named nodes over
// a shared state. Nodes return typed patches rather than mutating the
// state; patches are folded in by a caller-supplied apply function, so
// concurrent branches merge instead of clobbering each other.
//
// A node with several predecessors runs only once every predecessor has
// completed. Node errors never halt the graph: they are converted to a
// degraded patch through the builder's error handler and recorded there.
package graph

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NodeFunc computes a partial state update from a read-only snapshot of
// the current state. Implementations must not retain or mutate s.
type NodeFunc[S, P any] func(ctx context.Context, s S) (P, error)

// ApplyFunc folds one node's patch into the state under the executor's
// single applier goroutine.
type ApplyFunc[S, P any] func(s *S, p P)

// ErrorFunc converts an error that escaped a node into the degraded
// patch recorded in its place.
type ErrorFunc[P any] func(node string, err error) P

// Builder accumulates nodes and edges before compilation.
type Builder[S, P any] struct {
	nodes   map[string]NodeFunc[S, P]
	order   []string
	preds   map[string][]string
	succs   map[string][]string
	entry   string
	finish  string
	apply   ApplyFunc[S, P]
	onError ErrorFunc[P]
	errs    []error
}

// NewBuilder creates a Builder; apply is required, onError handles any
// error (or panic) escaping a node body.
func NewBuilder[S, P any](apply ApplyFunc[S, P], onError ErrorFunc[P]) *Builder[S, P] {
	return &Builder[S, P]{
		nodes:   make(map[string]NodeFunc[S, P]),
		preds:   make(map[string][]string),
		succs:   make(map[string][]string),
		apply:   apply,
		onError: onError,
	}
}

// AddNode registers a named node. Duplicate names are a compile error.
func (b *Builder[S, P]) AddNode(name string, fn NodeFunc[S, P]) *Builder[S, P] {
	if _, dup := b.nodes[name]; dup {
		b.errs = append(b.errs, eris.Errorf("graph: duplicate node %q", name))
		return b
	}
	b.nodes[name] = fn
	b.order = append(b.order, name)
	return b
}

// AddEdge declares that to runs after from.
func (b *Builder[S, P]) AddEdge(from, to string) *Builder[S, P] {
	b.preds[to] = append(b.preds[to], from)
	b.succs[from] = append(b.succs[from], to)
	return b
}

// AddJoin declares a fan-in: to runs only after every node in from has
// completed.
func (b *Builder[S, P]) AddJoin(from []string, to string) *Builder[S, P] {
	for _, f := range from {
		b.AddEdge(f, to)
	}
	return b
}

// SetEntryPoint names the node execution starts from.
func (b *Builder[S, P]) SetEntryPoint(name string) *Builder[S, P] {
	b.entry = name
	return b
}

// SetFinishPoint names the terminal node; the run completes when it has.
func (b *Builder[S, P]) SetFinishPoint(name string) *Builder[S, P] {
	b.finish = name
	return b
}

// Compile validates the topology and returns an executable graph.
func (b *Builder[S, P]) Compile() (*Graph[S, P], error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.apply == nil {
		return nil, eris.New("graph: apply function not set")
	}
	if b.entry == "" {
		return nil, eris.New("graph: entry point not set")
	}
	if b.finish == "" {
		return nil, eris.New("graph: finish point not set")
	}
	if _, ok := b.nodes[b.entry]; !ok {
		return nil, eris.Errorf("graph: entry point %q is not a registered node", b.entry)
	}
	if _, ok := b.nodes[b.finish]; !ok {
		return nil, eris.Errorf("graph: finish point %q is not a registered node", b.finish)
	}
	for to, froms := range b.preds {
		if _, ok := b.nodes[to]; !ok {
			return nil, eris.Errorf("graph: edge references unregistered node %q", to)
		}
		for _, from := range froms {
			if _, ok := b.nodes[from]; !ok {
				return nil, eris.Errorf("graph: edge references unregistered node %q", from)
			}
		}
	}
	if len(b.preds[b.entry]) > 0 {
		return nil, eris.Errorf("graph: entry point %q has predecessors", b.entry)
	}
	if len(b.succs[b.finish]) > 0 {
		return nil, eris.Errorf("graph: finish point %q has successors", b.finish)
	}

	// Every node must be reachable from the entry.
	reached := map[string]bool{b.entry: true}
	queue := []string{b.entry}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, s := range b.succs[n] {
			if !reached[s] {
				reached[s] = true
				queue = append(queue, s)
			}
		}
	}
	for _, name := range b.order {
		if !reached[name] {
			return nil, eris.Errorf("graph: node %q is unreachable from entry %q", name, b.entry)
		}
	}

	// Kahn's check: if the indegree ordering cannot cover every node,
	// the edge set contains a cycle.
	indeg := make(map[string]int, len(b.nodes))
	for _, name := range b.order {
		indeg[name] = len(b.preds[name])
	}
	var ready []string
	for _, name := range b.order {
		if indeg[name] == 0 {
			ready = append(ready, name)
		}
	}
	seen := 0
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		seen++
		for _, s := range b.succs[n] {
			indeg[s]--
			if indeg[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	if seen != len(b.nodes) {
		return nil, eris.New("graph: cycle detected in edge set")
	}

	return &Graph[S, P]{
		nodes:   b.nodes,
		order:   b.order,
		preds:   b.preds,
		succs:   b.succs,
		entry:   b.entry,
		finish:  b.finish,
		apply:   b.apply,
		onError: b.onError,
	}, nil
}

// Graph is a compiled, immutable topology. Safe for concurrent Run
// calls; each run keeps its own scheduling state.
type Graph[S, P any] struct {
	nodes   map[string]NodeFunc[S, P]
	order   []string
	preds   map[string][]string
	succs   map[string][]string
	entry   string
	finish  string
	apply   ApplyFunc[S, P]
	onError ErrorFunc[P]
}

type nodeResult[P any] struct {
	node  string
	patch P
	err   error
}

// Run executes the graph from the initial state and returns the state
// after the finish node has completed. The returned error is only ever
// a scheduling failure (context cancellation); node errors are folded
// into the state by the error handler.
func (g *Graph[S, P]) Run(ctx context.Context, initial S) (S, error) {
	state := initial

	remaining := make(map[string]int, len(g.nodes))
	for _, name := range g.order {
		remaining[name] = len(g.preds[name])
	}

	results := make(chan nodeResult[P])
	eg, egCtx := errgroup.WithContext(ctx)

	inflight := 0
	launch := func(name string) {
		inflight++
		snap := state
		fn := g.nodes[name]
		eg.Go(func() error {
			patch, err := g.invoke(egCtx, name, fn, snap)
			select {
			case results <- nodeResult[P]{node: name, patch: patch, err: err}:
			case <-egCtx.Done():
			}
			return nil
		})
	}

	for _, name := range g.order {
		if remaining[name] == 0 {
			launch(name)
		}
	}

	for inflight > 0 {
		select {
		case <-ctx.Done():
			_ = eg.Wait()
			return state, eris.Wrap(ctx.Err(), "graph: run cancelled")
		case r := <-results:
			inflight--
			if r.err != nil {
				zap.L().Error("graph: node error captured",
					zap.String("node", r.node),
					zap.Error(r.err),
				)
				if g.onError == nil {
					_ = eg.Wait()
					return state, eris.Wrapf(r.err, "graph: node %s failed with no error handler", r.node)
				}
				r.patch = g.onError(r.node, r.err)
			}
			g.apply(&state, r.patch)
			for _, succ := range g.succs[r.node] {
				remaining[succ]--
				if remaining[succ] == 0 {
					launch(succ)
				}
			}
		}
	}
	_ = eg.Wait()

	return state, nil
}

// invoke runs one node body, converting panics into errors so a broken
// branch degrades instead of tearing the run down.
func (g *Graph[S, P]) invoke(ctx context.Context, name string, fn NodeFunc[S, P], snap S) (patch P, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = eris.New(fmt.Sprintf("graph: node %s panicked: %v", name, rec))
		}
	}()
	return fn(ctx, snap)
}

// Nodes returns the registered node names in registration order.
func (g *Graph[S, P]) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}
