// Package pathfind enumerates association paths between two models.
//
// The search is a breadth-first walk over a work queue of partial paths. A
// model is marked visited the first time it is expanded, not when it is
// enqueued, so the same model may sit in the queue several times but only the
// first dequeued copy is ever expanded. Later copies still count as completed
// paths when they are the destination. This keeps the search finite on
// cyclic graphs at the cost of some alternate routes.
package pathfind

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/phobologic/railsrel/internal/model"
)

const (
	// DefaultMaxDepth is the default maximum number of associations in a path.
	DefaultMaxDepth = 10

	// DefaultMaxSteps is the default number of dequeues before the search aborts.
	DefaultMaxSteps = 100000
)

var (
	// ErrInvalidArgument is returned when the source or destination is not a
	// model of the graph, or the bounds are out of range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTraversalAborted is returned (wrapped in *AbortedError) when the step
	// budget runs out. Partial results are discarded.
	ErrTraversalAborted = errors.New("traversal aborted")

	// ErrNoPathFound is returned when the search finishes without completing
	// a single path.
	ErrNoPathFound = errors.New("no path found")
)

// AbortedError reports how many steps were taken before the search gave up.
type AbortedError struct {
	Steps int
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("traversal aborted after %d steps", e.Steps)
}

// Unwrap lets errors.Is match ErrTraversalAborted.
func (e *AbortedError) Unwrap() error {
	return ErrTraversalAborted
}

// Graph supplies the nodes and edges of the search.
//
// Edges returns the ordered associations of a model. Resolve returns the
// model an association points at; a false result means the association is
// skipped (polymorphic or unknown target), never that the search fails.
type Graph interface {
	Has(name string) bool
	Edges(name string) []model.Association
	Resolve(from string, a model.Association) (string, bool)
}

// Options configures a search.
type Options struct {
	// MaxDepth is the maximum number of associations in a path (inclusive).
	MaxDepth int

	// MaxSteps is the step budget; reaching it aborts the search.
	MaxSteps int
}

// DefaultOptions returns the default search bounds.
func DefaultOptions() Options {
	return Options{
		MaxDepth: DefaultMaxDepth,
		MaxSteps: DefaultMaxSteps,
	}
}

// Option is a functional option for configuring a search.
type Option func(*Options)

// WithMaxDepth sets the maximum path length in associations.
func WithMaxDepth(d int) Option {
	return func(o *Options) {
		o.MaxDepth = d
	}
}

// WithMaxSteps sets the step budget.
func WithMaxSteps(n int) Option {
	return func(o *Options) {
		o.MaxSteps = n
	}
}

func applyOptions(opts []Option) Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type queueItem struct {
	model string
	hops  []model.Hop
}

// FindPaths returns every path from source to destination that the search
// completes, in discovery order.
//
// Errors: ErrInvalidArgument for unknown models or bad bounds, *AbortedError
// when the step budget is reached, ErrNoPathFound when nothing completes.
func FindPaths(g Graph, source, destination string, opts ...Option) ([]model.Path, error) {
	options := applyOptions(opts)

	if !g.Has(source) {
		return nil, fmt.Errorf("%w: unknown source model %q", ErrInvalidArgument, source)
	}
	if !g.Has(destination) {
		return nil, fmt.Errorf("%w: unknown destination model %q", ErrInvalidArgument, destination)
	}
	if options.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: max depth %d is negative", ErrInvalidArgument, options.MaxDepth)
	}
	if options.MaxSteps < 1 {
		return nil, fmt.Errorf("%w: max steps %d must be positive", ErrInvalidArgument, options.MaxSteps)
	}

	var found []model.Path
	visited := make(map[string]struct{})
	queue := []queueItem{{model: source}}
	steps := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		steps++
		if steps >= options.MaxSteps {
			return nil, &AbortedError{Steps: steps}
		}

		if len(item.hops) > options.MaxDepth {
			continue
		}

		if item.model == destination {
			found = append(found, model.Path{Hops: extend(item.hops, model.Hop{Model: item.model})})
			continue
		}

		if _, seen := visited[item.model]; seen {
			continue
		}
		visited[item.model] = struct{}{}

		edges := g.Edges(item.model)
		for i := range edges {
			target, ok := g.Resolve(item.model, edges[i])
			if !ok {
				continue
			}
			if _, seen := visited[target]; seen {
				continue
			}
			a := edges[i]
			queue = append(queue, queueItem{
				model: target,
				hops:  extend(item.hops, model.Hop{Model: item.model, Via: &a}),
			})
		}
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("%w from %s to %s", ErrNoPathFound, source, destination)
	}
	return found, nil
}

// extend returns a copy of hops with h appended; queued paths never share
// backing arrays.
func extend(hops []model.Hop, h model.Hop) []model.Hop {
	out := make([]model.Hop, len(hops), len(hops)+1)
	copy(out, hops)
	return append(out, h)
}

// Describe renders a path as "A kind:name -> B kind:name -> C".
func Describe(p model.Path) string {
	parts := make([]string, len(p.Hops))
	for i, h := range p.Hops {
		parts[i] = segment(h)
	}
	return strings.Join(parts, " -> ")
}

func segment(h model.Hop) string {
	if h.Via == nil {
		return h.Model
	}
	return h.Model + " " + h.Via.Label()
}

// Format describes each path and sorts the result by first segment (the
// source model and its first association). Paths sharing a first segment
// keep their discovery order.
func Format(paths []model.Path) []string {
	type described struct {
		first string
		text  string
	}
	ds := make([]described, len(paths))
	for i, p := range paths {
		ds[i].text = Describe(p)
		if len(p.Hops) > 0 {
			ds[i].first = segment(p.Hops[0])
		}
	}
	sort.SliceStable(ds, func(i, j int) bool {
		return ds[i].first < ds[j].first
	})

	out := make([]string, len(ds))
	for i := range ds {
		out[i] = ds[i].text
	}
	return out
}

// Relations runs FindPaths and formats the result.
func Relations(g Graph, source, destination string, opts ...Option) ([]string, error) {
	paths, err := FindPaths(g, source, destination, opts...)
	if err != nil {
		return nil, err
	}
	return Format(paths), nil
}
