package pathfind

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/phobologic/railsrel/internal/model"
)

// fakeGraph maps each model to its associations; an association resolves to
// the model named in targets, keyed by "Model.assoc".
type fakeGraph struct {
	edges   map[string][]model.Association
	targets map[string]string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		edges:   make(map[string][]model.Association),
		targets: make(map[string]string),
	}
}

func (g *fakeGraph) node(name string) *fakeGraph {
	if _, ok := g.edges[name]; !ok {
		g.edges[name] = nil
	}
	return g
}

// link adds an association kind:name from src to dst. An empty dst leaves
// the association unresolved.
func (g *fakeGraph) link(src string, kind model.AssocKind, name, dst string) *fakeGraph {
	g.node(src)
	if dst != "" {
		g.node(dst)
		g.targets[src+"."+name] = dst
	}
	g.edges[src] = append(g.edges[src], model.Association{Kind: kind, Name: name})
	return g
}

func (g *fakeGraph) Has(name string) bool {
	_, ok := g.edges[name]
	return ok
}

func (g *fakeGraph) Edges(name string) []model.Association {
	return g.edges[name]
}

func (g *fakeGraph) Resolve(from string, a model.Association) (string, bool) {
	t, ok := g.targets[from+"."+a.Name]
	return t, ok
}

func TestDirectEdge(t *testing.T) {
	t.Parallel()

	g := newFakeGraph().link("User", model.HasMany, "posts", "Post")

	got, err := Relations(g, "User", "Post")
	if err != nil {
		t.Fatalf("Relations: %v", err)
	}
	want := []string{"User has_many:posts -> Post"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTwoRoutesSorted(t *testing.T) {
	t.Parallel()

	// D is declared before B, so the D route is discovered first.
	g := newFakeGraph().
		link("A", model.HasOne, "d", "D").
		link("A", model.HasOne, "b", "B").
		link("B", model.HasMany, "cs", "C").
		link("D", model.BelongsTo, "c", "C")

	paths, err := FindPaths(g, "A", "C")
	if err != nil {
		t.Fatalf("FindPaths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if Describe(paths[0]) != "A has_one:d -> D belongs_to:c -> C" {
		t.Errorf("discovery order: %q", Describe(paths[0]))
	}

	got := Format(paths)
	want := []string{
		"A has_one:b -> B has_many:cs -> C",
		"A has_one:d -> D belongs_to:c -> C",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCycleTerminates(t *testing.T) {
	t.Parallel()

	g := newFakeGraph().
		link("A", model.HasMany, "bs", "B").
		link("B", model.BelongsTo, "a", "A").
		node("C")

	_, err := FindPaths(g, "A", "C")
	if !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("expected ErrNoPathFound, got %v", err)
	}
}

func TestSelfLoopTerminates(t *testing.T) {
	t.Parallel()

	g := newFakeGraph().
		link("Category", model.HasMany, "children", "Category").
		link("Category", model.BelongsTo, "parent", "Category").
		node("Product")

	_, err := FindPaths(g, "Category", "Product")
	if !errors.Is(err, ErrNoPathFound) {
		t.Fatalf("expected ErrNoPathFound, got %v", err)
	}
}

func TestMaxDepth(t *testing.T) {
	t.Parallel()

	g := newFakeGraph().
		link("A", model.HasMany, "bs", "B").
		link("B", model.HasMany, "cs", "C")

	if _, err := FindPaths(g, "A", "C", WithMaxDepth(1)); !errors.Is(err, ErrNoPathFound) {
		t.Errorf("depth 1: expected ErrNoPathFound, got %v", err)
	}

	// The bound is inclusive.
	paths, err := FindPaths(g, "A", "C", WithMaxDepth(2))
	if err != nil {
		t.Fatalf("depth 2: %v", err)
	}
	if len(paths) != 1 || paths[0].Len() != 2 {
		t.Errorf("depth 2: paths = %+v", paths)
	}

	paths, err = FindPaths(g, "A", "B", WithMaxDepth(1))
	if err != nil || len(paths) != 1 {
		t.Errorf("depth 1 direct: paths = %+v, err = %v", paths, err)
	}
}

func TestMaxStepsAborts(t *testing.T) {
	t.Parallel()

	g := newFakeGraph().
		link("A", model.HasOne, "b", "B").
		link("B", model.HasOne, "c", "C").
		link("C", model.HasOne, "d", "D").
		link("D", model.HasOne, "e", "E")

	_, err := FindPaths(g, "A", "E", WithMaxSteps(3))
	if !errors.Is(err, ErrTraversalAborted) {
		t.Fatalf("expected ErrTraversalAborted, got %v", err)
	}
	var aborted *AbortedError
	if !errors.As(err, &aborted) {
		t.Fatalf("expected *AbortedError, got %T", err)
	}
	if aborted.Steps != 3 {
		t.Errorf("steps = %d, want 3", aborted.Steps)
	}
	if !strings.Contains(err.Error(), "3 steps") {
		t.Errorf("error text = %q", err.Error())
	}
}

func TestStepsCountEveryDequeue(t *testing.T) {
	t.Parallel()

	// A -> B (destination) is found on the second dequeue, so a budget of
	// two aborts and a budget of three succeeds.
	g := newFakeGraph().link("A", model.HasOne, "b", "B")

	if _, err := FindPaths(g, "A", "B", WithMaxSteps(2)); !errors.Is(err, ErrTraversalAborted) {
		t.Errorf("budget 2: expected abort, got %v", err)
	}
	if _, err := FindPaths(g, "A", "B", WithMaxSteps(3)); err != nil {
		t.Errorf("budget 3: %v", err)
	}
}

func TestUnresolvedEdgesSkipped(t *testing.T) {
	t.Parallel()

	g := newFakeGraph().
		link("Comment", model.BelongsTo, "commentable", "").
		link("Comment", model.BelongsTo, "post", "Post")

	got, err := Relations(g, "Comment", "Post")
	if err != nil {
		t.Fatalf("Relations: %v", err)
	}
	want := []string{"Comment belongs_to:post -> Post"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandOnlyFirstDequeue(t *testing.T) {
	t.Parallel()

	// D is queued twice (via B and via C) before it is expanded. Both
	// copies complete when D is the destination, but only the first copy
	// is expanded when the destination lies beyond it.
	g := newFakeGraph().
		link("A", model.HasOne, "b", "B").
		link("A", model.HasOne, "c", "C").
		link("B", model.HasOne, "d", "D").
		link("C", model.HasOne, "d", "D").
		link("D", model.HasOne, "e", "E")

	toD, err := Relations(g, "A", "D")
	if err != nil {
		t.Fatalf("A to D: %v", err)
	}
	wantD := []string{
		"A has_one:b -> B has_one:d -> D",
		"A has_one:c -> C has_one:d -> D",
	}
	if !reflect.DeepEqual(toD, wantD) {
		t.Errorf("A to D: got %q, want %q", toD, wantD)
	}

	toE, err := Relations(g, "A", "E")
	if err != nil {
		t.Fatalf("A to E: %v", err)
	}
	wantE := []string{"A has_one:b -> B has_one:d -> D has_one:e -> E"}
	if !reflect.DeepEqual(toE, wantE) {
		t.Errorf("A to E: got %q, want %q", toE, wantE)
	}
}

func TestSourceIsDestination(t *testing.T) {
	t.Parallel()

	g := newFakeGraph().link("User", model.HasMany, "posts", "Post")

	got, err := Relations(g, "User", "User", WithMaxDepth(0))
	if err != nil {
		t.Fatalf("Relations: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"User"}) {
		t.Errorf("got %q", got)
	}
}

func TestInvalidArguments(t *testing.T) {
	t.Parallel()

	g := newFakeGraph().link("User", model.HasMany, "posts", "Post")

	tests := []struct {
		name string
		src  string
		dst  string
		opts []Option
	}{
		{"unknown source", "Nope", "Post", nil},
		{"unknown destination", "User", "Nope", nil},
		{"negative depth", "User", "Post", []Option{WithMaxDepth(-1)}},
		{"zero steps", "User", "Post", []Option{WithMaxSteps(0)}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := FindPaths(g, tt.src, tt.dst, tt.opts...)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestIdempotent(t *testing.T) {
	t.Parallel()

	g := newFakeGraph().
		link("A", model.HasMany, "zs", "Z").
		link("A", model.HasMany, "bs", "B").
		link("A", model.HasMany, "ms", "M").
		link("B", model.HasOne, "z", "Z").
		link("M", model.HasOne, "z", "Z")

	first, err := Relations(g, "A", "Z")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := Relations(g, "A", "Z")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("outputs differ:\n%q\n%q", first, second)
	}
	if len(first) != 3 {
		t.Errorf("expected 3 paths, got %q", first)
	}
}

func TestPathLen(t *testing.T) {
	t.Parallel()

	a := model.Association{Kind: model.HasOne, Name: "b"}
	p := model.Path{Hops: []model.Hop{{Model: "A", Via: &a}, {Model: "B"}}}
	if p.Len() != 1 {
		t.Errorf("Len = %d, want 1", p.Len())
	}
}
