// Package graph builds the model-association graph and computes PageRank
// over it.
package graph

import (
	"math"
	"sort"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/phobologic/railsrel/internal/model"
)

// DefaultBaseClasses are the superclasses that make a class an ActiveRecord model.
var DefaultBaseClasses = []string{"ApplicationRecord", "ActiveRecord::Base"}

// Graph is the association graph of a Rails application. Nodes are concrete
// (non-abstract) models; edges are their associations, inherited ones first.
// A Graph is immutable after Build and safe for concurrent reads.
type Graph struct {
	classes map[string]*model.Model // every parsed class, merged by name
	nodes   map[string]*model.Model
	names   []string // sorted node names
	edges   map[string][]model.Association
}

// Build merges the parsed classes into a graph. Classes defined across
// several files are merged in input order. baseClasses defaults to
// DefaultBaseClasses when empty.
func Build(parsed []model.Model, baseClasses []string) *Graph {
	if len(baseClasses) == 0 {
		baseClasses = DefaultBaseClasses
	}
	bases := make(map[string]struct{}, len(baseClasses))
	for _, b := range baseClasses {
		bases[strings.TrimPrefix(b, "::")] = struct{}{}
	}

	g := &Graph{
		classes: make(map[string]*model.Model),
		nodes:   make(map[string]*model.Model),
		edges:   make(map[string][]model.Association),
	}

	for i := range parsed {
		p := parsed[i]
		if existing, ok := g.classes[p.Name]; ok {
			if existing.Superclass == "" {
				existing.Superclass = p.Superclass
			}
			existing.Abstract = existing.Abstract || p.Abstract
			existing.Associations = append(existing.Associations, p.Associations...)
			continue
		}
		p.Associations = append([]model.Association(nil), p.Associations...)
		g.classes[p.Name] = &p
	}

	records := make(map[string]bool)
	var isRecord func(name string, seen map[string]bool) bool
	isRecord = func(name string, seen map[string]bool) bool {
		if r, ok := records[name]; ok {
			return r
		}
		if _, ok := bases[name]; ok {
			return true
		}
		c, ok := g.classes[name]
		if !ok || seen[name] {
			return false
		}
		seen[name] = true
		r := len(c.Associations) > 0
		if parent := g.superclass(c); parent != "" && isRecord(parent, seen) {
			r = true
		}
		records[name] = r
		return r
	}

	for name, c := range g.classes {
		if _, base := bases[name]; base || c.Abstract {
			continue
		}
		if isRecord(name, map[string]bool{}) {
			g.nodes[name] = c
			g.names = append(g.names, name)
		}
	}
	sort.Strings(g.names)

	for _, name := range g.names {
		g.edges[name] = g.collectEdges(name, map[string]bool{})
	}

	return g
}

// superclass resolves c's superclass to a parsed class or base class name.
func (g *Graph) superclass(c *model.Model) string {
	if c.Superclass == "" {
		return ""
	}
	if name, ok := lookup(c.Namespace(), c.Superclass, func(n string) bool {
		_, ok := g.classes[n]
		return ok
	}); ok {
		return name
	}
	return strings.TrimPrefix(c.Superclass, "::")
}

func (g *Graph) collectEdges(name string, seen map[string]bool) []model.Association {
	c, ok := g.classes[name]
	if !ok || seen[name] {
		return nil
	}
	seen[name] = true
	var out []model.Association
	if parent := g.superclass(c); parent != "" {
		out = append(out, g.collectEdges(parent, seen)...)
	}
	for _, a := range c.Associations {
		a.Owner = name
		out = append(out, a)
	}
	return out
}

// Has reports whether name is a model node of the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Edges returns the ordered associations of a model, or nil if name is not a node.
func (g *Graph) Edges(name string) []model.Association {
	return g.edges[name]
}

// Names returns the sorted model names.
func (g *Graph) Names() []string {
	return g.names
}

// Model returns the merged model for name.
func (g *Graph) Model(name string) (model.Model, bool) {
	m, ok := g.nodes[name]
	if !ok {
		return model.Model{}, false
	}
	return *m, true
}

// Resolve returns the model an association of from points at. Targets are
// looked up from the namespace of the declaring class, so an association
// inherited from Admin::Base finds Admin::Note. Polymorphic associations and
// targets that are not model nodes do not resolve.
func (g *Graph) Resolve(from string, a model.Association) (string, bool) {
	if a.Polymorphic {
		return "", false
	}
	owner, ok := g.nodes[from]
	if !ok {
		return "", false
	}
	namespace := owner.Namespace()
	if decl, ok := g.classes[a.Owner]; ok {
		namespace = decl.Namespace()
	}
	return lookup(namespace, TargetClassName(a), g.Has)
}

// TargetClassName returns the class name an association refers to by
// Rails conventions: class_name wins, then the through source, then the
// association name (singularized for collections).
func TargetClassName(a model.Association) string {
	if a.ClassName != "" {
		return a.ClassName
	}
	name := a.Name
	collection := a.Kind.Collection()
	if a.Through != "" && a.Source != "" {
		name = a.Source
		collection = true
	}
	if collection {
		name = inflect.Singularize(name)
	}
	return inflect.Camelize(name)
}

// lookup resolves a constant reference the way Ruby does from inside
// namespace: innermost enclosing module first, then top level.
func lookup(namespace, ref string, exists func(string) bool) (string, bool) {
	if strings.HasPrefix(ref, "::") {
		ref = strings.TrimPrefix(ref, "::")
		return ref, exists(ref)
	}
	for ns := namespace; ns != ""; {
		if candidate := ns + "::" + ref; exists(candidate) {
			return candidate, true
		}
		i := strings.LastIndex(ns, "::")
		if i < 0 {
			break
		}
		ns = ns[:i]
	}
	return ref, exists(ref)
}

// AllEdges returns every association of every model, in model name order,
// with Target set when the association resolves.
func (g *Graph) AllEdges() []model.Edge {
	var out []model.Edge
	for _, name := range g.names {
		for _, a := range g.edges[name] {
			target, _ := g.Resolve(name, a)
			if !g.Has(target) {
				target = ""
			}
			out = append(out, model.Edge{Source: name, Target: target, Association: a})
		}
	}
	return out
}

// Rank applies PageRank over resolved associations and returns the models
// sorted by rank descending, then name.
func Rank(g *Graph) []model.Model {
	models := make([]model.Model, 0, len(g.names))
	for _, name := range g.names {
		models = append(models, *g.nodes[name])
	}
	if len(models) == 0 {
		return models
	}

	outEdges := make(map[string][]string) // node → list of targets (with repeats for multi-edges)
	outDegree := make(map[string]int)

	for _, e := range g.AllEdges() {
		if e.Target == "" || e.Target == e.Source {
			continue
		}
		outEdges[e.Source] = append(outEdges[e.Source], e.Target)
		outDegree[e.Source]++
	}

	var ranks map[string]float64
	if len(outEdges) == 0 {
		ranks = make(map[string]float64, len(models))
		for _, name := range g.names {
			ranks[name] = 1.0 / float64(len(models))
		}
	} else {
		ranks = pageRank(g.names, outEdges, outDegree, 0.85, 100, 1e-6)
	}

	for i := range models {
		models[i].Rank = ranks[models[i].Name]
	}

	sort.SliceStable(models, func(i, j int) bool {
		if models[i].Rank != models[j].Rank {
			return models[i].Rank > models[j].Rank
		}
		return models[i].Name < models[j].Name
	})
	return models
}

// pageRank walks nodes in the given order so equal ranks come out
// bit-identical across runs.
func pageRank(
	nodes []string,
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for _, node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for _, node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for _, node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		for _, src := range nodes {
			targets := outEdges[src]
			if len(targets) == 0 {
				continue
			}
			contrib := alpha * rank[src] / float64(outDegree[src])
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		var diff float64
		for _, node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}
