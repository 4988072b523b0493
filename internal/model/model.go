// Package model defines core data structures for railsrel.
package model

// AssocKind is the ActiveRecord macro that declared an association.
type AssocKind string

const (
	BelongsTo           AssocKind = "belongs_to"
	HasMany             AssocKind = "has_many"
	HasOne              AssocKind = "has_one"
	HasAndBelongsToMany AssocKind = "has_and_belongs_to_many"
)

// Collection reports whether the association name is plural by convention.
func (k AssocKind) Collection() bool {
	return k == HasMany || k == HasAndBelongsToMany
}

// Association is a single association macro call inside a model class.
type Association struct {
	Kind        AssocKind
	Name        string
	ClassName   string // class_name: option
	Through     string // through: option
	Source      string // source: option
	As          string // as: option
	ForeignKey  string // foreign_key: option
	Polymorphic bool
	Line        int
	Owner       string // declaring class; differs from the model for inherited associations
}

// Label returns the "kind:name" form used in path descriptions.
func (a Association) Label() string {
	return string(a.Kind) + ":" + a.Name
}

// Model is an ActiveRecord class found in the models directory.
type Model struct {
	Name         string // fully qualified, e.g. "Admin::User"
	Superclass   string
	File         string
	Line         int
	Abstract     bool // self.abstract_class = true
	Associations []Association
	Rank         float64
}

// Namespace returns the enclosing module path of the model, or "".
func (m Model) Namespace() string {
	for i := len(m.Name) - 1; i > 1; i-- {
		if m.Name[i] == ':' && m.Name[i-1] == ':' {
			return m.Name[:i-1]
		}
	}
	return ""
}

// Hop is one step of a path: the model and the association taken out of it.
// The final hop of a completed path has a nil Via.
type Hop struct {
	Model string
	Via   *Association
}

// Path is an ordered walk from a source model to a destination model.
type Path struct {
	Hops []Hop
}

// Len returns the number of associations traversed.
func (p Path) Len() int {
	n := 0
	for _, h := range p.Hops {
		if h.Via != nil {
			n++
		}
	}
	return n
}

// Edge is an association of Source. Target is "" when it does not resolve.
type Edge struct {
	Source      string
	Target      string
	Association Association
}

// SchemaMap is the analyzed set of models, ready for serialization.
type SchemaMap struct {
	App    string
	Models []Model
	Edges  []Edge
}
