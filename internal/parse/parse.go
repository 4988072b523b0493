// Package parse extracts ActiveRecord model classes and their association
// macros from Ruby source using tree-sitter.
package parse

import (
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/railsrel/internal/lang"
	"github.com/phobologic/railsrel/internal/model"
)

const (
	captureClass       = "definition.class"
	captureAssociation = "definition.association"
	captureAbstract    = "definition.abstract"
)

var assocKinds = map[string]model.AssocKind{
	"belongs_to":              model.BelongsTo,
	"has_many":                model.HasMany,
	"has_one":                 model.HasOne,
	"has_and_belongs_to_many": model.HasAndBelongsToMany,
}

// ExtractModels parses a source file and returns every class it defines,
// in source order, with the associations declared directly in its body.
// The parser and query must be created for lang.Ruby.
// filePath is used only for Model.File and should be the repo-relative path.
func ExtractModels(parser *sitter.Parser, query *sitter.Query, source []byte, filePath string) []model.Model {
	if len(source) == 0 {
		return nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	c := &collector{source: source, file: filePath, index: make(map[string]int)}

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		var nameNode, macroNode, defNode *sitter.Node
		var captureName string

		for _, cp := range match.Captures {
			switch cname := query.CaptureNameForId(cp.Index); cname {
			case "name":
				nameNode = cp.Node
			case "macro":
				macroNode = cp.Node
			case captureClass, captureAssociation, captureAbstract:
				captureName = cname
				defNode = cp.Node
			}
		}

		if nameNode == nil || defNode == nil {
			continue
		}

		switch captureName {
		case captureClass:
			c.class(defNode)
		case captureAbstract:
			if _, cls := lang.RubyEnclosingClass(defNode, source); cls != nil {
				c.models[c.class(cls)].Abstract = true
			}
		case captureAssociation:
			if macroNode == nil {
				continue
			}
			kind, ok := assocKinds[lang.NodeText(macroNode, source)]
			if !ok {
				continue
			}
			c.association(kind, nameNode, defNode)
		}
	}

	// Declaration order, independent of match order.
	sort.SliceStable(c.pending, func(i, j int) bool {
		return c.pending[i].offset < c.pending[j].offset
	})
	for _, p := range c.pending {
		c.models[p.model].Associations = append(c.models[p.model].Associations, p.assoc)
	}

	return c.models
}

type pendingAssoc struct {
	model  int
	offset uint32
	assoc  model.Association
}

type collector struct {
	source  []byte
	file    string
	models  []model.Model
	index   map[string]int
	pending []pendingAssoc
}

// class records the model for a class node, merging reopened classes
// within the same file.
func (c *collector) class(node *sitter.Node) int {
	name := lang.RubyQualifiedName(node, c.source)
	if i, ok := c.index[name]; ok {
		if c.models[i].Superclass == "" {
			c.models[i].Superclass = lang.RubySuperclass(node, c.source)
		}
		return i
	}
	c.index[name] = len(c.models)
	c.models = append(c.models, model.Model{
		Name:       name,
		Superclass: lang.RubySuperclass(node, c.source),
		File:       c.file,
		Line:       int(node.StartPoint().Row) + 1,
	})
	return len(c.models) - 1
}

func (c *collector) association(kind model.AssocKind, nameNode, callNode *sitter.Node) {
	_, cls := lang.RubyEnclosingClass(callNode, c.source)
	if cls == nil {
		return
	}
	i := c.class(cls)

	a := model.Association{
		Kind: kind,
		Name: lang.RubyLiteral(nameNode, c.source),
		Line: int(nameNode.StartPoint().Row) + 1,
	}
	if args := callNode.ChildByFieldName("arguments"); args != nil {
		opts := lang.RubyHashOptions(args, c.source)
		a.ClassName = opts["class_name"]
		a.Through = opts["through"]
		a.Source = opts["source"]
		a.As = opts["as"]
		a.ForeignKey = opts["foreign_key"]
		a.Polymorphic = opts["polymorphic"] == "true"
	}

	c.pending = append(c.pending, pendingAssoc{model: i, offset: callNode.StartByte(), assoc: a})
}
