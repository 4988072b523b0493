package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"
)

// Ruby is the only language railsrel reads.
var Ruby = &Language{
	Name:       "ruby",
	Extensions: []string{".rb"},
	lang:       ruby.GetLanguage(),
}

// RubyClassName extracts the name from a class or module node.
func RubyClassName(node *sitter.Node, source []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "constant" || child.Type() == "scope_resolution" {
			return strings.TrimPrefix(NodeText(child, source), "::")
		}
	}
	return ""
}

// RubyQualifiedName returns the class or module name of node prefixed with
// every enclosing class and module, e.g. "Admin::User" for
// `module Admin; class User; end; end`.
func RubyQualifiedName(node *sitter.Node, source []byte) string {
	name := RubyClassName(node, source)
	if name == "" {
		return ""
	}
	for anc := node.Parent(); anc != nil; anc = anc.Parent() {
		if anc.Type() != "class" && anc.Type() != "module" {
			continue
		}
		if outer := RubyClassName(anc, source); outer != "" {
			name = outer + "::" + name
		}
	}
	return name
}

// RubyEnclosingClass walks up from a call node to the nearest class and
// returns its qualified name. Returns "" when the call is not inside a class
// (module bodies such as concerns do not count).
func RubyEnclosingClass(node *sitter.Node, source []byte) (string, *sitter.Node) {
	for current := node.Parent(); current != nil; current = current.Parent() {
		switch current.Type() {
		case "class":
			return RubyQualifiedName(current, source), current
		case "method", "singleton_method", "module":
			return "", nil
		}
	}
	return "", nil
}

// RubySuperclass returns the superclass named by a class node, or "".
func RubySuperclass(node *sitter.Node, source []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "superclass" {
			continue
		}
		// superclass node contains "< ClassName"
		for j := 0; j < int(child.ChildCount()); j++ {
			sc := child.Child(j)
			if sc.Type() == "constant" || sc.Type() == "scope_resolution" {
				return strings.TrimPrefix(NodeText(sc, source), "::")
			}
		}
	}
	return ""
}

// RubyLiteral returns the plain value of a symbol, string, boolean or
// constant node: `:user`, `"User"`, `true` and `User` become
// "user", "User", "true" and "User". Other nodes yield "".
func RubyLiteral(node *sitter.Node, source []byte) string {
	switch node.Type() {
	case "simple_symbol", "hash_key_symbol":
		return strings.TrimSuffix(strings.TrimPrefix(NodeText(node, source), ":"), ":")
	case "delimited_symbol":
		return strings.Trim(strings.TrimPrefix(NodeText(node, source), ":"), `"'`)
	case "string":
		var b strings.Builder
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "string_content" {
				b.WriteString(NodeText(child, source))
			}
		}
		return b.String()
	case "true", "false", "nil", "constant", "scope_resolution":
		return strings.TrimPrefix(NodeText(node, source), "::")
	}
	return ""
}

// RubyHashOptions collects the `key: value` and `:key => value` pairs of an
// argument list. Values that are not literals are recorded as "".
func RubyHashOptions(args *sitter.Node, source []byte) map[string]string {
	opts := make(map[string]string)
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "pair":
				key := child.ChildByFieldName("key")
				value := child.ChildByFieldName("value")
				if key == nil {
					continue
				}
				k := RubyLiteral(key, source)
				if k == "" {
					continue
				}
				if value != nil {
					opts[k] = RubyLiteral(value, source)
				} else {
					opts[k] = ""
				}
			case "hash":
				visit(child)
			}
		}
	}
	visit(args)
	return opts
}
