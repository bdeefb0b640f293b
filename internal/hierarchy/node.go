package hierarchy

import (
	"encoding/json"
	"fmt"

	"github.com/robert-at-pretension-io/sv-hier/internal/record"
)

// Kind tags the variant of a Node.
type Kind int

const (
	// KindRoot is a top module, the entry point of every tree.
	KindRoot Kind = iota
	// KindBranch is an instance whose type resolved to a module with instances.
	KindBranch
	// KindLeaf is an instance whose type resolved to a module without instances.
	KindLeaf
	// KindUnresolved is an instance whose type has no record, or would
	// re-enter a module already being expanded.
	KindUnresolved
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindBranch:
		return "branch"
	case KindLeaf:
		return "leaf"
	case KindUnresolved:
		return "unresolved"
	default:
		panic(fmt.Sprintf("hierarchy: unknown node kind %d", int(k)))
	}
}

// MarshalText encodes the kind name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Node is one element of an instantiation tree.
//
// Name is the instance name, or the module name for a root. Ref is the type
// as written at the instantiation site. Record is the resolved type and is nil
// for Unresolved nodes only. Children are in declaration order and are empty
// for Leaf and Unresolved nodes.
type Node struct {
	Kind     Kind
	Name     string
	Ref      string
	Record   *record.ModuleRecord
	Children []*Node
}

// Root builds a root node.
func Root(name string, rec *record.ModuleRecord, children []*Node) *Node {
	return &Node{Kind: KindRoot, Name: name, Ref: name, Record: rec, Children: children}
}

// Branch builds a branch node.
func Branch(name string, rec *record.ModuleRecord, children []*Node) *Node {
	return &Node{Kind: KindBranch, Name: name, Ref: rec.Name, Record: rec, Children: children}
}

// Leaf builds a leaf node.
func Leaf(name string, rec *record.ModuleRecord) *Node {
	return &Node{Kind: KindLeaf, Name: name, Ref: rec.Name, Record: rec}
}

// Unresolved builds a placeholder for an instance whose type is unknown.
func Unresolved(name, ref string) *Node {
	return &Node{Kind: KindUnresolved, Name: name, Ref: ref}
}

// TypeName returns the resolved module name. It reports false for
// Unresolved nodes.
func (n *Node) TypeName() (string, bool) {
	switch n.Kind {
	case KindRoot, KindBranch, KindLeaf:
		if n.Record == nil {
			return "", false
		}
		return n.Record.Name, true
	case KindUnresolved:
		return "", false
	default:
		panic(fmt.Sprintf("hierarchy: unknown node kind %d", int(n.Kind)))
	}
}

// Walk visits n and its descendants depth-first in declaration order.
// depth is 0 for n. Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, child := range n.Children {
		child.walk(fn, depth+1)
	}
}

// Count returns the number of nodes in the tree rooted at n.
func (n *Node) Count() int {
	total := 0
	n.Walk(func(*Node, int) bool {
		total++
		return true
	})
	return total
}

// Depth returns the number of levels below n.
func (n *Node) Depth() int {
	deepest := 0
	n.Walk(func(_ *Node, depth int) bool {
		if depth > deepest {
			deepest = depth
		}
		return true
	})
	return deepest
}

type nodeJSON struct {
	Kind     Kind    `json:"kind"`
	Name     string  `json:"name"`
	Type     string  `json:"type,omitempty"`
	Ref      string  `json:"ref"`
	Path     string  `json:"path,omitempty"`
	Children []*Node `json:"children"`
}

// MarshalJSON writes the node for renderers.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{Kind: n.Kind, Name: n.Name, Ref: n.Ref, Children: n.Children}
	if out.Children == nil {
		out.Children = []*Node{}
	}
	if typeName, ok := n.TypeName(); ok {
		out.Type = typeName
		out.Path = n.Record.Path
	}
	return json.Marshal(out)
}
