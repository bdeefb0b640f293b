package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/robert-at-pretension-io/sv-hier/internal/analysis"
	"github.com/robert-at-pretension-io/sv-hier/internal/hierarchy"
)

// renderForest prints each tree with box-drawing guides:
//
//	top
//	├── u_a (a)
//	│   └── u_x (x) [unresolved]
//	└── u_b (b)
func renderForest(w io.Writer, forest *hierarchy.Forest) error {
	if len(forest.Tops) == 0 {
		_, err := fmt.Fprintln(w, "(no top module)")
		return err
	}
	var sb strings.Builder
	for i, root := range forest.Roots() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(nodeLabel(root))
		sb.WriteByte('\n')
		renderChildren(&sb, root.Children, "")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func renderChildren(sb *strings.Builder, children []*hierarchy.Node, prefix string) {
	for i, child := range children {
		last := i == len(children)-1
		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}
		sb.WriteString(prefix)
		sb.WriteString(branch)
		sb.WriteString(nodeLabel(child))
		sb.WriteByte('\n')
		renderChildren(sb, child.Children, prefix+indent)
	}
}

func nodeLabel(n *hierarchy.Node) string {
	switch n.Kind {
	case hierarchy.KindRoot:
		return n.Name
	case hierarchy.KindBranch, hierarchy.KindLeaf:
		return fmt.Sprintf("%s (%s)", n.Name, n.Ref)
	case hierarchy.KindUnresolved:
		if n.Name == n.Ref {
			return n.Name + " [unresolved]"
		}
		return fmt.Sprintf("%s (%s) [unresolved]", n.Name, n.Ref)
	default:
		panic(fmt.Sprintf("unknown node kind %d", int(n.Kind)))
	}
}

func renderLint(w io.Writer, res *analysis.Result) {
	for _, pe := range res.Load.ParseErrors {
		fmt.Fprintf(w, "%s: unreadable record file: %s\n", pe.File, pe.Message)
	}
	for _, v := range res.Lint.Violations {
		location := v.File
		if location == "" {
			location = "-"
		}
		fmt.Fprintf(w, "%s: %s [%s] %s\n", location, v.Severity, v.Rule, v.Message)
	}
	s := res.Lint.Summary
	fmt.Fprintf(w, "\n%d files, %d modules, %d violations (%d errors, %d warnings, %d info)\n",
		len(res.Files), res.Registry.Len(), s.TotalViolations, s.Errors, s.Warnings, s.Info)
}
