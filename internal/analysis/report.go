package analysis

import (
	"github.com/robert-at-pretension-io/sv-hier/internal/facts"
	"github.com/robert-at-pretension-io/sv-hier/internal/hierarchy"
	"github.com/robert-at-pretension-io/sv-hier/internal/loader"
	"github.com/robert-at-pretension-io/sv-hier/internal/policy"
	"github.com/robert-at-pretension-io/sv-hier/internal/registry"
)

// Report is the JSON document printed by the CLI.
type Report struct {
	Files       []string             `json:"files"`
	TopModules  []string             `json:"top_modules"`
	Trees       []TreeReport         `json:"trees"`
	Cycles      []hierarchy.Cycle    `json:"cycles"`
	Missing     []string             `json:"missing"`
	Rejected    []registry.Rejection `json:"rejected"`
	ParseErrors []loader.ParseError  `json:"parse_errors"`
	Violations  []policy.Violation   `json:"violations"`
	Summary     policy.Summary       `json:"summary"`
}

// TreeReport is one expanded top module.
type TreeReport struct {
	Top         string          `json:"top"`
	Fingerprint string          `json:"fingerprint"`
	Tree        *hierarchy.Node `json:"tree"`
}

// Report assembles the JSON report. Every list is present, possibly empty.
func (r *Result) Report() Report {
	rep := Report{
		Files:       nonNil(r.Files),
		TopModules:  nonNil(r.Forest.Tops),
		Trees:       make([]TreeReport, 0, len(r.Forest.Tops)),
		Cycles:      append([]hierarchy.Cycle{}, r.Forest.Cycles...),
		Missing:     nonNil(r.Forest.Missing),
		Rejected:    append([]registry.Rejection{}, r.Rejected...),
		ParseErrors: append([]loader.ParseError{}, r.Load.ParseErrors...),
		Violations:  append([]policy.Violation{}, r.Lint.Violations...),
		Summary:     r.Lint.Summary,
	}
	for _, top := range r.Forest.Tops {
		tree := r.Forest.Trees[top]
		rep.Trees = append(rep.Trees, TreeReport{
			Top:         top,
			Fingerprint: facts.FormatFingerprint(hierarchy.Fingerprint(tree)),
			Tree:        tree,
		})
	}
	return rep
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
