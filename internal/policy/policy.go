// Package policy runs lint rules written in Rego over an analysed hierarchy.
package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/rego"

	"github.com/robert-at-pretension-io/sv-hier/internal/config"
	"github.com/robert-at-pretension-io/sv-hier/internal/hierarchy"
	"github.com/robert-at-pretension-io/sv-hier/internal/registry"
)

//go:embed hierarchy.rego
var builtinPolicy string

const violationsQuery = "data.svhier.lint.all_violations"

// Engine evaluates the lint policies against hierarchy facts
type Engine struct {
	query rego.PreparedEvalQuery
}

// Violation represents a policy violation
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	File     string `json:"file"`
	Module   string `json:"module"`
	Message  string `json:"message"`
}

// Result contains the evaluation results after configuration is applied
type Result struct {
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// Summary provides aggregate counts
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// Input is the data structure passed to OPA
type Input struct {
	Modules    []Module             `json:"modules"`
	Instances  []Instance           `json:"instances"`
	TopModules []string             `json:"top_modules"`
	Cycles     []hierarchy.Cycle    `json:"cycles"`
	Overrides  []registry.Override  `json:"overrides"`
	Rejected   []registry.Rejection `json:"rejected"`
	Missing    []string             `json:"missing"`
	Unreadable []Unreadable         `json:"unreadable"`
}

// Unreadable is a record file that could not be read or parsed at all.
type Unreadable struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

type Module struct {
	Name string `json:"name"`
	File string `json:"file"`
}

type Instance struct {
	Parent   string `json:"parent"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	File     string `json:"file"`
	Resolved bool   `json:"resolved"`
}

// New prepares the built-in rules plus every .rego file in policyDir.
// An empty policyDir uses the built-in rules only.
func New(policyDir string) (*Engine, error) {
	opts := []func(*rego.Rego){
		rego.Module("hierarchy.rego", builtinPolicy),
	}

	if policyDir != "" {
		files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("finding policy files: %w", err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no policy files found in %s", policyDir)
		}
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			opts = append(opts, rego.Module(f, string(content)))
		}
	}

	opts = append(opts, rego.Query(violationsQuery))
	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("preparing violations query: %w", err)
	}
	return &Engine{query: query}, nil
}

// BuildInput flattens the registry and forest into policy input.
func BuildInput(reg *registry.Registry, forest *hierarchy.Forest, rejected []registry.Rejection) Input {
	input := Input{
		Modules:    []Module{},
		Instances:  []Instance{},
		TopModules: hierarchy.TopModules(reg),
		Cycles:     []hierarchy.Cycle{},
		Overrides:  append([]registry.Override{}, reg.Overrides()...),
		Rejected:   append([]registry.Rejection{}, rejected...),
		Missing:    []string{},
		Unreadable: []Unreadable{},
	}

	for _, rec := range reg.Records() {
		input.Modules = append(input.Modules, Module{Name: rec.Name, File: rec.Path})
		for _, inst := range rec.Instances {
			_, resolved := reg.Lookup(inst.Type)
			input.Instances = append(input.Instances, Instance{
				Parent:   rec.Name,
				Name:     inst.Name,
				Type:     inst.Type,
				File:     rec.Path,
				Resolved: inst.Type != "" && resolved,
			})
		}
	}

	if forest != nil {
		input.Cycles = append(input.Cycles, forest.Cycles...)
		input.Missing = append(input.Missing, forest.Missing...)
	}
	return input
}

// Evaluate runs the policies against the input data
func (e *Engine) Evaluate(ctx context.Context, input Input) ([]Violation, error) {
	inputMap, err := structToMap(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}

	violations := []Violation{}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return violations, nil
	}
	values, ok := rs[0].Expressions[0].Value.([]interface{})
	if !ok {
		return violations, nil
	}
	for _, v := range values {
		vmap, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		violations = append(violations, Violation{
			Rule:     getString(vmap, "rule"),
			Severity: getString(vmap, "severity"),
			File:     getString(vmap, "file"),
			Module:   getString(vmap, "module"),
			Message:  getString(vmap, "message"),
		})
	}
	return violations, nil
}

// Apply drops disabled rules, applies configured severities and sorts the
// remaining violations by file, module, rule and message.
func Apply(cfg *config.Config, violations []Violation) Result {
	result := Result{Violations: []Violation{}}
	for _, v := range violations {
		if cfg != nil {
			if !cfg.IsRuleEnabled(v.Rule) {
				continue
			}
			v.Severity = cfg.GetRuleSeverity(v.Rule, v.Severity)
		}
		result.Violations = append(result.Violations, v)
	}

	sort.Slice(result.Violations, func(i, j int) bool {
		a, b := result.Violations[i], result.Violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})

	for _, v := range result.Violations {
		result.Summary.TotalViolations++
		switch v.Severity {
		case "error":
			result.Summary.Errors++
		case "warning":
			result.Summary.Warnings++
		case "info":
			result.Summary.Info++
		}
	}
	return result
}

// HasErrors reports whether any violation is an error.
func (r Result) HasErrors() bool {
	return r.Summary.Errors > 0
}

// Helper functions
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
