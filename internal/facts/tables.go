package facts

import (
	"fmt"

	"github.com/robert-at-pretension-io/sv-hier/internal/hierarchy"
	"github.com/robert-at-pretension-io/sv-hier/internal/registry"
)

// Tables is the relational fact model of one analysis run.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Modules   []ModuleRow   `json:"modules"`
	Instances []InstanceRow `json:"instances"`
	Tops      []TopRow      `json:"tops"`
	Trees     []TreeRow     `json:"trees"`
}

type ModuleRow struct {
	Name       string `json:"name"`
	File       string `json:"file"`
	Ports      int    `json:"ports"`
	Parameters int    `json:"parameters"`
	Imports    int    `json:"imports"`
	Instances  int    `json:"instances"`
}

type InstanceRow struct {
	Parent   string `json:"parent"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	File     string `json:"file"`
	Resolved bool   `json:"resolved"`
}

// TopRow is a requested top module. File is empty when the top has no record.
type TopRow struct {
	Name  string `json:"name"`
	File  string `json:"file"`
	Order int    `json:"order"`
}

type TreeRow struct {
	Top         string `json:"top"`
	File        string `json:"file"`
	Fingerprint string `json:"fingerprint"`
	Nodes       int    `json:"nodes"`
	Depth       int    `json:"depth"`
	Unresolved  int    `json:"unresolved"`
}

// EmptyTables returns tables with every relation present and empty.
func EmptyTables() Tables {
	return Tables{
		Modules:   []ModuleRow{},
		Instances: []InstanceRow{},
		Tops:      []TopRow{},
		Trees:     []TreeRow{},
	}
}

// BuildTables flattens a registry and the forest built from it. Rows follow
// registry enumeration order and forest request order.
func BuildTables(reg *registry.Registry, forest *hierarchy.Forest) Tables {
	tables := EmptyTables()

	for _, rec := range reg.Records() {
		tables.Modules = append(tables.Modules, ModuleRow{
			Name:       rec.Name,
			File:       rec.Path,
			Ports:      len(rec.Ports),
			Parameters: len(rec.Parameters),
			Imports:    len(rec.Imports),
			Instances:  len(rec.Instances),
		})

		for _, inst := range rec.Instances {
			_, resolved := reg.Lookup(inst.Type)
			tables.Instances = append(tables.Instances, InstanceRow{
				Parent:   rec.Name,
				Name:     inst.Name,
				Type:     inst.Type,
				File:     rec.Path,
				Resolved: inst.Type != "" && resolved,
			})
		}
	}

	if forest == nil {
		return tables
	}

	for i, top := range forest.Tops {
		var file string
		if rec, ok := reg.Lookup(top); ok {
			file = rec.Path
		}
		tables.Tops = append(tables.Tops, TopRow{Name: top, File: file, Order: i})

		root := forest.Trees[top]
		unresolved := 0
		root.Walk(func(n *hierarchy.Node, _ int) bool {
			if n.Kind == hierarchy.KindUnresolved {
				unresolved++
			}
			return true
		})
		tables.Trees = append(tables.Trees, TreeRow{
			Top:         top,
			File:        file,
			Fingerprint: FormatFingerprint(hierarchy.Fingerprint(root)),
			Nodes:       root.Count(),
			Depth:       root.Depth(),
			Unresolved:  unresolved,
		})
	}

	return tables
}

// FormatFingerprint renders a tree fingerprint as 16 hex digits.
func FormatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}
