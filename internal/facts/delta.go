package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

// IsEmpty reports whether the snapshots were identical.
func (d Delta) IsEmpty() bool {
	return d.Added.rowCount() == 0 && d.Removed.rowCount() == 0
}

func (t Tables) rowCount() int {
	return len(t.Modules) + len(t.Instances) + len(t.Tops) + len(t.Trees)
}

func diffTables(from, to Tables) Tables {
	out := EmptyTables()

	out.Modules = diffRows(from.Modules, to.Modules, func(r ModuleRow) string {
		return r.Name + "|" + r.File + "|" + strconv.Itoa(r.Ports) + "|" + strconv.Itoa(r.Parameters) + "|" +
			strconv.Itoa(r.Imports) + "|" + strconv.Itoa(r.Instances)
	})
	out.Instances = diffRows(from.Instances, to.Instances, func(r InstanceRow) string {
		return r.Parent + "|" + r.Name + "|" + r.Type + "|" + r.File + "|" + boolKey(r.Resolved)
	})
	out.Tops = diffRows(from.Tops, to.Tops, func(r TopRow) string {
		return r.Name + "|" + r.File + "|" + strconv.Itoa(r.Order)
	})
	out.Trees = diffRows(from.Trees, to.Trees, func(r TreeRow) string {
		return r.Top + "|" + r.File + "|" + r.Fingerprint + "|" + strconv.Itoa(r.Nodes) + "|" + strconv.Itoa(r.Depth) + "|" +
			strconv.Itoa(r.Unresolved)
	})

	return out
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
