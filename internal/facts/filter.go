package facts

// FilterTablesByFiles returns a new Tables object containing only the rows
// whose file is present in the provided file set.
func FilterTablesByFiles(tables Tables, files map[string]bool) Tables {
	out := EmptyTables()
	if len(files) == 0 {
		return out
	}

	for _, row := range tables.Modules {
		if files[row.File] {
			out.Modules = append(out.Modules, row)
		}
	}
	for _, row := range tables.Instances {
		if files[row.File] {
			out.Instances = append(out.Instances, row)
		}
	}
	for _, row := range tables.Tops {
		if files[row.File] {
			out.Tops = append(out.Tops, row)
		}
	}
	for _, row := range tables.Trees {
		if files[row.File] {
			out.Trees = append(out.Trees, row)
		}
	}

	return out
}

// FilterDeltaByFiles returns a new Delta containing only rows for the specified files.
func FilterDeltaByFiles(delta Delta, files map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByFiles(delta.Added, files),
		Removed: FilterTablesByFiles(delta.Removed, files),
	}
}
