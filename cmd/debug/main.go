// debug prints how each entry of one record file is seen by the loader:
// schema problems, decode problems, and the decoded record.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/robert-at-pretension-io/sv-hier/internal/record"
	"github.com/robert-at-pretension-io/sv-hier/internal/validator"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: debug <record-file.json>")
		os.Exit(1)
	}
	path := os.Args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	raws, err := record.Split(path, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	v, err := validator.NewRecordValidator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d entries\n", path, len(raws))
	for i, raw := range raws {
		fmt.Printf("\n[%d]\n", i)
		for _, problem := range v.ValidationErrors(raw) {
			fmt.Printf("  schema: %s\n", problem)
		}

		rec, merr := record.DecodeEntry(path, i, raw)
		if merr != nil {
			fmt.Printf("  decode: %s\n", merr.Reason)
			continue
		}
		fmt.Printf("  module=%s path=%s ports=%d parameters=%d imports=%d\n",
			rec.Name, rec.Path, len(rec.Ports), len(rec.Parameters), len(rec.Imports))
		for _, inst := range rec.Instances {
			typeName := inst.Type
			if typeName == "" {
				typeName = "<none>"
			}
			fmt.Printf("    %s : %s\n", inst.Name, typeName)
		}
		wire, _ := json.Marshal(rec)
		fmt.Printf("  wire=%s\n", wire)
	}
}
