// names.go - soundcmds.csv sidecar loader (component H)

package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CommandNames maps command ids to a human-readable label, loaded from an
// optional "id,name" sidecar CSV (spec.md §7's soundcmds.csv convention).
type CommandNames map[int]string

// LoadCommandNames reads a two-column "id,name" CSV. A missing file is not
// an error: callers get an empty map and fall back to numeric ids.
func LoadCommandNames(path string) (CommandNames, error) {
	names := CommandNames{}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return names, nil
		}
		return nil, fmt.Errorf("load command names: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("load command names: %w", err)
	}

	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		idField := strings.TrimSpace(row[0])
		if i == 0 && strings.EqualFold(idField, "id") {
			continue // header row
		}
		id, err := strconv.Atoi(idField)
		if err != nil {
			continue
		}
		names[id] = strings.TrimSpace(row[1])
	}

	return names, nil
}

// Lookup returns the name for cmd, or a "cmd_N" fallback when unnamed.
func (n CommandNames) Lookup(cmd int) string {
	if name, ok := n[cmd]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("cmd_%d", cmd)
}
