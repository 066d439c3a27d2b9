package parity

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Dryxio/auto-re-agent/internal/core"
)

var hookAddrRe = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)

// ReadHooks reads the hook registry CSV. The standard column set is
// class, fn_name, address, reversed, locked, is_virtual; minimal CSVs with
// only address plus a combined "name" column also work. Rows without a
// valid 0x address are skipped. Unreversed hooks are dropped unless
// includeUnreversed is set.
func ReadHooks(path string, includeUnreversed bool) ([]core.HookEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hooks csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read hooks csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	get := func(row []string, name string) (string, bool) {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}
	getBool := func(row []string, name string, def bool) bool {
		v, ok := get(row, name)
		if !ok || v == "" {
			return def
		}
		return v != "0"
	}

	var out []core.HookEntry
	for _, row := range records[1:] {
		addr, _ := get(row, "address")
		if !hookAddrRe.MatchString(addr) {
			continue
		}

		rev := getBool(row, "reversed", true)
		if !includeUnreversed && !rev {
			continue
		}

		classPath, _ := get(row, "class")
		fnName, _ := get(row, "fn_name")
		if classPath == "" && fnName == "" {
			if full, ok := get(row, "name"); ok && full != "" {
				if i := strings.LastIndex(full, "::"); i >= 0 {
					classPath, fnName = full[:i], full[i+2:]
				} else {
					fnName = full
				}
			}
		}

		out = append(out, core.HookEntry{
			ClassPath: classPath,
			FnName:    fnName,
			Address:   strings.ToLower(addr),
			Reversed:  rev,
			Locked:    getBool(row, "locked", false),
			IsVirtual: getBool(row, "is_virtual", false),
		})
	}
	return out, nil
}
