package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/timelock/internal/digest"
)

// padUint renders v as 20-digit zero-padded text so that SQLite's text
// ordering agrees with numeric ordering for every uint64.
func padUint(v uint64) string {
	return fmt.Sprintf("%020d", v)
}

// parseUint reverses padUint.
func parseUint(column, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", column, err)
	}
	return v, nil
}

// marshalDetail converts event detail to canonical JSON TEXT for storage.
func marshalDetail(detail map[string]string) (string, error) {
	if detail == nil {
		detail = map[string]string{}
	}
	data, err := digest.MarshalCanonical(detail)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(data), nil
}

// unmarshalDetail parses stored detail. An empty object yields nil, which
// matches what MemoryStore returns.
func unmarshalDetail(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var detail map[string]string
	if err := json.Unmarshal([]byte(data), &detail); err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	return cloneDetail(detail), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
