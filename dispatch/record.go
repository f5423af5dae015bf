package dispatch

import (
	"bytes"
	"encoding/json"
)

// Record is one output item, the downstream json exactly as received
type Record = json.RawMessage

var invalidActionRecord = Record(`{"success":false,"message":"Invalid action"}`)

// Records splits a response body into output records: one per element of a
// json array, otherwise the whole body as a single record
func Records(raw json.RawMessage) ([]Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []Record{trimmed}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	records := make([]Record, len(items))
	copy(records, items)
	return records, nil
}
