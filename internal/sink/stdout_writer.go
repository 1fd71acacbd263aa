// Writer implementation printing samples to STDOUT
package sink

import (
	"encoding/json"
	"fmt"
)

// StdoutWriter prints sample records to STDOUT as JSON lines.
type StdoutWriter struct{}

// Write outputs a single record.
func (w *StdoutWriter) Write(r Record) error {
	data, _ := json.Marshal(r)
	fmt.Println(string(data))
	return nil
}

// WriteBatch outputs multiple records.
func (w *StdoutWriter) WriteBatch(rows []Record) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}
