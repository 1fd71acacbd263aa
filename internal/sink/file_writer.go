package sink

import (
	"encoding/json"
	"os"
)

// FileWriter writes sample records to a JSONL file, one record per line.
// The format feeds straight back into Replay.
type FileWriter struct {
	file *os.File
	enc  *json.Encoder
}

// NewFileWriter creates (or truncates) the log file at path.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// Write logs a single record.
func (f *FileWriter) Write(r Record) error {
	return f.enc.Encode(r)
}

// WriteBatch logs multiple records.
func (f *FileWriter) WriteBatch(rows []Record) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the underlying file.
func (f *FileWriter) Close() error {
	return f.file.Close()
}
