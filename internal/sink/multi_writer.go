package sink

// MultiWriter fans sample records out to multiple writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Write sends a record to all writers.
func (mw *MultiWriter) Write(r Record) error {
	for _, w := range mw.writers {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple records to all writers, using batch mode where supported.
func (mw *MultiWriter) WriteBatch(rows []Record) error {
	for _, w := range mw.writers {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
	return nil
}
