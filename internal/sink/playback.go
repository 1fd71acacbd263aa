package sink

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// Replay replays sample records from r to writer. A speed >0 accelerates
// playback. If speed <= 0, no artificial delay is inserted.
func Replay(r io.Reader, writer Writer, speed float64) error {
	dec := json.NewDecoder(r)
	var prev time.Time
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if !prev.IsZero() && speed > 0 {
			diff := rec.CapturedAt.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				time.Sleep(diff)
			}
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
		prev = rec.CapturedAt
	}
}

// ReplayFile opens a file and replays its sample records.
func ReplayFile(path string, writer Writer, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Replay(f, writer, speed)
}
