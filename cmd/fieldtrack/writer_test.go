package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fieldtrack/internal/config"
	"fieldtrack/internal/sink"
)

func TestNewArchiveWriterPrintOnly(t *testing.T) {
	cfg := &config.TrackerConfig{}
	w, cleanup, err := newArchiveWriter(cfg, true)
	if err != nil {
		t.Fatalf("newArchiveWriter returned error: %v", err)
	}
	cleanup()
	if _, ok := w.(*sink.StdoutWriter); !ok {
		t.Fatalf("expected *sink.StdoutWriter, got %T", w)
	}
}

func TestNewArchiveWriterNoEndpointFallsBack(t *testing.T) {
	cfg := &config.TrackerConfig{}
	cfg.Archive.Endpoint = ""
	w, cleanup, err := newArchiveWriter(cfg, false)
	if err != nil {
		t.Fatalf("newArchiveWriter returned error: %v", err)
	}
	cleanup()
	if _, ok := w.(*sink.StdoutWriter); !ok {
		t.Fatalf("expected *sink.StdoutWriter, got %T", w)
	}
}

func TestNewArchiveWriterLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.log")
	cfg := &config.TrackerConfig{}
	cfg.Archive.LogFile = path

	w, cleanup, err := newArchiveWriter(cfg, true)
	if err != nil {
		t.Fatalf("newArchiveWriter returned error: %v", err)
	}
	defer cleanup()
	if _, ok := w.(*sink.MultiWriter); !ok {
		t.Fatalf("expected *sink.MultiWriter, got %T", w)
	}

	rec := sink.Record{DeviceID: "d1", SessionID: "s1", Lat: 48.1, Lng: 11.5, AccuracyM: 12, CapturedAt: time.Now()}
	if err := w.Write(rec); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected log file to be non-empty")
	}
}

func TestNewProviderDefaultsToSim(t *testing.T) {
	cfg := &config.TrackerConfig{}
	cfg.Provider.Kind = "sim"
	p, cleanup, err := newProvider(cfg)
	if err != nil {
		t.Fatalf("newProvider returned error: %v", err)
	}
	defer cleanup()
	if p == nil {
		t.Fatal("expected provider")
	}
}

func TestParseBranch(t *testing.T) {
	b, err := parseBranch("North Branch, 10.2, 76.1, 12 Hill Road")
	if err != nil {
		t.Fatalf("parseBranch returned error: %v", err)
	}
	if b.Name != "North Branch" || b.Lat != 10.2 || b.Lng != 76.1 || b.Address != "12 Hill Road" {
		t.Errorf("unexpected branch: %+v", b)
	}

	if _, err := parseBranch("missing-coords"); err == nil {
		t.Fatal("expected error for malformed branch spec")
	}
	if _, err := parseBranch("x,abc,1.0"); err == nil {
		t.Fatal("expected error for non-numeric latitude")
	}
}
