package main

import (
	"fieldtrack/internal/config"
	"fieldtrack/internal/geoloc"
	"fieldtrack/internal/sink"
)

// newArchiveWriter sets up the sample archive based on config and env vars.
// It returns the writer and a cleanup function to close any resources.
func newArchiveWriter(cfg *config.TrackerConfig, printOnly bool) (sink.Writer, func(), error) {
	cleanup := func() {}

	var writer sink.Writer
	if printOnly || cfg.Archive.Endpoint == "" {
		writer = &sink.StdoutWriter{}
	} else {
		w, err := sink.NewGreptimeDBWriter(cfg.Archive.Endpoint, cfg.Archive.Database, cfg.Archive.Table)
		if err != nil {
			return nil, nil, err
		}
		writer = w
	}

	if cfg.Archive.LogFile == "" {
		return writer, cleanup, nil
	}

	fw, err := sink.NewFileWriter(cfg.Archive.LogFile)
	if err != nil {
		return nil, nil, err
	}
	cleanup = func() { fw.Close() }
	return sink.NewMultiWriter(writer, fw), cleanup, nil
}

// newProvider selects the position source from config. The returned cleanup
// closes any underlying device.
func newProvider(cfg *config.TrackerConfig) (geoloc.Provider, func(), error) {
	if cfg.Provider.Kind == "nmea" {
		p, err := geoloc.OpenNMEA(cfg.Provider.Port, cfg.Provider.Baud)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	}
	return geoloc.NewSimProvider(cfg.Provider.CenterLat, cfg.Provider.CenterLng), func() {}, nil
}
