package geoloc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// hdopMeters converts horizontal dilution of precision into an accuracy
// radius, assuming a nominal 5 m user-equivalent range error.
const hdopMeters = 5.0

// ParseGGA parses an NMEA GGA sentence into a Sample. The second return
// value is false for sentences that are valid but carry no fix.
func ParseGGA(line string) (Sample, bool, error) {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, '*'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Split(line, ",")
	if len(fields) < 9 || !strings.HasSuffix(fields[0], "GGA") {
		return Sample{}, false, fmt.Errorf("not a GGA sentence: %q", fields[0])
	}

	quality := fields[6]
	if quality == "" || quality == "0" {
		return Sample{}, false, nil
	}

	lat, err := parseCoordinate(fields[2], fields[3])
	if err != nil {
		return Sample{}, false, fmt.Errorf("latitude: %w", err)
	}
	lng, err := parseCoordinate(fields[4], fields[5])
	if err != nil {
		return Sample{}, false, fmt.Errorf("longitude: %w", err)
	}

	hdop := 1.0
	if fields[8] != "" {
		hdop, err = strconv.ParseFloat(fields[8], 64)
		if err != nil {
			return Sample{}, false, fmt.Errorf("hdop: %w", err)
		}
	}

	return Sample{
		Lat:        lat,
		Lng:        lng,
		AccuracyM:  hdop * hdopMeters,
		CapturedAt: time.Now().UTC(),
	}, true, nil
}

// parseCoordinate converts NMEA ddmm.mmmm plus hemisphere into decimal
// degrees. Longitudes use dddmm.mmmm; the split point is two digits of
// minutes ahead of the decimal either way.
func parseCoordinate(value, hemisphere string) (float64, error) {
	if value == "" || hemisphere == "" {
		return 0, fmt.Errorf("empty coordinate")
	}
	dot := strings.IndexByte(value, '.')
	if dot < 2 {
		return 0, fmt.Errorf("malformed coordinate %q", value)
	}
	deg, err := strconv.ParseFloat(value[:dot-2], 64)
	if err != nil {
		return 0, err
	}
	min, err := strconv.ParseFloat(value[dot-2:], 64)
	if err != nil {
		return 0, err
	}
	out := deg + min/60
	switch hemisphere {
	case "S", "W":
		out = -out
	case "N", "E":
	default:
		return 0, fmt.Errorf("unknown hemisphere %q", hemisphere)
	}
	return out, nil
}
