package history

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
)

// Encode renders readings one per line as "epoch_millis,pressure,altitude".
// Floats use the shortest representation that parses back to the same value.
func Encode(readings []domain.Reading) []byte {
	var buf bytes.Buffer
	for i, r := range readings {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(strconv.FormatInt(r.Time.UnixMilli(), 10))
		buf.WriteByte(',')
		buf.WriteString(strconv.FormatFloat(r.Pressure, 'g', -1, 64))
		buf.WriteByte(',')
		buf.WriteString(strconv.FormatFloat(r.Altitude, 'g', -1, 64))
	}
	return buf.Bytes()
}

// Decode parses lines produced by Encode. Blank lines are skipped; any
// malformed line fails the whole decode.
func Decode(lines []string) ([]domain.Reading, error) {
	readings := make([]domain.Reading, 0, len(lines))
	for n, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r, err := decodeLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		readings = append(readings, r)
	}
	return readings, nil
}

// storedTime reduces t to what survives an encode and decode round trip.
func storedTime(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

func decodeLine(line string) (domain.Reading, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return domain.Reading{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	millis, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("parse time: %w", err)
	}
	pressure, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("parse pressure: %w", err)
	}
	altitude, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("parse altitude: %w", err)
	}
	return domain.Reading{
		Time:     storedTime(time.UnixMilli(millis)),
		Pressure: pressure,
		Altitude: altitude,
	}, nil
}
