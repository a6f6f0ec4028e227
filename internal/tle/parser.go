package tle

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrMalformed is returned when a payload is not a two-line element set.
var ErrMalformed = errors.New("malformed TLE payload")

// SplitPair decodes a two-line payload. The text must be valid UTF-8 and
// hold exactly two non-blank lines; CR and trailing spaces are stripped.
func SplitPair(payload []byte) (line1, line2 string, err error) {
	if !utf8.Valid(payload) {
		return "", "", fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformed)
	}

	lines, err := nonBlankLines(bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	if len(lines) != 2 {
		return "", "", fmt.Errorf("%w: got %d lines, want 2", ErrMalformed, len(lines))
	}
	return lines[0], lines[1], nil
}

// NewEntry reads the catalog number and epoch from line 1. It only checks
// the header columns; the element fields are validated by the propagator.
func NewEntry(name, line1, line2 string) (TLEEntry, error) {
	if len(line1) < 32 {
		return TLEEntry{}, fmt.Errorf("%w: line1 too short (%d chars)", ErrMalformed, len(line1))
	}
	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
		return TLEEntry{}, fmt.Errorf("%w: lines must start with \"1 \" and \"2 \"", ErrMalformed)
	}

	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return TLEEntry{}, fmt.Errorf("%w: invalid NORAD ID %q", ErrMalformed, noradStr)
	}

	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return TLEEntry{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return TLEEntry{
		NORADID: noradID,
		Name:    name,
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// Parse reads 3-line NORAD catalog format (name, line 1, line 2) from r.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]TLEEntry, error) {
	lines, err := nonBlankLines(r)
	if err != nil {
		return nil, err
	}

	var entries []TLEEntry
	for i := 0; i+2 < len(lines); {
		name := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(lines[i+1], "1 ") || !strings.HasPrefix(lines[i+2], "2 ") {
			// Resynchronize on the next line.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		entry, err := NewEntry(name, lines[i+1], lines[i+2])
		if err != nil {
			logger.Warn("skipping TLE entry", "name", name, "error", err)
			i += 3
			continue
		}
		entries = append(entries, entry)
		i += 3
	}

	return entries, nil
}

// SelectPair extracts one element set from seed data. A bare two-line
// payload is returned as is; otherwise the data is read as a 3-line catalog
// and the entry with noradID is chosen, or the first entry when noradID is 0.
func SelectPair(data []byte, noradID int, logger *slog.Logger) (line1, line2 string, err error) {
	if line1, line2, err := SplitPair(data); err == nil {
		return line1, line2, nil
	}

	entries, err := Parse(bytes.NewReader(data), logger)
	if err != nil {
		return "", "", err
	}
	for _, e := range entries {
		if noradID == 0 || e.NORADID == noradID {
			return e.Line1, e.Line2, nil
		}
	}
	if noradID != 0 {
		return "", "", fmt.Errorf("NORAD %d not found among %d entries", noradID, len(entries))
	}
	return "", "", fmt.Errorf("%w: no element sets found", ErrMalformed)
}

func nonBlankLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}
	return lines, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// Day 1 is Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
