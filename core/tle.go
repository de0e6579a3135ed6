package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// TLEEntry is a single satellite's two-line element set.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// TLESet is the result of parsing a NORAD 3-line catalogue.
type TLESet struct {
	Entries []TLEEntry
	// Skipped names entries that were dropped as malformed.
	Skipped []string
}

// ParseTLE reads 3-line NORAD TLE format from r. Malformed entries are
// skipped and reported in Skipped; only I/O errors fail the call.
func ParseTLE(r io.Reader) (*TLESet, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	set := &TLESet{}
	for i := 0; i+2 < len(lines); {
		name := strings.TrimSpace(lines[i])
		line1 := lines[i+1]
		line2 := lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resynchronise on the next line.
			set.Skipped = append(set.Skipped, name)
			i++
			continue
		}
		if len(line1) < 32 {
			set.Skipped = append(set.Skipped, name)
			i += 3
			continue
		}

		noradID, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
		if err != nil {
			set.Skipped = append(set.Skipped, name)
			i += 3
			continue
		}
		epoch, err := parseTLEEpoch(strings.TrimSpace(line1[18:32]))
		if err != nil {
			set.Skipped = append(set.Skipped, name)
			i += 3
			continue
		}

		set.Entries = append(set.Entries, TLEEntry{
			NORADID: noradID,
			Name:    name,
			Epoch:   epoch,
			Line1:   line1,
			Line2:   line2,
		})
		i += 3
	}
	return set, nil
}

// LatestEpoch returns the newest element epoch in the set, or the zero
// time for an empty set.
func (s *TLESet) LatestEpoch() time.Time {
	var latest time.Time
	for _, e := range s.Entries {
		if e.Epoch.After(latest) {
			latest = e.Epoch
		}
	}
	return latest
}

// parseTLEEpoch converts YYDDD.DDDDDDDD to a UTC time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseTLEEpoch(s string) (time.Time, error) {
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

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
