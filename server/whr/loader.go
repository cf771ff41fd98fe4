package whr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LoadGames bulk-loads delimited game records of the form
//
//	black <sep> white <sep> winner <sep> day [<sep> handicap] [<sep> extras]
//
// with 4 to 6 fields. winner is B or W (case-insensitive), handicap an
// integer, extras a JSON object. A record with five fields carries either a
// handicap or an extras object. An empty separator means a single space.
func (b *Base) LoadGames(records []string, separator string) error {
	if separator == "" {
		separator = " "
	}
	for _, line := range records {
		if err := b.loadGame(line, separator); err != nil {
			return err
		}
	}
	return nil
}

func (b *Base) loadGame(line, separator string) error {
	raw := strings.Split(line, separator)
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		parts = append(parts, strings.TrimSpace(part))
	}
	if len(parts) < 4 || len(parts) > 6 {
		return fmt.Errorf("%w: %q has %d fields", ErrBadRecord, line, len(parts))
	}

	black, white, winner := parts[0], parts[1], parts[2]
	day, err := strconv.Atoi(parts[3])
	if err != nil {
		return fmt.Errorf("%w: bad day in %q: %v", ErrBadRecord, line, err)
	}

	handicap := 0
	var extras map[string]any
	rest := parts[4:]

	switch len(rest) {
	case 1:
		// Either a handicap or an extras object.
		if h, err := strconv.Atoi(rest[0]); err == nil {
			handicap = h
		} else if extras, err = parseExtras(rest[0]); err != nil {
			return fmt.Errorf("%w: bad handicap or extras in %q", ErrBadRecord, line)
		}
	case 2:
		h, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("%w: bad handicap in %q: %v", ErrBadRecord, line, err)
		}
		handicap = h
		if extras, err = parseExtras(rest[1]); err != nil {
			return fmt.Errorf("%w: bad extras in %q: %v", ErrBadRecord, line, err)
		}
	}

	_, err = b.CreateGame(black, white, winner, day, float64(handicap), extras)
	return err
}

func parseExtras(s string) (map[string]any, error) {
	var extras map[string]any
	if err := json.Unmarshal([]byte(s), &extras); err != nil {
		return nil, err
	}
	return extras, nil
}
