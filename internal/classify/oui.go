package classify

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

// A full IEEE OUI registry is megabytes; we embed a small table of vendors
// that actually show up on home and small-office networks and allow a
// larger file to be supplied at runtime. Lookup misses are normal and mean
// "no vendor opinion", not an error.

//go:embed oui_prefixes.csv
var embeddedOUI string

// OUITable maps 6-hex-digit MAC prefixes to vendor names.
type OUITable struct {
	prefixes map[string]string
}

// NewOUITable builds a table from the embedded prefix list.
func NewOUITable() *OUITable {
	t := &OUITable{prefixes: make(map[string]string)}
	t.parse(strings.NewReader(embeddedOUI))
	return t
}

// LoadFile merges prefixes from a CSV file ("prefix,vendor" per line) on
// top of the embedded table. File entries win on conflict.
func (t *OUITable) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open OUI file: %w", err)
	}
	defer f.Close()

	t.parse(f)
	return nil
}

func (t *OUITable) parse(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(strings.ToUpper(line), "OUI") || strings.HasPrefix(line, "#") {
			continue
		}

		prefix, vendor, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}

		oui := normalizeHex(prefix)
		vendor = strings.TrimSpace(vendor)
		if len(oui) >= 6 && vendor != "" {
			t.prefixes[oui[:6]] = vendor
		}
	}
}

// Lookup returns the vendor for a MAC address, or "" when the prefix is
// unknown or the MAC is malformed.
func (t *OUITable) Lookup(mac string) string {
	if mac == "" {
		return ""
	}

	normalized := normalizeHex(mac)
	if len(normalized) < 6 {
		return ""
	}

	return t.prefixes[normalized[:6]]
}

// Len reports the number of known prefixes.
func (t *OUITable) Len() int {
	return len(t.prefixes)
}

// normalizeHex strips separators and upper-cases the hex digits.
func normalizeHex(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c >= 'a' && c <= 'f':
			b.WriteRune(c - 'a' + 'A')
		case c >= 'A' && c <= 'F':
			b.WriteRune(c)
		}
	}
	return b.String()
}
