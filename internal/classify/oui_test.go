package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLookupNormalizesNotation(t *testing.T) {
	table := NewOUITable()

	for _, mac := range []string{
		"b8:27:eb:12:34:56",
		"B8-27-EB-12-34-56",
		"b827.eb12.3456",
		"B827EB123456",
	} {
		if got := table.Lookup(mac); got != "Raspberry Pi Foundation" {
			t.Fatalf("Lookup(%q) = %q, want Raspberry Pi Foundation", mac, got)
		}
	}
}

func TestLookupMissAndMalformed(t *testing.T) {
	table := NewOUITable()

	if got := table.Lookup("02:00:00:aa:bb:cc"); got != "" {
		t.Fatalf("expected miss for locally administered MAC, got %q", got)
	}
	if got := table.Lookup(""); got != "" {
		t.Fatalf("expected empty result for empty MAC, got %q", got)
	}
	if got := table.Lookup("zz:zz"); got != "" {
		t.Fatalf("expected empty result for malformed MAC, got %q", got)
	}
}

func TestLoadFileMergesAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oui.csv")
	content := "# prefix,vendor\nAA:BB:CC,Example Labs\nB8:27:EB,Overridden Vendor\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	table := NewOUITable()
	before := table.Len()

	if err := table.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if table.Len() != before+1 {
		t.Fatalf("expected one new prefix, had %d now %d", before, table.Len())
	}
	if got := table.Lookup("aa:bb:cc:00:00:01"); got != "Example Labs" {
		t.Fatalf("merged prefix lookup = %q", got)
	}
	if got := table.Lookup("b8:27:eb:00:00:01"); got != "Overridden Vendor" {
		t.Fatalf("file entry should win on conflict, got %q", got)
	}
}

func TestLoadFileMissing(t *testing.T) {
	table := NewOUITable()
	if err := table.LoadFile(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
