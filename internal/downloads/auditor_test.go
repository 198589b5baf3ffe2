package downloads

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeStore serves origin URLs keyed by file base name. Files without an
// entry behave like files without readable metadata.
type fakeStore map[string][]string

func (s fakeStore) Origins(path string) ([]string, bool) {
	urls, ok := s[filepath.Base(path)]
	return urls, ok
}

func writeFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestScanFiltersByDomain(t *testing.T) {
	dir := writeFiles(t, "tool.dmg", "notes.pdf", "plain.txt")
	auditor := &Auditor{Store: fakeStore{
		"tool.dmg":  {"https://whatever.sentry.io/download"},
		"notes.pdf": {"https://other.com/notes"},
	}}

	records, err := auditor.Scan(dir, Filter{Patterns: []DomainPattern{"*.sentry.io"}})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1: %#v", len(records), records)
	}
	if base := filepath.Base(records[0].Path); base != "tool.dmg" {
		t.Fatalf("matched %s, want tool.dmg", base)
	}
	if records[0].Source.Host != "whatever.sentry.io" {
		t.Fatalf("source host = %s", records[0].Source.Host)
	}
}

func TestScanEmptyFilterMatchesAnyHost(t *testing.T) {
	dir := writeFiles(t, "z.bin", "a.bin")
	auditor := &Auditor{Store: fakeStore{
		"z.bin": {"https://one.example/x"},
		"a.bin": {"https://two.example/y"},
	}}

	records, err := auditor.Scan(dir, Filter{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// deterministic ordering by file name
	if filepath.Base(records[0].Path) != "a.bin" || filepath.Base(records[1].Path) != "z.bin" {
		t.Fatalf("records out of order: %v, %v", records[0].Path, records[1].Path)
	}
}

func TestScanTakesFirstMatchingURL(t *testing.T) {
	dir := writeFiles(t, "mixed.zip")
	auditor := &Auditor{Store: fakeStore{
		"mixed.zip": {
			"not a url at all",
			"https://unrelated.example/ref",
			"https://good.sentry.io/artifact",
			"https://also.sentry.io/second",
		},
	}}

	records, err := auditor.Scan(dir, Filter{Patterns: []DomainPattern{"*.sentry.io"}})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Source.Host != "good.sentry.io" {
		t.Fatalf("source host = %s, want first matching URL", records[0].Source.Host)
	}
}

func TestScanAgeCutoff(t *testing.T) {
	dir := writeFiles(t, "old.dmg", "recent.dmg")
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	created := map[string]time.Time{
		"old.dmg":    now.Add(-5 * 24 * time.Hour),
		"recent.dmg": now.Add(-1 * 24 * time.Hour),
	}

	auditor := &Auditor{
		Store: fakeStore{
			"old.dmg":    {"https://dl.example/a"},
			"recent.dmg": {"https://dl.example/b"},
		},
		Now: func() time.Time { return now },
		CreatedAt: func(path string, _ os.FileInfo) time.Time {
			return created[filepath.Base(path)]
		},
	}

	minAge := 3 * 24 * time.Hour
	records, err := auditor.Scan(dir, Filter{MinAge: &minAge})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(records) != 1 || filepath.Base(records[0].Path) != "old.dmg" {
		t.Fatalf("got %#v, want only old.dmg", records)
	}
}

func TestRemoveIsBestEffort(t *testing.T) {
	dir := writeFiles(t, "doomed.bin")
	auditor := &Auditor{Store: fakeStore{}}

	records := []Record{
		{Path: filepath.Join(dir, "doomed.bin")},
		{Path: filepath.Join(dir, "never-existed.bin")},
	}

	if deleted := auditor.Remove(records); deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if _, err := os.Stat(records[0].Path); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
}
