package downloads

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// OriginStore recovers the list of origin URL candidates attached to a
// downloaded file. The false return covers every ignorable case: no metadata
// on the file, unreadable metadata, or metadata that does not decode.
type OriginStore interface {
	Origins(path string) ([]string, bool)
}

// Record is one audited download: the file plus the first origin URL that
// satisfied the filter.
type Record struct {
	Path   string
	Source *url.URL
}

// Filter narrows the audit result set.
type Filter struct {
	// Patterns to match origin hosts against. Empty means match any host.
	Patterns []DomainPattern
	// MinAge, when set, only admits files created before now minus this
	// duration. The age check runs once per file, not per URL.
	MinAge *time.Duration
}

func (f Filter) matchesHost(host string) bool {
	if len(f.Patterns) == 0 {
		return true
	}
	for _, pattern := range f.Patterns {
		if pattern.Matches(host) {
			return true
		}
	}
	return false
}

// Auditor scans a downloads directory for files whose recorded origin matches
// a filter.
type Auditor struct {
	Store  OriginStore
	Logger *slog.Logger

	// Now and CreatedAt exist so tests can pin the clock and file ages.
	Now       func() time.Time
	CreatedAt func(path string, info os.FileInfo) time.Time
}

// Scan walks the directory once and returns at most one record per file,
// sorted by file name for deterministic output. Files without usable origin
// metadata are skipped silently.
func (a *Auditor) Scan(dir string, filter Filter) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read downloads directory: %w", err)
	}

	var cutoff time.Time
	if filter.MinAge != nil {
		cutoff = a.now().Add(-*filter.MinAge)
	}

	var records []Record
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		candidates, ok := a.Store.Origins(path)
		if !ok {
			continue
		}

		if filter.MinAge != nil {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if !a.createdAt(path, info).Before(cutoff) {
				continue
			}
		}

		for _, candidate := range candidates {
			source, err := url.Parse(candidate)
			if err != nil || source.Scheme == "" || source.Host == "" {
				continue
			}
			if filter.matchesHost(source.Host) {
				records = append(records, Record{Path: path, Source: source})
				break
			}
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return filepath.Base(records[i].Path) < filepath.Base(records[j].Path)
	})
	return records, nil
}

// Remove deletes every matched file, best effort: a file that cannot be
// removed is skipped and the count of successful deletions is returned.
func (a *Auditor) Remove(records []Record) int {
	deleted := 0
	for _, record := range records {
		if err := os.Remove(record.Path); err != nil {
			a.logger().Debug("delete skipped", "path", record.Path, "error", err)
			continue
		}
		deleted++
	}
	return deleted
}

func (a *Auditor) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Auditor) createdAt(path string, info os.FileInfo) time.Time {
	if a.CreatedAt != nil {
		return a.CreatedAt(path, info)
	}
	return creationTime(info)
}

func (a *Auditor) logger() *slog.Logger {
	if a != nil && a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
