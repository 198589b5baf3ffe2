package volume

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestComputeExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	expiry := ComputeExpiry(now, 7)
	if got, want := expiry.Sub(now), 7*24*time.Hour; got != want {
		t.Fatalf("expiry offset = %v, want %v", got, want)
	}

	// sub-second precision must not survive into the stored instant
	noisy := now.Add(123 * time.Millisecond)
	if expiry := ComputeExpiry(noisy, 1); expiry.Nanosecond() != 0 {
		t.Fatalf("expiry carries nanoseconds: %v", expiry)
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"before now", now.Add(-time.Second), true},
		{"exactly now", now, false},
		{"after now", now.Add(time.Second), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsExpired(tc.expiry, now); got != tc.want {
				t.Fatalf("IsExpired(%v, %v) = %t, want %t", tc.expiry, now, got, tc.want)
			}
		})
	}
}

func TestMarkerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	expiry := time.Date(2024, 6, 15, 8, 30, 45, 0, time.UTC)

	if err := WriteMarker(dir, expiry); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	got, ok := ReadMarker(dir)
	if !ok {
		t.Fatal("marker not readable after write")
	}
	if got.Unix() != expiry.Unix() {
		t.Fatalf("round trip changed instant: got %v, want %v", got, expiry)
	}
}

func TestReadMarkerIgnorableOutcomes(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		if _, ok := ReadMarker(t.TempDir()); ok {
			t.Fatal("missing marker reported as readable")
		}
	})

	t.Run("unparseable", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, MarkerName), []byte("not-a-number"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, ok := ReadMarker(dir); ok {
			t.Fatal("garbage marker reported as readable")
		}
	})
}
