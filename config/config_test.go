package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	settings, err := LoadFrom(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	defaults := Defaults()
	if settings.SizeMB != defaults.SizeMB || settings.LifetimeDays != defaults.LifetimeDays {
		t.Fatalf("settings = %+v, want defaults %+v", settings, defaults)
	}
	if settings.VolumeName != "" {
		t.Fatalf("default volume name = %q, want empty (derived)", settings.VolumeName)
	}
}

func TestLoadFromMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "days: 14\ndownload_dir: /srv/incoming\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if settings.LifetimeDays != 14 {
		t.Fatalf("days = %d, want 14", settings.LifetimeDays)
	}
	if settings.DownloadDir != "/srv/incoming" {
		t.Fatalf("download dir = %s", settings.DownloadDir)
	}
	// untouched keys keep their built-in values
	if settings.SizeMB != Defaults().SizeMB {
		t.Fatalf("size = %d, want default %d", settings.SizeMB, Defaults().SizeMB)
	}
}

func TestLoadFromRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("days: [nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected error for malformed settings file")
	}
}
