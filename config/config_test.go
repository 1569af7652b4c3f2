package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DELIMITER", "")
	t.Setenv("FETCH_MODE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListingsURL != DefaultListingsURL {
		t.Errorf("ListingsURL: got %q", cfg.ListingsURL)
	}
	if cfg.DelimiterRune() != ';' {
		t.Errorf("delimiter: got %q, want ';'", cfg.DelimiterRune())
	}
	if !cfg.StrictValidation {
		t.Error("strict validation should default to true")
	}
	if cfg.FieldList() != nil {
		t.Errorf("FieldList: got %v, want nil", cfg.FieldList())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MAX_LISTINGS", "25")
	t.Setenv("STRICT_VALIDATION", "false")
	t.Setenv("FIELDS", "area,price,district")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxListings != 25 {
		t.Errorf("MaxListings: got %d, want 25", cfg.MaxListings)
	}
	if cfg.StrictValidation {
		t.Error("STRICT_VALIDATION=false should disable strict validation")
	}
	if got := cfg.FieldList(); len(got) != 3 || got[2] != "district" {
		t.Errorf("FieldList: got %v", got)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("invalid MAX_RETRIES should fall back to 3, got %d", cfg.MaxRetries)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl.yaml")
	yaml := "output_path: /tmp/out.csv\ndelimiter: \",\"\nmax_listings: 10\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PACE_MIN_MS", "100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OutputPath != "/tmp/out.csv" || cfg.DelimiterRune() != ',' || cfg.MaxListings != 10 {
		t.Errorf("overlay not applied: %+v", cfg)
	}
	if cfg.PaceMinMs != 100 {
		t.Errorf("keys absent from the file should keep env values, got %d", cfg.PaceMinMs)
	}
}

func TestValidate(t *testing.T) {
	base := Config{Delimiter: ";", FetchMode: "http", RequestTimeoutMs: 1000}

	bad := []Config{base, base, base}
	bad[0].Delimiter = ";;"
	bad[1].FetchMode = "curl"
	bad[2].PaceMinMs = -1

	if err := base.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestFieldListSeparators(t *testing.T) {
	cfg := &Config{Fields: " area, price  district,,"}
	got := cfg.FieldList()
	if len(got) != 3 || got[0] != "area" || got[1] != "price" || got[2] != "district" {
		t.Errorf("FieldList: got %q", got)
	}
	cfg.Fields = " , "
	if got := cfg.FieldList(); got != nil {
		t.Errorf("blank FIELDS: got %q, want nil", got)
	}
}
