package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.PopulateDefaults()
		return c
	}

	t.Run("defaults are valid", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("expected Default()+PopulateDefaults() to validate, got %v", err)
		}
	})

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"port too low", func(c *Config) { c.Port = 0 }, ErrInvalidPort},
		{"port too high", func(c *Config) { c.Port = 65536 }, ErrInvalidPort},
		{"unknown engine", func(c *Config) { c.Engine = "rocksdb" }, ErrUnknownEngine},
		{"zero kv store count", func(c *Config) { c.KVStoreCount = 0 }, ErrInvalidKVStoreCount},
		{"negative kv store count", func(c *Config) { c.KVStoreCount = -1 }, ErrInvalidKVStoreCount},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, ErrInvalidChunkSize},
		{"zero scan pool size", func(c *Config) { c.ScanJobCntIndexMgr = 0 }, ErrInvalidPoolSize},
		{"zero del pool size", func(c *Config) { c.DelJobCntIndexMgr = 0 }, ErrInvalidPoolSize},
		{"pause time below 1", func(c *Config) { c.PauseTimeIndexMgr = 0 }, ErrInvalidPauseTime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			if err := c.Validate(); err != tc.wantErr {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestPopulateDefaultsFillsOnlyZeroFields(t *testing.T) {
	c := &Config{
		KVStoreCount: 4,        // explicitly set, must survive
		ChunkSize:    0,        // left zero, must be defaulted
		Engine:       "memory", // explicitly set, must survive
	}
	c.PopulateDefaults()

	if c.KVStoreCount != 4 {
		t.Errorf("expected explicit KVStoreCount to survive, got %d", c.KVStoreCount)
	}
	if c.Engine != "memory" {
		t.Errorf("expected explicit Engine to survive, got %q", c.Engine)
	}
	if c.ChunkSize != Default().ChunkSize {
		t.Errorf("expected ChunkSize to be defaulted to %d, got %d", Default().ChunkSize, c.ChunkSize)
	}
	if c.BindIP != Default().BindIP {
		t.Errorf("expected BindIP to be defaulted, got %q", c.BindIP)
	}
}

func TestReadAppliesDefaultsWithoutAFile(t *testing.T) {
	cfg, err := Read("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.KVStoreCount != Default().KVStoreCount {
		t.Errorf("expected default kv store count, got %d", cfg.KVStoreCount)
	}
	if cfg.Engine != Default().Engine {
		t.Errorf("expected default engine, got %q", cfg.Engine)
	}
}

func TestReadLoadsYAMLAndOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "redisd.yaml")
	yaml := "kv_store_count: 4\nchunk_size: 256\nengine: memory\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write fixture config: %v", err)
	}

	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.KVStoreCount != 4 {
		t.Errorf("expected kv_store_count from file, got %d", cfg.KVStoreCount)
	}
	if cfg.ChunkSize != 256 {
		t.Errorf("expected chunk_size from file, got %d", cfg.ChunkSize)
	}
	if cfg.Engine != "memory" {
		t.Errorf("expected engine from file, got %q", cfg.Engine)
	}
	// Fields the fixture never mentions still fall back to Default().
	if cfg.Port != Default().Port {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestReadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "redisd.yaml")
	if err := os.WriteFile(path, []byte("engine: rocksdb\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture config: %v", err)
	}

	if _, err := Read(path); err != ErrUnknownEngine {
		t.Errorf("expected ErrUnknownEngine, got %v", err)
	}
}

func TestReadMissingFileErrors(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected an error reading a missing config file")
	}
}

func TestEnvOverridesLayerOnTopOfFileAndDefaults(t *testing.T) {
	t.Setenv("REDISD_BIND_IP", "127.0.0.1")
	t.Setenv("REDISD_PORT", "7000")
	t.Setenv("REDISD_DATA_DIR", "/var/lib/redisd")
	t.Setenv("REDISD_REQUIREPASS", "s3cret")

	cfg, err := Read("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BindIP != "127.0.0.1" {
		t.Errorf("expected env-overridden bind ip, got %q", cfg.BindIP)
	}
	if cfg.Port != 7000 {
		t.Errorf("expected env-overridden port, got %d", cfg.Port)
	}
	if cfg.DataDir != "/var/lib/redisd" {
		t.Errorf("expected env-overridden data dir, got %q", cfg.DataDir)
	}
	if cfg.Requirepass != "s3cret" {
		t.Errorf("expected env-overridden requirepass, got %q", cfg.Requirepass)
	}
}

func TestEnvOverrideIgnoresUnparseablePort(t *testing.T) {
	t.Setenv("REDISD_PORT", "not-a-number")

	cfg, err := Read("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != Default().Port {
		t.Errorf("expected an unparseable REDISD_PORT to be ignored, got %d", cfg.Port)
	}
}
