// Package config loads and validates the server's configuration knobs from
// a YAML file, with environment-variable overrides for container
// deployment.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every knob enumerated in the spec's external interfaces
// section.
type Config struct {
	BindIP   string `yaml:"bind_ip"`
	Port     int    `yaml:"port"`
	DataDir  string `yaml:"data_dir"`
	Engine   string `yaml:"engine"` // "memory" or "badger"

	Requirepass string `yaml:"requirepass"`
	Masterauth  string `yaml:"masterauth"`

	VersionIncrease bool `yaml:"version_increase"`
	GeneralLog      bool `yaml:"general_log"`

	KVStoreCount      int `yaml:"kv_store_count"`
	ChunkSize         int `yaml:"chunk_size"`
	RocksBlockcacheMB int `yaml:"rocks_blockcache_mb"`

	ScanCntIndexMgr    int `yaml:"scan_cnt_index_mgr"`
	ScanJobCntIndexMgr int `yaml:"scan_job_cnt_index_mgr"`
	DelCntIndexMgr     int `yaml:"del_cnt_index_mgr"`
	DelJobCntIndexMgr  int `yaml:"del_job_cnt_index_mgr"`
	PauseTimeIndexMgr  int `yaml:"pause_time_index_mgr"`

	ClusterEnabled bool `yaml:"cluster_enabled"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// Read loads a YAML config file, fills unset fields from Default, applies
// environment overrides, and validates the result.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.PopulateDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REDISD_BIND_IP"); v != "" {
		c.BindIP = v
	}
	if v := os.Getenv("REDISD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("REDISD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("REDISD_REQUIREPASS"); v != "" {
		c.Requirepass = v
	}
}
