package config

// Default returns a Config with every production-sane default filled in.
// Read starts from this and then overlays the YAML file and env overrides
// on top.
func Default() *Config {
	return &Config{
		BindIP:  "0.0.0.0",
		Port:    6390,
		DataDir: "data",
		Engine:  "badger",

		VersionIncrease: true,
		GeneralLog:      false,

		KVStoreCount:      10,
		ChunkSize:         16384,
		RocksBlockcacheMB: 4096,

		ScanCntIndexMgr:    1024,
		ScanJobCntIndexMgr: 2,
		DelCntIndexMgr:     1024,
		DelJobCntIndexMgr:  2,
		PauseTimeIndexMgr:  5,

		ClusterEnabled: false,

		MetricsAddr: ":9121",
	}
}

// PopulateDefaults fills any zero-valued field left unset by the YAML file.
func (c *Config) PopulateDefaults() {
	d := Default()
	if c.BindIP == "" {
		c.BindIP = d.BindIP
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.Engine == "" {
		c.Engine = d.Engine
	}
	if c.KVStoreCount == 0 {
		c.KVStoreCount = d.KVStoreCount
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.RocksBlockcacheMB == 0 {
		c.RocksBlockcacheMB = d.RocksBlockcacheMB
	}
	if c.ScanCntIndexMgr == 0 {
		c.ScanCntIndexMgr = d.ScanCntIndexMgr
	}
	if c.ScanJobCntIndexMgr == 0 {
		c.ScanJobCntIndexMgr = d.ScanJobCntIndexMgr
	}
	if c.DelCntIndexMgr == 0 {
		c.DelCntIndexMgr = d.DelCntIndexMgr
	}
	if c.DelJobCntIndexMgr == 0 {
		c.DelJobCntIndexMgr = d.DelJobCntIndexMgr
	}
	if c.PauseTimeIndexMgr == 0 {
		c.PauseTimeIndexMgr = d.PauseTimeIndexMgr
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = d.MetricsAddr
	}
}
