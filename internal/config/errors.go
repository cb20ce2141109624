package config

import "errors"

var (
	ErrInvalidKVStoreCount = errors.New("kv_store_count must be > 0")
	ErrInvalidChunkSize    = errors.New("chunk_size must be > 0")
	ErrInvalidPoolSize     = errors.New("index manager pool sizes must be > 0")
	ErrInvalidPauseTime    = errors.New("pause_time_index_mgr must be >= 1")
	ErrInvalidPort         = errors.New("port must be in [1, 65535]")
	ErrUnknownEngine       = errors.New("engine must be \"memory\" or \"badger\"")
)
