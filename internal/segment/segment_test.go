package segment

import (
	"fmt"
	"sync"
	"testing"
)

func TestShardForKey(t *testing.T) {
	tests := []struct {
		name      string
		numShards int
		chunkSize int
		key       string
	}{
		{name: "single shard gets all keys", numShards: 1, chunkSize: 128, key: "any-key"},
		{name: "key distribution with 4 shards", numShards: 4, chunkSize: 1024, key: "test-key"},
		{name: "empty key", numShards: 4, chunkSize: 1024, key: ""},
		{
			name:      "very long key",
			numShards: 8,
			chunkSize: 1024,
			key:       "this-is-a-very-long-key-that-should-still-hash-correctly-even-though-it-is-much-longer-than-typical-keys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := New(tt.numShards, tt.chunkSize)

			shardID := mgr.ShardForKey(tt.key)
			if shardID < 0 || shardID >= tt.numShards {
				t.Errorf("shard %d out of range [0, %d)", shardID, tt.numShards)
			}

			for i := 0; i < 10; i++ {
				if got := mgr.ShardForKey(tt.key); got != shardID {
					t.Errorf("inconsistent shard mapping: got %d, expected %d", got, shardID)
				}
			}
		})
	}

	t.Run("key distribution", func(t *testing.T) {
		mgr := New(4, 1024)

		shardCounts := make(map[int]int)
		numKeys := 1000
		for i := 0; i < numKeys; i++ {
			shardCounts[mgr.ShardForKey(fmt.Sprintf("key-%d", i))]++
		}

		for shardID := 0; shardID < 4; shardID++ {
			if shardCounts[shardID] == 0 {
				t.Errorf("shard %d got no keys", shardID)
			}
		}
	})
}

func TestLockXExcludesLockIS(t *testing.T) {
	mgr := New(2, 128)

	mgr.Lock(0, LockX)

	done := make(chan struct{})
	go func() {
		mgr.Lock(0, LockIS)
		close(done)
		mgr.Unlock(0, LockIS)
	}()

	select {
	case <-done:
		t.Fatalf("LockIS acquired while LockX held")
	default:
	}

	mgr.Unlock(0, LockX)
	<-done
}

func TestLockISIsConcurrentlyShared(t *testing.T) {
	mgr := New(1, 128)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.Lock(0, LockIS)
			defer mgr.Unlock(0, LockIS)
		}()
	}
	wg.Wait()
}
