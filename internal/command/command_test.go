package command

import (
	"testing"

	"github.com/dreamware/redisd/internal/apperr"
	"github.com/dreamware/redisd/internal/segment"
	"github.com/dreamware/redisd/internal/session"
	"github.com/dreamware/redisd/internal/storage"
)

func TestPrecheckLowercasesCommandName(t *testing.T) {
	sess := session.New(1, nil)
	sess.Args = [][]byte{[]byte("GET"), []byte("foo")}

	name, err := Precheck(sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "get" {
		t.Errorf("expected 'get', got %q", name)
	}
}

func TestPrecheckEmptyArgsIsParseError(t *testing.T) {
	sess := session.New(1, nil)

	if _, err := Precheck(sess); err != apperr.ErrParse {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestRunSessionCmdUnknownCommand(t *testing.T) {
	table := NewTable()
	ctx := &Context{Segment: segment.New(1, 128), Stores: []storage.Store{storage.NewMemoryStore()}}
	sess := session.New(1, nil)
	sess.Args = [][]byte{[]byte("frobnicate")}

	if err := table.RunSessionCmd(ctx, sess, "frobnicate"); err != apperr.ErrParse {
		t.Errorf("expected ErrParse for unknown command, got %v", err)
	}
}

func TestWithShardRefusesDestroyedShard(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SetMode(storage.StoreNone)
	ctx := &Context{Segment: segment.New(1, 128), Stores: []storage.Store{store}}

	err := ctx.withShard("any-key", segment.LockIS, func(storage.Store) error { return nil })
	if err != apperr.ErrInternal {
		t.Errorf("expected ErrInternal dispatching to a destroyed shard, got %v", err)
	}
}

func TestExpireKeyIfNeededDelegatesToStore(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.Put("k", []byte("v"))
	_ = store.SetExpire("k", "string", 100)

	ctx := &Context{Segment: segment.New(1, 128), Stores: []storage.Store{store}}

	deleted, err := ctx.ExpireKeyIfNeeded(0, "k", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Errorf("expected expired key to be deleted")
	}
	if _, err := store.Get("k"); err != storage.ErrKeyNotFound {
		t.Errorf("expected key gone, got %v", err)
	}
}
