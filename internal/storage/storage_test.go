package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"sushiBar/internal/model"
)

func sampleSnapshot() model.Snapshot {
	return model.Snapshot{
		Vault: model.VaultState{
			Pool: model.PoolState{
				Vault:           "0x00000000000000000000000000000000000000b0",
				Token:           "0x00000000000000000000000000000000000000a0",
				RewardPool:      "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
				TotalShares:     "1500",
				TotalUnderlying: "1800",
			},
			Positions: []model.Position{
				{Owner: "0x0000000000000000000000000000000000000001", Shares: "1000", LastStakeTS: 1700000000},
				{Owner: "0x0000000000000000000000000000000000000002", Shares: "500", LastStakeTS: 1700086400},
			},
		},
		Token: model.TokenState{
			Token:      "0x00000000000000000000000000000000000000a0",
			ShareToken: "0x00000000000000000000000000000000000000b0",
			Balances: []model.Balance{
				{Account: "0x0000000000000000000000000000000000000001", Amount: "9000"},
			},
			ShareBalances: []model.Balance{
				{Account: "0x0000000000000000000000000000000000000001", Amount: "1000"},
			},
			Allowances: []model.Allowance{
				{Owner: "0x0000000000000000000000000000000000000001", Spender: "0x00000000000000000000000000000000000000b0", Amount: "42"},
			},
		},
		ClockOffset: 172800,
	}
}

func assertRoundTrip(t *testing.T, store StateStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("empty load: ok=%v err=%v", ok, err)
	}

	want := sampleSnapshot()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected snapshot after save")
	}
	if got.UpdatedAt == "" {
		t.Fatalf("expected updated_at to be set")
	}
	got.UpdatedAt = ""
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestFileStateStoreRoundTrip(t *testing.T) {
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "nested", "state.json")}
	assertRoundTrip(t, store)
	if _, err := os.Stat(store.Path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected tmp file to be renamed away, stat err=%v", err)
	}
}

func TestFileStateStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := &FileStateStore{Path: path}
	if _, _, err := store.Load(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLevelStateStoreRoundTrip(t *testing.T) {
	store, err := NewMemLevelStateStore()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	assertRoundTrip(t, store)
}

func TestLevelStateStoreOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	store, err := NewLevelStateStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Save(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewLevelStateStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok, err := reopened.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load after reopen: ok=%v err=%v", ok, err)
	}
	if got.Vault.Pool.TotalShares != "1500" {
		t.Fatalf("unexpected total shares %s", got.Vault.Pool.TotalShares)
	}
}

func TestJsonlStorageAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	s := NewJsonlStorage(path)

	if seq, err := s.LastSeq(); err != nil || seq != 0 {
		t.Fatalf("empty journal: seq=%d err=%v", seq, err)
	}

	first := []model.LogRecord{
		{Seq: 1, Address: "0xb0", Topics: []string{"0x01"}, Data: "0x", Timestamp: 10},
		{Seq: 2, Address: "0xb0", Topics: []string{"0x02"}, Data: "0x", Timestamp: 11},
	}
	if err := s.PutLogBatch(first); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutLogBatch([]model.LogRecord{{Seq: 3, Address: "0xb0", Data: "0x", Timestamp: 12}}); err != nil {
		t.Fatalf("put: %v", err)
	}

	records, err := s.ReadLogs(nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[1].Topics[0] != "0x02" {
		t.Fatalf("unexpected record order: %+v", records)
	}
	if seq, err := s.LastSeq(); err != nil || seq != 3 {
		t.Fatalf("last seq: seq=%d err=%v", seq, err)
	}
}

func TestJsonlStorageReportsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := "{\"seq\":1,\"address\":\"0xb0\",\"topics\":[],\"data\":\"0x\",\"timestamp\":1}\nnot-json\n\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var badLines []int
	records, err := NewJsonlStorage(path).ReadLogs(func(line int, err error) {
		badLines = append(badLines, line)
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !reflect.DeepEqual(badLines, []int{2}) {
		t.Fatalf("unexpected bad lines %v", badLines)
	}
}
