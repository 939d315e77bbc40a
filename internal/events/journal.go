package events

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"sushiBar/internal/model"
	"sushiBar/internal/storage"
	"sushiBar/internal/vault"
)

// Journal records committed vault events as encoded logs.
type Journal struct {
	encoder *Encoder
	out     storage.Storage

	mu  sync.Mutex
	seq uint64
}

// NewJournal returns a journal whose next record gets lastSeq+1.
func NewJournal(address common.Address, out storage.Storage, lastSeq uint64) (*Journal, error) {
	encoder, err := NewEncoder(address)
	if err != nil {
		return nil, err
	}
	return &Journal{encoder: encoder, out: out, seq: lastSeq}, nil
}

func (j *Journal) OnDeposit(_ context.Context, ev vault.Deposit) error {
	return j.append(func(seq uint64) (model.LogRecord, error) {
		return j.encoder.EncodeDeposit(seq, ev)
	})
}

func (j *Journal) OnWithdrawal(_ context.Context, ev vault.Withdrawal) error {
	return j.append(func(seq uint64) (model.LogRecord, error) {
		return j.encoder.EncodeWithdrawal(seq, ev)
	})
}

func (j *Journal) append(encode func(seq uint64) (model.LogRecord, error)) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	record, err := encode(j.seq + 1)
	if err != nil {
		return err
	}
	if err := j.out.PutLogBatch([]model.LogRecord{record}); err != nil {
		return err
	}
	j.seq++
	return nil
}
