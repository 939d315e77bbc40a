package events

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"sushiBar/internal/model"
	"sushiBar/internal/vault"
)

// Encoder turns vault events into log records.
type Encoder struct {
	vaultABI abi.ABI
	address  common.Address
}

func NewEncoder(address common.Address) (*Encoder, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	return &Encoder{vaultABI: parsed, address: address}, nil
}

// EncodeDeposit builds the Enter log for a deposit.
func (e *Encoder) EncodeDeposit(seq uint64, ev vault.Deposit) (model.LogRecord, error) {
	event := e.vaultABI.Events["Enter"]
	data, err := event.Inputs.NonIndexed().Pack(ev.AmountIn.ToBig(), ev.SharesMinted.ToBig())
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack enter: %w", err)
	}
	return e.record(seq, event, ev.Owner, data, ev.Timestamp), nil
}

// EncodeWithdrawal builds the Leave log for a withdrawal.
func (e *Encoder) EncodeWithdrawal(seq uint64, ev vault.Withdrawal) (model.LogRecord, error) {
	event := e.vaultABI.Events["Leave"]
	data, err := event.Inputs.NonIndexed().Pack(ev.SharesBurned.ToBig(), ev.NetPaid.ToBig(), ev.TaxPaid.ToBig())
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack leave: %w", err)
	}
	return e.record(seq, event, ev.Owner, data, ev.Timestamp), nil
}

func (e *Encoder) record(seq uint64, event abi.Event, owner common.Address, data []byte, ts uint64) model.LogRecord {
	return model.LogRecord{
		Seq:       seq,
		Address:   e.address.Hex(),
		Topics:    []string{event.ID.Hex(), common.BytesToHash(owner.Bytes()).Hex()},
		Data:      hexutil.Encode(data),
		Timestamp: ts,
		EmittedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
