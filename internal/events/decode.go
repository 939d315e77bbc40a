package events

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"sushiBar/internal/model"
)

// Decoder converts vault log records into typed events.
type Decoder struct {
	vaultABI    abi.ABI
	topicToName map[string]string
}

func NewDecoder() (*Decoder, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	return &Decoder{
		vaultABI: parsed,
		topicToName: map[string]string{
			strings.ToLower(parsed.Events["Enter"].ID.Hex()): "Enter",
			strings.ToLower(parsed.Events["Leave"].ID.Hex()): "Leave",
		},
	}, nil
}

// CanDecode checks if the topic0 is a vault event.
func (d *Decoder) CanDecode(topic0 string) bool {
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) != 2 {
		return nil, fmt.Errorf("expected 2 topics, got %d", len(log.Topics))
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	owner, err := topicToAddress(log.Topics[1])
	if err != nil {
		return nil, err
	}
	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	values, err := d.vaultABI.Events[name].Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	amounts, err := bigValues(values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var decoded interface{}
	switch name {
	case "Enter":
		decoded = model.DepositEventData{
			Owner:        owner.Hex(),
			AmountIn:     amounts[0].String(),
			SharesMinted: amounts[1].String(),
		}
	case "Leave":
		decoded = model.WithdrawalEventData{
			Owner:        owner.Hex(),
			SharesBurned: amounts[0].String(),
			NetPaid:      amounts[1].String(),
			TaxPaid:      amounts[2].String(),
		}
	}

	return &model.TypedEvent{
		Seq:       log.Seq,
		Address:   log.Address,
		EventName: name,
		Timestamp: log.Timestamp,
		Decoded:   decoded,
	}, nil
}

func topicToAddress(topic string) (common.Address, error) {
	data, err := hexutil.Decode(topic)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid topic: %s", topic)
	}
	if len(data) != common.HashLength {
		return common.Address{}, fmt.Errorf("invalid topic length: %s", topic)
	}
	return common.BytesToAddress(data[12:]), nil
}

func bigValues(values []interface{}) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(values))
	for i, v := range values {
		n, ok := v.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("value %d unexpected type %T", i, v)
		}
		out = append(out, n)
	}
	return out, nil
}
