package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const erc20ABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "address", "name": "owner", "type": "address"}, {"internalType": "address", "name": "spender", "type": "address"}], "name": "allowance", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

func getERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

// ERC20Reader reads token balances over eth_call.
type ERC20Reader struct {
	Caller     ContractCaller
	MaxRetries int
	BaseDelay  time.Duration
}

// BalanceOf returns token.balanceOf(owner) at the latest block.
func (r *ERC20Reader) BalanceOf(ctx context.Context, token, owner common.Address) (*uint256.Int, error) {
	return r.call(ctx, token, "balanceOf", owner)
}

// Allowance returns token.allowance(owner, spender) at the latest block.
func (r *ERC20Reader) Allowance(ctx context.Context, token, owner, spender common.Address) (*uint256.Int, error) {
	return r.call(ctx, token, "allowance", owner, spender)
}

// TotalSupply returns token.totalSupply() at the latest block.
func (r *ERC20Reader) TotalSupply(ctx context.Context, token common.Address) (*uint256.Int, error) {
	return r.call(ctx, token, "totalSupply")
}

func (r *ERC20Reader) call(ctx context.Context, token common.Address, method string, args ...interface{}) (*uint256.Int, error) {
	if r == nil || r.Caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	parsed, err := getERC20ABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var resp []byte
	msg := ethereum.CallMsg{To: &token, Data: data}
	err = withRetry(ctx, r.MaxRetries, r.BaseDelay, func(ctx context.Context) error {
		out, err := r.Caller.CallContract(ctx, msg, nil)
		if err != nil {
			return err
		}
		resp = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s unexpected type %T", method, values[0])
	}
	out, overflow := uint256.FromBig(n)
	if overflow {
		return nil, fmt.Errorf("%s result overflows uint256", method)
	}
	return out, nil
}
