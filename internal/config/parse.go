package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParseAdvance reads a clock advance such as "2d", "36h" or "90s". Day units
// are accepted on top of time.ParseDuration syntax.
func ParseAdvance(input string) (uint64, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if strings.HasSuffix(input, "d") {
		days, err := strconv.ParseUint(strings.TrimSuffix(input, "d"), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", input)
		}
		if days > math.MaxUint64/86400 {
			return 0, fmt.Errorf("duration %q out of range", input)
		}
		return days * 86400, nil
	}
	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", input, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", input)
	}
	return uint64(d / time.Second), nil
}
