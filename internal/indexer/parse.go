package indexer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityLedger/internal/dex"
)

// ParseAddresses converts hex addresses, skipping blanks and duplicates.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	seen := make(map[common.Address]struct{}, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addr := common.HexToAddress(input)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// FilterAddresses is the log filter for one factory and the pairs it deployed.
// The factory always comes first.
func FilterAddresses(factory string, pairs []string) ([]common.Address, error) {
	if strings.TrimSpace(factory) == "" {
		return nil, fmt.Errorf("factory address is required")
	}
	return ParseAddresses(append([]string{factory}, pairs...))
}

// ParseTopic0 converts 32-byte hex hashes.
func ParseTopic0(inputs []string) ([]common.Hash, error) {
	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid topic0: %s", input)
		}
		if len(data) != common.HashLength {
			return nil, fmt.Errorf("invalid topic0 length: %s", input)
		}
		topics = append(topics, common.BytesToHash(data))
	}
	return topics, nil
}

// DefaultTopic0 returns the signature topics of every V2 factory and pair event, sorted.
func DefaultTopic0() ([]common.Hash, error) {
	byName, err := dex.V2Topics()
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(byName))
	for _, topic := range byName {
		values = append(values, topic)
	}
	sort.Strings(values)
	return ParseTopic0(values)
}
