package state

import (
	"fmt"
	"math/big"
	"strings"
)

var tokenSupplyPrefix = []byte("token/supply/")

func tokenSupplyKey(symbol string) []byte {
	key := make([]byte, len(tokenSupplyPrefix)+len(symbol))
	copy(key, tokenSupplyPrefix)
	copy(key[len(tokenSupplyPrefix):], symbol)
	return key
}

func normalizeSymbol(symbol string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return "", fmt.Errorf("token symbol required")
	}
	return normalized, nil
}

// TokenSupply returns the amount of the token issued so far. Missing entries
// default to zero.
func (m *Manager) TokenSupply(symbol string) (*big.Int, error) {
	normalized, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	if _, err := m.KVGet(tokenSupplyKey(normalized), total); err != nil {
		return nil, err
	}
	return total, nil
}

// AdjustTokenSupply adds delta to the stored supply and returns the new total.
// Negative deltas burn; the supply never drops below zero.
func (m *Manager) AdjustTokenSupply(symbol string, delta *big.Int) (*big.Int, error) {
	normalized, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if delta == nil {
		delta = big.NewInt(0)
	}
	current, err := m.TokenSupply(normalized)
	if err != nil {
		return nil, err
	}
	updated := new(big.Int).Add(current, delta)
	if updated.Sign() < 0 {
		return nil, fmt.Errorf("token %s supply underflow", normalized)
	}
	if err := m.KVPut(tokenSupplyKey(normalized), updated); err != nil {
		return nil, err
	}
	return updated, nil
}
