package state

import (
	"errors"
	"math/big"

	"scavenger/core/events"
)

// RewardSymbol is the token credited for verified material.
const RewardSymbol = "SCV"

// ErrTokenNotRegistered is returned when the ledger's token has no metadata.
var ErrTokenNotRegistered = errors.New("state: reward token not registered")

// RewardLedger moves reward tokens between account balances. Credits mint new
// supply.
type RewardLedger struct {
	m       *Manager
	symbol  string
	emitter events.Emitter
}

// NewRewardLedger returns a ledger for symbol, or RewardSymbol when empty.
func NewRewardLedger(m *Manager, symbol string) *RewardLedger {
	if symbol == "" {
		symbol = RewardSymbol
	}
	return &RewardLedger{m: m, symbol: symbol, emitter: events.NoopEmitter{}}
}

// SetEmitter configures where supply and transfer events go. Nil discards
// them.
func (l *RewardLedger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// Symbol returns the token the ledger operates on.
func (l *RewardLedger) Symbol() string { return l.symbol }

// Credit mints amount to addr.
func (l *RewardLedger) Credit(addr [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if !l.m.TokenExists(l.symbol) {
		return ErrTokenNotRegistered
	}
	value := new(big.Int).SetUint64(amount)
	if err := l.m.AddBalance(addr[:], l.symbol, value); err != nil {
		return err
	}
	total, err := l.m.AdjustTokenSupply(l.symbol, value)
	if err != nil {
		return err
	}
	l.emitter.Emit(events.TokenSupply{Token: l.symbol, Total: total, Delta: value, To: addr})
	return nil
}

// Transfer moves amount from one balance to another.
func (l *RewardLedger) Transfer(from, to [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	value := new(big.Int).SetUint64(amount)
	if err := l.m.SubBalance(from[:], l.symbol, value); err != nil {
		return err
	}
	if err := l.m.AddBalance(to[:], l.symbol, value); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Token: l.symbol, From: from, To: to, Amount: value})
	return nil
}

// Balance returns the token balance of addr.
func (l *RewardLedger) Balance(addr [20]byte) (*big.Int, error) {
	return l.m.Balance(addr[:], l.symbol)
}

// TokenInfo describes a registered token and the amount minted so far.
type TokenInfo struct {
	Symbol   string
	Name     string
	Decimals uint8
	Supply   *big.Int
}

// Tokens lists every registered token in symbol order.
func (l *RewardLedger) Tokens() ([]TokenInfo, error) {
	symbols, err := l.m.TokenList()
	if err != nil {
		return nil, err
	}
	out := make([]TokenInfo, 0, len(symbols))
	for _, symbol := range symbols {
		meta, err := l.m.Token(symbol)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			continue
		}
		supply, err := l.m.TokenSupply(symbol)
		if err != nil {
			return nil, err
		}
		out = append(out, TokenInfo{Symbol: meta.Symbol, Name: meta.Name, Decimals: meta.Decimals, Supply: supply})
	}
	return out, nil
}
