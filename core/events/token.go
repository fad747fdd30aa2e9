package events

import (
	"math/big"
	"strings"

	"scavenger/core/types"
)

const (
	// TypeTokenSupply is emitted whenever reward tokens are minted.
	TypeTokenSupply = "token.supply"
	// TypeTokenTransfer is emitted for balance movements between accounts.
	TypeTokenTransfer = "token.transfer"
	// TypeModulePaused is emitted when an operator toggles a pause switch.
	TypeModulePaused = "host.module.paused"
)

func normalizeAsset(asset string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(asset))
	if trimmed == "" {
		return "UNKNOWN"
	}
	return trimmed
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// TokenSupply captures a supply delta for the reward token.
type TokenSupply struct {
	Token string
	Total *big.Int
	Delta *big.Int
	To    [20]byte
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	return &types.Event{
		Type:   TypeTokenSupply,
		Topics: []string{principalTopic(e.To)},
		Attributes: map[string]string{
			"token": normalizeAsset(e.Token),
			"total": formatAmount(e.Total),
			"delta": formatAmount(e.Delta),
			"to":    addrString(e.To),
		},
	}
}

// TokenTransfer records reward tokens moving between two accounts.
type TokenTransfer struct {
	Token  string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{
		Type:   TypeTokenTransfer,
		Topics: []string{principalTopic(e.From), principalTopic(e.To)},
		Attributes: map[string]string{
			"token":  normalizeAsset(e.Token),
			"from":   addrString(e.From),
			"to":     addrString(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}

// ModulePaused reports a pause switch change.
type ModulePaused struct {
	Module string
	Paused bool
}

func (ModulePaused) EventType() string { return TypeModulePaused }

func (e ModulePaused) Event() *types.Event {
	paused := "false"
	if e.Paused {
		paused = "true"
	}
	return &types.Event{
		Type:       TypeModulePaused,
		Topics:     []string{"module:" + strings.ToLower(strings.TrimSpace(e.Module))},
		Attributes: map[string]string{"module": e.Module, "paused": paused},
	}
}
