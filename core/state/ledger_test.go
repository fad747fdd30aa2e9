package state

import (
	"errors"
	"math/big"
	"testing"

	"scavenger/storage"
	"scavenger/storage/trie"
)

func TestAdjustTokenSupply(t *testing.T) {
	m := newTestManager(t)

	total, err := m.TokenSupply("SCV")
	if err != nil {
		t.Fatalf("initial supply: %v", err)
	}
	if total.Sign() != 0 {
		t.Fatalf("expected zero supply, got %s", total)
	}
	updated, err := m.AdjustTokenSupply("scv", big.NewInt(1000))
	if err != nil {
		t.Fatalf("adjust supply: %v", err)
	}
	if updated.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("unexpected supply after mint: %s", updated)
	}
	updated, err = m.AdjustTokenSupply("SCV", big.NewInt(-250))
	if err != nil {
		t.Fatalf("burn supply: %v", err)
	}
	if updated.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("unexpected supply after burn: %s", updated)
	}
	if _, err = m.AdjustTokenSupply("SCV", big.NewInt(-1000)); err == nil {
		t.Fatalf("expected underflow protection")
	}
}

func TestRewardLedgerCreditAndTransfer(t *testing.T) {
	m := newTestManager(t)
	ledger := NewRewardLedger(m, "")
	alice := [20]byte{0x01}
	bob := [20]byte{0x02}

	if err := ledger.Credit(alice, 10); !errors.Is(err, ErrTokenNotRegistered) {
		t.Fatalf("expected unregistered token error, got %v", err)
	}
	if err := m.RegisterToken(RewardSymbol, "Scavenger Reward", 0); err != nil {
		t.Fatalf("register token: %v", err)
	}
	if err := ledger.Credit(alice, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.Transfer(alice, bob, 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := ledger.Transfer(bob, alice, 41); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	aliceBal, _ := ledger.Balance(alice)
	bobBal, _ := ledger.Balance(bob)
	if aliceBal.Uint64() != 60 || bobBal.Uint64() != 40 {
		t.Fatalf("unexpected balances alice=%s bob=%s", aliceBal, bobBal)
	}
	supply, err := m.TokenSupply(RewardSymbol)
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Uint64() != 100 {
		t.Fatalf("transfers must not change supply, got %s", supply)
	}

	tokens, err := ledger.Tokens()
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Symbol != RewardSymbol || tokens[0].Name != "Scavenger Reward" || tokens[0].Supply.Uint64() != 100 {
		t.Fatalf("unexpected tokens %+v", tokens)
	}
}

func TestEnsureStateVersion(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	if err := EnsureStateVersion(tr, false); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected mismatch on empty state, got %v", err)
	}
	if err := EnsureStateVersion(tr, true); err != nil {
		t.Fatalf("migrate flag should tolerate mismatch: %v", err)
	}
	if err := NewManager(tr).SetStateVersion(StateVersion); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := EnsureStateVersion(tr, false); err != nil {
		t.Fatalf("ensure version: %v", err)
	}
}
