package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"scavenger/core/state"
	nativecommon "scavenger/native/common"
	"scavenger/native/custody"
	"scavenger/storage"
	"scavenger/storage/trie"
)

// ContractAddress is the custody module's own identity. It can never register
// as a participant.
var ContractAddress = [20]byte{0x5c, 0xa7, 0xe0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}

// BuildGenesisFromSpec writes the genesis state into db and returns the
// committed root. Every collection is applied in a sorted order so the root
// only depends on the document's content.
func BuildGenesisFromSpec(spec *GenesisSpec, db storage.Database) (common.Hash, error) {
	if spec == nil {
		return common.Hash{}, fmt.Errorf("genesis spec must not be nil")
	}
	if db == nil {
		return common.Hash{}, fmt.Errorf("database must not be nil")
	}
	if spec.genesisTimestamp.IsZero() {
		if err := spec.validate(); err != nil {
			return common.Hash{}, err
		}
	}

	stateTrie, err := trie.NewTrie(db, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("init state trie: %w", err)
	}
	manager := state.NewManager(stateTrie)
	parentRoot := stateTrie.Root()

	if err := manager.SetStateVersion(state.StateVersion); err != nil {
		return common.Hash{}, fmt.Errorf("state version: %w", err)
	}
	if err := manager.SetChainID(spec.ChainID); err != nil {
		return common.Hash{}, fmt.Errorf("chain id: %w", err)
	}

	// 1) Reward token and allocations (addresses sorted)
	token := spec.Token()
	if err := manager.RegisterToken(token.Symbol, token.Name, token.Decimals); err != nil {
		return common.Hash{}, fmt.Errorf("register token %q: %w", token.Symbol, err)
	}
	ledger := state.NewRewardLedger(manager, token.Symbol)
	for _, addr := range sortedAddresses(spec.alloc) {
		amount := spec.alloc[addr]
		if !amount.IsUint64() {
			return common.Hash{}, fmt.Errorf("alloc %x: amount exceeds 64 bits", addr)
		}
		if err := ledger.Credit(addr, amount.Uint64()); err != nil {
			return common.Hash{}, fmt.Errorf("alloc %x: %w", addr, err)
		}
	}

	engine := custody.NewEngine(manager)
	engine.SetContractAddress(ContractAddress)
	engine.SetTokenLedger(ledger)
	ts := spec.genesisTimestamp.Unix()
	engine.SetNowFunc(func() int64 { return ts })

	// 2) Admins in document order; the first one bootstraps the others.
	if len(spec.admins) > 0 {
		first := spec.admins[0]
		if err := engine.InitializeAdmin(first); err != nil {
			return common.Hash{}, fmt.Errorf("admins[0]: %w", err)
		}
		for i, admin := range spec.admins[1:] {
			if err := engine.GrantAdmin(first, admin); err != nil {
				return common.Hash{}, fmt.Errorf("admins[%d]: %w", i+1, err)
			}
		}
		if spec.Distribution != nil {
			cfg := custody.DistributionConfig{
				HandlerSharePercent:   spec.Distribution.HandlerSharePercent,
				CustodianSharePercent: spec.Distribution.CustodianSharePercent,
			}
			if err := engine.SetDistribution(first, cfg); err != nil {
				return common.Hash{}, fmt.Errorf("distribution: %w", err)
			}
		}
		if spec.charity != nil {
			if err := engine.SetCharity(first, *spec.charity); err != nil {
				return common.Hash{}, fmt.Errorf("charity: %w", err)
			}
		}
	}

	// 3) Participants (sorted by address)
	participants := append([]resolvedParticipant(nil), spec.participants...)
	sort.Slice(participants, func(i, j int) bool {
		return bytes.Compare(participants[i].addr[:], participants[j].addr[:]) < 0
	})
	for _, p := range participants {
		if _, err := engine.Register(p.addr, p.role, p.label, p.lat, p.lon); err != nil {
			return common.Hash{}, fmt.Errorf("participant %x: %w", p.addr, err)
		}
	}

	// 4) Pause switches
	pauses := nativecommon.NewPauseStore(manager)
	for _, module := range spec.Paused {
		if err := pauses.SetPaused(module, true); err != nil {
			return common.Hash{}, fmt.Errorf("paused %q: %w", module, err)
		}
	}

	newRoot, err := stateTrie.Commit(parentRoot, 0)
	if err != nil {
		return common.Hash{}, fmt.Errorf("commit state: %w", err)
	}
	return newRoot, nil
}

func sortedAddresses(m map[[20]byte]*big.Int) [][20]byte {
	out := make([][20]byte, 0, len(m))
	for addr := range m {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}
