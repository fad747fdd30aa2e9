package state

import (
	"errors"
	"fmt"
	"math"

	"scavenger/storage/trie"
)

// StateVersion identifies the on-disk layout of the custody state. Increment
// it whenever stored records change shape.
const StateVersion uint32 = 1

var (
	stateVersionKey = []byte("state/version")
	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// SetStateVersion records the schema version in state.
func (m *Manager) SetStateVersion(version uint32) error {
	return m.KVPut(stateVersionKey, uint64(version))
}

// StateVersion returns the stored schema version and whether one was present.
func (m *Manager) StateVersion() (uint32, bool, error) {
	var stored uint64
	ok, err := m.KVGet(stateVersionKey, &stored)
	if err != nil || !ok {
		return 0, false, err
	}
	if stored > uint64(math.MaxUint32) {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// EnsureStateVersion verifies that the state opened through tr carries the
// version supported by this binary. allowMigrate tolerates mismatches so an
// operator can migrate by hand.
func EnsureStateVersion(tr *trie.Trie, allowMigrate bool) error {
	if tr == nil {
		return fmt.Errorf("state: trie must not be nil")
	}
	version, _, err := NewManager(tr).StateVersion()
	if err != nil {
		return err
	}
	if version == StateVersion || allowMigrate {
		return nil
	}
	return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
}

var chainIDKey = []byte("host/chain-id")

// SetChainID records the network identifier calls must be signed for.
func (m *Manager) SetChainID(chainID string) error {
	return m.KVPut(chainIDKey, chainID)
}

// ChainID returns the recorded network identifier.
func (m *Manager) ChainID() (string, error) {
	var chainID string
	_, err := m.KVGet(chainIDKey, &chainID)
	return chainID, err
}
