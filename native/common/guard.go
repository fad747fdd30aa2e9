package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseState is the storage subset used to persist pause switches.
type PauseState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var pausePrefix = []byte("host/paused/")

func pauseKey(module string) []byte {
	name := strings.ToLower(strings.TrimSpace(module))
	key := make([]byte, len(pausePrefix)+len(name))
	copy(key, pausePrefix)
	copy(key[len(pausePrefix):], name)
	return key
}

// PauseStore keeps per-module pause switches in state so they survive
// restarts and roll back with the call that set them.
type PauseStore struct {
	st PauseState
}

// NewPauseStore wraps the provided state.
func NewPauseStore(st PauseState) *PauseStore {
	return &PauseStore{st: st}
}

// IsPaused implements PauseView. Read failures report the module as running.
func (p *PauseStore) IsPaused(module string) bool {
	if p == nil || p.st == nil {
		return false
	}
	var paused bool
	ok, err := p.st.KVGet(pauseKey(module), &paused)
	return err == nil && ok && paused
}

// SetPaused toggles the switch for module.
func (p *PauseStore) SetPaused(module string, paused bool) error {
	if strings.TrimSpace(module) == "" {
		return errors.New("pause: module must not be empty")
	}
	return p.st.KVPut(pauseKey(module), paused)
}
