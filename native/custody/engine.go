package custody

import (
	"time"

	"scavenger/core/events"
	nativecommon "scavenger/native/common"
)

const (
	// ModuleName identifies the custody module for pause switches.
	ModuleName = "custody"
	// RoleAdmin grants deactivation and configuration rights.
	RoleAdmin = "ROLE_CUSTODY_ADMIN"
)

// State is the storage handle the engine persists into.
type State interface {
	HasRole(role string, addr []byte) bool
	SetRole(role string, addr []byte) error
	RoleMembers(role string) ([][]byte, error)
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Authorizer aborts a call when the real caller has not authorized acting as
// the given principal.
type Authorizer interface {
	Authorize(principal [20]byte) error
}

// TokenLedger moves reward tokens on behalf of the engine.
type TokenLedger interface {
	Credit(addr [20]byte, amount uint64) error
	Transfer(from, to [20]byte, amount uint64) error
}

// Engine implements the custody ledger, registry, incentive and reward logic.
// It is not safe for concurrent use; the hosting runtime serializes calls.
type Engine struct {
	st       State
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	auth     Authorizer
	tokens   TokenLedger
	contract [20]byte
	nowFn    func() int64
}

// NewEngine creates an engine backed by the provided state.
func NewEngine(st State) *Engine {
	return &Engine{
		st:      st,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState swaps the storage handle.
func (e *Engine) SetState(st State) { e.st = st }

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetAuthorizer installs the caller authorization check. A nil authorizer
// accepts every principal.
func (e *Engine) SetAuthorizer(a Authorizer) { e.auth = a }

// SetTokenLedger installs the ledger credited by reward payouts.
func (e *Engine) SetTokenLedger(l TokenLedger) { e.tokens = l }

// SetContractAddress records the module's own identity, which may never
// register as a participant.
func (e *Engine) SetContractAddress(addr [20]byte) { e.contract = addr }

// SetNowFunc overrides the timestamp source. Nil restores the wall clock.
func (e *Engine) SetNowFunc(fn func() int64) {
	if fn == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = fn
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) authorize(principal [20]byte) error {
	if e.auth == nil {
		return nil
	}
	return e.auth.Authorize(principal)
}

// begin runs the checks shared by every mutating call.
func (e *Engine) begin(caller [20]byte) error {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	return e.authorize(caller)
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) isAdmin(addr [20]byte) bool {
	return e.st.HasRole(RoleAdmin, addr[:])
}
