package custody_test

import (
	"errors"
	"testing"

	"scavenger/core/events"
	"scavenger/core/state"
	"scavenger/native/custody"
	"scavenger/storage"
	statetrie "scavenger/storage/trie"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) {
	c.events = append(c.events, e)
}

func (c *capturingEmitter) ofType(kind string) []events.Event {
	var out []events.Event
	for _, e := range c.events {
		if e.EventType() == kind {
			out = append(out, e)
		}
	}
	return out
}

type fakeLedger struct {
	balances map[[20]byte]uint64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[[20]byte]uint64)}
}

func (f *fakeLedger) Credit(addr [20]byte, amount uint64) error {
	f.balances[addr] += amount
	return nil
}

func (f *fakeLedger) Transfer(from, to [20]byte, amount uint64) error {
	if f.balances[from] < amount {
		return errors.New("insufficient balance")
	}
	f.balances[from] -= amount
	f.balances[to] += amount
	return nil
}

type testEnv struct {
	engine  *custody.Engine
	state   *state.Manager
	emitter *capturingEmitter
	ledger  *fakeLedger
	clock   int64
}

func newTestEngine(t *testing.T) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := statetrie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("create trie: %v", err)
	}
	env := &testEnv{
		state:   state.NewManager(tr),
		emitter: &capturingEmitter{},
		ledger:  newFakeLedger(),
		clock:   1_700_000_000,
	}
	env.engine = custody.NewEngine(env.state)
	env.engine.SetEmitter(env.emitter)
	env.engine.SetTokenLedger(env.ledger)
	env.engine.SetContractAddress(addr(0xCC))
	env.engine.SetNowFunc(func() int64 { return env.clock })
	return env
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[0] = 0x5c
	a[19] = b
	return a
}

func (env *testEnv) register(t *testing.T, a [20]byte, role custody.Role) {
	t.Helper()
	if _, err := env.engine.Register(a, role, "participant", 0, 0); err != nil {
		t.Fatalf("register %x as %s: %v", a[19], role, err)
	}
}

func (env *testEnv) admin(t *testing.T, a [20]byte) {
	t.Helper()
	if err := env.engine.InitializeAdmin(a); err != nil {
		t.Fatalf("initialize admin: %v", err)
	}
}

func (env *testEnv) submit(t *testing.T, originator [20]byte, c custody.Category, weight uint64) *custody.Material {
	t.Helper()
	m, err := env.engine.Submit(originator, custody.SubmitRequest{Category: c, Weight: weight})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return m
}

func (env *testEnv) transfer(t *testing.T, id uint64, from, to [20]byte) {
	t.Helper()
	if _, err := env.engine.Transfer(id, from, to, custody.TransferRequest{}); err != nil {
		t.Fatalf("transfer %d: %v", id, err)
	}
}

func (env *testEnv) checkMetrics(t *testing.T) {
	t.Helper()
	stored, err := env.engine.Metrics()
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	folded, err := env.engine.RecomputeMetrics()
	if err != nil {
		t.Fatalf("recompute metrics: %v", err)
	}
	if !stored.Equal(folded) {
		t.Fatalf("metrics diverged: stored=%+v folded=%+v", stored, folded)
	}
}

func (env *testEnv) rewardTotal(t *testing.T, a [20]byte) uint64 {
	t.Helper()
	p, ok, err := env.engine.Participant(a)
	if err != nil || !ok {
		t.Fatalf("participant %x: ok=%v err=%v", a[19], ok, err)
	}
	return p.Stats.TotalRewards
}
