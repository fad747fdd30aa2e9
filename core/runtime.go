package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"scavenger/core/events"
	"scavenger/core/genesis"
	"scavenger/core/state"
	"scavenger/core/types"
	nativecommon "scavenger/native/common"
	"scavenger/native/custody"
	"scavenger/observability"
	"scavenger/observability/metrics"
	"scavenger/storage"
	"scavenger/storage/trie"
)

var (
	ErrChainIDMismatch = errors.New("runtime: chain id mismatch")
	ErrInvalidNonce    = errors.New("runtime: invalid nonce")
	ErrUnknownMethod   = errors.New("runtime: unknown method")
	ErrInvalidParams   = errors.New("runtime: invalid params")
	ErrNoGenesis       = errors.New("runtime: no state head and no genesis provided")
)

var headKey = []byte("scavenger/head")

type head struct {
	Root   common.Hash
	Height uint64
}

// Options configures a Runtime.
type Options struct {
	// Genesis seeds an empty database. Ignored once a head exists.
	Genesis      *genesis.GenesisSpec
	Quota        nativecommon.Quota
	AllowMigrate bool
	Clock        func() time.Time
	Logger       *slog.Logger
}

// Runtime executes signed calls against the custody engine. Each call runs
// against the committed state and is either committed as a whole or rolled
// back as a whole. Calls are serialized.
type Runtime struct {
	mu      sync.Mutex
	db      storage.Database
	trie    *trie.Trie
	manager *state.Manager
	engine  *custody.Engine
	ledger  *state.RewardLedger
	pauses  *nativecommon.PauseStore
	signer  *signerAuthorizer
	buffer  *events.Buffer
	sink    *events.Fanout
	sinks   []ReceiptSink
	chainID string
	height  uint64
	quota   nativecommon.Quota
	now     func() time.Time
	logger  *slog.Logger
}

// NewRuntime opens the state referenced by the stored head, building it from
// opts.Genesis when the database is empty.
func NewRuntime(db storage.Database, opts Options) (*Runtime, error) {
	if db == nil {
		return nil, fmt.Errorf("runtime: database must not be nil")
	}
	current, ok, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	if !ok {
		if opts.Genesis == nil {
			return nil, ErrNoGenesis
		}
		root, err := genesis.BuildGenesisFromSpec(opts.Genesis, db)
		if err != nil {
			return nil, fmt.Errorf("build genesis: %w", err)
		}
		current = head{Root: root}
		if err := storeHead(db, current); err != nil {
			return nil, err
		}
	}

	stateTrie, err := trie.NewTrie(db, current.Root.Bytes())
	if err != nil {
		return nil, fmt.Errorf("open state at %s: %w", current.Root, err)
	}
	if err := state.EnsureStateVersion(stateTrie, opts.AllowMigrate); err != nil {
		return nil, err
	}
	manager := state.NewManager(stateTrie)
	chainID, err := manager.ChainID()
	if err != nil {
		return nil, err
	}
	if opts.Genesis != nil && opts.Genesis.ChainID != chainID {
		return nil, fmt.Errorf("%w: state=%q genesis=%q", ErrChainIDMismatch, chainID, opts.Genesis.ChainID)
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runtime{
		db:      db,
		trie:    stateTrie,
		manager: manager,
		pauses:  nativecommon.NewPauseStore(manager),
		signer:  &signerAuthorizer{},
		buffer:  &events.Buffer{},
		sink:    events.NewFanout(),
		chainID: chainID,
		height:  current.Height,
		quota:   opts.Quota,
		now:     clock,
		logger:  logger.With("component", "runtime"),
	}
	symbol := state.RewardSymbol
	if opts.Genesis != nil {
		symbol = opts.Genesis.Token().Symbol
	}
	r.ledger = state.NewRewardLedger(manager, symbol)
	r.ledger.SetEmitter(r.buffer)

	r.engine = custody.NewEngine(manager)
	r.engine.SetEmitter(r.buffer)
	r.engine.SetPauses(r.pauses)
	r.engine.SetAuthorizer(r.signer)
	r.engine.SetTokenLedger(r.ledger)
	r.engine.SetContractAddress(genesis.ContractAddress)
	r.engine.SetNowFunc(func() int64 { return r.now().Unix() })

	metrics.Custody().SetHeight(r.height)
	return r, nil
}

func loadHead(db storage.Database) (head, bool, error) {
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return head{}, false, nil
	}
	if err != nil {
		return head{}, false, fmt.Errorf("load head: %w", err)
	}
	var h head
	if err := rlp.DecodeBytes(raw, &h); err != nil {
		return head{}, false, fmt.Errorf("decode head: %w", err)
	}
	return h, true, nil
}

func storeHead(db storage.Database, h head) error {
	encoded, err := rlp.EncodeToBytes(h)
	if err != nil {
		return err
	}
	return db.Put(headKey, encoded)
}

// Subscribe registers an emitter that receives every committed event in
// commit order.
func (r *Runtime) Subscribe(e events.Emitter) { r.sink.Add(e) }

// ReceiptSink receives every committed receipt in commit order. It is called
// with the runtime locked and must not call back into the runtime.
type ReceiptSink interface {
	HandleReceipt(*types.Receipt)
}

// SubscribeReceipts registers s for committed receipts.
func (r *Runtime) SubscribeReceipts(s ReceiptSink) {
	if s == nil {
		return
	}
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

func (r *Runtime) publish(receipt *types.Receipt) {
	for _, s := range r.sinks {
		s.HandleReceipt(receipt)
	}
}

// ChainID returns the network identifier calls must be signed for.
func (r *Runtime) ChainID() string { return r.chainID }

// Head returns the committed root and height.
func (r *Runtime) Head() (common.Hash, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trie.Root(), r.height
}

// Nonce returns the next nonce expected from addr.
func (r *Runtime) Nonce(addr [20]byte) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nonce(addr)
}

// Execute verifies call and applies it. A failed call leaves state, nonce and
// quota counters untouched.
func (r *Runtime) Execute(ctx context.Context, call *types.Call) (*types.Receipt, error) {
	if call == nil {
		return nil, fmt.Errorf("%w: call must not be nil", ErrInvalidParams)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()
	receipt, err := r.execute(call)
	metrics.Custody().ObserveCall(call.Method, outcome(err), time.Since(started))
	if err != nil {
		r.logger.Debug("call rejected", "method", call.Method, "error", err)
		return nil, err
	}
	r.logger.Info("call committed", "method", call.Method, "signer", receipt.Signer,
		"height", receipt.Height, "root", receipt.Root)
	return receipt, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidNonce), errors.Is(err, ErrChainIDMismatch):
		return "rejected"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	case errors.Is(err, nativecommon.ErrQuotaRequestsExceeded), errors.Is(err, nativecommon.ErrQuotaWeightExceeded):
		return "throttled"
	default:
		return custody.ErrorKind(err)
	}
}

func (r *Runtime) execute(call *types.Call) (*types.Receipt, error) {
	if call.ChainID != r.chainID {
		return nil, fmt.Errorf("%w: got %q want %q", ErrChainIDMismatch, call.ChainID, r.chainID)
	}
	handler, ok := methods[call.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, call.Method)
	}
	sender, err := call.From()
	if err != nil {
		return nil, fmt.Errorf("recover signer: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	parent := r.trie.Root()
	result, err := r.apply(call, handler, sender)
	if err != nil {
		r.buffer.Discard()
		if resetErr := r.trie.Reset(parent); resetErr != nil {
			return nil, fmt.Errorf("%v (rollback failed: %w)", err, resetErr)
		}
		return nil, err
	}

	root, err := r.commit(parent)
	if err != nil {
		r.buffer.Discard()
		return nil, err
	}

	receipt := &types.Receipt{
		CallID: call.ID(),
		Method: call.Method,
		Signer: formatAddr(sender),
		Height: r.height,
		Root:   root.Hex(),
		Result: result,
		Events: r.flush(),
	}
	r.publish(receipt)
	return receipt, nil
}

func (r *Runtime) apply(call *types.Call, handler methodHandler, sender [20]byte) (json.RawMessage, error) {
	expected, err := r.nonce(sender)
	if err != nil {
		return nil, err
	}
	if call.Nonce != expected {
		return nil, fmt.Errorf("%w: got %d want %d", ErrInvalidNonce, call.Nonce, expected)
	}
	if err := r.chargeQuota(sender, 1, 0); err != nil {
		return nil, err
	}

	r.signer.set(sender)
	defer r.signer.clear()

	cc := &callContext{rt: r, sender: sender}
	out, err := handler(cc, call.Params)
	if err != nil {
		return nil, err
	}
	if err := r.setNonce(sender, expected+1); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return encoded, nil
}

func (r *Runtime) commit(parent common.Hash) (common.Hash, error) {
	next := r.height + 1
	root, err := r.trie.Commit(parent, next)
	if err != nil {
		if resetErr := r.trie.Reset(parent); resetErr != nil {
			return common.Hash{}, fmt.Errorf("state commit failed: %v (rollback failed: %w)", err, resetErr)
		}
		return common.Hash{}, fmt.Errorf("state commit failed: %w", err)
	}
	if err := storeHead(r.db, head{Root: root, Height: next}); err != nil {
		return common.Hash{}, fmt.Errorf("persist head: %w", err)
	}
	r.height = next
	metrics.Custody().SetHeight(next)
	if totals, err := r.engine.Metrics(); err == nil {
		tokens, _ := new(big.Float).SetInt(totals.TotalTokens.ToBig()).Float64()
		metrics.Custody().SetAggregates(totals.TotalMaterials, totals.TotalWeight, tokens)
	}
	return root, nil
}

// flush forwards the buffered events of a committed call and returns their
// generic form.
func (r *Runtime) flush() []types.Event {
	pending := r.buffer.Drain()
	out := make([]types.Event, 0, len(pending))
	for _, evt := range pending {
		observability.Events().RecordEvent(evt.EventType())
		if paid, ok := evt.(events.RewardPaid); ok {
			observability.Events().RecordReward(paid.Share, paid.Amount)
		}
		r.sink.Emit(evt)
		if converted := events.Convert(evt); converted != nil {
			out = append(out, *converted)
		}
	}
	return out
}

// View runs fn with read access to the committed state. fn must not mutate
// state; any writes are discarded.
func (r *Runtime) View(fn func(engine *custody.Engine, ledger *state.RewardLedger) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	root := r.trie.Root()
	err := fn(r.engine, r.ledger)
	r.buffer.Discard()
	if r.trie.Hash() != root {
		if resetErr := r.trie.Reset(root); resetErr != nil {
			return resetErr
		}
	}
	return err
}

// IsPaused reports the committed pause switch of module.
func (r *Runtime) IsPaused(module string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pauses.IsPaused(module)
}

// SetPaused toggles a module's pause switch as an operator action and commits
// it like a call.
func (r *Runtime) SetPaused(ctx context.Context, module string, paused bool) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	module = strings.ToLower(strings.TrimSpace(module))
	r.mu.Lock()
	defer r.mu.Unlock()

	parent := r.trie.Root()
	if err := r.pauses.SetPaused(module, paused); err != nil {
		_ = r.trie.Reset(parent)
		return nil, err
	}
	r.buffer.Emit(events.ModulePaused{Module: module, Paused: paused})
	root, err := r.commit(parent)
	if err != nil {
		r.buffer.Discard()
		return nil, err
	}
	r.logger.Warn("pause switch changed", "module", module, "paused", paused)
	receipt := &types.Receipt{
		Method: "host_setPaused",
		Height: r.height,
		Root:   root.Hex(),
		Events: r.flush(),
	}
	r.publish(receipt)
	return receipt, nil
}
