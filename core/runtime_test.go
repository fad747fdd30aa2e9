package core

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scavenger/core/events"
	"scavenger/core/genesis"
	"scavenger/core/state"
	"scavenger/core/types"
	"scavenger/crypto"
	nativecommon "scavenger/native/common"
	"scavenger/native/custody"
	"scavenger/storage"
)

const testChainID = "scv-test"

type actor struct {
	key  *crypto.PrivateKey
	addr [20]byte
}

func newActor(t *testing.T) actor {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	var addr [20]byte
	copy(addr[:], key.PubKey().Address().Bytes())
	return actor{key: key, addr: addr}
}

func (a actor) bech32() string { return crypto.FormatAddress(a.addr) }

type harness struct {
	t      *testing.T
	db     storage.Database
	rt     *Runtime
	spec   *genesis.GenesisSpec
	opts   Options
	nonces map[[20]byte]uint64
}

type recordingEmitter struct{ seen []events.Event }

func (r *recordingEmitter) Emit(evt events.Event) { r.seen = append(r.seen, evt) }

func newHarness(t *testing.T, admin actor, quota nativecommon.Quota) *harness {
	t.Helper()
	doc := fmt.Sprintf("genesisTime: \"2025-03-01T00:00:00Z\"\nchainId: %s\nadmins:\n  - %s\n", testChainID, admin.bech32())
	spec, err := genesis.ParseGenesisSpec([]byte(doc))
	require.NoError(t, err)

	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	opts := Options{
		Genesis: spec,
		Quota:   quota,
		Clock:   func() time.Time { return time.Unix(1_740_800_000, 0) },
	}
	rt, err := NewRuntime(db, opts)
	require.NoError(t, err)
	return &harness{t: t, db: db, rt: rt, spec: spec, opts: opts, nonces: map[[20]byte]uint64{}}
}

func (h *harness) sign(a actor, method string, params interface{}) *types.Call {
	h.t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(h.t, err)
	call := &types.Call{ChainID: testChainID, Method: method, Params: raw, Nonce: h.nonces[a.addr]}
	require.NoError(h.t, call.Sign(a.key.PrivateKey))
	return call
}

func (h *harness) exec(a actor, method string, params interface{}) (*types.Receipt, error) {
	h.t.Helper()
	receipt, err := h.rt.Execute(context.Background(), h.sign(a, method, params))
	if err == nil {
		h.nonces[a.addr]++
	}
	return receipt, err
}

func (h *harness) mustExec(a actor, method string, params interface{}) *types.Receipt {
	h.t.Helper()
	receipt, err := h.exec(a, method, params)
	require.NoError(h.t, err, method)
	return receipt
}

func eventTypes(receipt *types.Receipt) []string {
	out := make([]string, 0, len(receipt.Events))
	for _, evt := range receipt.Events {
		out = append(out, evt.Type)
	}
	return out
}

func TestRuntimeCustodyLifecycle(t *testing.T) {
	admin, origin, handler, processor, verifier := newActor(t), newActor(t), newActor(t), newActor(t), newActor(t)
	h := newHarness(t, admin, nativecommon.Quota{})
	sink := &recordingEmitter{}
	h.rt.Subscribe(sink)

	h.mustExec(origin, "custody_register", map[string]string{"role": "originator", "label": "Kiosk", "latitude": "45.5231", "longitude": "-122.6765"})
	h.mustExec(handler, "custody_register", map[string]string{"role": "handler"})
	h.mustExec(processor, "custody_register", map[string]string{"role": "processor"})
	h.mustExec(verifier, "custody_register", map[string]string{"role": "processor"})

	receipt := h.mustExec(origin, "custody_submit", map[string]interface{}{"category": "metal", "weight": 2000})
	var submitted materialIDResult
	require.NoError(t, json.Unmarshal(receipt.Result, &submitted))
	require.Equal(t, uint64(1), submitted.MaterialID)
	require.Equal(t, []string{events.TypeMaterialSubmitted}, eventTypes(receipt))

	h.mustExec(origin, "custody_transfer", map[string]interface{}{"materialId": 1, "to": handler.bech32(), "note": "pickup"})
	h.mustExec(handler, "custody_transfer", map[string]interface{}{"materialId": 1, "to": processor.bech32()})

	receipt = h.mustExec(verifier, "custody_verify", map[string]interface{}{"materialId": 1})
	var dist DistributionView
	require.NoError(t, json.Unmarshal(receipt.Result, &dist))
	require.Equal(t, uint64(100), dist.TotalPoints)
	require.Equal(t, []PayoutView{
		{Recipient: handler.bech32(), Amount: 5, Share: "handler"},
		{Recipient: processor.bech32(), Amount: 50, Share: "custodian"},
		{Recipient: processor.bech32(), Amount: 45, Share: "remainder"},
	}, dist.Payouts)
	require.Contains(t, eventTypes(receipt), events.TypeMaterialVerified)
	require.Contains(t, eventTypes(receipt), events.TypeTokenSupply)

	require.NoError(t, h.rt.View(func(engine *custody.Engine, ledger *state.RewardLedger) error {
		handlerBal, err := ledger.Balance(handler.addr)
		require.NoError(t, err)
		require.Equal(t, uint64(5), handlerBal.Uint64())
		processorBal, err := ledger.Balance(processor.addr)
		require.NoError(t, err)
		require.Equal(t, uint64(95), processorBal.Uint64())

		m, err := engine.Material(1)
		require.NoError(t, err)
		require.True(t, m.Verified)
		require.Equal(t, processor.addr, m.Custodian)
		totals, err := engine.Metrics()
		require.NoError(t, err)
		require.Equal(t, uint64(100), totals.TotalTokens.Uint64())
		return nil
	}))

	root, height := h.rt.Head()
	require.Equal(t, uint64(8), height)
	require.Equal(t, receipt.Root, root.Hex())
	require.NotEmpty(t, sink.seen)
}

func TestRuntimeRejectedCallsLeaveStateUntouched(t *testing.T) {
	admin, origin := newActor(t), newActor(t)
	h := newHarness(t, admin, nativecommon.Quota{})
	rootBefore, heightBefore := h.rt.Head()

	_, err := h.exec(origin, "custody_submit", map[string]interface{}{"category": "paper", "weight": 1500})
	require.ErrorIs(t, err, custody.ErrNotRegistered)

	nonce, err := h.rt.Nonce(origin.addr)
	require.NoError(t, err)
	require.Zero(t, nonce)
	rootAfter, heightAfter := h.rt.Head()
	require.Equal(t, rootBefore, rootAfter)
	require.Equal(t, heightBefore, heightAfter)

	h.mustExec(origin, "custody_register", map[string]string{"role": "originator"})
	_, err = h.exec(origin, "custody_submit", map[string]interface{}{"category": "paper", "weight": 0})
	require.ErrorIs(t, err, custody.ErrInvalidAmount)

	h.nonces[origin.addr] = 7
	_, err = h.exec(origin, "custody_deregister", nil)
	require.ErrorIs(t, err, ErrInvalidNonce)
	h.nonces[origin.addr] = 1

	_, err = h.exec(origin, "custody_unknown", nil)
	require.ErrorIs(t, err, ErrUnknownMethod)

	_, err = h.exec(origin, "custody_confirm", map[string]interface{}{"materialId": 1, "extra": true})
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = h.exec(origin, "custody_transfer", map[string]interface{}{"materialId": 1, "to": "not-an-address"})
	require.ErrorIs(t, err, ErrInvalidParams)

	call := h.sign(origin, "custody_deregister", nil)
	call.ChainID = "other"
	require.NoError(t, call.Sign(origin.key.PrivateKey))
	_, err = h.rt.Execute(context.Background(), call)
	require.ErrorIs(t, err, ErrChainIDMismatch)
}

func TestRuntimePauseSwitch(t *testing.T) {
	admin, origin := newActor(t), newActor(t)
	h := newHarness(t, admin, nativecommon.Quota{})

	receipt, err := h.rt.SetPaused(context.Background(), custody.ModuleName, true)
	require.NoError(t, err)
	require.Equal(t, []string{events.TypeModulePaused}, eventTypes(receipt))
	require.True(t, h.rt.IsPaused(custody.ModuleName))

	_, err = h.exec(origin, "custody_register", map[string]string{"role": "originator"})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	_, err = h.rt.SetPaused(context.Background(), custody.ModuleName, false)
	require.NoError(t, err)
	h.mustExec(origin, "custody_register", map[string]string{"role": "originator"})
}

func TestRuntimeQuotaLimitsSubmittedWeight(t *testing.T) {
	admin, origin := newActor(t), newActor(t)
	h := newHarness(t, admin, nativecommon.Quota{MaxWeightPerEpoch: 5000, EpochSeconds: 3600})
	h.mustExec(origin, "custody_register", map[string]string{"role": "originator"})

	h.mustExec(origin, "custody_submitBatch", map[string]interface{}{"items": []map[string]interface{}{
		{"category": "glass", "weight": 2000},
		{"category": "plastic", "weight": 2000},
	}})
	_, err := h.exec(origin, "custody_submit", map[string]interface{}{"category": "glass", "weight": 1001})
	require.ErrorIs(t, err, nativecommon.ErrQuotaWeightExceeded)
	h.mustExec(origin, "custody_submit", map[string]interface{}{"category": "glass", "weight": 1000})
}

func TestRuntimeReopensFromStoredHead(t *testing.T) {
	admin, origin := newActor(t), newActor(t)
	h := newHarness(t, admin, nativecommon.Quota{})
	h.mustExec(origin, "custody_register", map[string]string{"role": "originator"})
	h.mustExec(origin, "custody_submit", map[string]interface{}{"category": "paper", "weight": 3000})
	root, height := h.rt.Head()

	reopened, err := NewRuntime(h.db, h.opts)
	require.NoError(t, err)
	reRoot, reHeight := reopened.Head()
	require.Equal(t, root, reRoot)
	require.Equal(t, height, reHeight)
	nonce, err := reopened.Nonce(origin.addr)
	require.NoError(t, err)
	require.Equal(t, uint64(2), nonce)

	require.NoError(t, reopened.View(func(engine *custody.Engine, _ *state.RewardLedger) error {
		held, err := engine.HeldBy(origin.addr, true)
		require.NoError(t, err)
		require.Len(t, held, 1)
		return nil
	}))

	_, err = NewRuntime(storage.NewMemDB(), Options{})
	require.ErrorIs(t, err, ErrNoGenesis)
}

func TestRuntimeAdminCalls(t *testing.T) {
	admin, origin, charity := newActor(t), newActor(t), newActor(t)
	h := newHarness(t, admin, nativecommon.Quota{})

	h.mustExec(admin, "custody_setDistribution", map[string]uint32{"handlerSharePercent": 10, "custodianSharePercent": 60})
	_, err := h.exec(origin, "custody_setHandlerShare", map[string]uint32{"percent": 1})
	require.ErrorIs(t, err, custody.ErrUnauthorized)
	_, err = h.exec(admin, "custody_setCustodianShare", map[string]uint32{"percent": 95})
	require.ErrorIs(t, err, custody.ErrInvalidPercentages)

	h.mustExec(admin, "custody_setCharity", map[string]string{"charity": charity.bech32()})
	_, err = h.exec(admin, "custody_initializeAdmin", nil)
	require.ErrorIs(t, err, custody.ErrAdminAlreadyInitialized)

	require.NoError(t, h.rt.View(func(engine *custody.Engine, _ *state.RewardLedger) error {
		cfg, err := engine.Distribution()
		require.NoError(t, err)
		require.Equal(t, custody.DistributionConfig{HandlerSharePercent: 10, CustodianSharePercent: 60}, cfg)
		return nil
	}))
}

func TestMethodsListed(t *testing.T) {
	list := Methods()
	require.Contains(t, list, "custody_submit")
	require.Contains(t, list, "incentive_activate")
	require.IsIncreasing(t, list)
}
