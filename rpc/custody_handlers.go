package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"scavenger/core"
	"scavenger/core/state"
	"scavenger/core/types"
	"scavenger/crypto"
	"scavenger/native/custody"
	"scavenger/storage/eventlog"
)

var handlers = map[string]handlerFunc{
	"scavenger_sendCall":           (*Server).handleSendCall,
	"scavenger_methods":            (*Server).handleMethods,
	"scavenger_head":               (*Server).handleHead,
	"scavenger_nonce":              (*Server).handleNonce,
	"scavenger_balance":            (*Server).handleBalance,
	"scavenger_tokens":             (*Server).handleTokens,
	"scavenger_events":             (*Server).handleEvents,
	"host_isPaused":                (*Server).handleIsPaused,
	"host_pause":                   (*Server).handlePause,
	"host_resume":                  (*Server).handleResume,
	"custody_participant":          (*Server).handleParticipant,
	"custody_participantInfo":      (*Server).handleParticipantInfo,
	"custody_isAdmin":              (*Server).handleIsAdmin,
	"custody_material":             (*Server).handleMaterial,
	"custody_materials":            (*Server).handleMaterials,
	"custody_custodian":            (*Server).handleCustodian,
	"custody_history":              (*Server).handleHistory,
	"custody_heldBy":               (*Server).handleHeldBy,
	"custody_originatedBy":         (*Server).handleOriginatedBy,
	"custody_previewReward":        (*Server).handlePreviewReward,
	"custody_incentive":            (*Server).handleIncentive,
	"custody_incentivesBySponsor":  (*Server).handleIncentivesBySponsor,
	"custody_incentivesByCategory": (*Server).handleIncentivesByCategory,
	"custody_activeIncentives":     (*Server).handleActiveIncentives,
	"custody_bestIncentive":        (*Server).handleBestIncentive,
	"custody_incentiveReward":      (*Server).handleIncentiveReward,
	"custody_metrics":              (*Server).handleMetrics,
	"custody_distribution":         (*Server).handleDistribution,
	"custody_charity":              (*Server).handleCharity,
	"custody_counters":             (*Server).handleCounters,
}

type addressParams struct {
	Address    string `json:"address"`
	ActiveOnly bool   `json:"activeOnly,omitempty"`
}

type idParams struct {
	ID uint64 `json:"id"`
}

type idsParams struct {
	IDs []uint64 `json:"ids"`
}

type moduleParams struct {
	Module string `json:"module"`
}

type eventsParams struct {
	FromHeight uint64 `json:"fromHeight,omitempty"`
	ToHeight   uint64 `json:"toHeight,omitempty"`
	Type       string `json:"type,omitempty"`
	Signer     string `json:"signer,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type bestIncentiveParams struct {
	Sponsor  string `json:"sponsor"`
	Category string `json:"category"`
}

type incentiveRewardParams struct {
	ID     uint64 `json:"id"`
	Weight uint64 `json:"weight"`
}

type HeadResult struct {
	ChainID string `json:"chainId"`
	Height  uint64 `json:"height"`
	Root    string `json:"stateRoot"`
}

type NonceResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

type TokenResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
	Supply   string `json:"supply"`
}

type CustodianResult struct {
	MaterialID uint64 `json:"materialId"`
	Custodian  string `json:"custodian"`
}

type CharityResult struct {
	Charity    string `json:"charity,omitempty"`
	Configured bool   `json:"configured"`
}

type CountersResult struct {
	LastMaterialID  uint64 `json:"lastMaterialId"`
	LastIncentiveID uint64 `json:"lastIncentiveId"`
}

type PauseResult struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type EventRecordResult struct {
	ID         string            `json:"id"`
	Height     uint64            `json:"height"`
	Position   int               `json:"position"`
	CallID     string            `json:"callId,omitempty"`
	Method     string            `json:"method"`
	Signer     string            `json:"signer,omitempty"`
	Type       string            `json:"type"`
	Topics     []string          `json:"topics,omitempty"`
	Attributes map[string]string `json:"attributes"`
}

// decodeParam strictly decodes the single parameter object of req into dst.
// A missing parameter leaves dst untouched.
func decodeParam(req *RPCRequest, dst interface{}) *RPCError {
	if len(req.Params) == 0 {
		return nil
	}
	if len(req.Params) > 1 {
		return invalidParams("too many parameters", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func requireParam(req *RPCRequest, dst interface{}) *RPCError {
	if len(req.Params) == 0 {
		return invalidParams("parameter object required", nil)
	}
	return decodeParam(req, dst)
}

func parseAddressParam(value string) ([20]byte, *RPCError) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, invalidParams("address required", nil)
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, invalidParams("failed to decode address", err.Error())
	}
	return addr, nil
}

// query runs fn against committed state and maps its error.
func (s *Server) query(fn func(engine *custody.Engine, ledger *state.RewardLedger) (interface{}, error)) (interface{}, *RPCError) {
	var out interface{}
	err := s.runtime.View(func(engine *custody.Engine, ledger *state.RewardLedger) error {
		var err error
		out, err = fn(engine, ledger)
		return err
	})
	if err != nil {
		return nil, callError(err)
	}
	return out, nil
}

func (s *Server) handleSendCall(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if len(req.Params) != 1 {
		return nil, invalidParams("call parameter required", nil)
	}
	var call types.Call
	if err := json.Unmarshal(req.Params[0], &call); err != nil {
		return nil, invalidParams("invalid call format", err.Error())
	}
	if len(call.Signature) == 0 {
		return nil, invalidParams("call signature required", nil)
	}
	receipt, err := s.runtime.Execute(r.Context(), &call)
	if err != nil {
		return nil, callError(err)
	}
	return receipt, nil
}

func (s *Server) handleMethods(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	return core.Methods(), nil
}

func (s *Server) handleHead(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	root, height := s.runtime.Head()
	return HeadResult{ChainID: s.runtime.ChainID(), Height: height, Root: root.Hex()}, nil
}

func (s *Server) handleNonce(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	nonce, err := s.runtime.Nonce(addr)
	if err != nil {
		return nil, serverError("failed to load nonce", err)
	}
	return NonceResult{Address: crypto.FormatAddress(addr), Nonce: nonce}, nil
}

func (s *Server) handleBalance(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(_ *custody.Engine, ledger *state.RewardLedger) (interface{}, error) {
		balance, err := ledger.Balance(addr)
		if err != nil {
			return nil, err
		}
		return BalanceResult{Address: crypto.FormatAddress(addr), Token: ledger.Symbol(), Balance: balance.String()}, nil
	})
}

func (s *Server) handleTokens(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	return s.query(func(_ *custody.Engine, ledger *state.RewardLedger) (interface{}, error) {
		tokens, err := ledger.Tokens()
		if err != nil {
			return nil, err
		}
		out := make([]TokenResult, 0, len(tokens))
		for _, tok := range tokens {
			out = append(out, TokenResult{Symbol: tok.Symbol, Name: tok.Name, Decimals: tok.Decimals, Supply: tok.Supply.String()})
		}
		return out, nil
	})
}

func (s *Server) handleEvents(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if s.archive == nil {
		return nil, &RPCError{Code: codeServerError, Message: "event archive disabled", status: http.StatusServiceUnavailable}
	}
	var params eventsParams
	if rpcErr := decodeParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.ToHeight > 0 && params.FromHeight > params.ToHeight {
		return nil, invalidParams("fromHeight must not exceed toHeight", nil)
	}
	records, err := s.archive.List(r.Context(), eventlog.Filter{
		FromHeight: params.FromHeight,
		ToHeight:   params.ToHeight,
		Type:       params.Type,
		Signer:     params.Signer,
		Topic:      params.Topic,
		Limit:      params.Limit,
	})
	if err != nil {
		return nil, serverError("failed to list events", err)
	}
	out := make([]EventRecordResult, 0, len(records))
	for _, rec := range records {
		attrs, err := rec.AttributeMap()
		if err != nil {
			return nil, serverError("corrupt event record", err)
		}
		out = append(out, EventRecordResult{
			ID:         rec.ID.String(),
			Height:     rec.Height,
			Position:   rec.Position,
			CallID:     rec.CallID,
			Method:     rec.Method,
			Signer:     rec.Signer,
			Type:       rec.Type,
			Topics:     rec.TopicList(),
			Attributes: attrs,
		})
	}
	return out, nil
}

func (s *Server) handleIsPaused(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params moduleParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	module := strings.ToLower(strings.TrimSpace(params.Module))
	if module == "" {
		return nil, invalidParams("module required", nil)
	}
	return PauseResult{Module: module, Paused: s.runtime.IsPaused(module)}, nil
}

func (s *Server) handlePause(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.setPaused(r, req, true)
}

func (s *Server) handleResume(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.setPaused(r, req, false)
}

func (s *Server) setPaused(r *http.Request, req *RPCRequest, paused bool) (interface{}, *RPCError) {
	if authErr := s.admin.require(r); authErr != nil {
		return nil, authErr
	}
	var params moduleParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if strings.TrimSpace(params.Module) == "" {
		return nil, invalidParams("module required", nil)
	}
	receipt, err := s.runtime.SetPaused(r.Context(), params.Module, paused)
	if err != nil {
		return nil, callError(err)
	}
	return receipt, nil
}

func (s *Server) handleParticipant(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		p, ok, err := engine.Participant(addr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: participant %s", custody.ErrNotFound, crypto.FormatAddress(addr))
		}
		return core.NewParticipantView(p), nil
	})
}

func (s *Server) handleParticipantInfo(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		info, err := engine.ParticipantInfo(addr)
		if err != nil {
			return nil, err
		}
		return core.NewParticipantInfoView(info), nil
	})
}

func (s *Server) handleIsAdmin(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		return engine.IsAdmin(addr), nil
	})
}

func (s *Server) handleMaterial(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params idParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		m, err := engine.Material(params.ID)
		if err != nil {
			return nil, err
		}
		return core.NewMaterialView(m), nil
	})
}

func (s *Server) handleMaterials(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params idsParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		list, err := engine.Materials(params.IDs)
		if err != nil {
			return nil, err
		}
		return core.NewMaterialViews(list), nil
	})
}

func (s *Server) handleCustodian(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params idParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		holder, err := engine.CurrentCustodian(params.ID)
		if err != nil {
			return nil, err
		}
		return CustodianResult{MaterialID: params.ID, Custodian: crypto.FormatAddress(holder)}, nil
	})
}

func (s *Server) handleHistory(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params idParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		history, err := engine.History(params.ID)
		if err != nil {
			return nil, err
		}
		out := make([]core.TransferView, 0, len(history))
		for i := range history {
			out = append(out, core.NewTransferView(&history[i]))
		}
		return out, nil
	})
}

func (s *Server) handleHeldBy(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.materialsByAddress(req, (*custody.Engine).HeldBy)
}

func (s *Server) handleOriginatedBy(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.materialsByAddress(req, (*custody.Engine).OriginatedBy)
}

func (s *Server) materialsByAddress(req *RPCRequest, lookup func(*custody.Engine, [20]byte, bool) ([]*custody.Material, error)) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		list, err := lookup(engine, addr, params.ActiveOnly)
		if err != nil {
			return nil, err
		}
		return core.NewMaterialViews(list), nil
	})
}

func (s *Server) handlePreviewReward(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params idParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		dist, err := engine.PreviewReward(params.ID)
		if err != nil {
			return nil, err
		}
		return core.NewDistributionView(dist), nil
	})
}

func (s *Server) handleIncentive(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params idParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		inc, err := engine.Incentive(params.ID)
		if err != nil {
			return nil, err
		}
		return core.NewIncentiveView(inc), nil
	})
}

func (s *Server) handleIncentivesBySponsor(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		list, err := engine.IncentivesBySponsor(addr)
		if err != nil {
			return nil, err
		}
		return core.NewIncentiveViews(list), nil
	})
}

func (s *Server) handleIncentivesByCategory(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		Category string `json:"category"`
	}
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	category, err := custody.ParseCategory(params.Category)
	if err != nil {
		return nil, callError(err)
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		list, err := engine.IncentivesByCategory(category)
		if err != nil {
			return nil, err
		}
		return core.NewIncentiveViews(list), nil
	})
}

func (s *Server) handleActiveIncentives(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		list, err := engine.ActiveIncentives()
		if err != nil {
			return nil, err
		}
		return core.NewIncentiveViews(list), nil
	})
}

func (s *Server) handleBestIncentive(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params bestIncentiveParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	sponsor, rpcErr := parseAddressParam(params.Sponsor)
	if rpcErr != nil {
		return nil, rpcErr
	}
	category, err := custody.ParseCategory(params.Category)
	if err != nil {
		return nil, callError(err)
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		inc, ok, err := engine.BestActiveFor(sponsor, category)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return core.NewIncentiveView(inc), nil
	})
}

func (s *Server) handleIncentiveReward(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params incentiveRewardParams
	if rpcErr := requireParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		reward, err := engine.CalculateIncentiveReward(params.ID, params.Weight)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"reward": reward}, nil
	})
}

func (s *Server) handleMetrics(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		totals, err := engine.Metrics()
		if err != nil {
			return nil, err
		}
		return core.NewMetricsView(totals), nil
	})
}

func (s *Server) handleDistribution(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		cfg, err := engine.Distribution()
		if err != nil {
			return nil, err
		}
		return core.NewDistributionConfigView(cfg), nil
	})
}

func (s *Server) handleCharity(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		charity, ok, err := engine.Charity()
		if err != nil {
			return nil, err
		}
		if !ok {
			return CharityResult{}, nil
		}
		return CharityResult{Charity: crypto.FormatAddress(charity), Configured: true}, nil
	})
}

func (s *Server) handleCounters(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	return s.query(func(engine *custody.Engine, _ *state.RewardLedger) (interface{}, error) {
		counters, err := engine.Counters()
		if err != nil {
			return nil, err
		}
		return CountersResult{LastMaterialID: counters.LastMaterialID, LastIncentiveID: counters.LastIncentiveID}, nil
	})
}
