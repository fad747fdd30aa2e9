package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"scavenger/crypto"
	"scavenger/native/custody"
)

type methodHandler func(c *callContext, params json.RawMessage) (interface{}, error)

var methods = map[string]methodHandler{
	"custody_register":          handleRegister,
	"custody_updateRole":        handleUpdateRole,
	"custody_deregister":        handleDeregister,
	"custody_updateLocation":    handleUpdateLocation,
	"custody_submit":            handleSubmit,
	"custody_submitBatch":       handleSubmitBatch,
	"custody_confirm":           handleConfirm,
	"custody_resetConfirmation": handleResetConfirmation,
	"custody_transfer":          handleTransfer,
	"custody_verify":            handleVerify,
	"custody_verifyBatch":       handleVerifyBatch,
	"custody_deactivate":        handleDeactivate,
	"custody_initializeAdmin":   handleInitializeAdmin,
	"custody_grantAdmin":        handleGrantAdmin,
	"custody_setDistribution":   handleSetDistribution,
	"custody_setHandlerShare":   handleSetHandlerShare,
	"custody_setCustodianShare": handleSetCustodianShare,
	"custody_setCharity":        handleSetCharity,
	"custody_donate":            handleDonate,
	"incentive_create":          handleIncentiveCreate,
	"incentive_update":          handleIncentiveUpdate,
	"incentive_deactivate":      handleIncentiveDeactivate,
	"incentive_activate":        handleIncentiveActivate,
}

// Methods lists the call methods the runtime accepts.
func Methods() []string {
	out := make([]string, 0, len(methods))
	for name := range methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeParams strictly decodes params into dst and runs its validation tags.
// Empty params decode as an empty object.
func decodeParams(params json.RawMessage, dst interface{}) error {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", ErrInvalidParams, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

func parseAddr(value, field string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return addr, fmt.Errorf("%w: %s: %v", ErrInvalidParams, field, err)
	}
	return addr, nil
}

type locationParams struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

func (p locationParams) coordinates() (custody.Coordinate, custody.Coordinate, error) {
	lat, err := custody.ParseCoordinate(p.Latitude)
	if err != nil {
		return 0, 0, err
	}
	lon, err := custody.ParseCoordinate(p.Longitude)
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

type registerParams struct {
	Role  string `json:"role" validate:"required"`
	Label string `json:"label" validate:"max=256"`
	locationParams
}

func handleRegister(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p registerParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	role, err := custody.ParseRole(p.Role)
	if err != nil {
		return nil, err
	}
	lat, lon, err := p.coordinates()
	if err != nil {
		return nil, err
	}
	participant, err := c.engine().Register(c.sender, role, p.Label, lat, lon)
	if err != nil {
		return nil, err
	}
	return NewParticipantView(participant), nil
}

type updateRoleParams struct {
	Principal string `json:"principal"`
	Role      string `json:"role" validate:"required"`
}

func handleUpdateRole(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p updateRoleParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	principal := c.sender
	if p.Principal != "" {
		addr, err := parseAddr(p.Principal, "principal")
		if err != nil {
			return nil, err
		}
		principal = addr
	}
	role, err := custody.ParseRole(p.Role)
	if err != nil {
		return nil, err
	}
	return nil, c.engine().UpdateRole(c.sender, principal, role)
}

type emptyParams struct{}

func handleDeregister(c *callContext, raw json.RawMessage) (interface{}, error) {
	if err := decodeParams(raw, &emptyParams{}); err != nil {
		return nil, err
	}
	return nil, c.engine().Deregister(c.sender)
}

func handleUpdateLocation(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p locationParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	lat, lon, err := p.coordinates()
	if err != nil {
		return nil, err
	}
	return nil, c.engine().UpdateLocation(c.sender, lat, lon)
}

type submitParams struct {
	Category    string `json:"category" validate:"required"`
	Weight      uint64 `json:"weight"`
	Description string `json:"description" validate:"max=1024"`
	locationParams
}

func (p submitParams) request() (custody.SubmitRequest, error) {
	category, err := custody.ParseCategory(p.Category)
	if err != nil {
		return custody.SubmitRequest{}, err
	}
	lat, lon, err := p.coordinates()
	if err != nil {
		return custody.SubmitRequest{}, err
	}
	return custody.SubmitRequest{
		Category:    category,
		Weight:      p.Weight,
		Description: p.Description,
		Latitude:    lat,
		Longitude:   lon,
	}, nil
}

type materialIDResult struct {
	MaterialID uint64 `json:"materialId"`
}

func handleSubmit(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p submitParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	req, err := p.request()
	if err != nil {
		return nil, err
	}
	if err := c.chargeWeight(req.Weight); err != nil {
		return nil, err
	}
	m, err := c.engine().Submit(c.sender, req)
	if err != nil {
		return nil, err
	}
	return materialIDResult{MaterialID: m.ID}, nil
}

type submitBatchParams struct {
	Items []submitParams `json:"items" validate:"required,min=1,max=100,dive"`
}

func handleSubmitBatch(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p submitBatchParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	reqs := make([]custody.SubmitRequest, 0, len(p.Items))
	var total uint64
	for i, item := range p.Items {
		req, err := item.request()
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		if total+req.Weight < total {
			return nil, fmt.Errorf("%w: batch weight", custody.ErrOverflow)
		}
		total += req.Weight
		reqs = append(reqs, req)
	}
	if err := c.chargeWeight(total); err != nil {
		return nil, err
	}
	materials, err := c.engine().SubmitBatch(c.sender, reqs)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(materials))
	for _, m := range materials {
		ids = append(ids, m.ID)
	}
	return struct {
		MaterialIDs []uint64 `json:"materialIds"`
	}{ids}, nil
}

type materialParams struct {
	MaterialID uint64 `json:"materialId"`
}

func handleConfirm(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p materialParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return nil, c.engine().Confirm(p.MaterialID, c.sender)
}

func handleResetConfirmation(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p materialParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return nil, c.engine().ResetConfirmation(p.MaterialID, c.sender)
}

type transferParams struct {
	MaterialID uint64 `json:"materialId"`
	To         string `json:"to" validate:"required"`
	Note       string `json:"note" validate:"max=1024"`
	locationParams
}

func handleTransfer(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p transferParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	to, err := parseAddr(p.To, "to")
	if err != nil {
		return nil, err
	}
	lat, lon, err := p.coordinates()
	if err != nil {
		return nil, err
	}
	rec, err := c.engine().Transfer(p.MaterialID, c.sender, to, custody.TransferRequest{
		Latitude:  lat,
		Longitude: lon,
		Note:      p.Note,
	})
	if err != nil {
		return nil, err
	}
	return NewTransferView(rec), nil
}

func handleVerify(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p materialParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	dist, err := c.engine().Verify(p.MaterialID, c.sender)
	if err != nil {
		return nil, err
	}
	return NewDistributionView(dist), nil
}

type verifyBatchParams struct {
	MaterialIDs []uint64 `json:"materialIds" validate:"required,min=1,max=100"`
}

func handleVerifyBatch(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p verifyBatchParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	dists, err := c.engine().VerifyBatch(p.MaterialIDs, c.sender)
	if err != nil {
		return nil, err
	}
	out := make([]DistributionView, 0, len(dists))
	for _, d := range dists {
		out = append(out, NewDistributionView(d))
	}
	return out, nil
}

func handleDeactivate(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p materialParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return nil, c.engine().Deactivate(p.MaterialID, c.sender)
}

func handleInitializeAdmin(c *callContext, raw json.RawMessage) (interface{}, error) {
	if err := decodeParams(raw, &emptyParams{}); err != nil {
		return nil, err
	}
	return nil, c.engine().InitializeAdmin(c.sender)
}

type grantAdminParams struct {
	Admin string `json:"admin" validate:"required"`
}

func handleGrantAdmin(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p grantAdminParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	admin, err := parseAddr(p.Admin, "admin")
	if err != nil {
		return nil, err
	}
	return nil, c.engine().GrantAdmin(c.sender, admin)
}

type distributionParams struct {
	HandlerSharePercent   uint32 `json:"handlerSharePercent" validate:"lte=100"`
	CustodianSharePercent uint32 `json:"custodianSharePercent" validate:"lte=100"`
}

func handleSetDistribution(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p distributionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return nil, c.engine().SetDistribution(c.sender, custody.DistributionConfig{
		HandlerSharePercent:   p.HandlerSharePercent,
		CustodianSharePercent: p.CustodianSharePercent,
	})
}

type percentParams struct {
	Percent uint32 `json:"percent" validate:"lte=100"`
}

func handleSetHandlerShare(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p percentParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return nil, c.engine().SetHandlerShare(c.sender, p.Percent)
}

func handleSetCustodianShare(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p percentParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return nil, c.engine().SetCustodianShare(c.sender, p.Percent)
}

type charityParams struct {
	Charity string `json:"charity" validate:"required"`
}

func handleSetCharity(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p charityParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	charity, err := parseAddr(p.Charity, "charity")
	if err != nil {
		return nil, err
	}
	return nil, c.engine().SetCharity(c.sender, charity)
}

type donateParams struct {
	Amount uint64 `json:"amount"`
}

func handleDonate(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p donateParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return nil, c.engine().Donate(c.sender, p.Amount)
}

type incentiveCreateParams struct {
	Category     string `json:"category" validate:"required"`
	RewardPoints uint64 `json:"rewardPoints"`
	Budget       uint64 `json:"budget"`
}

func handleIncentiveCreate(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p incentiveCreateParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	category, err := custody.ParseCategory(p.Category)
	if err != nil {
		return nil, err
	}
	inc, err := c.engine().CreateIncentive(c.sender, category, p.RewardPoints, p.Budget)
	if err != nil {
		return nil, err
	}
	return NewIncentiveView(inc), nil
}

type incentiveUpdateParams struct {
	IncentiveID  uint64 `json:"incentiveId"`
	RewardPoints uint64 `json:"rewardPoints"`
	Budget       uint64 `json:"budget"`
}

func handleIncentiveUpdate(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p incentiveUpdateParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	inc, err := c.engine().UpdateIncentive(p.IncentiveID, c.sender, p.RewardPoints, p.Budget)
	if err != nil {
		return nil, err
	}
	return NewIncentiveView(inc), nil
}

type incentiveParams struct {
	IncentiveID uint64 `json:"incentiveId"`
}

func handleIncentiveDeactivate(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p incentiveParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return nil, c.engine().DeactivateIncentive(p.IncentiveID, c.sender)
}

func handleIncentiveActivate(c *callContext, raw json.RawMessage) (interface{}, error) {
	var p incentiveParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return nil, c.engine().ActivateIncentive(p.IncentiveID, c.sender)
}
