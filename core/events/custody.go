package events

import (
	"strconv"

	"scavenger/core/types"
	"scavenger/crypto"
)

const (
	TypeParticipantRegistered      = "custody.participant.registered"
	TypeParticipantRoleUpdated     = "custody.participant.role_updated"
	TypeParticipantDeregistered    = "custody.participant.deregistered"
	TypeParticipantLocationUpdated = "custody.participant.location_updated"

	TypeMaterialSubmitted         = "custody.material.submitted"
	TypeMaterialConfirmed         = "custody.material.confirmed"
	TypeMaterialConfirmationReset = "custody.material.confirmation_reset"
	TypeMaterialTransferred       = "custody.material.transferred"
	TypeMaterialVerified          = "custody.material.verified"
	TypeMaterialDeactivated       = "custody.material.deactivated"
	TypeRewardPaid                = "custody.reward.paid"

	TypeIncentiveCreated     = "custody.incentive.created"
	TypeIncentiveUpdated     = "custody.incentive.updated"
	TypeIncentiveDeactivated = "custody.incentive.deactivated"
	TypeIncentiveActivated   = "custody.incentive.activated"

	TypeDistributionUpdated = "custody.config.distribution_updated"
	TypeAdminGranted        = "custody.admin.granted"
	TypeCharityUpdated      = "custody.charity.updated"
	TypeCharityDonation     = "custody.charity.donated"
)

func addrString(addr [20]byte) string {
	return crypto.FormatAddress(addr)
}

func principalTopic(addr [20]byte) string {
	return "principal:" + addrString(addr)
}

func materialTopic(id uint64) string {
	return "material:" + strconv.FormatUint(id, 10)
}

func incentiveTopic(id uint64) string {
	return "incentive:" + strconv.FormatUint(id, 10)
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func i64(v int64) string { return strconv.FormatInt(v, 10) }

// ParticipantRegistered is emitted when a principal joins the registry.
type ParticipantRegistered struct {
	Address   [20]byte
	Role      string
	Label     string
	Latitude  int64
	Longitude int64
	Timestamp uint64
}

// EventType implements the Event interface.
func (ParticipantRegistered) EventType() string { return TypeParticipantRegistered }

// Event converts the registration into the generic event payload.
func (e ParticipantRegistered) Event() *types.Event {
	return &types.Event{
		Type:   TypeParticipantRegistered,
		Topics: []string{principalTopic(e.Address)},
		Attributes: map[string]string{
			"address":      addrString(e.Address),
			"role":         e.Role,
			"label":        e.Label,
			"latitude":     i64(e.Latitude),
			"longitude":    i64(e.Longitude),
			"registeredAt": u64(e.Timestamp),
		},
	}
}

// ParticipantRoleUpdated is emitted when a participant changes role.
type ParticipantRoleUpdated struct {
	Address [20]byte
	Caller  [20]byte
	OldRole string
	NewRole string
}

// EventType implements the Event interface.
func (ParticipantRoleUpdated) EventType() string { return TypeParticipantRoleUpdated }

// Event converts the role update into the generic event payload.
func (e ParticipantRoleUpdated) Event() *types.Event {
	return &types.Event{
		Type:   TypeParticipantRoleUpdated,
		Topics: []string{principalTopic(e.Address)},
		Attributes: map[string]string{
			"address": addrString(e.Address),
			"caller":  addrString(e.Caller),
			"oldRole": e.OldRole,
			"newRole": e.NewRole,
		},
	}
}

// ParticipantDeregistered is emitted when a participant leaves the registry.
type ParticipantDeregistered struct {
	Address [20]byte
}

// EventType implements the Event interface.
func (ParticipantDeregistered) EventType() string { return TypeParticipantDeregistered }

// Event converts the deregistration into the generic event payload.
func (e ParticipantDeregistered) Event() *types.Event {
	return &types.Event{
		Type:       TypeParticipantDeregistered,
		Topics:     []string{principalTopic(e.Address)},
		Attributes: map[string]string{"address": addrString(e.Address)},
	}
}

// ParticipantLocationUpdated is emitted when a participant moves.
type ParticipantLocationUpdated struct {
	Address   [20]byte
	Latitude  int64
	Longitude int64
}

// EventType implements the Event interface.
func (ParticipantLocationUpdated) EventType() string { return TypeParticipantLocationUpdated }

// Event converts the location update into the generic event payload.
func (e ParticipantLocationUpdated) Event() *types.Event {
	return &types.Event{
		Type:   TypeParticipantLocationUpdated,
		Topics: []string{principalTopic(e.Address)},
		Attributes: map[string]string{
			"address":   addrString(e.Address),
			"latitude":  i64(e.Latitude),
			"longitude": i64(e.Longitude),
		},
	}
}

// MaterialSubmitted is emitted when an originator records a new material.
type MaterialSubmitted struct {
	MaterialID uint64
	Category   string
	Weight     uint64
	Originator [20]byte
	Timestamp  uint64
}

// EventType implements the Event interface.
func (MaterialSubmitted) EventType() string { return TypeMaterialSubmitted }

// Event converts the submission into the generic event payload.
func (e MaterialSubmitted) Event() *types.Event {
	return &types.Event{
		Type:   TypeMaterialSubmitted,
		Topics: []string{materialTopic(e.MaterialID), principalTopic(e.Originator)},
		Attributes: map[string]string{
			"materialId":  u64(e.MaterialID),
			"category":    e.Category,
			"weight":      u64(e.Weight),
			"originator":  addrString(e.Originator),
			"submittedAt": u64(e.Timestamp),
		},
	}
}

// MaterialConfirmed is emitted when a third party confirms a material.
type MaterialConfirmed struct {
	MaterialID uint64
	Confirmer  [20]byte
	Custodian  [20]byte
}

// EventType implements the Event interface.
func (MaterialConfirmed) EventType() string { return TypeMaterialConfirmed }

// Event converts the confirmation into the generic event payload.
func (e MaterialConfirmed) Event() *types.Event {
	return &types.Event{
		Type:   TypeMaterialConfirmed,
		Topics: []string{materialTopic(e.MaterialID), principalTopic(e.Confirmer)},
		Attributes: map[string]string{
			"materialId": u64(e.MaterialID),
			"confirmer":  addrString(e.Confirmer),
			"custodian":  addrString(e.Custodian),
		},
	}
}

// MaterialConfirmationReset is emitted when the custodian clears a confirmation.
type MaterialConfirmationReset struct {
	MaterialID uint64
	Custodian  [20]byte
}

// EventType implements the Event interface.
func (MaterialConfirmationReset) EventType() string { return TypeMaterialConfirmationReset }

// Event converts the reset into the generic event payload.
func (e MaterialConfirmationReset) Event() *types.Event {
	return &types.Event{
		Type:   TypeMaterialConfirmationReset,
		Topics: []string{materialTopic(e.MaterialID), principalTopic(e.Custodian)},
		Attributes: map[string]string{
			"materialId": u64(e.MaterialID),
			"custodian":  addrString(e.Custodian),
		},
	}
}

// MaterialTransferred is emitted for every custody hop.
type MaterialTransferred struct {
	MaterialID uint64
	From       [20]byte
	To         [20]byte
	Timestamp  uint64
	Latitude   int64
	Longitude  int64
	Note       string
}

// EventType implements the Event interface.
func (MaterialTransferred) EventType() string { return TypeMaterialTransferred }

// Event converts the transfer into the generic event payload.
func (e MaterialTransferred) Event() *types.Event {
	attrs := map[string]string{
		"materialId":    u64(e.MaterialID),
		"from":          addrString(e.From),
		"to":            addrString(e.To),
		"transferredAt": u64(e.Timestamp),
		"latitude":      i64(e.Latitude),
		"longitude":     i64(e.Longitude),
	}
	if e.Note != "" {
		attrs["note"] = e.Note
	}
	return &types.Event{
		Type:       TypeMaterialTransferred,
		Topics:     []string{materialTopic(e.MaterialID), principalTopic(e.From), principalTopic(e.To)},
		Attributes: attrs,
	}
}

// MaterialVerified is emitted when a material is verified and its reward pool
// has been distributed.
type MaterialVerified struct {
	MaterialID  uint64
	Verifier    [20]byte
	Custodian   [20]byte
	TotalPoints uint64
}

// EventType implements the Event interface.
func (MaterialVerified) EventType() string { return TypeMaterialVerified }

// Event converts the verification into the generic event payload.
func (e MaterialVerified) Event() *types.Event {
	return &types.Event{
		Type:   TypeMaterialVerified,
		Topics: []string{materialTopic(e.MaterialID), principalTopic(e.Verifier)},
		Attributes: map[string]string{
			"materialId":  u64(e.MaterialID),
			"verifier":    addrString(e.Verifier),
			"custodian":   addrString(e.Custodian),
			"totalPoints": u64(e.TotalPoints),
		},
	}
}

// RewardPaid is emitted once per payout of a distribution.
type RewardPaid struct {
	MaterialID uint64
	Recipient  [20]byte
	Amount     uint64
	Share      string
}

// EventType implements the Event interface.
func (RewardPaid) EventType() string { return TypeRewardPaid }

// Event converts the payout into the generic event payload.
func (e RewardPaid) Event() *types.Event {
	return &types.Event{
		Type:   TypeRewardPaid,
		Topics: []string{materialTopic(e.MaterialID), principalTopic(e.Recipient)},
		Attributes: map[string]string{
			"materialId": u64(e.MaterialID),
			"recipient":  addrString(e.Recipient),
			"amount":     u64(e.Amount),
			"share":      e.Share,
		},
	}
}

// MaterialDeactivated is emitted when an admin retires a material.
type MaterialDeactivated struct {
	MaterialID uint64
	Admin      [20]byte
}

// EventType implements the Event interface.
func (MaterialDeactivated) EventType() string { return TypeMaterialDeactivated }

// Event converts the deactivation into the generic event payload.
func (e MaterialDeactivated) Event() *types.Event {
	return &types.Event{
		Type:   TypeMaterialDeactivated,
		Topics: []string{materialTopic(e.MaterialID)},
		Attributes: map[string]string{
			"materialId": u64(e.MaterialID),
			"admin":      addrString(e.Admin),
		},
	}
}

// IncentiveCreated is emitted when a processor publishes an incentive.
type IncentiveCreated struct {
	IncentiveID  uint64
	Sponsor      [20]byte
	Category     string
	RewardPoints uint64
	TotalBudget  uint64
}

// EventType implements the Event interface.
func (IncentiveCreated) EventType() string { return TypeIncentiveCreated }

// Event converts the incentive creation into the generic event payload.
func (e IncentiveCreated) Event() *types.Event {
	return &types.Event{
		Type:   TypeIncentiveCreated,
		Topics: []string{incentiveTopic(e.IncentiveID), principalTopic(e.Sponsor)},
		Attributes: map[string]string{
			"incentiveId":  u64(e.IncentiveID),
			"sponsor":      addrString(e.Sponsor),
			"category":     e.Category,
			"rewardPoints": u64(e.RewardPoints),
			"totalBudget":  u64(e.TotalBudget),
		},
	}
}

// IncentiveUpdated is emitted when a sponsor changes rate or budget.
type IncentiveUpdated struct {
	IncentiveID     uint64
	Sponsor         [20]byte
	RewardPoints    uint64
	TotalBudget     uint64
	RemainingBudget uint64
	Active          bool
}

// EventType implements the Event interface.
func (IncentiveUpdated) EventType() string { return TypeIncentiveUpdated }

// Event converts the incentive update into the generic event payload.
func (e IncentiveUpdated) Event() *types.Event {
	return &types.Event{
		Type:   TypeIncentiveUpdated,
		Topics: []string{incentiveTopic(e.IncentiveID), principalTopic(e.Sponsor)},
		Attributes: map[string]string{
			"incentiveId":     u64(e.IncentiveID),
			"sponsor":         addrString(e.Sponsor),
			"rewardPoints":    u64(e.RewardPoints),
			"totalBudget":     u64(e.TotalBudget),
			"remainingBudget": u64(e.RemainingBudget),
			"active":          strconv.FormatBool(e.Active),
		},
	}
}

// IncentiveDeactivated is emitted when a sponsor withdraws an incentive.
type IncentiveDeactivated struct {
	IncentiveID uint64
	Sponsor     [20]byte
}

// EventType implements the Event interface.
func (IncentiveDeactivated) EventType() string { return TypeIncentiveDeactivated }

// Event converts the deactivation into the generic event payload.
func (e IncentiveDeactivated) Event() *types.Event {
	return &types.Event{
		Type:   TypeIncentiveDeactivated,
		Topics: []string{incentiveTopic(e.IncentiveID), principalTopic(e.Sponsor)},
		Attributes: map[string]string{
			"incentiveId": u64(e.IncentiveID),
			"sponsor":     addrString(e.Sponsor),
		},
	}
}

// IncentiveActivated is emitted when a sponsor reactivates an incentive.
type IncentiveActivated struct {
	IncentiveID uint64
	Sponsor     [20]byte
}

// EventType implements the Event interface.
func (IncentiveActivated) EventType() string { return TypeIncentiveActivated }

// Event converts the activation into the generic event payload.
func (e IncentiveActivated) Event() *types.Event {
	return &types.Event{
		Type:   TypeIncentiveActivated,
		Topics: []string{incentiveTopic(e.IncentiveID), principalTopic(e.Sponsor)},
		Attributes: map[string]string{
			"incentiveId": u64(e.IncentiveID),
			"sponsor":     addrString(e.Sponsor),
		},
	}
}

// DistributionUpdated is emitted when an admin overwrites the share
// percentages.
type DistributionUpdated struct {
	Caller                [20]byte
	HandlerSharePercent   uint32
	CustodianSharePercent uint32
}

// EventType implements the Event interface.
func (DistributionUpdated) EventType() string { return TypeDistributionUpdated }

// Event converts the configuration change into the generic event payload.
func (e DistributionUpdated) Event() *types.Event {
	return &types.Event{
		Type:   TypeDistributionUpdated,
		Topics: []string{principalTopic(e.Caller)},
		Attributes: map[string]string{
			"caller":                addrString(e.Caller),
			"handlerSharePercent":   u64(uint64(e.HandlerSharePercent)),
			"custodianSharePercent": u64(uint64(e.CustodianSharePercent)),
		},
	}
}

// AdminGranted is emitted when an address gains the custody admin capability.
type AdminGranted struct {
	Admin  [20]byte
	Caller [20]byte
}

// EventType implements the Event interface.
func (AdminGranted) EventType() string { return TypeAdminGranted }

// Event converts the grant into the generic event payload.
func (e AdminGranted) Event() *types.Event {
	return &types.Event{
		Type:   TypeAdminGranted,
		Topics: []string{principalTopic(e.Admin)},
		Attributes: map[string]string{
			"admin":  addrString(e.Admin),
			"caller": addrString(e.Caller),
		},
	}
}

// CharityUpdated is emitted when the donation target changes.
type CharityUpdated struct {
	Charity [20]byte
	Caller  [20]byte
}

// EventType implements the Event interface.
func (CharityUpdated) EventType() string { return TypeCharityUpdated }

// Event converts the charity change into the generic event payload.
func (e CharityUpdated) Event() *types.Event {
	return &types.Event{
		Type:   TypeCharityUpdated,
		Topics: []string{principalTopic(e.Charity)},
		Attributes: map[string]string{
			"charity": addrString(e.Charity),
			"caller":  addrString(e.Caller),
		},
	}
}

// CharityDonation is emitted when a participant donates reward tokens.
type CharityDonation struct {
	Donor   [20]byte
	Charity [20]byte
	Amount  uint64
}

// EventType implements the Event interface.
func (CharityDonation) EventType() string { return TypeCharityDonation }

// Event converts the donation into the generic event payload.
func (e CharityDonation) Event() *types.Event {
	return &types.Event{
		Type:   TypeCharityDonation,
		Topics: []string{principalTopic(e.Donor), principalTopic(e.Charity)},
		Attributes: map[string]string{
			"donor":   addrString(e.Donor),
			"charity": addrString(e.Charity),
			"amount":  u64(e.Amount),
		},
	}
}
