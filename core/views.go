package core

import (
	"scavenger/native/custody"
)

// JSON views of custody records. Addresses are bech32, coordinates decimal
// degrees.

type ParticipantView struct {
	Address             string            `json:"address"`
	Role                string            `json:"role"`
	Label               string            `json:"label,omitempty"`
	Latitude            string            `json:"latitude"`
	Longitude           string            `json:"longitude"`
	RegisteredAt        uint64            `json:"registeredAt"`
	Registered          bool              `json:"registered"`
	Submissions         uint64            `json:"submissions"`
	VerifiedSubmissions uint64            `json:"verifiedSubmissions"`
	TotalWeight         uint64            `json:"totalWeight"`
	TotalRewards        uint64            `json:"totalRewards"`
	MaterialsReceived   uint64            `json:"materialsReceived"`
	CategoryCounts      map[string]uint64 `json:"categoryCounts,omitempty"`
}

type ParticipantInfoView struct {
	ParticipantView
	VerificationRate    uint64 `json:"verificationRate"`
	AverageWeight       uint64 `json:"averageWeight"`
	MostSubmitted       string `json:"mostSubmitted,omitempty"`
	ActiveRecycler      bool   `json:"activeRecycler"`
	VerifiedContributor bool   `json:"verifiedContributor"`
}

type MaterialView struct {
	ID           uint64 `json:"id"`
	Category     string `json:"category"`
	Weight       uint64 `json:"weight"`
	Originator   string `json:"originator"`
	Custodian    string `json:"custodian"`
	SubmittedAt  uint64 `json:"submittedAt"`
	Active       bool   `json:"active"`
	Verified     bool   `json:"verified"`
	VerifiedAt   uint64 `json:"verifiedAt,omitempty"`
	Confirmed    bool   `json:"confirmed"`
	Confirmer    string `json:"confirmer,omitempty"`
	Description  string `json:"description,omitempty"`
	Latitude     string `json:"latitude"`
	Longitude    string `json:"longitude"`
	Transfers    uint64 `json:"transfers"`
	RewardPoints uint64 `json:"rewardPoints"`
}

type TransferView struct {
	MaterialID uint64 `json:"materialId"`
	From       string `json:"from"`
	To         string `json:"to"`
	Timestamp  uint64 `json:"timestamp"`
	Latitude   string `json:"latitude"`
	Longitude  string `json:"longitude"`
	Note       string `json:"note,omitempty"`
}

type IncentiveView struct {
	ID              uint64 `json:"id"`
	Sponsor         string `json:"sponsor"`
	Category        string `json:"category"`
	RewardPoints    uint64 `json:"rewardPoints"`
	TotalBudget     uint64 `json:"totalBudget"`
	RemainingBudget uint64 `json:"remainingBudget"`
	Active          bool   `json:"active"`
	CreatedAt       uint64 `json:"createdAt"`
}

type PayoutView struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Share     string `json:"share"`
}

type DistributionView struct {
	MaterialID  uint64       `json:"materialId"`
	TotalPoints uint64       `json:"totalPoints"`
	Payouts     []PayoutView `json:"payouts"`
}

type MetricsView struct {
	TotalMaterials uint64 `json:"totalMaterials"`
	TotalWeight    uint64 `json:"totalWeight"`
	TotalTokens    string `json:"totalTokens"`
}

type DistributionConfigView struct {
	HandlerSharePercent   uint32 `json:"handlerSharePercent"`
	CustodianSharePercent uint32 `json:"custodianSharePercent"`
}

func NewParticipantView(p *custody.Participant) ParticipantView {
	view := ParticipantView{
		Address:             formatAddr(p.Address),
		Role:                p.Role.String(),
		Label:               p.Label,
		Latitude:            p.Latitude.String(),
		Longitude:           p.Longitude.String(),
		RegisteredAt:        p.RegisteredAt,
		Registered:          !p.Deregistered,
		Submissions:         p.Stats.Submissions,
		VerifiedSubmissions: p.Stats.VerifiedSubmissions,
		TotalWeight:         p.Stats.TotalWeight,
		TotalRewards:        p.Stats.TotalRewards,
		MaterialsReceived:   p.Stats.MaterialsReceived,
	}
	for i, c := range custody.Categories() {
		if n := p.Stats.CategoryCounts[i]; n > 0 {
			if view.CategoryCounts == nil {
				view.CategoryCounts = make(map[string]uint64)
			}
			view.CategoryCounts[c.String()] = n
		}
	}
	return view
}

func NewParticipantInfoView(info *custody.ParticipantInfo) ParticipantInfoView {
	view := ParticipantInfoView{
		ParticipantView:     NewParticipantView(&info.Participant),
		VerificationRate:    info.VerificationRate,
		AverageWeight:       info.AverageWeight,
		ActiveRecycler:      info.ActiveRecycler,
		VerifiedContributor: info.VerifiedContributor,
	}
	if info.MostSubmitted.Valid() {
		view.MostSubmitted = info.MostSubmitted.String()
	}
	return view
}

func NewMaterialView(m *custody.Material) MaterialView {
	view := MaterialView{
		ID:           m.ID,
		Category:     m.Category.String(),
		Weight:       m.Weight,
		Originator:   formatAddr(m.Originator),
		Custodian:    formatAddr(m.Custodian),
		SubmittedAt:  m.SubmittedAt,
		Active:       m.Active,
		Verified:     m.Verified,
		VerifiedAt:   m.VerifiedAt,
		Confirmed:    m.Confirmed,
		Description:  m.Description,
		Latitude:     m.Latitude.String(),
		Longitude:    m.Longitude.String(),
		Transfers:    m.Transfers,
		RewardPoints: m.RewardPoints,
	}
	if m.Confirmed {
		view.Confirmer = formatAddr(m.Confirmer)
	}
	return view
}

func NewMaterialViews(list []*custody.Material) []MaterialView {
	out := make([]MaterialView, 0, len(list))
	for _, m := range list {
		out = append(out, NewMaterialView(m))
	}
	return out
}

func NewTransferView(rec *custody.TransferRecord) TransferView {
	return TransferView{
		MaterialID: rec.MaterialID,
		From:       formatAddr(rec.From),
		To:         formatAddr(rec.To),
		Timestamp:  rec.Timestamp,
		Latitude:   rec.Latitude.String(),
		Longitude:  rec.Longitude.String(),
		Note:       rec.Note,
	}
}

func NewIncentiveView(inc *custody.Incentive) IncentiveView {
	return IncentiveView{
		ID:              inc.ID,
		Sponsor:         formatAddr(inc.Sponsor),
		Category:        inc.Category.String(),
		RewardPoints:    inc.RewardPoints,
		TotalBudget:     inc.TotalBudget,
		RemainingBudget: inc.RemainingBudget,
		Active:          inc.Active,
		CreatedAt:       inc.CreatedAt,
	}
}

func NewIncentiveViews(list []*custody.Incentive) []IncentiveView {
	out := make([]IncentiveView, 0, len(list))
	for _, inc := range list {
		out = append(out, NewIncentiveView(inc))
	}
	return out
}

func NewDistributionView(d *custody.Distribution) DistributionView {
	view := DistributionView{MaterialID: d.MaterialID, TotalPoints: d.TotalPoints, Payouts: []PayoutView{}}
	for _, p := range d.Payouts {
		view.Payouts = append(view.Payouts, PayoutView{
			Recipient: formatAddr(p.Recipient),
			Amount:    p.Amount,
			Share:     string(p.Share),
		})
	}
	return view
}

func NewMetricsView(m custody.AggregateMetrics) MetricsView {
	tokens := "0"
	if m.TotalTokens != nil {
		tokens = m.TotalTokens.Dec()
	}
	return MetricsView{TotalMaterials: m.TotalMaterials, TotalWeight: m.TotalWeight, TotalTokens: tokens}
}

func NewDistributionConfigView(cfg custody.DistributionConfig) DistributionConfigView {
	return DistributionConfigView{
		HandlerSharePercent:   cfg.HandlerSharePercent,
		CustodianSharePercent: cfg.CustodianSharePercent,
	}
}
