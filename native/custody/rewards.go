package custody

import (
	"fmt"
	"math/bits"
)

// ShareKind labels the rule that produced a payout.
type ShareKind string

const (
	ShareHandler   ShareKind = "handler"
	ShareCustodian ShareKind = "custodian"
	ShareRemainder ShareKind = "remainder"
)

// Payout is a single credit produced by a distribution.
type Payout struct {
	Recipient [20]byte
	Amount    uint64
	Share     ShareKind
}

// Distribution is the outcome of rewarding one verified material.
type Distribution struct {
	MaterialID  uint64
	TotalPoints uint64
	Payouts     []Payout
}

const pointsPerKilogram = 10

// RewardPoints returns floor(weight/1000) * multiplier * 10. Weights below one
// kilogram earn nothing.
func RewardPoints(weight uint64, c Category) (uint64, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCategory, c)
	}
	// floor(MaxUint64/1000) * 50 still fits in 64 bits for every category.
	total := (weight / 1000) * c.Multiplier() * pointsPerKilogram
	return total, nil
}

func percentOf(total uint64, percent uint32) uint64 {
	hi, lo := bits.Mul64(total, uint64(percent))
	q, _ := bits.Div64(hi, lo, 100)
	return q
}

// Distribute splits total across the custody chain. Every record whose
// recipient currently holds the handler role earns the handler share, in chain
// order, drawn from what remains after reserving the custodian share. The
// final custodian receives the custodian share plus whatever is left. Zero
// amounts are omitted. The returned payouts always sum to total.
func Distribute(total uint64, chain []TransferRecord, roles map[[20]byte]Role, custodian [20]byte, cfg DistributionConfig) ([]Payout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ownerShare := percentOf(total, cfg.CustodianSharePercent)
	handlerShare := percentOf(total, cfg.HandlerSharePercent)
	pool := total - ownerShare

	payouts := make([]Payout, 0, len(chain)+2)
	for _, rec := range chain {
		if roles[rec.To] != RoleHandler {
			continue
		}
		amount := handlerShare
		if amount > pool {
			amount = pool
		}
		pool -= amount
		if amount > 0 {
			payouts = append(payouts, Payout{Recipient: rec.To, Amount: amount, Share: ShareHandler})
		}
	}
	if ownerShare > 0 {
		payouts = append(payouts, Payout{Recipient: custodian, Amount: ownerShare, Share: ShareCustodian})
	}
	if pool > 0 {
		payouts = append(payouts, Payout{Recipient: custodian, Amount: pool, Share: ShareRemainder})
	}

	var sum uint64
	for _, p := range payouts {
		next, carry := bits.Add64(sum, p.Amount, 0)
		if carry != 0 {
			return nil, ErrDistributionMismatch
		}
		sum = next
	}
	if sum != total {
		return nil, fmt.Errorf("%w: paid %d of %d", ErrDistributionMismatch, sum, total)
	}
	return payouts, nil
}

// distributionFor computes the payouts of material m without writing state.
func (e *Engine) distributionFor(m *Material) (*Distribution, error) {
	total, err := RewardPoints(m.Weight, m.Category)
	if err != nil {
		return nil, err
	}
	chain, err := e.history(m)
	if err != nil {
		return nil, err
	}
	roles := make(map[[20]byte]Role, len(chain))
	for _, rec := range chain {
		if _, seen := roles[rec.To]; seen {
			continue
		}
		p, ok, err := e.loadParticipant(rec.To)
		if err != nil {
			return nil, err
		}
		if ok {
			roles[rec.To] = p.Role
		}
	}
	cfg, err := e.Distribution()
	if err != nil {
		return nil, err
	}
	payouts, err := Distribute(total, chain, roles, m.Custodian, cfg)
	if err != nil {
		return nil, err
	}
	return &Distribution{MaterialID: m.ID, TotalPoints: total, Payouts: payouts}, nil
}

// PreviewReward returns the distribution the material would receive if it were
// verified now.
func (e *Engine) PreviewReward(id uint64) (*Distribution, error) {
	m, err := e.loadMaterial(id)
	if err != nil {
		return nil, err
	}
	return e.distributionFor(m)
}
