package custody

import (
	"fmt"
	"math/bits"
	"sort"

	"scavenger/core/events"
)

func (e *Engine) loadIncentive(id uint64) (*Incentive, error) {
	inc := new(Incentive)
	ok, err := e.st.KVGet(incentiveKey(id), inc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrIncentiveNotFound, id)
	}
	return inc, nil
}

func (e *Engine) storeIncentive(inc *Incentive) error {
	return e.st.KVPut(incentiveKey(inc.ID), inc)
}

// sponsoredIncentive loads an incentive and checks caller is its sponsor.
func (e *Engine) sponsoredIncentive(id uint64, caller [20]byte) (*Incentive, error) {
	inc, err := e.loadIncentive(id)
	if err != nil {
		return nil, err
	}
	if inc.Sponsor != caller {
		return nil, ErrNotSponsor
	}
	return inc, nil
}

// CreateIncentive publishes a reward offer for one category. Only processors
// may sponsor incentives.
func (e *Engine) CreateIncentive(sponsor [20]byte, category Category, rewardPoints, budget uint64) (*Incentive, error) {
	if err := e.begin(sponsor); err != nil {
		return nil, err
	}
	p, err := e.registeredParticipant(sponsor)
	if err != nil {
		return nil, err
	}
	if p.Role != RoleProcessor {
		return nil, ErrNotProcessor
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCategory, category)
	}
	if rewardPoints == 0 {
		return nil, fmt.Errorf("%w: reward points must be positive", ErrInvalidAmount)
	}
	if budget == 0 {
		return nil, fmt.Errorf("%w: budget must be positive", ErrInvalidAmount)
	}
	id, err := e.AllocateIncentiveID()
	if err != nil {
		return nil, err
	}
	inc := &Incentive{
		ID:              id,
		Sponsor:         sponsor,
		Category:        category,
		RewardPoints:    rewardPoints,
		TotalBudget:     budget,
		RemainingBudget: budget,
		Active:          true,
		CreatedAt:       e.now(),
	}
	if err := e.storeIncentive(inc); err != nil {
		return nil, err
	}
	if err := e.st.KVAppend(incentiveSponsorKey(sponsor), encodeID(id)); err != nil {
		return nil, err
	}
	if err := e.st.KVAppend(incentiveCategoryKey(category), encodeID(id)); err != nil {
		return nil, err
	}
	e.emit(events.IncentiveCreated{
		IncentiveID:  id,
		Sponsor:      sponsor,
		Category:     category.String(),
		RewardPoints: rewardPoints,
		TotalBudget:  budget,
	})
	return inc, nil
}

// UpdateIncentive changes the rate and budget of an active incentive. The
// budget already consumed is preserved; when the new budget does not exceed
// it the incentive is exhausted and deactivated.
func (e *Engine) UpdateIncentive(id uint64, caller [20]byte, rewardPoints, budget uint64) (*Incentive, error) {
	if err := e.begin(caller); err != nil {
		return nil, err
	}
	inc, err := e.sponsoredIncentive(id, caller)
	if err != nil {
		return nil, err
	}
	if !inc.Active {
		return nil, ErrIncentiveNotActive
	}
	if rewardPoints == 0 || budget == 0 {
		return nil, fmt.Errorf("%w: reward points and budget must be positive", ErrInvalidAmount)
	}
	used := inc.TotalBudget - inc.RemainingBudget
	inc.RewardPoints = rewardPoints
	inc.TotalBudget = budget
	if budget > used {
		inc.RemainingBudget = budget - used
	} else {
		inc.RemainingBudget = 0
		inc.Active = false
	}
	if err := e.storeIncentive(inc); err != nil {
		return nil, err
	}
	e.emit(events.IncentiveUpdated{
		IncentiveID:     id,
		Sponsor:         caller,
		RewardPoints:    inc.RewardPoints,
		TotalBudget:     inc.TotalBudget,
		RemainingBudget: inc.RemainingBudget,
		Active:          inc.Active,
	})
	return inc, nil
}

// DeactivateIncentive withdraws an active incentive.
func (e *Engine) DeactivateIncentive(id uint64, caller [20]byte) error {
	if err := e.begin(caller); err != nil {
		return err
	}
	inc, err := e.sponsoredIncentive(id, caller)
	if err != nil {
		return err
	}
	if !inc.Active {
		return ErrIncentiveNotActive
	}
	inc.Active = false
	if err := e.storeIncentive(inc); err != nil {
		return err
	}
	e.emit(events.IncentiveDeactivated{IncentiveID: id, Sponsor: caller})
	return nil
}

// ActivateIncentive reopens a withdrawn incentive that still has budget left.
func (e *Engine) ActivateIncentive(id uint64, caller [20]byte) error {
	if err := e.begin(caller); err != nil {
		return err
	}
	inc, err := e.sponsoredIncentive(id, caller)
	if err != nil {
		return err
	}
	if inc.Active {
		return ErrIncentiveAlreadyActive
	}
	if inc.RemainingBudget == 0 {
		return fmt.Errorf("%w: budget exhausted", ErrInvalidAmount)
	}
	inc.Active = true
	if err := e.storeIncentive(inc); err != nil {
		return err
	}
	e.emit(events.IncentiveActivated{IncentiveID: id, Sponsor: caller})
	return nil
}

// Incentive returns an incentive by id.
func (e *Engine) Incentive(id uint64) (*Incentive, error) {
	return e.loadIncentive(id)
}

func (e *Engine) incentivesAt(key []byte) ([]*Incentive, error) {
	var raw [][]byte
	if err := e.st.KVGetList(key, &raw); err != nil {
		return nil, err
	}
	ids := decodeIDs(raw)
	out := make([]*Incentive, 0, len(ids))
	for _, id := range ids {
		inc, err := e.loadIncentive(id)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, nil
}

// IncentivesBySponsor lists every incentive created by sponsor.
func (e *Engine) IncentivesBySponsor(sponsor [20]byte) ([]*Incentive, error) {
	return e.incentivesAt(incentiveSponsorKey(sponsor))
}

// IncentivesByCategory lists every incentive offered for category.
func (e *Engine) IncentivesByCategory(category Category) ([]*Incentive, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCategory, category)
	}
	return e.incentivesAt(incentiveCategoryKey(category))
}

// ActiveIncentives lists active incentives across all categories ordered by id.
func (e *Engine) ActiveIncentives() ([]*Incentive, error) {
	var out []*Incentive
	for _, c := range Categories() {
		list, err := e.incentivesAt(incentiveCategoryKey(c))
		if err != nil {
			return nil, err
		}
		for _, inc := range list {
			if inc.Active {
				out = append(out, inc)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// BestActiveFor returns the sponsor's active incentive for category with the
// highest reward points. Ties resolve to the oldest incentive.
func (e *Engine) BestActiveFor(sponsor [20]byte, category Category) (*Incentive, bool, error) {
	list, err := e.IncentivesBySponsor(sponsor)
	if err != nil {
		return nil, false, err
	}
	var best *Incentive
	for _, inc := range list {
		if !inc.Active || inc.Category != category {
			continue
		}
		if best == nil || inc.RewardPoints > best.RewardPoints ||
			(inc.RewardPoints == best.RewardPoints && inc.ID < best.ID) {
			best = inc
		}
	}
	return best, best != nil, nil
}

// CalculateIncentiveReward estimates what the incentive would pay for weight
// grams: whole kilograms times the reward rate, capped at the remaining
// budget. Inactive incentives pay nothing.
func (e *Engine) CalculateIncentiveReward(id uint64, weight uint64) (uint64, error) {
	inc, err := e.loadIncentive(id)
	if err != nil {
		return 0, err
	}
	if !inc.Active {
		return 0, nil
	}
	hi, reward := bits.Mul64(weight/1000, inc.RewardPoints)
	if hi != 0 || reward > inc.RemainingBudget {
		return inc.RemainingBudget, nil
	}
	return reward, nil
}
