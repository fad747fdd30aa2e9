package custody

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"strings"
	"unicode/utf8"

	"scavenger/core/events"
)

const (
	maxDescriptionLength = 256
	maxNoteLength        = 256
)

// SubmitRequest describes a material an originator hands in.
type SubmitRequest struct {
	Category    Category
	Weight      uint64
	Description string
	Latitude    Coordinate
	Longitude   Coordinate
}

func (r SubmitRequest) validate() (SubmitRequest, error) {
	if !r.Category.Valid() {
		return r, fmt.Errorf("%w: %d", ErrInvalidCategory, r.Category)
	}
	if r.Weight == 0 {
		return r, fmt.Errorf("%w: weight must be positive", ErrInvalidAmount)
	}
	if err := ValidateCoordinates(r.Latitude, r.Longitude); err != nil {
		return r, err
	}
	r.Description = strings.TrimSpace(r.Description)
	if utf8.RuneCountInString(r.Description) > maxDescriptionLength {
		return r, fmt.Errorf("%w: description longer than %d characters", ErrInvalidLabel, maxDescriptionLength)
	}
	return r, nil
}

// TransferRequest carries the optional location and note of a hop.
type TransferRequest struct {
	Latitude  Coordinate
	Longitude Coordinate
	Note      string
}

func (e *Engine) loadMaterial(id uint64) (*Material, error) {
	m := new(Material)
	ok, err := e.st.KVGet(materialKey(id), m)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrMaterialNotFound, id)
	}
	return m, nil
}

// activeMaterial loads a material that has not been deactivated.
func (e *Engine) activeMaterial(id uint64) (*Material, error) {
	m, err := e.loadMaterial(id)
	if err != nil {
		return nil, err
	}
	if !m.Active {
		return nil, fmt.Errorf("%w: %d", ErrMaterialDeactivated, id)
	}
	return m, nil
}

func (e *Engine) storeMaterial(m *Material) error {
	return e.st.KVPut(materialKey(m.ID), m)
}

func (e *Engine) loadHoldings(addr [20]byte) ([]uint64, error) {
	var ids []uint64
	if err := e.st.KVGetList(holdingsKey(addr), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (e *Engine) addHolding(addr [20]byte, id uint64) error {
	ids, err := e.loadHoldings(addr)
	if err != nil {
		return err
	}
	return e.st.KVPut(holdingsKey(addr), append(ids, id))
}

func (e *Engine) removeHolding(addr [20]byte, id uint64) error {
	ids, err := e.loadHoldings(addr)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return e.st.KVPut(holdingsKey(addr), kept)
}

// Submit records a new material held by its originator.
func (e *Engine) Submit(originator [20]byte, req SubmitRequest) (*Material, error) {
	if err := e.begin(originator); err != nil {
		return nil, err
	}
	p, err := e.registeredParticipant(originator)
	if err != nil {
		return nil, err
	}
	clean, err := req.validate()
	if err != nil {
		return nil, err
	}
	return e.submit(p, clean)
}

// SubmitBatch records several materials for one originator. Either every item
// is recorded or none is.
func (e *Engine) SubmitBatch(originator [20]byte, reqs []SubmitRequest) ([]*Material, error) {
	if err := e.begin(originator); err != nil {
		return nil, err
	}
	p, err := e.registeredParticipant(originator)
	if err != nil {
		return nil, err
	}
	cleaned := make([]SubmitRequest, len(reqs))
	for i, req := range reqs {
		if cleaned[i], err = req.validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	out := make([]*Material, 0, len(cleaned))
	for _, req := range cleaned {
		m, err := e.submit(p, req)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (e *Engine) submit(p *Participant, req SubmitRequest) (*Material, error) {
	stats := p.Stats
	weight, carry := bits.Add64(stats.TotalWeight, req.Weight, 0)
	if carry != 0 {
		return nil, fmt.Errorf("%w: participant weight", ErrOverflow)
	}
	id, err := e.AllocateMaterialID()
	if err != nil {
		return nil, err
	}
	m := &Material{
		ID:          id,
		Category:    req.Category,
		Weight:      req.Weight,
		Originator:  p.Address,
		Custodian:   p.Address,
		Confirmer:   p.Address,
		SubmittedAt: e.now(),
		Active:      true,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if err := e.storeMaterial(m); err != nil {
		return nil, err
	}
	if err := e.addHolding(p.Address, id); err != nil {
		return nil, err
	}
	if err := e.st.KVAppend(originatedKey(p.Address), encodeID(id)); err != nil {
		return nil, err
	}
	p.Stats.Submissions++
	p.Stats.TotalWeight = weight
	p.Stats.CategoryCounts[req.Category.index()]++
	if err := e.storeParticipant(p); err != nil {
		return nil, err
	}
	if err := e.trackSubmitted(m); err != nil {
		return nil, err
	}
	e.emit(events.MaterialSubmitted{
		MaterialID: id,
		Category:   m.Category.String(),
		Weight:     m.Weight,
		Originator: m.Originator,
		Timestamp:  m.SubmittedAt,
	})
	return m, nil
}

// Confirm records an independent confirmation of the material by confirmer.
func (e *Engine) Confirm(id uint64, confirmer [20]byte) error {
	if err := e.begin(confirmer); err != nil {
		return err
	}
	m, err := e.activeMaterial(id)
	if err != nil {
		return err
	}
	if m.Confirmed {
		return ErrAlreadyConfirmed
	}
	if confirmer == m.Custodian {
		return ErrSelfConfirmation
	}
	if _, err := e.registeredParticipant(confirmer); err != nil {
		return err
	}
	m.Confirmed = true
	m.Confirmer = confirmer
	if err := e.storeMaterial(m); err != nil {
		return err
	}
	e.emit(events.MaterialConfirmed{MaterialID: id, Confirmer: confirmer, Custodian: m.Custodian})
	return nil
}

// ResetConfirmation clears a confirmation. Only the current custodian may do
// so.
func (e *Engine) ResetConfirmation(id uint64, caller [20]byte) error {
	if err := e.begin(caller); err != nil {
		return err
	}
	m, err := e.activeMaterial(id)
	if err != nil {
		return err
	}
	if !m.Confirmed {
		return ErrNotConfirmed
	}
	if caller != m.Custodian {
		return ErrNotCustodian
	}
	m.Confirmed = false
	m.Confirmer = m.Custodian
	if err := e.storeMaterial(m); err != nil {
		return err
	}
	e.emit(events.MaterialConfirmationReset{MaterialID: id, Custodian: m.Custodian})
	return nil
}

// Transfer moves custody of a material from its current custodian to another
// registered participant along a legal role path.
func (e *Engine) Transfer(id uint64, from, to [20]byte, req TransferRequest) (*TransferRecord, error) {
	if err := e.begin(from); err != nil {
		return nil, err
	}
	m, err := e.activeMaterial(id)
	if err != nil {
		return nil, err
	}
	if from != m.Custodian {
		return nil, ErrNotCustodian
	}
	sender, err := e.counterparty(from, "sender")
	if err != nil {
		return nil, err
	}
	recipient, err := e.counterparty(to, "recipient")
	if err != nil {
		return nil, err
	}
	if err := ValidateTransfer(sender.Role, recipient.Role); err != nil {
		return nil, err
	}
	if err := ValidateCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}
	note := strings.TrimSpace(req.Note)
	if utf8.RuneCountInString(note) > maxNoteLength {
		return nil, fmt.Errorf("%w: note longer than %d characters", ErrInvalidLabel, maxNoteLength)
	}

	rec := &TransferRecord{
		MaterialID: id,
		From:       from,
		To:         to,
		Timestamp:  e.now(),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Note:       note,
	}
	if err := e.st.KVPut(transferKey(id, m.Transfers), rec); err != nil {
		return nil, err
	}
	m.Transfers++
	m.Custodian = to
	if err := e.storeMaterial(m); err != nil {
		return nil, err
	}
	if err := e.removeHolding(from, id); err != nil {
		return nil, err
	}
	if err := e.addHolding(to, id); err != nil {
		return nil, err
	}
	recipient.Stats.MaterialsReceived++
	if err := e.storeParticipant(recipient); err != nil {
		return nil, err
	}
	e.emit(events.MaterialTransferred{
		MaterialID: id,
		From:       from,
		To:         to,
		Timestamp:  rec.Timestamp,
		Latitude:   int64(rec.Latitude),
		Longitude:  int64(rec.Longitude),
		Note:       rec.Note,
	})
	return rec, nil
}

func (e *Engine) counterparty(addr [20]byte, side string) (*Participant, error) {
	p, err := e.registeredParticipant(addr)
	if errors.Is(err, ErrNotRegistered) {
		return nil, fmt.Errorf("%w: %s", ErrCounterpartyNotRegistered, side)
	}
	return p, err
}

// Verify marks the material verified and distributes its reward pool across
// the custody chain.
func (e *Engine) Verify(id uint64, verifier [20]byte) (*Distribution, error) {
	if err := e.begin(verifier); err != nil {
		return nil, err
	}
	m, err := e.verifiable(id, verifier)
	if err != nil {
		return nil, err
	}
	if _, err := e.registeredParticipant(verifier); err != nil {
		return nil, err
	}
	return e.verify(m, verifier)
}

// VerifyBatch verifies several materials in order. Either all of them are
// verified or none is.
func (e *Engine) VerifyBatch(ids []uint64, verifier [20]byte) ([]*Distribution, error) {
	if err := e.begin(verifier); err != nil {
		return nil, err
	}
	seen := make(map[uint64]struct{}, len(ids))
	materials := make([]*Material, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateMaterial, id)
		}
		seen[id] = struct{}{}
		m, err := e.verifiable(id, verifier)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	if _, err := e.registeredParticipant(verifier); err != nil {
		return nil, err
	}
	out := make([]*Distribution, 0, len(materials))
	for _, m := range materials {
		d, err := e.verify(m, verifier)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (e *Engine) verifiable(id uint64, verifier [20]byte) (*Material, error) {
	m, err := e.activeMaterial(id)
	if err != nil {
		return nil, err
	}
	if m.Verified {
		return nil, ErrAlreadyVerified
	}
	if verifier == m.Custodian {
		return nil, ErrSelfReward
	}
	return m, nil
}

func (e *Engine) verify(m *Material, verifier [20]byte) (*Distribution, error) {
	dist, err := e.distributionFor(m)
	if err != nil {
		return nil, err
	}

	// Credit participants in first-payout order so writes are deterministic.
	order := make([][20]byte, 0, len(dist.Payouts))
	credits := make(map[[20]byte]uint64, len(dist.Payouts))
	for _, p := range dist.Payouts {
		if _, ok := credits[p.Recipient]; !ok {
			order = append(order, p.Recipient)
		}
		credits[p.Recipient] += p.Amount
	}
	for _, addr := range order {
		if err := e.creditParticipant(addr, credits[addr]); err != nil {
			return nil, err
		}
	}

	m.Verified = true
	m.RewardPoints = dist.TotalPoints
	m.VerifiedAt = e.now()
	if err := e.storeMaterial(m); err != nil {
		return nil, err
	}
	if origin, ok, err := e.loadParticipant(m.Originator); err != nil {
		return nil, err
	} else if ok {
		origin.Stats.VerifiedSubmissions++
		if err := e.storeParticipant(origin); err != nil {
			return nil, err
		}
	}
	if err := e.trackRewarded(dist.TotalPoints); err != nil {
		return nil, err
	}

	e.emit(events.MaterialVerified{
		MaterialID:  m.ID,
		Verifier:    verifier,
		Custodian:   m.Custodian,
		TotalPoints: dist.TotalPoints,
	})
	for _, p := range dist.Payouts {
		e.emit(events.RewardPaid{
			MaterialID: m.ID,
			Recipient:  p.Recipient,
			Amount:     p.Amount,
			Share:      string(p.Share),
		})
	}
	return dist, nil
}

func (e *Engine) creditParticipant(addr [20]byte, amount uint64) error {
	p, ok, err := e.loadParticipant(addr)
	if err != nil {
		return err
	}
	if ok {
		total, carry := bits.Add64(p.Stats.TotalRewards, amount, 0)
		if carry != 0 {
			return fmt.Errorf("%w: participant rewards", ErrOverflow)
		}
		p.Stats.TotalRewards = total
		if err := e.storeParticipant(p); err != nil {
			return err
		}
	}
	if e.tokens != nil && amount > 0 {
		return e.tokens.Credit(addr, amount)
	}
	return nil
}

// Deactivate permanently retires a material. Only admins may deactivate.
func (e *Engine) Deactivate(id uint64, admin [20]byte) error {
	if err := e.begin(admin); err != nil {
		return err
	}
	m, err := e.loadMaterial(id)
	if err != nil {
		return err
	}
	if !m.Active {
		return ErrAlreadyDeactivated
	}
	if !e.isAdmin(admin) {
		return ErrNotAdmin
	}
	m.Active = false
	if err := e.storeMaterial(m); err != nil {
		return err
	}
	if err := e.trackDeactivated(m); err != nil {
		return err
	}
	e.emit(events.MaterialDeactivated{MaterialID: id, Admin: admin})
	return nil
}

// Material returns a material by id regardless of its active flag.
func (e *Engine) Material(id uint64) (*Material, error) {
	return e.loadMaterial(id)
}

// Materials returns the materials for ids, skipping unknown ones.
func (e *Engine) Materials(ids []uint64) ([]*Material, error) {
	out := make([]*Material, 0, len(ids))
	for _, id := range ids {
		m := new(Material)
		ok, err := e.st.KVGet(materialKey(id), m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// CurrentCustodian returns the principal holding the material.
func (e *Engine) CurrentCustodian(id uint64) ([20]byte, error) {
	m, err := e.loadMaterial(id)
	if err != nil {
		return [20]byte{}, err
	}
	return m.Custodian, nil
}

// History returns the custody chain of a material in transfer order.
func (e *Engine) History(id uint64) ([]TransferRecord, error) {
	m, err := e.loadMaterial(id)
	if err != nil {
		return nil, err
	}
	return e.history(m)
}

func (e *Engine) history(m *Material) ([]TransferRecord, error) {
	out := make([]TransferRecord, 0, m.Transfers)
	for seq := uint64(0); seq < m.Transfers; seq++ {
		var rec TransferRecord
		ok, err := e.st.KVGet(transferKey(m.ID, seq), &rec)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("custody: transfer %d of material %d missing", seq, m.ID)
		}
		out = append(out, rec)
	}
	return out, nil
}

// HeldBy lists the materials currently in addr's custody. With activeOnly set
// deactivated materials are left out.
func (e *Engine) HeldBy(addr [20]byte, activeOnly bool) ([]*Material, error) {
	ids, err := e.loadHoldings(addr)
	if err != nil {
		return nil, err
	}
	return e.collect(ids, activeOnly)
}

// OriginatedBy lists every material submitted by addr.
func (e *Engine) OriginatedBy(addr [20]byte, activeOnly bool) ([]*Material, error) {
	var raw [][]byte
	if err := e.st.KVGetList(originatedKey(addr), &raw); err != nil {
		return nil, err
	}
	return e.collect(decodeIDs(raw), activeOnly)
}

func (e *Engine) collect(ids []uint64, activeOnly bool) ([]*Material, error) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Material, 0, len(ids))
	for _, id := range ids {
		m, err := e.loadMaterial(id)
		if err != nil {
			return nil, err
		}
		if activeOnly && !m.Active {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
