package custody

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"scavenger/core/events"
)

const maxLabelLength = 64

func (e *Engine) loadParticipant(addr [20]byte) (*Participant, bool, error) {
	p := new(Participant)
	ok, err := e.st.KVGet(participantKey(addr), p)
	if err != nil || !ok {
		return nil, ok, err
	}
	return p, true, nil
}

// registeredParticipant loads a participant that exists and has not been
// deregistered.
func (e *Engine) registeredParticipant(addr [20]byte) (*Participant, error) {
	p, ok, err := e.loadParticipant(addr)
	if err != nil {
		return nil, err
	}
	if !ok || p.Deregistered {
		return nil, ErrNotRegistered
	}
	return p, nil
}

func (e *Engine) storeParticipant(p *Participant) error {
	return e.st.KVPut(participantKey(p.Address), p)
}

func sanitizeLabel(label string) (string, error) {
	trimmed := strings.TrimSpace(label)
	if !utf8.ValidString(trimmed) {
		return "", fmt.Errorf("%w: not valid utf-8", ErrInvalidLabel)
	}
	if utf8.RuneCountInString(trimmed) > maxLabelLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidLabel, maxLabelLength)
	}
	return trimmed, nil
}

// Register records principal as a participant with the given role.
func (e *Engine) Register(principal [20]byte, role Role, label string, lat, lon Coordinate) (*Participant, error) {
	if err := e.begin(principal); err != nil {
		return nil, err
	}
	if principal == e.contract {
		return nil, ErrSelfRegistration
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, role)
	}
	if err := ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	clean, err := sanitizeLabel(label)
	if err != nil {
		return nil, err
	}
	_, exists, err := e.loadParticipant(principal)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}
	p := &Participant{
		Address:      principal,
		Role:         role,
		Label:        clean,
		Latitude:     lat,
		Longitude:    lon,
		RegisteredAt: e.now(),
	}
	if err := e.storeParticipant(p); err != nil {
		return nil, err
	}
	e.emit(events.ParticipantRegistered{
		Address:   principal,
		Role:      role.String(),
		Label:     clean,
		Latitude:  int64(lat),
		Longitude: int64(lon),
		Timestamp: p.RegisteredAt,
	})
	return p, nil
}

// UpdateRole changes a participant's role. The participant itself or an admin
// may perform the update.
func (e *Engine) UpdateRole(caller, principal [20]byte, role Role) error {
	if err := e.begin(caller); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRole, role)
	}
	p, err := e.registeredParticipant(principal)
	if err != nil {
		return err
	}
	if caller != principal && !e.isAdmin(caller) {
		return ErrUnauthorized
	}
	old := p.Role
	p.Role = role
	if err := e.storeParticipant(p); err != nil {
		return err
	}
	e.emit(events.ParticipantRoleUpdated{
		Address: principal,
		Caller:  caller,
		OldRole: old.String(),
		NewRole: role.String(),
	})
	return nil
}

// Deregister flags the participant as inactive. Its history is retained.
func (e *Engine) Deregister(principal [20]byte) error {
	if err := e.begin(principal); err != nil {
		return err
	}
	p, err := e.registeredParticipant(principal)
	if err != nil {
		return err
	}
	p.Deregistered = true
	if err := e.storeParticipant(p); err != nil {
		return err
	}
	e.emit(events.ParticipantDeregistered{Address: principal})
	return nil
}

// UpdateLocation moves a participant to new coordinates.
func (e *Engine) UpdateLocation(principal [20]byte, lat, lon Coordinate) error {
	if err := e.begin(principal); err != nil {
		return err
	}
	if err := ValidateCoordinates(lat, lon); err != nil {
		return err
	}
	p, err := e.registeredParticipant(principal)
	if err != nil {
		return err
	}
	p.Latitude = lat
	p.Longitude = lon
	if err := e.storeParticipant(p); err != nil {
		return err
	}
	e.emit(events.ParticipantLocationUpdated{Address: principal, Latitude: int64(lat), Longitude: int64(lon)})
	return nil
}

// IsRegistered reports whether principal is a registered, non-deregistered
// participant.
func (e *Engine) IsRegistered(principal [20]byte) bool {
	p, ok, err := e.loadParticipant(principal)
	return err == nil && ok && !p.Deregistered
}

// Participant returns the stored participant, including deregistered ones.
func (e *Engine) Participant(principal [20]byte) (*Participant, bool, error) {
	return e.loadParticipant(principal)
}

// ParticipantInfo returns the participant together with derived statistics.
func (e *Engine) ParticipantInfo(principal [20]byte) (*ParticipantInfo, error) {
	p, ok, err := e.loadParticipant(principal)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotRegistered
	}
	return deriveInfo(p), nil
}
