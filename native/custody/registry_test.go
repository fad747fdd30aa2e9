package custody_test

import (
	"errors"
	"testing"

	"scavenger/core/events"
	"scavenger/native/custody"
)

func TestRegisterParticipant(t *testing.T) {
	env := newTestEngine(t)
	a := addr(1)

	p, err := env.engine.Register(a, custody.RoleOriginator, "  Corner Depot  ", 405_000_000, -740_000_000)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.Label != "Corner Depot" || p.RegisteredAt != uint64(env.clock) {
		t.Fatalf("unexpected participant %+v", p)
	}
	if !env.engine.IsRegistered(a) {
		t.Fatalf("expected participant to be registered")
	}
	stored, ok, err := env.engine.Participant(a)
	if err != nil || !ok {
		t.Fatalf("load participant: ok=%v err=%v", ok, err)
	}
	if stored.Latitude != 405_000_000 || stored.Longitude != -740_000_000 {
		t.Fatalf("coordinates not persisted: %+v", stored)
	}

	regs := env.emitter.ofType(events.TypeParticipantRegistered)
	if len(regs) != 1 {
		t.Fatalf("expected one registration event, got %d", len(regs))
	}
	evt := regs[0].(events.ParticipantRegistered).Event()
	if evt.Attributes["role"] != "originator" || evt.Attributes["longitude"] != "-740000000" {
		t.Fatalf("unexpected registration payload %+v", evt.Attributes)
	}

	if _, err := env.engine.Register(a, custody.RoleHandler, "", 0, 0); !errors.Is(err, custody.ErrAlreadyRegistered) {
		t.Fatalf("expected already registered, got %v", err)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	env := newTestEngine(t)

	if _, err := env.engine.Register(addr(1), custody.RoleHandler, "", custody.MaxLatitude+1, 0); !errors.Is(err, custody.ErrInvalidCoordinate) {
		t.Fatalf("expected invalid latitude, got %v", err)
	}
	if _, err := env.engine.Register(addr(1), custody.RoleHandler, "", 0, -custody.MaxLongitude-1); !errors.Is(err, custody.ErrInvalidCoordinate) {
		t.Fatalf("expected invalid longitude, got %v", err)
	}
	if _, err := env.engine.Register(addr(1), custody.RoleHandler, "", custody.MaxLatitude, -custody.MaxLongitude); err != nil {
		t.Fatalf("boundary coordinates should be accepted: %v", err)
	}
	if _, err := env.engine.Register(addr(0xCC), custody.RoleHandler, "", 0, 0); !errors.Is(err, custody.ErrSelfDealing) {
		t.Fatalf("expected self registration rejection, got %v", err)
	}
	if _, err := env.engine.Register(addr(2), custody.Role(7), "", 0, 0); !errors.Is(err, custody.ErrInvalidRole) {
		t.Fatalf("expected invalid role, got %v", err)
	}
	if env.engine.IsRegistered(addr(2)) {
		t.Fatalf("failed registration must not persist")
	}
}

func TestUpdateRoleAuthorization(t *testing.T) {
	env := newTestEngine(t)
	admin, owner, other := addr(1), addr(2), addr(3)
	env.admin(t, admin)
	env.register(t, owner, custody.RoleOriginator)
	env.register(t, other, custody.RoleOriginator)

	if err := env.engine.UpdateRole(owner, addr(9), custody.RoleHandler); !errors.Is(err, custody.ErrNotRegistered) {
		t.Fatalf("expected not registered, got %v", err)
	}
	if err := env.engine.UpdateRole(other, owner, custody.RoleHandler); !errors.Is(err, custody.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := env.engine.UpdateRole(owner, owner, custody.RoleHandler); err != nil {
		t.Fatalf("self update: %v", err)
	}
	if err := env.engine.UpdateRole(admin, owner, custody.RoleProcessor); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	p, _, _ := env.engine.Participant(owner)
	if p.Role != custody.RoleProcessor {
		t.Fatalf("expected processor role, got %s", p.Role)
	}
}

func TestDeregisterAndLocation(t *testing.T) {
	env := newTestEngine(t)
	a := addr(1)
	env.register(t, a, custody.RoleHandler)

	if err := env.engine.UpdateLocation(a, 10, -10); err != nil {
		t.Fatalf("update location: %v", err)
	}
	if err := env.engine.UpdateLocation(a, custody.MaxLatitude+1, 0); !errors.Is(err, custody.ErrInvalidCoordinate) {
		t.Fatalf("expected invalid coordinate, got %v", err)
	}
	if err := env.engine.Deregister(a); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if env.engine.IsRegistered(a) {
		t.Fatalf("deregistered participant reported as registered")
	}
	p, ok, err := env.engine.Participant(a)
	if err != nil || !ok || !p.Deregistered || p.Latitude != 10 {
		t.Fatalf("history should be kept: %+v ok=%v err=%v", p, ok, err)
	}
	if err := env.engine.Deregister(a); !errors.Is(err, custody.ErrNotRegistered) {
		t.Fatalf("expected not registered on second deregistration, got %v", err)
	}
	if _, err := env.engine.Register(a, custody.RoleHandler, "", 0, 0); !errors.Is(err, custody.ErrAlreadyRegistered) {
		t.Fatalf("principal must stay unique, got %v", err)
	}
}

func TestParticipantInfoDerivedStats(t *testing.T) {
	env := newTestEngine(t)
	o, verifier := addr(1), addr(2)
	env.register(t, o, custody.RoleOriginator)
	env.register(t, verifier, custody.RoleProcessor)

	var ids []uint64
	for i := 0; i < 10; i++ {
		c := custody.CategoryPaper
		if i%3 == 0 {
			c = custody.CategoryMetal
		}
		ids = append(ids, env.submit(t, o, c, 1000).ID)
	}
	if _, err := env.engine.VerifyBatch(ids[:8], verifier); err != nil {
		t.Fatalf("verify batch: %v", err)
	}

	info, err := env.engine.ParticipantInfo(o)
	if err != nil {
		t.Fatalf("participant info: %v", err)
	}
	if info.VerificationRate != 80 || info.AverageWeight != 1000 {
		t.Fatalf("unexpected rates %+v", info)
	}
	if info.MostSubmitted != custody.CategoryPaper {
		t.Fatalf("expected paper as most submitted, got %s", info.MostSubmitted)
	}
	if !info.ActiveRecycler || !info.VerifiedContributor {
		t.Fatalf("expected active verified contributor, got %+v", info)
	}
	if _, err := env.engine.ParticipantInfo(addr(50)); !errors.Is(err, custody.ErrNotRegistered) {
		t.Fatalf("expected not registered, got %v", err)
	}
}
