package custody_test

import (
	"errors"
	"testing"

	"scavenger/native/custody"
)

func TestCreateIncentiveRequiresProcessor(t *testing.T) {
	env := newTestEngine(t)
	h, p := addr(1), addr(2)
	env.register(t, h, custody.RoleHandler)
	env.register(t, p, custody.RoleProcessor)

	if _, err := env.engine.CreateIncentive(h, custody.CategoryMetal, 10, 1000); !errors.Is(err, custody.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for handler sponsor, got %v", err)
	}
	if _, err := env.engine.CreateIncentive(addr(9), custody.CategoryMetal, 10, 1000); !errors.Is(err, custody.ErrNotRegistered) {
		t.Fatalf("expected not registered, got %v", err)
	}
	if _, err := env.engine.CreateIncentive(p, custody.CategoryMetal, 0, 1000); !errors.Is(err, custody.ErrInvalidAmount) {
		t.Fatalf("expected invalid reward points, got %v", err)
	}
	if _, err := env.engine.CreateIncentive(p, custody.CategoryMetal, 10, 0); !errors.Is(err, custody.ErrInvalidAmount) {
		t.Fatalf("expected invalid budget, got %v", err)
	}
	inc, err := env.engine.CreateIncentive(p, custody.CategoryMetal, 10, 1000)
	if err != nil {
		t.Fatalf("create incentive: %v", err)
	}
	if inc.ID != 1 || !inc.Active || inc.RemainingBudget != 1000 || inc.CreatedAt != uint64(env.clock) {
		t.Fatalf("unexpected incentive %+v", inc)
	}
}

func TestUpdateIncentiveBudget(t *testing.T) {
	env := newTestEngine(t)
	p, other := addr(1), addr(2)
	env.register(t, p, custody.RoleProcessor)
	env.register(t, other, custody.RoleProcessor)
	inc, err := env.engine.CreateIncentive(p, custody.CategoryPlastic, 5, 500)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.engine.UpdateIncentive(inc.ID, other, 6, 600); !errors.Is(err, custody.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := env.engine.UpdateIncentive(inc.ID, p, 0, 600); !errors.Is(err, custody.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	updated, err := env.engine.UpdateIncentive(inc.ID, p, 8, 800)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.RewardPoints != 8 || updated.TotalBudget != 800 || updated.RemainingBudget != 800 {
		t.Fatalf("unexpected update %+v", updated)
	}

	if err := env.engine.DeactivateIncentive(inc.ID, p); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := env.engine.UpdateIncentive(inc.ID, p, 9, 900); !errors.Is(err, custody.ErrNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}
	if err := env.engine.DeactivateIncentive(inc.ID, p); !errors.Is(err, custody.ErrNotActive) {
		t.Fatalf("expected second deactivation to fail, got %v", err)
	}
	if err := env.engine.ActivateIncentive(inc.ID, other); !errors.Is(err, custody.ErrUnauthorized) {
		t.Fatalf("expected unauthorized activation, got %v", err)
	}
	if err := env.engine.ActivateIncentive(inc.ID, p); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if err := env.engine.ActivateIncentive(inc.ID, p); !errors.Is(err, custody.ErrIncentiveAlreadyActive) {
		t.Fatalf("expected already active, got %v", err)
	}
	if err := env.engine.ActivateIncentive(55, p); !errors.Is(err, custody.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBestActiveForAndListings(t *testing.T) {
	env := newTestEngine(t)
	p, q := addr(1), addr(2)
	env.register(t, p, custody.RoleProcessor)
	env.register(t, q, custody.RoleProcessor)

	low, _ := env.engine.CreateIncentive(p, custody.CategoryMetal, 5, 100)
	high, _ := env.engine.CreateIncentive(p, custody.CategoryMetal, 20, 100)
	tie, _ := env.engine.CreateIncentive(p, custody.CategoryMetal, 20, 100)
	glass, _ := env.engine.CreateIncentive(p, custody.CategoryGlass, 50, 100)
	foreign, _ := env.engine.CreateIncentive(q, custody.CategoryMetal, 99, 100)

	best, ok, err := env.engine.BestActiveFor(p, custody.CategoryMetal)
	if err != nil || !ok {
		t.Fatalf("best active: ok=%v err=%v", ok, err)
	}
	if best.ID != high.ID {
		t.Fatalf("expected oldest highest incentive %d, got %d", high.ID, best.ID)
	}
	if err := env.engine.DeactivateIncentive(high.ID, p); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	best, _, _ = env.engine.BestActiveFor(p, custody.CategoryMetal)
	if best.ID != tie.ID {
		t.Fatalf("expected %d after deactivation, got %d", tie.ID, best.ID)
	}
	if _, ok, _ := env.engine.BestActiveFor(p, custody.CategoryPaper); ok {
		t.Fatalf("expected no paper incentive")
	}

	bySponsor, _ := env.engine.IncentivesBySponsor(p)
	if len(bySponsor) != 4 {
		t.Fatalf("expected 4 sponsored incentives, got %d", len(bySponsor))
	}
	byCategory, _ := env.engine.IncentivesByCategory(custody.CategoryMetal)
	if len(byCategory) != 4 {
		t.Fatalf("expected 4 metal incentives, got %d", len(byCategory))
	}
	active, _ := env.engine.ActiveIncentives()
	want := []uint64{low.ID, tie.ID, glass.ID, foreign.ID}
	if len(active) != len(want) {
		t.Fatalf("expected %d active incentives, got %d", len(want), len(active))
	}
	for i, inc := range active {
		if inc.ID != want[i] {
			t.Fatalf("active[%d]: got %d want %d", i, inc.ID, want[i])
		}
	}
}

func TestCalculateIncentiveReward(t *testing.T) {
	env := newTestEngine(t)
	p := addr(1)
	env.register(t, p, custody.RoleProcessor)
	inc, _ := env.engine.CreateIncentive(p, custody.CategoryPaper, 30, 100)

	if got, _ := env.engine.CalculateIncentiveReward(inc.ID, 2500); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if got, _ := env.engine.CalculateIncentiveReward(inc.ID, 10_000); got != 100 {
		t.Fatalf("expected budget cap of 100, got %d", got)
	}
	if err := env.engine.DeactivateIncentive(inc.ID, p); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if got, _ := env.engine.CalculateIncentiveReward(inc.ID, 2500); got != 0 {
		t.Fatalf("inactive incentive should pay 0, got %d", got)
	}
	if _, err := env.engine.CalculateIncentiveReward(7, 2500); !errors.Is(err, custody.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
