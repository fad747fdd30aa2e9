package custody_test

import (
	"testing"

	"scavenger/native/custody"
)

func TestCountersInterleaveWithoutGaps(t *testing.T) {
	env := newTestEngine(t)
	p := addr(1)
	env.register(t, p, custody.RoleProcessor)

	var materials, incentives []uint64
	for i := 0; i < 6; i++ {
		if i%2 == 0 {
			materials = append(materials, env.submit(t, p, custody.CategoryPaper, 100).ID)
			continue
		}
		inc, err := env.engine.CreateIncentive(p, custody.CategoryPaper, 1, 1)
		if err != nil {
			t.Fatalf("create incentive: %v", err)
		}
		incentives = append(incentives, inc.ID)
	}
	id, err := env.engine.AllocateIncentiveID()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	incentives = append(incentives, id)

	for i, got := range materials {
		if got != uint64(i+1) {
			t.Fatalf("material ids not gap-free: %v", materials)
		}
	}
	for i, got := range incentives {
		if got != uint64(i+1) {
			t.Fatalf("incentive ids not gap-free: %v", incentives)
		}
	}
	counters, _ := env.engine.Counters()
	if counters.LastMaterialID != 3 || counters.LastIncentiveID != 4 {
		t.Fatalf("unexpected counters %+v", counters)
	}
}

func TestCoordinateRLPRoundTrip(t *testing.T) {
	env := newTestEngine(t)
	a := addr(1)
	lat, lon := -custody.MaxLatitude, custody.Coordinate(-1)
	if _, err := env.engine.Register(a, custody.RoleOriginator, "", lat, lon); err != nil {
		t.Fatalf("register: %v", err)
	}
	p, _, err := env.engine.Participant(a)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Latitude != lat || p.Longitude != lon {
		t.Fatalf("coordinates changed in storage: %d,%d", p.Latitude, p.Longitude)
	}
}
