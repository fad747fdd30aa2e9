package events

import (
	"testing"

	"scavenger/core/types"
)

type plainEvent struct{}

func (plainEvent) EventType() string { return "plain" }

type recordingEmitter struct {
	events []Event
}

func (r *recordingEmitter) Emit(evt Event) { r.events = append(r.events, evt) }

func TestFanoutForwardsToAll(t *testing.T) {
	a, b := &recordingEmitter{}, &recordingEmitter{}
	f := NewFanout(a, nil, b)
	f.Emit(plainEvent{})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both emitters to receive the event, got %d/%d", len(a.events), len(b.events))
	}
}

func TestBufferDrainAndDiscard(t *testing.T) {
	var buf Buffer
	buf.Emit(plainEvent{})
	buf.Emit(nil)
	buf.Emit(plainEvent{})
	if got := buf.Drain(); len(got) != 2 {
		t.Fatalf("expected 2 buffered events, got %d", len(got))
	}
	if got := buf.Drain(); len(got) != 0 {
		t.Fatalf("expected empty buffer after drain")
	}
	buf.Emit(plainEvent{})
	buf.Discard()
	if got := buf.Drain(); len(got) != 0 {
		t.Fatalf("expected discarded events to be gone")
	}
}

func TestConvertFallsBackToType(t *testing.T) {
	evt := Convert(plainEvent{})
	if evt.Type != "plain" || evt.Attributes == nil {
		t.Fatalf("unexpected conversion %+v", evt)
	}
	typed := Convert(MaterialDeactivated{MaterialID: 7})
	if typed.Type != TypeMaterialDeactivated || typed.Attributes["materialId"] != "7" {
		t.Fatalf("unexpected typed conversion %+v", typed)
	}
	var _ *types.Event = typed
}
