package tether

import (
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestHistory_DisabledByDefault(t *testing.T) {
	p := New(0)
	p.Set(1)

	if h := p.History(); h != nil {
		t.Errorf("expected nil history when disabled, got %v", h)
	}
}

func TestHistory_RecordsTransitions(t *testing.T) {
	p := New(0, WithHistory(8))

	p.Set(1)
	p.Set(2)

	h := p.History()
	if len(h) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(h))
	}
	if h[0].Old != 0 || h[0].New != 1 {
		t.Errorf("expected 0->1, got %d->%d", h[0].Old, h[0].New)
	}
	if h[1].Old != 1 || h[1].New != 2 {
		t.Errorf("expected 1->2, got %d->%d", h[1].Old, h[1].New)
	}
}

func TestHistory_RecordsCoercedValue(t *testing.T) {
	p := New(0, WithHistory(4), WithCoercer(func(v *int) {
		if *v > 10 {
			*v = 10
		}
	}))

	p.Set(50)

	h := p.History()
	if len(h) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(h))
	}
	if h[0].New != 10 {
		t.Errorf("expected stored form 10, got %d", h[0].New)
	}
}

func TestHistory_UnchangedNotRecorded(t *testing.T) {
	p := New(5, WithHistory(4))

	p.Set(5)

	if h := p.History(); h != nil {
		t.Errorf("expected no record for unchanged, got %v", h)
	}
}

func TestHistory_RejectedNotRecorded(t *testing.T) {
	p := New(5, WithHistory(4), WithValidator(func(v int) bool { return v < 10 }))

	p.Set(50)

	if h := p.History(); h != nil {
		t.Errorf("expected no record for rejected, got %v", h)
	}
}

func TestHistory_EvictsOldest(t *testing.T) {
	p := New(0, WithHistory(2))

	p.Set(1)
	p.Set(2)
	p.Set(3)

	h := p.History()
	if len(h) != 2 {
		t.Fatalf("expected 2 retained transitions, got %d", len(h))
	}
	if h[0].Old != 1 || h[0].New != 2 {
		t.Errorf("expected oldest retained 1->2, got %d->%d", h[0].Old, h[0].New)
	}
	if h[1].Old != 2 || h[1].New != 3 {
		t.Errorf("expected newest 2->3, got %d->%d", h[1].Old, h[1].New)
	}
}

func TestHistory_RecordsPropagatedValues(t *testing.T) {
	source := New(0)
	target := New(0, WithHistory(4))

	source.BindTo(target)
	source.Set(7)

	h := target.History()
	if len(h) != 1 {
		t.Fatalf("expected 1 propagated transition, got %d", len(h))
	}
	if h[0].Old != 0 || h[0].New != 7 {
		t.Errorf("expected 0->7, got %d->%d", h[0].Old, h[0].New)
	}
}

func TestHistory_Timestamps(t *testing.T) {
	clock := clockz.NewFakeClock()
	p := New(0, WithHistory(4), WithClock[int](clock))

	first := clock.Now()
	p.Set(1)

	clock.Advance(5 * time.Second)
	second := clock.Now()
	p.Set(2)

	h := p.History()
	if len(h) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(h))
	}
	if !h[0].At.Equal(first) {
		t.Errorf("expected first at %v, got %v", first, h[0].At)
	}
	if !h[1].At.Equal(second) {
		t.Errorf("expected second at %v, got %v", second, h[1].At)
	}
}

func TestHistory_UpdateRecorded(t *testing.T) {
	p := New(10, WithHistory(4))

	p.Update(func(v int) int { return v + 5 })

	h := p.History()
	if len(h) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(h))
	}
	if h[0].Old != 10 || h[0].New != 15 {
		t.Errorf("expected 10->15, got %d->%d", h[0].Old, h[0].New)
	}
}
