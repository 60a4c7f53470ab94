package event

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/dshills/atomik/internal/config"
)

func recorder(name string, calls *[]string) Listener {
	return Func(name, func(_ context.Context, p *Payload) any {
		*calls = append(*calls, name)
		return name
	})
}

func TestBus_SamePriorityKeepsRegistrationOrder(t *testing.T) {
	b := NewBus()
	var calls []string

	p1, _ := b.Listen("e", recorder("first", &calls))
	p2, _ := b.Listen("e", recorder("second", &calls))
	p3, _ := b.Listen("e", recorder("third", &calls))

	if p1 != 50 || p2 != 51 || p3 != 52 {
		t.Errorf("slots = %d, %d, %d; want 50, 51, 52", p1, p2, p3)
	}

	b.Fire(context.Background(), "e", nil)
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestBus_AscendingPriority(t *testing.T) {
	b := NewBus()
	var calls []string

	_, _ = b.Listen("e", recorder("late", &calls), WithPriority(100))
	_, _ = b.Listen("e", recorder("early", &calls), WithPriority(-5))
	_, _ = b.Listen("e", recorder("default", &calls))

	b.Fire(context.Background(), "e", nil)
	want := []string{"early", "default", "late"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestBus_BeforeProbesDownwards(t *testing.T) {
	b := NewBus()
	var calls []string

	_, _ = b.Listen("e", recorder("a", &calls))
	p, _ := b.Listen("e", recorder("b", &calls), Before())
	if p != 49 {
		t.Errorf("Before slot = %d, want 49", p)
	}
	p, _ = b.Listen("e", recorder("c", &calls), Before())
	if p != 48 {
		t.Errorf("second Before slot = %d, want 48", p)
	}

	b.Fire(context.Background(), "e", nil)
	want := []string{"c", "b", "a"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestBus_ProbingSkipsOccupiedSlots(t *testing.T) {
	b := NewBus()
	var calls []string

	_, _ = b.Listen("e", recorder("x", &calls), WithPriority(51))
	_, _ = b.Listen("e", recorder("y", &calls))
	p, _ := b.Listen("e", recorder("z", &calls))
	if p != 52 {
		t.Errorf("slot = %d, want 52 (50 and 51 taken)", p)
	}
}

func TestBus_SharedMutablePayload(t *testing.T) {
	b := NewBus()

	_, _ = b.Listen("e", Func("rewrite", func(_ context.Context, p *Payload) any {
		p.URI = "rewritten"
		return nil
	}))
	_, _ = b.Listen("e", Func("cancel", func(_ context.Context, p *Payload) any {
		if p.URI == "rewritten" {
			p.Cancel = true
		}
		return nil
	}))

	p := NewPayload(config.New())
	p.URI = "original"
	b.Fire(context.Background(), "e", p)

	if p.URI != "rewritten" || !p.Cancel {
		t.Errorf("payload = %+v", p)
	}
}

func TestBus_Results(t *testing.T) {
	b := NewBus()
	_, _ = b.Listen("e", Func("a", func(context.Context, *Payload) any { return "<b>" }))
	_, _ = b.Listen("e", Func("b", func(context.Context, *Payload) any { return nil }))
	_, _ = b.Listen("e", Func("c", func(context.Context, *Payload) any { return 3 }))

	res := b.Fire(context.Background(), "e", nil)
	if len(res) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(res))
	}
	if m := res.Map(); m["a"] != "<b>" || m["c"] != 3 {
		t.Errorf("Map() = %v", m)
	}
	if got := b.FireString(context.Background(), "e", nil); got != "<b>3" {
		t.Errorf("FireString() = %q, want <b>3", got)
	}
	if got := b.Fire(context.Background(), "none", nil); got != nil {
		t.Errorf("Fire without listeners = %v, want nil", got)
	}
}

func TestBus_NotInvocable(t *testing.T) {
	b := NewBus()

	if _, err := b.Listen("e", nil); !errors.Is(err, ErrNotInvocable) {
		t.Errorf("Listen(nil) error = %v, want ErrNotInvocable", err)
	}
	if _, err := b.Listen("e", Func("nil", nil)); !errors.Is(err, ErrNotInvocable) {
		t.Errorf("Listen(Func(nil)) error = %v, want ErrNotInvocable", err)
	}
	if _, err := b.Listen("", Func("x", func(context.Context, *Payload) any { return nil })); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Listen(\"\") error = %v, want ErrInvalidEvent", err)
	}
}

func TestBus_ListenAll(t *testing.T) {
	b := NewBus()
	var calls []string

	err := b.ListenAll([]Registration{
		On("a", recorder("one", &calls)),
		{Event: "a", Listener: recorder("zero", &calls), Priority: 50, Before: true},
		{Event: "b", Listener: recorder("two", &calls), Priority: 10},
	})
	if err != nil {
		t.Fatalf("ListenAll() error = %v", err)
	}

	b.Fire(context.Background(), "a", nil)
	b.Fire(context.Background(), "b", nil)
	want := []string{"zero", "one", "two"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}

	if err := b.ListenAll([]Registration{{Event: "c"}}); !errors.Is(err, ErrNotInvocable) {
		t.Errorf("ListenAll with nil listener error = %v", err)
	}
}

func TestBus_ListenAllRegistersNothingOnError(t *testing.T) {
	tests := []struct {
		name   string
		bad    Registration
		target error
	}{
		{name: "nil listener", bad: Registration{Event: "b"}, target: ErrNotInvocable},
		{name: "empty event", bad: Registration{Listener: Func("x", nil)}, target: ErrInvalidEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBus()
			var calls []string
			err := b.ListenAll([]Registration{
				On("a", recorder("kept", &calls)),
				tt.bad,
			})
			if !errors.Is(err, tt.target) {
				t.Fatalf("ListenAll() error = %v, want %v", err, tt.target)
			}
			if b.Has("a") {
				t.Error("valid entries before the failing one should not stay registered")
			}
		})
	}
}

func TestBus_Remove(t *testing.T) {
	b := NewBus()
	var calls []string
	_, _ = b.Listen("e", recorder("keep", &calls))
	_, _ = b.Listen("e", recorder("drop", &calls))

	if !b.Remove("e", "drop") {
		t.Fatal("Remove should report true")
	}
	if b.Remove("e", "drop") {
		t.Error("second Remove should report false")
	}

	b.Fire(context.Background(), "e", nil)
	if !reflect.DeepEqual(calls, []string{"keep"}) {
		t.Errorf("calls = %v", calls)
	}
	if !b.Has("e") || b.Has("other") {
		t.Error("Has() disagrees with registrations")
	}
}

func TestBus_ListenDuringFire(t *testing.T) {
	b := NewBus()
	var calls []string

	_, _ = b.Listen("e", Func("adder", func(context.Context, *Payload) any {
		_, _ = b.Listen("e", recorder("added", &calls))
		return nil
	}))

	b.Fire(context.Background(), "e", nil)
	if len(calls) != 0 {
		t.Errorf("listener added while firing should not run, calls = %v", calls)
	}
	b.Fire(context.Background(), "e", nil)
	if len(calls) != 1 {
		t.Errorf("calls = %v, want the added listener once", calls)
	}
}
