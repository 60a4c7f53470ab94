package execctx

import (
	"errors"
	"testing"
)

func TestStack(t *testing.T) {
	s := NewStack()
	if _, ok := s.Top(); ok {
		t.Fatal("empty stack has a top frame")
	}
	if _, err := s.Pop(); !errors.Is(err, ErrEmptyStack) {
		t.Fatalf("Pop on empty = %v", err)
	}

	outer := New("users", "users", "html")
	inner := New("users/row", "users/row.json", "json")
	s.Push(outer)
	s.Push(inner)

	top, _ := s.Top()
	top.NoRender()
	if inner.View != "" || outer.View != "users" {
		t.Errorf("NoRender touched the wrong frame: inner %q outer %q", inner.View, outer.View)
	}

	if f, err := s.Pop(); err != nil || f != inner {
		t.Fatalf("Pop = %v, %v", f, err)
	}
	top, _ = s.Top()
	top.SetView("users/list")
	if outer.View != "users/list" || s.Depth() != 1 {
		t.Errorf("outer view = %q depth %d", outer.View, s.Depth())
	}
}

func TestFrameData(t *testing.T) {
	f := &Frame{}
	if _, ok := f.GetData("x"); ok {
		t.Error("nil data returned a value")
	}
	f.SetData("x", 1)
	if v, ok := f.GetData("x"); !ok || v != 1 {
		t.Errorf("GetData = %v, %v", v, ok)
	}
	if !New("a", "a", "html").Render {
		t.Error("new frame does not render")
	}
}
