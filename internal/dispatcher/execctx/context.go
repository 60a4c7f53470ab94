// Package execctx holds the execution frames of nested action runs.
package execctx

import (
	"errors"
	"sync"
)

// ErrEmptyStack is returned by Pop when no frame is left.
var ErrEmptyStack = errors.New("execctx: pop on empty stack")

// Frame is the mutable state of one executing action. Controls such as
// NoRender and SetView act on the innermost frame.
type Frame struct {
	// Action is the action name, without method suffix.
	Action string

	// View is the view rendered after the handlers. Empty means none.
	View string

	// Render is false when the caller only wants the view variables.
	Render bool

	// Context is the view context the action runs in.
	Context string

	// Data holds handler-specific values for the duration of the frame.
	Data map[string]any
}

// New creates a frame that renders view.
func New(action, view, context string) *Frame {
	return &Frame{
		Action:  action,
		View:    view,
		Render:  true,
		Context: context,
		Data:    make(map[string]any),
	}
}

// NoRender suppresses the frame's view.
func (f *Frame) NoRender() {
	f.View = ""
}

// SetView replaces the frame's view.
func (f *Frame) SetView(view string) {
	f.View = view
}

// SetData sets a frame data value.
func (f *Frame) SetData(key string, value any) {
	if f.Data == nil {
		f.Data = make(map[string]any)
	}
	f.Data[key] = value
}

// GetData retrieves a frame data value.
func (f *Frame) GetData(key string) (any, bool) {
	if f.Data == nil {
		return nil, false
	}
	v, ok := f.Data[key]
	return v, ok
}

// Stack is the frame stack of one request.
type Stack struct {
	mu     sync.Mutex
	frames []*Frame
}

// NewStack creates an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Push adds f as the innermost frame.
func (s *Stack) Push(f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

// Pop removes and returns the innermost frame.
func (s *Stack) Pop() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return nil, ErrEmptyStack
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f, nil
}

// Top returns the innermost frame.
func (s *Stack) Top() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return nil, false
	}
	return s.frames[len(s.frames)-1], true
}

// Depth returns the number of frames.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}
