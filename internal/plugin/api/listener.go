package api

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/atomik/internal/event"
	"github.com/dshills/atomik/internal/logging"
	plua "github.com/dshills/atomik/internal/plugin/lua"
)

// Listener adapts a Lua function to event.Listener. The function receives
// the payload as a table; fields it assigns are copied back afterwards.
type Listener struct {
	name  string
	state *plua.State
	fn    *lua.LFunction
	log   *logging.Logger
}

// NewListener creates a listener calling fn on state.
func NewListener(state *plua.State, name string, fn *lua.LFunction, log *logging.Logger) *Listener {
	if log == nil {
		log = logging.Nop()
	}
	return &Listener{name: name, state: state, fn: fn, log: log}
}

// Name implements event.Listener.
func (l *Listener) Name() string {
	return l.name
}

// Handle implements event.Listener. A failing script is logged and its
// error recorded in p.Err unless an earlier listener already set one.
func (l *Listener) Handle(ctx context.Context, p *event.Payload) any {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = WithStore(ctx, p.Store)

	var out any
	err := l.state.Do(ctx, func(ctx context.Context) error {
		bridge := l.state.Bridge()
		tbl := PayloadTable(bridge, p)
		ret, err := l.state.Call(ctx, l.fn, tbl)
		if err != nil {
			return err
		}
		ReadPayloadTable(bridge, tbl, p)
		if len(ret) > 0 {
			out = bridge.FromLua(ret[0])
		}
		return nil
	})
	if err != nil {
		l.log.Error("listener %s: %v", l.name, err)
		if p.Err == nil {
			p.Err = err
		}
		return nil
	}
	return out
}
