// Package hook provides the pre and post dispatch hooks of the dispatcher.
//
// Hooks wrap each dispatched action. A PreDispatchHook runs after the
// Dispatch::Before event and may stop the dispatch; a PostDispatchHook
// runs after the output has been written and sees it.
//
// # Priority
//
//   - Pre-hooks: higher priority runs first.
//   - Post-hooks: lower priority runs first, so higher ones see the final state.
//
// The application scripts files/pre_dispatch and files/post_dispatch are
// registered as FileHook values at PriorityFile. They are resolved against
// the request store each time, so a pluggable application that points the
// keys at its own scripts gets them run instead.
//
// # Usage
//
//	m := hook.NewManager()
//	hook.RegisterFileHooks(m, fsys, scripts)
//	m.Register(hook.NewAuditHook(log))
//	m.RegisterPre(hook.PreFunc("auth", 800, func(ctx context.Context, hc *hook.Context) (bool, error) {
//		return hc.Store.Bool("session/user", false), nil
//	}))
package hook
