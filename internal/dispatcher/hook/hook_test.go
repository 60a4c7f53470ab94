package hook_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/dshills/atomik/internal/config"
	"github.com/dshills/atomik/internal/dispatcher/hook"
)

var errDenied = errors.New("denied")

type recordingRunner struct {
	ran []string
	err error
}

func (r *recordingRunner) RunFile(_ context.Context, path string, isolated bool) (any, error) {
	if !isolated {
		return nil, errors.New("hook scripts must run isolated")
	}
	r.ran = append(r.ran, path)
	return nil, r.err
}

func TestManagerPriorityOrdering(t *testing.T) {
	m := hook.NewManager()
	var order []string

	pre := func(name string) func(context.Context, *hook.Context) (bool, error) {
		return func(context.Context, *hook.Context) (bool, error) {
			order = append(order, "pre:"+name)
			return true, nil
		}
	}
	post := func(name string) func(context.Context, *hook.Context) error {
		return func(context.Context, *hook.Context) error {
			order = append(order, "post:"+name)
			return nil
		}
	}

	m.RegisterPre(hook.PreFunc("low", 10, pre("low")))
	m.RegisterPre(hook.PreFunc("high", 100, pre("high")))
	m.RegisterPost(hook.PostFunc("high", 100, post("high")))
	m.RegisterPost(hook.PostFunc("low", 10, post("low")))

	ctx := context.Background()
	if ok, err := m.RunPreDispatch(ctx, &hook.Context{}); !ok || err != nil {
		t.Fatalf("RunPreDispatch = %v, %v", ok, err)
	}
	if err := m.RunPostDispatch(ctx, &hook.Context{}); err != nil {
		t.Fatal(err)
	}

	want := []string{"pre:high", "pre:low", "post:low", "post:high"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestManagerStops(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(context.Context, *hook.Context) (bool, error)
		wantOK  bool
		wantErr error
	}{
		{"cancel", func(context.Context, *hook.Context) (bool, error) { return false, nil }, false, nil},
		{"error", func(context.Context, *hook.Context) (bool, error) { return true, errDenied }, false, errDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := hook.NewManager()
			later := false
			m.RegisterPre(hook.PreFunc("first", 100, tt.fn))
			m.RegisterPre(hook.PreFunc("second", 1, func(context.Context, *hook.Context) (bool, error) {
				later = true
				return true, nil
			}))

			ok, err := m.RunPreDispatch(context.Background(), &hook.Context{})
			if ok != tt.wantOK || !errors.Is(err, tt.wantErr) {
				t.Errorf("RunPreDispatch = %v, %v", ok, err)
			}
			if later {
				t.Error("hook after the stopping one ran")
			}
		})
	}
}

func TestManagerReplaceAndUnregister(t *testing.T) {
	m := hook.NewManager()
	m.RegisterPre(hook.PreFunc("a", 1, nil))
	m.RegisterPre(hook.PreFunc("a", 2, nil))
	m.Register(hook.NewAuditHook(nil))

	if got := m.PreHookNames(); !reflect.DeepEqual(got, []string{"audit", "a"}) {
		t.Errorf("pre names = %v", got)
	}
	if got := m.PostHookNames(); !reflect.DeepEqual(got, []string{"audit"}) {
		t.Errorf("post names = %v", got)
	}

	if !m.Unregister("audit") || m.Unregister("audit") {
		t.Error("Unregister(audit) results wrong")
	}
	if len(m.PostHookNames()) != 0 {
		t.Error("audit still registered as post hook")
	}

	if !m.Unregister("a") || len(m.PreHookNames()) != 0 {
		t.Errorf("pre names after Unregister(a) = %v", m.PreHookNames())
	}
}

func TestFileHooks(t *testing.T) {
	fsys := fstest.MapFS{
		"app/pre_dispatch.lua":         &fstest.MapFile{Data: []byte(`x = 1`)},
		"plugin/app/post_dispatch.lua": &fstest.MapFile{Data: []byte(`x = 2`)},
	}

	store := config.New()
	_ = store.Set(config.FilePreDispatch, "./app/pre_dispatch.lua")
	_ = store.Set(config.FilePostDispatch, "./app/post_dispatch.lua")

	r := &recordingRunner{}
	m := hook.NewManager()
	hook.RegisterFileHooks(m, fsys, r)

	ctx := context.Background()
	hc := &hook.Context{Store: store}
	if ok, err := m.RunPreDispatch(ctx, hc); !ok || err != nil {
		t.Fatalf("RunPreDispatch = %v, %v", ok, err)
	}
	if err := m.RunPostDispatch(ctx, hc); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(r.ran, []string{"./app/pre_dispatch.lua"}) {
		t.Errorf("ran = %v, missing post file must be skipped", r.ran)
	}

	_ = store.Set(config.FilePostDispatch, "plugin/app/post_dispatch.lua")
	r.err = errDenied
	if err := m.RunPostDispatch(ctx, hc); !errors.Is(err, errDenied) {
		t.Errorf("RunPostDispatch = %v, want script error", err)
	}
}
