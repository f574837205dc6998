package probe

import (
	"context"
	"testing"
	"time"

	"pkt.systems/panecast/schema"
)

type fakeCaller struct {
	calls    []string
	notifies []string
	response string
	err      error
}

func (f *fakeCaller) Call(ctx context.Context, payload string) (string, error) {
	f.calls = append(f.calls, payload)
	return f.response, f.err
}

func (f *fakeCaller) Notify(payload string) error {
	f.notifies = append(f.notifies, payload)
	return nil
}

func TestWindowByTitleParsesGeometry(t *testing.T) {
	caller := &fakeCaller{response: "100,50,1280x720"}
	p := NewWindowProbe(caller, time.Second, nil)

	rect, found, err := p.WindowByTitle(context.Background(), "editor")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found {
		t.Fatalf("expected window to be found")
	}
	want := schema.Rect{X: 100, Y: 50, Width: 1280, Height: 720}
	if rect != want {
		t.Fatalf("rect = %v, want %v", rect, want)
	}
}

func TestWindowLookupUsesCache(t *testing.T) {
	caller := &fakeCaller{response: "0,0,800x600"}
	p := NewWindowProbe(caller, time.Minute, nil)

	for range 3 {
		if _, _, err := p.WindowByTitle(context.Background(), "editor"); err != nil {
			t.Fatalf("lookup: %v", err)
		}
	}
	if len(caller.calls) != 1 {
		t.Fatalf("helper called %d times, want 1 (cached)", len(caller.calls))
	}
}

func TestWindowNotFound(t *testing.T) {
	caller := &fakeCaller{response: "none"}
	p := NewWindowProbe(caller, time.Second, nil)

	_, found, err := p.ActiveWindow(context.Background())
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}

func TestWindowUnparseableGeometry(t *testing.T) {
	caller := &fakeCaller{response: "garbage"}
	p := NewWindowProbe(caller, time.Second, nil)

	if _, _, err := p.WindowByHandle(context.Background(), "0x12"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestScrollRoutesThroughWorkerNotify(t *testing.T) {
	caller := &fakeCaller{}
	inj, err := NewInputInjector(InjectorConfig{Binary: "injector"}, caller, nil)
	if err != nil {
		t.Fatalf("new injector: %v", err)
	}
	if err := inj.Scroll(context.Background(), 3, 10, 20, false); err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if len(caller.notifies) != 1 || caller.notifies[0] != "scroll wheel 3 10 20" {
		t.Fatalf("notifies = %v", caller.notifies)
	}
	if err := inj.Scroll(context.Background(), 0, 0, 0, false); err != nil {
		t.Fatalf("zero scroll: %v", err)
	}
	if len(caller.notifies) != 1 {
		t.Fatalf("zero-tick scroll must not reach the worker")
	}
}
