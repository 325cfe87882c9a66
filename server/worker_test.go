package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRenderPoolDo(t *testing.T) {
	p := NewRenderPool(2)
	defer p.Stop()

	v, err := p.Do(context.Background(), func() (any, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Errorf("Do = %v, %v; want 42, nil", v, err)
	}

	want := errors.New("boom")
	if _, err := p.Do(context.Background(), func() (any, error) { return nil, want }); err != want {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestRenderPoolRecoversPanics(t *testing.T) {
	p := NewRenderPool(1)
	defer p.Stop()

	_, err := p.Do(context.Background(), func() (any, error) { panic("bad render") })
	if err == nil || !strings.Contains(err.Error(), "bad render") {
		t.Errorf("err = %v, want recovered panic", err)
	}

	// The worker must survive the panic.
	if v, err := p.Do(context.Background(), func() (any, error) { return "ok", nil }); err != nil || v != "ok" {
		t.Errorf("after panic: %v, %v", v, err)
	}
}

func TestRenderPoolBoundsConcurrency(t *testing.T) {
	const workers = 3
	p := NewRenderPool(workers)
	defer p.Stop()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Do(context.Background(), func() (any, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > workers {
		t.Errorf("peak concurrency = %d, want <= %d", got, workers)
	}
}

func TestRenderPoolContextCancel(t *testing.T) {
	p := NewRenderPool(1)
	defer p.Stop()

	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Do(ctx, func() (any, error) {
		<-release
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestRenderPoolStopped(t *testing.T) {
	p := NewRenderPool(1)
	p.Stop()
	p.Stop()

	if _, err := p.Do(context.Background(), func() (any, error) { return nil, nil }); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("err = %v, want ErrPoolStopped", err)
	}
}
