package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolStopped is returned by Do after Stop.
var ErrPoolStopped = errors.New("server: render pool stopped")

// renderRequest represents a unit of work for the pool.
type renderRequest struct {
	fn   func() (any, error)
	done chan renderResult
}

// renderResult holds the return value from a render.
type renderResult struct {
	value any
	err   error
}

// RenderPool runs renders on a fixed set of goroutines so that a burst of
// requests for huge values cannot take every CPU at once.
type RenderPool struct {
	requests chan renderRequest
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRenderPool creates a RenderPool with n workers and starts them.
func NewRenderPool(n int) *RenderPool {
	if n < 1 {
		n = 1
	}
	p := &RenderPool{
		requests: make(chan renderRequest, 4*n),
		quit:     make(chan struct{}),
	}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.loop()
	}
	return p
}

// loop processes requests until the pool stops.
func (p *RenderPool) loop() {
	defer p.wg.Done()
	for {
		select {
		case req := <-p.requests:
			req.done <- execute(req.fn)
		case <-p.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func execute(fn func() (any, error)) (result renderResult) {
	defer func() {
		if r := recover(); r != nil {
			result = renderResult{err: fmt.Errorf("render panicked: %v", r)}
		}
	}()
	v, err := fn()
	return renderResult{value: v, err: err}
}

// Do submits fn and blocks until it completes or ctx is done. A render
// already running when ctx ends finishes in the background and its result is
// dropped.
func (p *RenderPool) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	req := renderRequest{
		fn:   fn,
		done: make(chan renderResult, 1),
	}

	select {
	case <-p.quit:
		return nil, ErrPoolStopped
	default:
	}

	select {
	case p.requests <- req:
	case <-p.quit:
		return nil, ErrPoolStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-req.done:
		return result.value, result.err
	case <-p.quit:
		return nil, ErrPoolStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts down the workers and waits for them to exit.
func (p *RenderPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
