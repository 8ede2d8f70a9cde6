//go:build headless

// video_backend_headless.go - no-op GraphicsHost for headless builds/tests.

package main

import "sync/atomic"

type HeadlessGraphicsHost struct {
	frameCount uint64
	quitFn     func()
	keyFn      func(mod, scancode uint32)
	stopCh     chan struct{}
	frame      []byte
}

func (h *HeadlessGraphicsHost) SetFrameSource(buf []byte) { h.frame = buf }

func NewGraphicsHost() (GraphicsHost, error) {
	return &HeadlessGraphicsHost{stopCh: make(chan struct{})}, nil
}

func (h *HeadlessGraphicsHost) Configure(_, _ int) error {
	atomic.AddUint64(&h.frameCount, 1)
	return nil
}

func (h *HeadlessGraphicsHost) Run() error {
	<-h.stopCh
	return nil
}

func (h *HeadlessGraphicsHost) Stop() {
	select {
	case <-h.stopCh:
	default:
		close(h.stopCh)
	}
}

func (h *HeadlessGraphicsHost) SetKeyHandler(fn func(mod, scancode uint32)) { h.keyFn = fn }
func (h *HeadlessGraphicsHost) SetQuitHandler(fn func())                    { h.quitFn = fn }
