//go:build !headless

// video_backend_ebiten.go - Ebiten-backed graphics window.
//
// Adapted from the teacher's video_backend_ebiten.go: the window/texture
// lifecycle (Update/Draw/Layout, F11 fullscreen toggle, clipboard paste,
// vsync-gate channel) is kept, but UpdateFrame's push model is replaced by
// a direct read of the shared framebuffer set once via SetFrameSource (the
// buffer IS the guest's memory-mapped device block, so Draw reads it
// straight off guest writes rather than copying a snapshot in). Key
// delivery is replaced wholesale: instead of translating to terminal ASCII
// bytes, every key press is forwarded as an (ebiten.Key value,
// modifier bitset) pair standing in for this machine's hardware scancode
// space, matching original_source/graphics.c's
// "(mod << 16) | (scancode & 0xFFFF)" keyboard queue encoding.

package main

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.design/x/clipboard"
)

const (
	modShift = 1 << 0
	modCtrl  = 1 << 1
	modAlt   = 1 << 2
	modMeta  = 1 << 3
)

type EbitenGraphicsHost struct {
	mu         sync.Mutex
	width      int
	height     int
	frame      []byte
	window     *ebiten.Image
	running    bool
	fullscreen bool

	keyFn  func(mod, scancode uint32)
	quitFn func()

	vsyncChan chan struct{}

	clipboardOnce sync.Once
	clipboardOK   bool
}

func NewGraphicsHost() (GraphicsHost, error) {
	return &EbitenGraphicsHost{
		width:     640,
		height:    480,
		vsyncChan: make(chan struct{}, 1),
	}, nil
}

func (eo *EbitenGraphicsHost) SetFrameSource(buf []byte) {
	eo.mu.Lock()
	eo.frame = buf
	eo.mu.Unlock()
}

func (eo *EbitenGraphicsHost) SetKeyHandler(fn func(mod, scancode uint32)) {
	eo.mu.Lock()
	eo.keyFn = fn
	eo.mu.Unlock()
}

func (eo *EbitenGraphicsHost) SetQuitHandler(fn func()) {
	eo.mu.Lock()
	eo.quitFn = fn
	eo.mu.Unlock()
}

func (eo *EbitenGraphicsHost) Configure(width, height int) error {
	eo.mu.Lock()
	defer eo.mu.Unlock()
	eo.width, eo.height = width, height
	if eo.window != nil {
		eo.window.Dispose()
		eo.window = nil
	}
	ebiten.SetWindowSize(width, height)
	return nil
}

// Run starts the Ebiten event/render loop. Must be called from the
// process's main goroutine, not spawned off: Ebiten pins its run loop to
// the OS thread the calling goroutine started on.
func (eo *EbitenGraphicsHost) Run() error {
	eo.mu.Lock()
	eo.running = true
	w, h := eo.width, eo.height
	eo.mu.Unlock()

	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("vx4")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)

	if err := ebiten.RunGame(eo); err != nil && err != ebiten.Termination {
		return wrapf("gfxhost.Run", Extern, err)
	}
	return nil
}

func (eo *EbitenGraphicsHost) Stop() {
	eo.mu.Lock()
	eo.running = false
	eo.mu.Unlock()
}

func (eo *EbitenGraphicsHost) Update() error {
	eo.mu.Lock()
	running := eo.running
	eo.mu.Unlock()

	if ebiten.IsWindowBeingClosed() {
		eo.emitQuit()
		return ebiten.Termination
	}
	if !running {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		eo.mu.Lock()
		eo.fullscreen = !eo.fullscreen
		fs := eo.fullscreen
		eo.mu.Unlock()
		ebiten.SetFullscreen(fs)
	}

	eo.handleKeyboardInput()
	return nil
}

func (eo *EbitenGraphicsHost) emitQuit() {
	eo.mu.Lock()
	fn := eo.quitFn
	eo.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (eo *EbitenGraphicsHost) emitKey(mod uint32, scancode ebiten.Key) {
	eo.mu.Lock()
	fn := eo.keyFn
	eo.mu.Unlock()
	if fn != nil {
		fn(mod, uint32(scancode))
	}
}

func (eo *EbitenGraphicsHost) currentMods() uint32 {
	var m uint32
	if ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight) {
		m |= modShift
	}
	if ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight) {
		m |= modCtrl
	}
	if ebiten.IsKeyPressed(ebiten.KeyAltLeft) || ebiten.IsKeyPressed(ebiten.KeyAltRight) {
		m |= modAlt
	}
	if ebiten.IsKeyPressed(ebiten.KeyMetaLeft) || ebiten.IsKeyPressed(ebiten.KeyMetaRight) {
		m |= modMeta
	}
	return m
}

func (eo *EbitenGraphicsHost) handleKeyboardInput() {
	eo.mu.Lock()
	hasHandler := eo.keyFn != nil
	eo.mu.Unlock()
	if !hasHandler {
		return
	}

	mods := eo.currentMods()

	if mods&modCtrl != 0 && mods&modShift != 0 && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		eo.handleClipboardPaste(mods)
	}

	for _, key := range inpututil.AppendJustPressedKeys(nil) {
		eo.emitKey(mods, key)
	}
}

// handleClipboardPaste queues each letter, digit, space and newline of the
// current clipboard text as a synthetic KeyA..KeyZ/Key0..Key9/KeySpace/
// KeyEnter press, letting the guest's own keymap decide how to render it.
// Other runes are skipped.
func (eo *EbitenGraphicsHost) handleClipboardPaste(mods uint32) {
	eo.clipboardOnce.Do(func() {
		eo.clipboardOK = clipboard.Init() == nil
	})
	if !eo.clipboardOK {
		return
	}
	data := clipboard.Read(clipboard.FmtText)
	for _, r := range string(data) {
		if key, ok := runeToKey(r); ok {
			eo.emitKey(mods, key)
		}
	}
}

func runeToKey(r rune) (ebiten.Key, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return ebiten.KeyA + ebiten.Key(r-'a'), true
	case r >= 'A' && r <= 'Z':
		return ebiten.KeyA + ebiten.Key(r-'A'), true
	case r >= '0' && r <= '9':
		return ebiten.Key0 + ebiten.Key(r-'0'), true
	case r == ' ':
		return ebiten.KeySpace, true
	case r == '\n':
		return ebiten.KeyEnter, true
	default:
		return 0, false
	}
}

func (eo *EbitenGraphicsHost) Draw(screen *ebiten.Image) {
	eo.mu.Lock()
	w, h, frame := eo.width, eo.height, eo.frame
	eo.mu.Unlock()

	if w <= 0 || h <= 0 {
		return
	}

	need := w * h * 4
	if eo.window == nil {
		eo.window = ebiten.NewImage(w, h)
	}
	if len(frame) >= need {
		eo.window.WritePixels(frame[:need])
	}
	screen.DrawImage(eo.window, nil)

	select {
	case eo.vsyncChan <- struct{}{}:
	default:
	}
}

func (eo *EbitenGraphicsHost) Layout(_, _ int) (int, int) {
	eo.mu.Lock()
	defer eo.mu.Unlock()
	return eo.width, eo.height
}
