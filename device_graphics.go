// device_graphics.go - memory-mapped framebuffer device.
//
// Grounded on original_source/graphics.c/graphics.h: 8 MiB of device-owned
// framebuffer mapped just below the disk region, one cmd/data port pair,
// and a None/Addr/BufSz/Res command state machine. The host window
// lifecycle (event loop, key delivery, resize) is delegated to a
// GraphicsHost, implemented by video_backend_ebiten.go or
// video_backend_headless.go depending on build tags.

package main

import "sync"

const (
	GfxMemMax       = 8 * 1024 * 1024
	GfxMmapStart    = DiskMmapStart - GfxMemMax
	gfxBlocksNeeded = GfxMemMax / MemBlockSize
)

const (
	gfxNone = iota
	gfxAddr
	gfxBufsz
	gfxRes
)

const (
	gfxOK = iota
	gfxWait
	gfxErr
)

// GraphicsHost is the host-side window backend a Graphics device drives.
type GraphicsHost interface {
	SetFrameSource(buf []byte)
	SetKeyHandler(fn func(mod, scancode uint32))
	SetQuitHandler(fn func())
	Configure(width, height int) error
	Run() error
	Stop()
}

type Graphics struct {
	mu            sync.Mutex
	buf           []byte
	width, height int
	act           uint32
	res           uint32

	mem   *Memory
	host  GraphicsHost
	ports *Ports

	cmdPort, dataPort int
}

func NewGraphics(mem *Memory, ports *Ports, host GraphicsHost, width, height int) (*Graphics, error) {
	g := &Graphics{
		mem:    mem,
		ports:  ports,
		host:   host,
		width:  width,
		height: height,
		buf:    make([]byte, GfxMemMax),
		res:    gfxOK,
	}

	for i := 0; i < gfxBlocksNeeded; i++ {
		off := uint32(i) * MemBlockSize
		if err := mem.MapDevice(GfxMmapStart+off, g.buf[off:off+MemBlockSize]); err != nil {
			return nil, err
		}
	}

	cmdID, err := ports.Install("Graphics v1 command", g.commandWrite, g.commandRead)
	if err != nil {
		return nil, err
	}
	dataID, err := ports.Install("Graphics v1 data", g.dataWrite, g.dataRead)
	if err != nil {
		_ = ports.Remove(cmdID)
		return nil, err
	}
	g.cmdPort, g.dataPort = cmdID, dataID

	host.SetFrameSource(g.buf)
	return g, nil
}

// Begin wires the keyboard/interrupt side effects of the window and opens
// it at the configured resolution. Run (blocking) must be called
// afterwards from the process's main goroutine.
func (g *Graphics) Begin(kbd *Keyboard, intr *Interrupts) error {
	g.host.SetKeyHandler(func(mod, scancode uint32) {
		kbd.QueuePress((mod << 16) | (scancode & 0xFFFF))
	})
	g.host.SetQuitHandler(func() {
		_ = intr.Raise(IntrHalt)
	})
	return g.host.Configure(g.width, g.height)
}

func (g *Graphics) Run() error  { return g.host.Run() }
func (g *Graphics) Stop()       { g.host.Stop() }

func (g *Graphics) commandWrite(_ int, command uint32) {
	g.mu.Lock()
	g.act = command
	if g.act == gfxNone {
		g.res = gfxOK
	} else {
		g.res = gfxWait
	}
	g.mu.Unlock()
}

func (g *Graphics) commandRead(_ int) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.res
}

func (g *Graphics) dataWrite(_ int, data uint32) {
	g.mu.Lock()
	act := g.act
	g.mu.Unlock()

	switch act {
	case gfxRes:
		w, h := int(data&0xFFFF), int(data>>16)
		if g.restart(w, h) == nil {
			g.setRes(gfxOK)
		} else {
			g.setRes(gfxErr)
		}
	default:
		g.setRes(gfxErr)
	}
}

func (g *Graphics) dataRead(_ int) uint32 {
	g.mu.Lock()
	act := g.act
	w, h := g.width, g.height
	g.mu.Unlock()

	switch act {
	case gfxAddr:
		g.setRes(gfxOK)
		return GfxMmapStart
	case gfxBufsz:
		g.setRes(gfxOK)
		return GfxMemMax
	case gfxRes:
		g.setRes(gfxOK)
		return uint32(w) | uint32(h)<<16
	default:
		g.setRes(gfxErr)
		return 0
	}
}

func (g *Graphics) setRes(r uint32) {
	g.mu.Lock()
	g.res = r
	g.mu.Unlock()
}

func (g *Graphics) restart(width, height int) error {
	if width <= 0 || height <= 0 || width*height*4 >= GfxMemMax {
		return errf("gfx.restart", Invalid)
	}
	if err := g.host.Configure(width, height); err != nil {
		return wrapf("gfx.restart", Extern, err)
	}
	g.mu.Lock()
	g.width, g.height = width, height
	g.mu.Unlock()
	return nil
}
