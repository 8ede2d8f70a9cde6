// device_keyboard.go - scancode ring buffer device.
//
// Grounded on original_source/kbd.c: one port ("Window keyboard v2"), a
// 2048-entry ring buffer of (modifiers<<16 | scancode) words, and a
// raise-on-press flag toggled by writing the port.

package main

import "sync"

const kbdBufferSize = 2048

type Keyboard struct {
	mu          sync.Mutex
	buf         [kbdBufferSize]uint32
	start, end  int
	count       int
	doInterrupt bool

	intr *Interrupts
	port int
}

func NewKeyboard(ports *Ports, intr *Interrupts) (*Keyboard, error) {
	k := &Keyboard{intr: intr}
	id, err := ports.Install("Window keyboard v2", k.setInterrupt, k.readQueue)
	if err != nil {
		return nil, err
	}
	k.port = id
	return k, nil
}

// QueuePress appends a scancode to the ring buffer, discarding the oldest
// entry on overflow (buffer already at kbdBufferSize entries), and raises
// IntrKbd if interrupt-on-press is enabled.
func (k *Keyboard) QueuePress(code uint32) {
	k.mu.Lock()
	k.buf[k.end] = code
	k.end = (k.end + 1) % kbdBufferSize
	if k.count == kbdBufferSize {
		k.start = (k.start + 1) % kbdBufferSize
	} else {
		k.count++
	}
	raise := k.doInterrupt
	k.mu.Unlock()

	if raise {
		_ = k.intr.Raise(IntrKbd)
	}
}

func (k *Keyboard) setInterrupt(_ int, data uint32) {
	k.mu.Lock()
	k.doInterrupt = data != 0
	k.mu.Unlock()
}

func (k *Keyboard) readQueue(_ int) uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.count == 0 {
		return 0
	}
	v := k.buf[k.start]
	k.start = (k.start + 1) % kbdBufferSize
	k.count--
	return v
}
