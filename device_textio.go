// device_textio.go - one-port console byte device.
//
// Grounded on original_source/textio.c: writes put a byte to the console,
// reads pop one from an input queue or return 0 on empty/EOF. The host-side
// raw-stdin reader lives in device_textio_host.go (os-specific).

package main

import (
	"os"
	"sync"
)

const textioBufferSize = 4096

// TextIO is the guest-facing console device: one port, writes go to stdout,
// reads come from an input ring buffer fed by a host adapter.
type TextIO struct {
	mu            sync.Mutex
	in            [textioBufferSize]byte
	head, tail, n int

	out  func(byte)
	port int
}

func NewTextIO(ports *Ports) (*TextIO, error) {
	t := &TextIO{out: func(b byte) { os.Stdout.Write([]byte{b}) }}
	id, err := ports.Install("Generic serial I/O", t.write, t.read)
	if err != nil {
		return nil, err
	}
	t.port = id
	return t, nil
}

func (t *TextIO) write(_ int, c uint32) {
	t.out(byte(c))
}

func (t *TextIO) read(_ int) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		return 0
	}
	b := t.in[t.head]
	t.head = (t.head + 1) % textioBufferSize
	t.n--
	return uint32(b)
}

// EnqueueByte feeds one host-side input byte into the console's read queue.
func (t *TextIO) EnqueueByte(b byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n >= textioBufferSize {
		return
	}
	t.in[t.tail] = b
	t.tail = (t.tail + 1) % textioBufferSize
	t.n++
}
