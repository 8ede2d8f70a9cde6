// memory.go - blocked virtual memory: 4096 x 1 MiB blocks, lazily allocated
// system RAM or borrowed device-owned RAM.
//
// Grounded on original_source/mem.c for the operation set and allocation
// policy, and on the teacher's memory_bus.go for the single-mutex,
// encoding/binary little-endian idiom.

package main

import (
	"encoding/binary"
	"sync"
)

const (
	MemNumBlocks = 4096
	MemBlockSize = 1 << 20 // 1 MiB
	MemBlockMask = MemBlockSize - 1
)

type blockType int

const (
	mapNone blockType = iota
	mapSystem
	mapDevice
)

type memBlock struct {
	kind blockType
	buf  []byte // always MemBlockSize long when kind != mapNone
}

// Memory is the machine's flat 4 GiB address space, modeled as a table of
// 4096 one-megabyte blocks.
type Memory struct {
	mu     sync.Mutex
	blocks [MemNumBlocks]memBlock
}

func NewMemory() *Memory {
	return &Memory{}
}

func blockIndex(addr uint32) uint32 { return addr >> 20 }
func blockOffset(addr uint32) uint32 { return addr & MemBlockMask }

// createSystemBlock allocates backing storage for an Unmapped block. Caller
// must hold m.mu.
func (m *Memory) createSystemBlock(idx uint32) {
	b := &m.blocks[idx]
	if b.kind == mapNone {
		b.buf = make([]byte, MemBlockSize)
		b.kind = mapSystem
	}
}

// ReadByte always succeeds; touching an Unmapped block allocates it.
func (m *Memory) ReadByte(addr uint32) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, off := blockIndex(addr), blockOffset(addr)
	m.createSystemBlock(idx)
	return m.blocks[idx].buf[off]
}

func (m *Memory) WriteByte(addr uint32, val uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, off := blockIndex(addr), blockOffset(addr)
	m.createSystemBlock(idx)
	m.blocks[idx].buf[off] = val
}

func (m *Memory) ReadDbyte(addr uint32) (uint16, error) {
	if addr&0x1 != 0 {
		return 0, errf("mem.ReadDbyte", Invalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, off := blockIndex(addr), blockOffset(addr)
	m.createSystemBlock(idx)
	return binary.LittleEndian.Uint16(m.blocks[idx].buf[off : off+2]), nil
}

func (m *Memory) WriteDbyte(addr uint32, val uint16) error {
	if addr&0x1 != 0 {
		return errf("mem.WriteDbyte", Invalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, off := blockIndex(addr), blockOffset(addr)
	m.createSystemBlock(idx)
	binary.LittleEndian.PutUint16(m.blocks[idx].buf[off:off+2], val)
	return nil
}

func (m *Memory) ReadWord(addr uint32) (uint32, error) {
	if addr&0x3 != 0 {
		return 0, errf("mem.ReadWord", Invalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, off := blockIndex(addr), blockOffset(addr)
	m.createSystemBlock(idx)
	return binary.LittleEndian.Uint32(m.blocks[idx].buf[off : off+4]), nil
}

func (m *Memory) WriteWord(addr uint32, val uint32) error {
	if addr&0x3 != 0 {
		return errf("mem.WriteWord", Invalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, off := blockIndex(addr), blockOffset(addr)
	m.createSystemBlock(idx)
	binary.LittleEndian.PutUint32(m.blocks[idx].buf[off:off+4], val)
	return nil
}

// ReadMem copies n bytes starting at addr, crossing block boundaries freely.
func (m *Memory) ReadMem(addr uint32, n uint32) []byte {
	out := make([]byte, n)
	for i := uint32(0); i < n; i++ {
		out[i] = m.ReadByte(addr + i)
	}
	return out
}

// WriteMem writes src into guest memory starting at addr.
func (m *Memory) WriteMem(addr uint32, src []byte) {
	for i, b := range src {
		m.WriteByte(addr+uint32(i), b)
	}
}

// ReadString copies up to max-1 bytes starting at addr, stopping at the
// first NUL. The returned slice holds the string bytes only; no NUL is
// appended to it.
func (m *Memory) ReadString(addr uint32, max uint32) []byte {
	out := make([]byte, 0, max)
	for uint32(len(out)) < max-1 {
		b := m.ReadByte(addr + uint32(len(out)))
		if b == 0 {
			break
		}
		out = append(out, b)
	}
	return out
}

// WriteString writes s followed by a trailing NUL.
func (m *Memory) WriteString(addr uint32, s string) {
	m.WriteMem(addr, append([]byte(s), 0))
}

func (m *Memory) FillBytes(addr uint32, val uint8, n uint32) {
	for i := uint32(0); i < n; i++ {
		m.WriteByte(addr+i, val)
	}
}

func (m *Memory) FillDbytes(addr uint32, val uint16, n uint32) error {
	for i := uint32(0); i < n; i++ {
		if err := m.WriteDbyte(addr+i*2, val); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) FillWords(addr uint32, val uint32, n uint32) error {
	for i := uint32(0); i < n; i++ {
		if err := m.WriteWord(addr+i*4, val); err != nil {
			return err
		}
	}
	return nil
}

// MapDevice installs a borrowed 1 MiB buffer as the block at base, which
// must be block-aligned. If the block is currently SystemOwned, the system
// buffer is freed first. Fails Precondition if already DeviceOwned.
func (m *Memory) MapDevice(base uint32, buf []byte) error {
	if base&MemBlockMask != 0 {
		return errf("mem.MapDevice", Invalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := blockIndex(base)
	b := &m.blocks[idx]
	if b.kind == mapDevice {
		return errf("mem.MapDevice", Precondition)
	}
	b.kind = mapDevice
	b.buf = buf
	return nil
}

// UnmapDevice reverts the block at base to Unmapped. The device's buffer is
// not freed by this call.
func (m *Memory) UnmapDevice(base uint32) error {
	if base&MemBlockMask != 0 {
		return errf("mem.UnmapDevice", Invalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := blockIndex(base)
	b := &m.blocks[idx]
	if b.kind != mapDevice {
		return errf("mem.UnmapDevice", Precondition)
	}
	b.kind = mapNone
	b.buf = nil
	return nil
}

// RawBlock returns the raw backing buffer for the block at base, optionally
// creating it as a system block first. Returns nil if base isn't block
// aligned or (create==false and) the block is Unmapped.
func (m *Memory) RawBlock(base uint32, create bool) []byte {
	if base&MemBlockMask != 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := blockIndex(base)
	if create {
		m.createSystemBlock(idx)
	}
	return m.blocks[idx].buf
}

// Dump writes every currently-allocated block to a host file named by block
// index, zero padded to 4 digits, suffixed ".dump".
func (m *Memory) Dump(writeFile func(name string, data []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.blocks {
		if m.blocks[i].buf == nil {
			continue
		}
		name := fmtDumpName(i)
		if err := writeFile(name, m.blocks[i].buf); err != nil {
			return wrapf("mem.Dump", File, err)
		}
	}
	return nil
}

func fmtDumpName(idx int) string {
	const digits = "0123456789"
	b := [9]byte{}
	for i := 3; i >= 0; i-- {
		b[i] = digits[idx%10]
		idx /= 10
	}
	copy(b[4:], ".dump")
	return string(b[:])
}
