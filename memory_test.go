package main

import "testing"

// TestMemoryWordRoundTrip verifies word writes are readable back and that
// touching an Unmapped block allocates it transparently.
func TestMemoryWordRoundTrip(t *testing.T) {
	m := NewMemory()
	if err := m.WriteWord(0x2000, 0xDEADBEEF); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	got, err := m.ReadWord(0x2000)
	if err != nil || got != 0xDEADBEEF {
		t.Fatalf("ReadWord = 0x%08X, %v; want 0xDEADBEEF, nil", got, err)
	}
}

// TestMemoryAlignmentRequired verifies unaligned dbyte/word access fails
// with Invalid rather than silently truncating the address.
func TestMemoryAlignmentRequired(t *testing.T) {
	m := NewMemory()
	if _, err := m.ReadWord(1); CodeOf(err) != Invalid {
		t.Fatalf("ReadWord(1) = %v; want Invalid", err)
	}
	if _, err := m.ReadDbyte(1); CodeOf(err) != Invalid {
		t.Fatalf("ReadDbyte(1) = %v; want Invalid", err)
	}
}

// TestMemoryCrossBlockAccess verifies ReadMem/WriteMem work across a block
// boundary without the caller needing to know block geometry.
func TestMemoryCrossBlockAccess(t *testing.T) {
	m := NewMemory()
	addr := uint32(MemBlockSize) - 2
	data := []byte{1, 2, 3, 4}
	m.WriteMem(addr, data)
	got := m.ReadMem(addr, 4)
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("ReadMem[%d] = %d; want %d", i, got[i], data[i])
		}
	}
}

// TestMemoryStringRoundTrip verifies WriteString/ReadString handle the
// trailing NUL and the max-length cutoff.
func TestMemoryStringRoundTrip(t *testing.T) {
	m := NewMemory()
	m.WriteString(0x4000, "hello")
	got := m.ReadString(0x4000, 64)
	if string(got) != "hello" {
		t.Fatalf("ReadString = %q; want %q", got, "hello")
	}

	truncated := m.ReadString(0x4000, 4)
	if string(truncated) != "hel" {
		t.Fatalf("ReadString truncated = %q; want %q", truncated, "hel")
	}
}

// TestMemoryMapDeviceOverridesSystemBlock verifies MapDevice takes over a
// block that already holds system RAM, and that subsequent reads see the
// borrowed buffer.
func TestMemoryMapDeviceOverridesSystemBlock(t *testing.T) {
	m := NewMemory()
	base := uint32(3 * MemBlockSize)
	m.WriteByte(base, 0xAA)

	dev := make([]byte, MemBlockSize)
	dev[0] = 0x55
	if err := m.MapDevice(base, dev); err != nil {
		t.Fatalf("MapDevice: %v", err)
	}
	if got := m.ReadByte(base); got != 0x55 {
		t.Fatalf("ReadByte after MapDevice = 0x%02X; want 0x55", got)
	}

	dev[1] = 0x77
	if got := m.ReadByte(base + 1); got != 0x77 {
		t.Fatalf("ReadByte did not alias device buffer; got 0x%02X", got)
	}
}

// TestMemoryMapDeviceRejectsDoubleMap verifies MapDevice fails Precondition
// on an already-device-mapped block, and that unaligned bases fail Invalid.
func TestMemoryMapDeviceRejectsDoubleMap(t *testing.T) {
	m := NewMemory()
	base := uint32(5 * MemBlockSize)
	buf := make([]byte, MemBlockSize)

	if err := m.MapDevice(base, buf); err != nil {
		t.Fatalf("first MapDevice: %v", err)
	}
	if err := m.MapDevice(base, buf); CodeOf(err) != Precondition {
		t.Fatalf("second MapDevice = %v; want Precondition", err)
	}
	if err := m.MapDevice(base+1, buf); CodeOf(err) != Invalid {
		t.Fatalf("MapDevice unaligned = %v; want Invalid", err)
	}
}

// TestMemoryUnmapDevice verifies UnmapDevice reverts the block to Unmapped
// so a later touch reallocates it as ordinary system RAM.
func TestMemoryUnmapDevice(t *testing.T) {
	m := NewMemory()
	base := uint32(7 * MemBlockSize)
	dev := make([]byte, MemBlockSize)
	dev[0] = 0xFF
	_ = m.MapDevice(base, dev)

	if err := m.UnmapDevice(base); err != nil {
		t.Fatalf("UnmapDevice: %v", err)
	}
	if got := m.ReadByte(base); got != 0 {
		t.Fatalf("ReadByte after UnmapDevice = 0x%02X; want 0 (fresh system block)", got)
	}
	if err := m.UnmapDevice(base); CodeOf(err) != Precondition {
		t.Fatalf("double UnmapDevice = %v; want Precondition", err)
	}
}
