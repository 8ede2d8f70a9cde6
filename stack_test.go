package main

import "testing"

// TestStackPushPop verifies Push/Pop round-trip and that SP moves downward
// by 4 bytes per word.
func TestStackPushPop(t *testing.T) {
	mem := NewMemory()
	s := NewStack()
	s.SP = 0x10000

	if err := s.Push(mem, 0xCAFEBABE); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if s.SP != 0x10000-4 {
		t.Fatalf("SP after Push = 0x%X; want 0x%X", s.SP, 0x10000-4)
	}

	got, err := s.Pop(mem)
	if err != nil || got != 0xCAFEBABE {
		t.Fatalf("Pop = 0x%08X, %v; want 0xCAFEBABE, nil", got, err)
	}
	if s.SP != 0x10000 {
		t.Fatalf("SP after Pop = 0x%X; want 0x10000", s.SP)
	}
}

// TestStackUnalignedRejected verifies Push and Pop refuse to run against an
// unaligned SP rather than silently rounding it.
func TestStackUnalignedRejected(t *testing.T) {
	mem := NewMemory()
	s := NewStack()
	s.SP = 0x10001

	if err := s.Push(mem, 1); CodeOf(err) != Precondition {
		t.Fatalf("Push with unaligned SP = %v; want Precondition", err)
	}
	if _, err := s.Pop(mem); CodeOf(err) != Precondition {
		t.Fatalf("Pop with unaligned SP = %v; want Precondition", err)
	}
}

// TestStackEnterLeaveFrame verifies EnterFrame saves BP and reseats it to
// SP, and LeaveFrame is its exact inverse.
func TestStackEnterLeaveFrame(t *testing.T) {
	mem := NewMemory()
	s := NewStack()
	s.SP = 0x20000
	s.BP = 0x1000

	if err := s.EnterFrame(mem); err != nil {
		t.Fatalf("EnterFrame: %v", err)
	}
	if s.BP != 0x20000-4 {
		t.Fatalf("BP after EnterFrame = 0x%X; want 0x%X", s.BP, 0x20000-4)
	}

	if err := s.LeaveFrame(mem); err != nil {
		t.Fatalf("LeaveFrame: %v", err)
	}
	if s.SP != 0x20000 || s.BP != 0x1000 {
		t.Fatalf("after LeaveFrame SP=0x%X BP=0x%X; want SP=0x20000 BP=0x1000", s.SP, s.BP)
	}
}

// TestStackSkipUnskip verifies Skip/Unskip move SP by whole words without
// touching memory.
func TestStackSkipUnskip(t *testing.T) {
	s := NewStack()
	s.SP = 0x10000

	if err := s.Skip(4); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if s.SP != 0x10000-16 {
		t.Fatalf("SP after Skip(4) = 0x%X; want 0x%X", s.SP, 0x10000-16)
	}
	if err := s.Unskip(4); err != nil {
		t.Fatalf("Unskip: %v", err)
	}
	if s.SP != 0x10000 {
		t.Fatalf("SP after Unskip(4) = 0x%X; want 0x10000", s.SP)
	}
}

// TestStackPushMultiPopMulti verifies PushMulti/PopMulti preserve order.
func TestStackPushMultiPopMulti(t *testing.T) {
	mem := NewMemory()
	s := NewStack()
	s.SP = 0x10000

	want := []uint32{1, 2, 3, 4}
	if err := s.PushMulti(mem, want); err != nil {
		t.Fatalf("PushMulti: %v", err)
	}

	got, err := s.PopMulti(mem, uint32(len(want)))
	if err != nil {
		t.Fatalf("PopMulti: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PopMulti[%d] = %d; want %d", i, got[i], want[i])
		}
	}
}
