package main

import "testing"

func newTestCPU() (*CPU, *Memory, *Registers, *Stack, *Interrupts, *Ports) {
	mem := NewMemory()
	regs := NewRegisters()
	stack := NewStack()
	intr := NewInterrupts()
	ports := NewPorts()
	return NewCPU(mem, regs, stack, intr, ports), mem, regs, stack, intr, ports
}

// TestCPUResetSeedsIPAndStack verifies a queued reset loads ip from word 0
// (the step then fetches one instruction there) and reseats SP/BP to
// GfxMmapStart.
func TestCPUResetSeedsIPAndStack(t *testing.T) {
	cpu, mem, _, _, _, _ := newTestCPU()
	_ = mem.WriteWord(0, 0x3000)
	_ = mem.WriteDbyte(0x3000, 0x0009) // CLI opcode, harmless after reset

	cpu.QueueReset()
	if !cpu.step() {
		t.Fatal("step() returned false on reset step")
	}
	if cpu.ip != 0x3000+2 {
		t.Fatalf("ip after reset+fetch = 0x%X; want 0x%X", cpu.ip, 0x3000+2)
	}
	if cpu.stack.SP != GfxMmapStart || cpu.stack.BP != GfxMmapStart {
		t.Fatalf("SP=0x%X BP=0x%X after reset; want both 0x%X", cpu.stack.SP, cpu.stack.BP, GfxMmapStart)
	}
}

// TestCPUHaltStopsStepping verifies a queued halt makes step() return false
// without touching memory.
func TestCPUHaltStopsStepping(t *testing.T) {
	cpu, _, _, _, _, _ := newTestCPU()
	cpu.QueueHalt()
	if cpu.step() {
		t.Fatal("step() returned true after QueueHalt")
	}
}

// TestCPUInvalidOpcodeRaisesIntrIns verifies an opcode beyond the table's
// range raises IntrIns instead of panicking or silently continuing.
func TestCPUInvalidOpcodeRaisesIntrIns(t *testing.T) {
	cpu, mem, _, _, intr, _ := newTestCPU()
	_ = mem.WriteWord(0, 0x1000)
	_ = mem.WriteDbyte(0x1000, 0xFFFF)

	cpu.QueueReset()
	if !cpu.step() {
		t.Fatal("step() returned false unexpectedly")
	}

	if got := intr.Which(); got != IntrIns {
		t.Fatalf("Which() = %d; want IntrIns", got)
	}
}

// TestCPUMovrcSetsRegister verifies the MOVRC opcode's 5-byte operand
// (reg id + little-endian imm32, no padding byte) loads the expected
// register value, matching the worked example MOVRC R0,'A'.
func TestCPUMovrcSetsRegister(t *testing.T) {
	cpu, mem, regs, _, _, _ := newTestCPU()
	_ = mem.WriteWord(0, 0x5000)

	// opcode 3 (MOVRC) = {0x03, 0x00}; operand = reg(1) + imm32(4)
	mem.WriteMem(0x5000, []byte{0x03, 0x00, 0x00, 0x41, 0x00, 0x00, 0x00})

	cpu.QueueReset()
	if !cpu.step() {
		t.Fatal("step() returned false")
	}

	got, err := regs.Word(0)
	if err != nil || got != 'A' {
		t.Fatalf("R0 = %d, %v; want 'A'", got, err)
	}
	if cpu.ip != 0x5000+7 {
		t.Fatalf("ip after MOVRC = 0x%X; want 0x%X", cpu.ip, 0x5000+7)
	}
}

// TestCPUMovrcThenOddAlignedOutscr verifies the fetch/decode loop has no
// inter-instruction padding: MOVRC's 7-byte encoding leaves the next opcode
// at an odd address, and the following fetch must still succeed there.
func TestCPUMovrcThenOddAlignedOutscr(t *testing.T) {
	cpu, mem, _, _, _, ports := newTestCPU()
	_ = mem.WriteWord(0, 0x100)

	var stored uint32
	portID, _ := ports.Install("probe", func(_ int, data uint32) { stored = data }, func(_ int) uint32 { return stored })
	lo := byte(portID)
	hi := byte(portID >> 8)

	// MOVRC R0,'A' at 0x100 (7 bytes), OUTSCR port,R0 at 0x107 (odd address).
	mem.WriteMem(0x100, []byte{0x03, 0x00, 0x00, 0x41, 0x00, 0x00, 0x00})
	mem.WriteMem(0x107, []byte{0x07, 0x00, lo, hi, 0x00, 0x00})

	cpu.QueueReset()
	if !cpu.step() {
		t.Fatal("step() returned false on MOVRC")
	}
	if cpu.ip != 0x107 {
		t.Fatalf("ip after MOVRC = 0x%X; want 0x107", cpu.ip)
	}

	if !cpu.step() {
		t.Fatal("step() returned false fetching opcode at odd address 0x107")
	}
	if stored != 'A' {
		t.Fatalf("port value after OUTSCR = %d; want 'A'", stored)
	}
}

// TestCPUOutscInxrscRoundTrip verifies OUTSCR writes a register's value to
// a port and INXRSC reads it back into another register.
func TestCPUOutscInxrscRoundTrip(t *testing.T) {
	cpu, mem, regs, _, _, ports := newTestCPU()
	_ = mem.WriteWord(0, 0x6000)

	var stored uint32
	portID, _ := ports.Install("probe", func(_ int, data uint32) { stored = data }, func(_ int) uint32 { return stored })

	_ = regs.SetWord(0, 0x99)

	// OUTSCR: opcode 7 = {0x07, 0x00}; operand = port(2) + reg(1) + pad(1)
	lo := byte(portID)
	hi := byte(portID >> 8)
	mem.WriteMem(0x6000, []byte{0x07, 0x00, lo, hi, 0x00, 0x00})

	cpu.QueueReset()
	if !cpu.step() {
		t.Fatal("step() returned false on OUTSCR")
	}
	if stored != 0x99 {
		t.Fatalf("port value after OUTSCR = %d; want 0x99", stored)
	}

	// INXRSC: opcode 8 = {0x08, 0x00}; operand = reg(1) + pad(1) + port(2)
	mem.WriteMem(cpu.ip, []byte{0x08, 0x00, 0x01, 0x00, lo, hi})

	if !cpu.step() {
		t.Fatal("step() returned false on INXRSC")
	}
	got, _ := regs.Word(1)
	if got != 0x99 {
		t.Fatalf("R1 after INXRSC = %d; want 0x99", got)
	}
}

// TestCPUCliStiToggleInterrupts verifies CLI/STI flip intrEnabled without
// affecting anything else.
func TestCPUCliStiToggleInterrupts(t *testing.T) {
	cpu, mem, _, _, _, _ := newTestCPU()
	_ = mem.WriteWord(0, 0x7000)
	// CLI (opcode 9), then STI (opcode 10)
	mem.WriteMem(0x7000, []byte{0x09, 0x00, 0x0A, 0x00})

	cpu.QueueReset()
	_ = cpu.step()
	cpu.mu.Lock()
	enabled := cpu.intrEnabled
	cpu.mu.Unlock()
	if enabled {
		t.Fatal("intrEnabled true after CLI")
	}

	_ = cpu.step()
	cpu.mu.Lock()
	enabled = cpu.intrEnabled
	cpu.mu.Unlock()
	if !enabled {
		t.Fatal("intrEnabled false after STI")
	}
}

// TestCPUHaltOpcode verifies executing HLT queues a halt that stops the
// next step.
func TestCPUHaltOpcode(t *testing.T) {
	cpu, mem, _, _, _, _ := newTestCPU()
	_ = mem.WriteWord(0, 0x8000)
	mem.WriteMem(0x8000, []byte{0x01, 0x00}) // HLT

	cpu.QueueReset()
	if !cpu.step() {
		t.Fatal("step() executing HLT returned false")
	}
	if cpu.step() {
		t.Fatal("step() after HLT executed should return false")
	}
}
