// cpu.go - fetch/decode/execute loop and the 11-instruction opcode table.
//
// Grounded on original_source/cpu.c for the reset-handling shape (reset
// vector at word 0, sp/bp reseated at GfxMmapStart, interrupts enabled on
// reset) and on the teacher's cpu_ie32.go for the worker-goroutine
// lifecycle (mutex-guarded control flags released before dispatch so
// instruction handlers can safely call back into queue_* without
// deadlocking). The instruction encoding and opcode table are authored
// directly from this repository's own specification.

package main

import (
	"encoding/binary"
	"sync"
)

type opcodeEntry struct {
	extra   int
	handler func(*CPU, []byte) error
}

var opcodeTable = []opcodeEntry{
	{0, opNOP},
	{0, opHLT},
	{4, opJMPC},
	{5, opMOVRC},
	{6, opMOVPCR},
	{6, opADDRC},
	{2, opMOVPRR},
	{4, opOUTSCR},
	{4, opINXRSC},
	{0, opCLI},
	{0, opSTI},
}

// CPU is the fetch/decode/execute engine. Exactly one CPU goroutine ever
// calls step(); every other goroutine reaches it only through the
// Queue*/SetInterruptsEnabled/Halting methods below, all of which take mu.
type CPU struct {
	mu          sync.Mutex
	reset       bool
	halt        bool
	intrEnabled bool
	stopping    bool

	ip uint32

	mem   *Memory
	regs  *Registers
	stack *Stack
	intr  *Interrupts
	ports *Ports

	done chan struct{}
}

func NewCPU(mem *Memory, regs *Registers, stack *Stack, intr *Interrupts, ports *Ports) *CPU {
	return &CPU{
		mem:   mem,
		regs:  regs,
		stack: stack,
		intr:  intr,
		ports: ports,
		done:  make(chan struct{}),
	}
}

// Begin queues a reset and starts the fetch/decode/execute goroutine.
func (c *CPU) Begin() {
	c.QueueReset()
	go c.Run()
}

// Run drives step() until it returns false, then marks the CPU stopped.
// Exported so a caller can launch it directly if Begin's
// implicit reset isn't wanted (e.g. tests driving step() by hand first).
func (c *CPU) Run() {
	for c.step() {
	}
	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()
	close(c.done)
}

// WaitEnd blocks until the CPU goroutine has exited its loop.
func (c *CPU) WaitEnd() {
	<-c.done
}

func (c *CPU) Halting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

func (c *CPU) QueueReset() {
	c.mu.Lock()
	c.reset = true
	c.mu.Unlock()
}

func (c *CPU) QueueHalt() {
	c.mu.Lock()
	c.halt = true
	c.mu.Unlock()
}

func (c *CPU) QueueJump(addr uint32) {
	c.mu.Lock()
	c.ip = addr
	c.mu.Unlock()
}

func (c *CPU) SetInterruptsEnabled(on bool) {
	c.mu.Lock()
	c.intrEnabled = on
	c.mu.Unlock()
}

// step runs one iteration of the per-step algorithm: halt check, reset
// handling, interrupt servicing, then (with the CPU mutex released)
// instruction fetch and dispatch.
func (c *CPU) step() bool {
	c.mu.Lock()

	if c.halt {
		c.mu.Unlock()
		return false
	}

	if c.reset {
		c.reset = false
		ip, _ := c.mem.ReadWord(0)
		c.ip = ip
		c.stack.SP = GfxMmapStart
		c.stack.BP = GfxMmapStart
		c.intrEnabled = true
	}

	if c.intrEnabled {
		i := c.intr.Which()
		if i != IntrInvalid {
			nextIP, _ := c.mem.ReadWord(uint32(i) * 4)
			switch nextIP {
			case 0:
				c.reset = true
				c.mu.Unlock()
				return true
			case 1:
				c.halt = true
				c.mu.Unlock()
				return true
			}

			if err := c.stack.EnterFrame(c.mem); err != nil {
				c.reset = true
				c.mu.Unlock()
				return true
			}
			_ = c.stack.Push(c.mem, c.ip)
			_ = c.stack.Push(c.mem, c.flagsWordLocked())
			_ = c.stack.Skip(NumRegisters)
			_ = c.regs.WriteAllMem(c.mem, c.stack.SP)
			c.ip = nextIP
		}
	}

	c.mu.Unlock()

	// Opcode fetch has no alignment requirement: instructions pack back to
	// back with no padding, so an odd-length instruction (e.g. MOVRC's
	// 7-byte encoding) leaves the next opcode at an odd address. Read the
	// two bytes directly rather than through ReadDbyte, which enforces the
	// 2-byte alignment that guest stores rely on.
	opcode := uint16(c.mem.ReadByte(c.ip)) | uint16(c.mem.ReadByte(c.ip+1))<<8
	c.ip += 2

	if int(opcode) >= len(opcodeTable) {
		_ = c.intr.Raise(IntrIns)
		return true
	}

	entry := opcodeTable[opcode]
	operand := c.mem.ReadMem(c.ip, uint32(entry.extra))
	c.ip += uint32(entry.extra)

	if err := entry.handler(c, operand); err != nil {
		_ = c.intr.Raise(IntrIns)
	}
	return true
}

// flagsWordLocked packs the three control flags into the word pushed onto
// the interrupt frame. Caller must hold mu. Bit layout is internal to this
// implementation; guest firmware treats it as an opaque saved word.
func (c *CPU) flagsWordLocked() uint32 {
	var w uint32
	if c.reset {
		w |= 1 << 0
	}
	if c.halt {
		w |= 1 << 1
	}
	if c.intrEnabled {
		w |= 1 << 2
	}
	return w
}

func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func le16(b []byte) uint32 { return uint32(binary.LittleEndian.Uint16(b)) }

func opNOP(_ *CPU, _ []byte) error { return nil }

func opHLT(c *CPU, _ []byte) error {
	c.QueueHalt()
	return nil
}

func opJMPC(c *CPU, operand []byte) error {
	c.ip = le32(operand)
	return nil
}

func opMOVRC(c *CPU, operand []byte) error {
	reg := int(operand[0])
	imm := le32(operand[1:5])
	return c.regs.SetWord(reg, imm)
}

func opMOVPCR(c *CPU, operand []byte) error {
	addr := le32(operand[0:4])
	reg := int(operand[4])
	val, err := c.regs.Word(reg)
	if err != nil {
		return err
	}
	return c.mem.WriteWord(addr, val)
}

func opADDRC(c *CPU, operand []byte) error {
	reg := int(operand[0])
	imm := le32(operand[2:6])
	cur, err := c.regs.Word(reg)
	if err != nil {
		return err
	}
	return c.regs.SetWord(reg, cur+imm)
}

func opMOVPRR(c *CPU, operand []byte) error {
	dst := int(operand[0])
	src := int(operand[1])
	addr, err := c.regs.Word(dst)
	if err != nil {
		return err
	}
	val, err := c.regs.Word(src)
	if err != nil {
		return err
	}
	return c.mem.WriteWord(addr, val)
}

func opOUTSCR(c *CPU, operand []byte) error {
	port := le16(operand[0:2])
	reg := int(operand[2])
	val, err := c.regs.Word(reg)
	if err != nil {
		return err
	}
	return c.ports.Write(int(port), val)
}

func opINXRSC(c *CPU, operand []byte) error {
	reg := int(operand[0])
	port := le16(operand[2:4])
	val, err := c.ports.Read(int(port))
	if err != nil {
		return err
	}
	return c.regs.SetWord(reg, val)
}

func opCLI(c *CPU, _ []byte) error {
	c.SetInterruptsEnabled(false)
	return nil
}

func opSTI(c *CPU, _ []byte) error {
	c.SetInterruptsEnabled(true)
	return nil
}
