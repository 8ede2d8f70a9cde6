// machine.go - wires every subsystem together and drives the host loop.
//
// Grounded on original_source/main.c for the install/teardown discipline
// (system, textio, file, graphics, keyboard, then the disks bound by
// LoadDisk; torn down in reverse) and on the
// teacher's pattern of a single struct owning every component, with the
// CPU run as a goroutine and the host event loop run on the calling
// goroutine (see SPEC_FULL.md §5 for why that pairing is the inverse of
// "host calls into worker").

package main

import "log/slog"

type Machine struct {
	Mem   *Memory
	Regs  *Registers
	Stack *Stack
	Intr  *Interrupts
	Ports *Ports

	CPU *CPU

	System  *System
	TextIO  *TextIO
	Disks   *Disks
	Graphics *Graphics
	Keyboard *Keyboard
	File    *File

	textHost *TextIOHost
	log      *slog.Logger

	diskIDs []int
}

// NewMachine constructs every subsystem and installs the fixed devices
// (system, text I/O, graphics, keyboard, file). Disks are bound separately
// via LoadDisk since their count is CLI-driven.
func NewMachine(log *slog.Logger, baseDir string) (*Machine, error) {
	m := &Machine{log: log}

	m.Mem = NewMemory()
	m.Regs = NewRegisters()
	m.Stack = NewStack()
	m.Intr = NewInterrupts()
	m.Ports = NewPorts()
	m.CPU = NewCPU(m.Mem, m.Regs, m.Stack, m.Intr, m.Ports)

	sys, err := NewSystem(m.Ports, m.Intr)
	if err != nil {
		return nil, wrapf("machine.New", Port, err)
	}
	m.System = sys

	text, err := NewTextIO(m.Ports)
	if err != nil {
		return nil, wrapf("machine.New", Port, err)
	}
	m.TextIO = text

	file, err := NewFile(m.Ports, m.Mem, baseDir)
	if err != nil {
		return nil, wrapf("machine.New", Port, err)
	}
	m.File = file

	m.Disks = NewDisks(m.Mem, m.Ports)

	host, err := NewGraphicsHost()
	if err != nil {
		return nil, wrapf("machine.New", Extern, err)
	}
	gfx, err := NewGraphics(m.Mem, m.Ports, host, 640, 480)
	if err != nil {
		return nil, wrapf("machine.New", Extern, err)
	}
	m.Graphics = gfx

	kbd, err := NewKeyboard(m.Ports, m.Intr)
	if err != nil {
		return nil, wrapf("machine.New", Port, err)
	}
	m.Keyboard = kbd

	return m, nil
}

// LoadFirmware copies filename's contents to guest address loc.
func (m *Machine) LoadFirmware(loc uint32, filename string, readFile func(string) ([]byte, error)) error {
	data, err := readFile(filename)
	if err != nil {
		return wrapf("machine.LoadFirmware", File, err)
	}
	m.Mem.WriteMem(loc, data)
	return nil
}

// LoadDisk binds filename as the next disk slot.
func (m *Machine) LoadDisk(filename string) error {
	id, err := m.Disks.Install(filename)
	if err != nil {
		return err
	}
	m.diskIDs = append(m.diskIDs, id)
	m.log.Info("disk bound", "id", id, "file", filename)
	return nil
}

// Run starts the CPU worker goroutine, opens the graphics window on the
// calling goroutine, and blocks until the window closes or the CPU halts.
func (m *Machine) Run() error {
	if err := m.Graphics.Begin(m.Keyboard, m.Intr); err != nil {
		return err
	}

	m.textHost = NewTextIOHost(m.TextIO)
	m.textHost.Start()

	m.CPU.Begin()

	go func() {
		m.CPU.WaitEnd()
		m.Graphics.Stop()
	}()

	err := m.Graphics.Run()

	m.CPU.QueueHalt()
	m.CPU.WaitEnd()
	m.textHost.Stop()

	return err
}

// Shutdown tears down devices in the reverse of their install order.
func (m *Machine) Shutdown() {
	for i := len(m.diskIDs) - 1; i >= 0; i-- {
		_ = m.Disks.Remove(m.diskIDs[i])
	}
	_ = m.Ports.Remove(m.Keyboard.port)
	_ = m.Ports.Remove(m.Graphics.dataPort)
	_ = m.Ports.Remove(m.Graphics.cmdPort)
	for i := 0; i < gfxBlocksNeeded; i++ {
		_ = m.Mem.UnmapDevice(GfxMmapStart + uint32(i)*MemBlockSize)
	}
	_ = m.Ports.Remove(m.File.dataPort)
	_ = m.Ports.Remove(m.File.cmdPort)
	_ = m.Ports.Remove(m.TextIO.port)
	_ = m.Ports.Remove(m.System.port)
}
