// device_disk.go - up to 256 file-backed 1 MiB disk windows.
//
// Grounded on original_source/disk.c/disk.h: disks map into the top
// DiskMaxDisks blocks of the address space, each with its own command/data
// port pair and a DA_NONE/NUM/SEEK/SYNC/ADDR/BUFSZ state machine. bindDisk's
// partial-failure unwind (undoing exactly the steps that succeeded before
// the error) is reproduced directly from the C source's partial-error
// parameter on unbind_disk.

package main

import (
	"os"
	"sync"
)

const (
	DiskMaxDisks   = 256
	DiskMmapStart  = MemBlockSize * (MemNumBlocks - DiskMaxDisks)
)

const (
	diskNone = iota
	diskNum
	diskSeek
	diskSync
	diskAddr
	diskBufsz
)

const (
	diskOk = iota
	diskWait
	diskError
)

type diskEntry struct {
	active bool
	file   *os.File
	fsize  int64
	buf    []byte
	off    uint32

	cmdPort, dataPort int
	act, res          uint32
	data              uint32
}

// Disks owns the disk slot table and the shared mutex guarding it.
type Disks struct {
	mu       sync.Mutex
	mem      *Memory
	ports    *Ports
	slot     [DiskMaxDisks]diskEntry
	nextFree int
}

func NewDisks(mem *Memory, ports *Ports) *Disks {
	return &Disks{mem: mem, ports: ports}
}

func diskMmapAddr(num int) uint32 { return DiskMmapStart + uint32(num)*MemBlockSize }

// Install binds filename to the lowest free disk slot.
func (d *Disks) Install(filename string) (int, error) {
	d.mu.Lock()
	num := d.nextUnusedLocked()
	d.mu.Unlock()

	err := d.bindDisk(num, filename)
	if err == nil {
		return num, nil
	}

	code := CodeOf(err)
	if code == Invalid || code == Precondition {
		return 0, errf("disks.Install", Precondition)
	}

	d.unbindDisk(num, code)
	d.mu.Lock()
	d.markUnusedLocked(num)
	d.mu.Unlock()
	return 0, err
}

func (d *Disks) Remove(num int) error {
	err := d.unbindDisk(num, NoErr)
	if err == nil || CodeOf(err) == File {
		d.mu.Lock()
		d.markUnusedLocked(num)
		d.mu.Unlock()
	}
	return err
}

func (d *Disks) nextUnusedLocked() int {
	if d.slot[d.nextFree].active {
		for i := 0; i < DiskMaxDisks; i++ {
			if !d.slot[i].active {
				d.nextFree = i
				break
			}
		}
	}
	ret := d.nextFree
	d.nextFree++
	if d.nextFree >= DiskMaxDisks {
		d.nextFree = 0
	}
	return ret
}

func (d *Disks) markUnusedLocked(num int) {
	if num < d.nextFree {
		d.nextFree = num
	}
}

func (d *Disks) syncDisk(num int) error {
	d.mu.Lock()
	e := &d.slot[num]
	if !e.active {
		d.mu.Unlock()
		return errf("disks.sync", Precondition)
	}
	file, buf, off := e.file, e.buf, e.off
	d.mu.Unlock()

	if _, err := file.WriteAt(buf, int64(off)); err != nil {
		return wrapf("disks.sync", File, err)
	}
	return nil
}

func (d *Disks) seekDisk(num int, newOff uint32) error {
	d.mu.Lock()
	e := &d.slot[num]
	if int64(e.fsize)-int64(newOff) < MemBlockSize {
		d.mu.Unlock()
		return errf("disks.seek", Invalid)
	}
	if !e.active {
		d.mu.Unlock()
		return errf("disks.seek", Precondition)
	}
	file, buf := e.file, e.buf
	d.mu.Unlock()

	n, err := file.ReadAt(buf, int64(newOff))
	if err != nil && n == 0 {
		return wrapf("disks.seek", File, err)
	}

	d.mu.Lock()
	e.off = newOff
	d.mu.Unlock()
	return nil
}

func (d *Disks) bindDisk(num int, filename string) error {
	d.mu.Lock()
	e := &d.slot[num]
	if e.active {
		d.mu.Unlock()
		return errf("disks.bind", Precondition)
	}
	e.active = true
	d.mu.Unlock()

	file, err := os.OpenFile(filename, os.O_RDWR, 0)
	if err != nil {
		return wrapf("disks.bind", File, err)
	}
	d.mu.Lock()
	e.file = file
	d.mu.Unlock()

	info, err := file.Stat()
	if err != nil {
		return wrapf("disks.bind", Extern, err)
	}
	if info.Size() < MemBlockSize {
		return errf("disks.bind", Extern)
	}

	d.mu.Lock()
	e.fsize = info.Size()
	e.buf = make([]byte, MemBlockSize)
	d.mu.Unlock()

	if err := d.seekDisk(num, 0); err != nil {
		return wrapf("disks.bind", Extern, err)
	}

	if err := d.mem.MapDevice(diskMmapAddr(num), e.buf); err != nil {
		return wrapf("disks.bind", NoMem, err)
	}

	cmdID, err := d.ports.Install("Disk v1 command", d.commandWrite(num), d.commandRead(num))
	if err != nil {
		return errf("disks.bind", Port)
	}
	dataID, err := d.ports.Install("Disk v1 data", d.dataWrite(num), d.dataRead(num))
	if err != nil {
		_ = d.ports.Remove(cmdID)
		return errf("disks.bind", Port)
	}

	d.mu.Lock()
	e.cmdPort, e.dataPort = cmdID, dataID
	d.mu.Unlock()
	return nil
}

// unbindDisk reverses exactly the steps that bindDisk completed before
// failing with code `partial` (NoErr means a full, successful unbind).
func (d *Disks) unbindDisk(num int, partial Code) error {
	d.mu.Lock()
	e := &d.slot[num]
	if !e.active {
		d.mu.Unlock()
		return errf("disks.unbind", Precondition)
	}
	d.mu.Unlock()

	var syncErr error
	if partial == NoErr {
		syncErr = d.syncDisk(num)
	}

	d.mu.Lock()
	e.active = false
	e.off = 0
	e.fsize = 0
	d.mu.Unlock()

	if partial == File {
		return syncErr
	}

	d.mu.Lock()
	file := e.file
	e.file = nil
	d.mu.Unlock()
	if file != nil {
		_ = file.Close()
	}

	if partial == NoMem || partial == Extern {
		return syncErr
	}

	_ = d.mem.UnmapDevice(diskMmapAddr(num))
	d.mu.Lock()
	e.buf = nil
	d.mu.Unlock()

	if partial == Port {
		return syncErr
	}

	d.mu.Lock()
	cmdID, dataID := e.cmdPort, e.dataPort
	e.cmdPort, e.dataPort = 0, 0
	d.mu.Unlock()
	_ = d.ports.Remove(cmdID)
	_ = d.ports.Remove(dataID)

	return syncErr
}

func (d *Disks) commandWrite(num int) PortWriteFunc {
	return func(_ int, command uint32) {
		d.mu.Lock()
		e := &d.slot[num]
		e.act = command
		if e.act == diskNone {
			e.res = diskOk
		} else {
			e.res = diskWait
		}
		d.mu.Unlock()
	}
}

func (d *Disks) commandRead(num int) PortReadFunc {
	return func(_ int) uint32 {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.slot[num].res
	}
}

func (d *Disks) dataWrite(num int) PortWriteFunc {
	return func(_ int, data uint32) {
		d.mu.Lock()
		e := &d.slot[num]
		e.data = data
		active, act := e.active, e.act
		d.mu.Unlock()

		if !active {
			d.setRes(num, diskError)
			return
		}

		switch act {
		case diskSeek:
			if d.seekDisk(num, data) == nil {
				d.setRes(num, diskOk)
			} else {
				d.setRes(num, diskError)
			}
		case diskSync:
			if d.syncDisk(num) == nil {
				d.setRes(num, diskOk)
			} else {
				d.setRes(num, diskError)
			}
		default:
			d.setRes(num, diskError)
		}
	}
}

func (d *Disks) dataRead(num int) PortReadFunc {
	return func(_ int) uint32 {
		d.mu.Lock()
		e := &d.slot[num]
		active, act, off := e.active, e.act, e.off
		d.mu.Unlock()

		if !active {
			d.setRes(num, diskError)
			return 0
		}

		switch act {
		case diskNum:
			d.setRes(num, diskOk)
			return uint32(num)
		case diskSeek:
			d.setRes(num, diskOk)
			return off
		case diskAddr:
			d.setRes(num, diskOk)
			return diskMmapAddr(num)
		case diskBufsz:
			d.setRes(num, diskOk)
			return MemBlockSize
		default:
			d.setRes(num, diskError)
			return 0
		}
	}
}

func (d *Disks) setRes(num int, res uint32) {
	d.mu.Lock()
	d.slot[num].res = res
	d.mu.Unlock()
}
