// device_file.go - supplemental sandboxed host file-access device.
//
// Port-based protocol per this repository's design (not present in the
// distilled spec; folded in from original_source/fwload.c's bulk-load shape
// and the teacher's file_io.go, whose sanitizePath/readFileName logic is
// reused directly). One command/data port pair: latch a command action,
// then feed its operand(s) through the data port; Read/Write fire
// immediately and report status via the command port, result length via
// the data port.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	fileNone = iota
	fileSetNamePtr
	fileSetDataPtr
	fileSetDataLen
	fileRead
	fileWrite
)

const (
	fileOk = iota
	fileError
)

type File struct {
	mu      sync.Mutex
	mem     *Memory
	baseDir string

	act        uint32
	namePtr    uint32
	dataPtr    uint32
	dataLen    uint32
	status     uint32
	resultLen  uint32

	cmdPort  int
	dataPort int
}

func NewFile(ports *Ports, mem *Memory, baseDir string) (*File, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		absBase = baseDir
	}
	f := &File{mem: mem, baseDir: absBase, status: fileOk}

	cmdID, err := ports.Install("File v1 command", f.commandWrite, f.commandRead)
	if err != nil {
		return nil, err
	}
	dataID, err := ports.Install("File v1 data", f.dataWrite, f.dataRead)
	if err != nil {
		_ = ports.Remove(cmdID)
		return nil, err
	}
	f.cmdPort = cmdID
	f.dataPort = dataID
	return f, nil
}

func (f *File) commandWrite(_ int, command uint32) {
	f.mu.Lock()
	f.act = command
	f.mu.Unlock()

	switch command {
	case fileRead:
		f.doRead()
	case fileWrite:
		f.doWrite()
	}
}

func (f *File) commandRead(_ int) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *File) dataWrite(_ int, data uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.act {
	case fileSetNamePtr:
		f.namePtr = data
	case fileSetDataPtr:
		f.dataPtr = data
	case fileSetDataLen:
		f.dataLen = data
	}
}

func (f *File) dataRead(_ int) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resultLen
}

func (f *File) sanitizePath(name string) (string, bool) {
	if filepath.IsAbs(name) || strings.Contains(name, "..") {
		return "", false
	}
	full := filepath.Join(f.baseDir, name)
	rel, err := filepath.Rel(f.baseDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return full, true
}

func (f *File) readFileName() string {
	f.mu.Lock()
	ptr := f.namePtr
	f.mu.Unlock()
	return string(f.mem.ReadString(ptr, 256))
}

func (f *File) doRead() {
	full, ok := f.sanitizePath(f.readFileName())
	if !ok {
		f.fail()
		return
	}

	data, err := os.ReadFile(full)
	if err != nil {
		f.fail()
		return
	}

	f.mu.Lock()
	ptr := f.dataPtr
	f.mu.Unlock()

	f.mem.WriteMem(ptr, data)

	f.mu.Lock()
	f.status = fileOk
	f.resultLen = uint32(len(data))
	f.mu.Unlock()
}

func (f *File) doWrite() {
	full, ok := f.sanitizePath(f.readFileName())
	if !ok {
		f.fail()
		return
	}

	f.mu.Lock()
	ptr, n := f.dataPtr, f.dataLen
	f.mu.Unlock()

	data := f.mem.ReadMem(ptr, n)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		f.fail()
		return
	}

	f.mu.Lock()
	f.status = fileOk
	f.resultLen = uint32(len(data))
	f.mu.Unlock()
}

func (f *File) fail() {
	f.mu.Lock()
	f.status = fileError
	f.resultLen = 0
	f.mu.Unlock()
}
