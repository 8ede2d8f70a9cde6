// device_system.go - system control port: reset, halt, and port-ident lookup.
//
// Grounded on original_source/sysp.c. One port implements a three-state
// command protocol: CLEAR resets the state machine, any other command_part
// starts an operation (command_issue -> MID), the next write supplies its
// operand (MID -> DONE), and command_execute (reads of the same port)
// dispatches on the completed operation. PORTINFO streams an ident string
// one byte per read until the terminating NUL.

package main

import "sync"

const (
	sysClear    = 0
	sysReset    = 1
	sysHalt     = 2
	sysPortInfo = 3
)

type sysCmdState int

const (
	sysCmdStart sysCmdState = iota
	sysCmdMid
	sysCmdDone
)

type System struct {
	mu    sync.Mutex
	state sysCmdState
	act   uint32
	data  uint32

	identState sysCmdState
	ident      string
	identPos   int

	ports *Ports
	intr  *Interrupts
	port  int
}

func NewSystem(ports *Ports, intr *Interrupts) (*System, error) {
	s := &System{ports: ports, intr: intr}
	id, err := ports.Install("System command", s.issue, s.execute)
	if err != nil {
		return nil, err
	}
	s.port = id
	return s, nil
}

func (s *System) issue(_ int, commandPart uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case sysCmdStart:
		if commandPart == sysClear {
			s.clearLocked()
			s.state = sysCmdStart
		} else {
			s.act = commandPart
			s.state = sysCmdMid
		}
	case sysCmdMid:
		s.data = commandPart
		s.state = sysCmdDone
	case sysCmdDone:
		if commandPart == sysClear {
			s.clearLocked()
			s.state = sysCmdStart
		}
	}
}

func (s *System) execute(_ int) uint32 {
	s.mu.Lock()
	act, data := s.act, s.data
	s.mu.Unlock()

	switch act {
	case sysPortInfo:
		return s.readPortIdent(data)
	case sysReset:
		_ = s.intr.Raise(IntrReset)
		return 0
	case sysHalt:
		_ = s.intr.Raise(IntrHalt)
		return 0
	default:
		return 0
	}
}

func (s *System) clearLocked() {
	s.act = sysClear
	s.data = 0
	s.identState = sysCmdStart
	s.ident = ""
	s.identPos = 0
}

func (s *System) readPortIdent(port uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.identState {
	case sysCmdDone:
		return 0
	default:
		ident, ok := s.ports.Ident(int(port))
		if !ok {
			ident = ""
		}
		s.ident = ident
		s.identPos = 0
		s.identState = sysCmdMid
		fallthrough
	case sysCmdMid:
		if s.identPos >= len(s.ident) {
			s.identState = sysCmdDone
			return 0
		}
		out := s.ident[s.identPos]
		s.identPos++
		if s.identPos >= len(s.ident) {
			s.identState = sysCmdDone
		}
		return uint32(out)
	}
}
