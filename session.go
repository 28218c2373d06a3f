package skt

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"

	"github.com/skt-project/skt-server/openpgpengine"
	"github.com/skt-project/skt-server/tlspsk"
	"github.com/skt-project/skt-server/transport"
)

// State is one of the Session State Machine's nine states (spec.md §4.6).
type State int

const (
	StateInit State = iota
	StateListening
	StateConnected
	StateHandshaking
	StateReady
	StateActive
	StatePassive
	StateClosing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateListening:
		return "Listening"
	case StateConnected:
		return "Connected"
	case StateHandshaking:
		return "Handshaking"
	case StateReady:
		return "Ready"
	case StateActive:
		return "Active"
	case StatePassive:
		return "Passive"
	case StateClosing:
		return "Closing"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Role is the post-handshake commitment: who sends, who receives.
type Role int

const (
	RoleUndecided Role = iota
	RoleActive
	RolePassive
)

// ErrProtocolViolation is returned when an inbound application-data record
// arrives while Active (invariant I1), terminating the session.
var ErrProtocolViolation = errors.New("skt: protocol violation: inbound record while Active")

// ExportSource supplies the bytes an Active session pushes to the peer
// (the contents of the host secret key chosen from the menu, or a
// caller-supplied key loaded from the command line per spec.md §6).
type ExportSource interface {
	Export(keyID string) ([]byte, error)
}

// ImportSink receives the reassembled armor block bytes recognized by the
// Passive framer.
type ImportSink interface {
	Import(armored []byte) ([]openpgpengine.KeyInfo, error)
	Close() error
	Dir() string
}

// EphemeralFactory lazily creates the Ephemeral OpenPGP context the first
// time it's needed, bound to baseDir (spec.md §3's XDG_RUNTIME_DIR /
// TMPDIR / /tmp fallback chain, resolved by the caller before Run starts).
type EphemeralFactory func(baseDir string) (ImportSink, error)

// Session is the single long-lived entity of the program (spec.md §3): it
// owns the PSK, the listening/accepted connection, the TLS-PSK engine, the
// OpenPGP contexts, the armor framer, and the interactive menu. All of its
// state is read and mutated from exactly one goroutine -- the Run select
// loop -- matching the "no locks" concurrency model of spec.md §5: worker
// goroutines (tcpReader, keyReader) only ever send values over channels,
// they never touch Session fields themselves.
type Session struct {
	Logger  *log.Logger
	Verbose int

	PSK  tlspsk.PSK
	Addr net.IP
	Port int

	EphemeralBaseDir string
	NewEphemeral     EphemeralFactory

	// Host is the export source for Active mode. With a key path argument
	// it holds the keys loaded from that path; with no argument it holds
	// the user's default keyring (openpgpengine.NewDefaultHost). It is nil
	// only when the default keyring could not be read, and a nil Host
	// simply means Active mode is unavailable this run.
	Host    ExportSource
	Catalog []openpgpengine.KeyInfo

	state State
	role  Role

	listener *transport.Listener
	conn     net.Conn
	engine   *tlspsk.Engine
	armor    ArmorFramer
	ephem    ImportSink

	menu     *Menu
	terminal *Terminal
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

const readChunkSize = 4096

type readResult struct {
	data []byte
	err  error
}

// Run drives the session to completion: accept, handshake, role
// commitment, streaming, teardown. It returns nil on any clean completion
// (including an expected peer disconnect) and a non-nil error otherwise,
// matching the exit-code contract of spec.md §6.
func (s *Session) Run(listener *transport.Listener) error {
	s.listener = listener
	s.state = StateListening
	s.logf(1, "listening on %s", listener.Addr())

	conn, err := listener.Accept()
	if err != nil {
		return fmt.Errorf("skt: accept failed: %w", err)
	}
	s.conn = conn
	s.state = StateConnected
	s.logf(1, "accepted connection from %s", conn.RemoteAddr())
	defer s.teardown()

	s.engine = tlspsk.NewEngine(s.PSK)
	s.state = StateHandshaking

	reads := make(chan readResult, 16)
	go tcpReader(conn, reads)

	var keys chan byte
	if term, err := NewTerminal(int(os.Stdin.Fd())); err == nil {
		s.terminal = term
		keys = make(chan byte, 16)
		go keyReader(os.Stdin, keys)
	} else {
		s.logf(1, "terminal unavailable, continuing in passive-only mode: %v", err)
	}

	for {
		select {
		case r, ok := <-reads:
			if !ok {
				reads = nil
				continue
			}
			if r.err != nil {
				if s.state == StateActive || s.state == StatePassive {
					s.logf(1, "peer closed connection: %v", r.err)
					return s.finish(nil)
				}
				return s.finish(fmt.Errorf("skt: connection error: %w", r.err))
			}
			if err := s.onBytes(r.data); err != nil {
				return s.finish(err)
			}
			if s.state == StateClosing {
				return nil
			}

		case b, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			if err := s.onKey(b); err != nil {
				return s.finish(err)
			}
			if s.state == StateClosing {
				return nil
			}
		}
	}
}

func tcpReader(conn net.Conn, out chan<- readResult) {
	defer close(out)
	buf := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := append([]byte{}, buf[:n]...)
			out <- readResult{data: chunk}
		}
		if err != nil {
			out <- readResult{err: err}
			return
		}
	}
}

func keyReader(r io.Reader, out chan<- byte) {
	defer close(out)
	for {
		b, err := ReadByte(r)
		if err != nil {
			return
		}
		out <- b
	}
}

func (s *Session) onBytes(data []byte) error {
	switch s.state {
	case StateHandshaking:
		s.engine.Feed(data)
		outbound, established, err := s.engine.AdvanceHandshake()
		if err != nil {
			return fmt.Errorf("skt: handshake failed: %w", err)
		}
		if outbound != nil {
			if _, err := s.conn.Write(outbound); err != nil {
				return fmt.Errorf("skt: writing handshake response: %w", err)
			}
		}
		if established {
			s.state = StateReady
			s.logf(1, "handshake complete")
			if s.menu == nil && len(s.Catalog) > 0 {
				s.menu = NewMenu(s.Catalog, os.Stdout)
			}
			if s.menu != nil {
				if err := s.menu.Render(); err != nil {
					return err
				}
			}
		}
		return nil

	case StateReady, StatePassive:
		s.engine.Feed(data)
		return s.drainRecords()

	case StateActive:
		// Invariant I1: any inbound application-data record while Active
		// is a protocol violation.
		s.engine.Feed(data)
		payload, err := s.engine.RecvRecord()
		if errors.Is(err, tlspsk.ErrAgain) {
			return nil
		}
		if err != nil || payload != nil {
			return ErrProtocolViolation
		}
		return nil

	default:
		return nil
	}
}

func (s *Session) drainRecords() error {
	for {
		payload, err := s.engine.RecvRecord()
		if errors.Is(err, tlspsk.ErrAgain) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("skt: record decode failed: %w", err)
		}

		if s.role == RoleUndecided {
			s.role = RolePassive
			s.state = StatePassive
			s.logf(1, "committing to passive role: inbound record received before local selection")
			if err := s.ensureEphemeral(); err != nil {
				return err
			}
		}

		s.armor.Feed(payload)
		for {
			block, ok, aerr := s.armor.Next()
			if aerr != nil {
				return aerr
			}
			if !ok {
				break
			}
			if _, err := s.ephem.Import(block); err != nil {
				s.logf(0, "import failed, discarding block and continuing: %v", err)
				continue
			}
			s.logf(1, "imported key block into ephemeral homedir %s", s.ephem.Dir())
		}
	}
}

func (s *Session) ensureEphemeral() error {
	if s.ephem != nil {
		return nil
	}
	ephem, err := s.NewEphemeral(s.EphemeralBaseDir)
	if err != nil {
		return fmt.Errorf("skt: failed to create ephemeral homedir: %w", err)
	}
	s.ephem = ephem
	return nil
}

func (s *Session) onKey(b byte) error {
	action, selection := ClassifyKey(b)
	if action == ActionQuit {
		s.logf(1, "user requested close")
		return s.finish(nil)
	}
	if s.state != StateReady {
		return nil // selection/pagination only apply while Ready
	}
	switch action {
	case ActionPageNext:
		if s.menu != nil {
			s.menu.Advance()
			return s.menu.Render()
		}
		return nil
	case ActionSendFile:
		s.logf(2, "send-a-file (digit 0) is not implemented")
		return nil
	case ActionSelect:
		if s.menu == nil {
			return nil
		}
		info, ok := s.menu.Selected(selection)
		if !ok {
			return nil
		}
		return s.sendKey(info)
	default:
		s.logf(3, "ignoring unrecognized key %#x", b)
		return nil
	}
}

// sendKey commits to Active and exports/sends the chosen key. Per spec.md
// §5's documented design choice, the export call runs synchronously on
// this goroutine's behalf; see SPEC_FULL.md §13 for why this stays a
// synchronous call rather than moving to a worker.
func (s *Session) sendKey(info openpgpengine.KeyInfo) error {
	if s.Host == nil {
		s.logf(0, "no host keyring loaded, cannot export")
		return nil
	}
	s.role = RoleActive
	s.state = StateActive
	s.logf(1, "committing to active role: exporting %s", info.Fingerprint)

	armored, err := s.Host.Export(info.KeyID)
	if err != nil {
		return fmt.Errorf("skt: export failed: %w", err)
	}
	wire, err := s.engine.SendRecord(armored)
	if err != nil {
		return fmt.Errorf("skt: framing export failed: %w", err)
	}
	if _, err := s.conn.Write(wire); err != nil {
		return fmt.Errorf("skt: writing export failed: %w", err)
	}
	s.logf(1, "export complete, closing")
	return s.finish(nil)
}

// finish marks the session Closing and hands back cause. Run then returns,
// and its deferred teardown moves Closing -> Done in the order the original
// implementation's its_all_over() uses: TLS/connection first, terminal
// mode second (SPEC_FULL.md §12).
func (s *Session) finish(cause error) error {
	s.state = StateClosing
	return cause
}

func (s *Session) teardown() {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.terminal != nil {
		if err := s.terminal.Restore(); err != nil {
			s.logf(0, "failed to restore terminal mode: %v", err)
		}
	}
	if s.ephem != nil {
		if err := s.ephem.Close(); err != nil {
			s.logf(0, "failed to remove ephemeral homedir: %v", err)
		}
	}
	s.PSK.Zero()
	s.state = StateDone
}

func (s *Session) logf(minVerbose int, format string, v ...interface{}) {
	if s.Logger == nil || s.Verbose < minVerbose {
		return
	}
	s.Logger.Printf("[INFO] "+format, v...)
}
