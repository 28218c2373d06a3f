// Command skt-server is the CLI entrypoint for the openpgp-skt daemon: it
// resolves the environment (spec.md §6), chooses an address, advertises a
// PSK-bearing URL and QR code, and runs exactly one session to completion.
//
// There are no flags, matching the original's argc/argv handling in
// main() (_examples/original_source/skt-server.c): a single optional
// positional argument selects active mode, and two environment variables
// (LOG_LEVEL, XDG_RUNTIME_DIR/TMPDIR) are read directly via os.Getenv, the
// same way the teacher's own binaries (obfs4-client, obfs4-server) avoid
// the flag package entirely and read os.Args/os.Getenv by hand when the
// surface is this small.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"

	skt "github.com/skt-project/skt-server"
	"github.com/skt-project/skt-server/addrsel"
	"github.com/skt-project/skt-server/openpgpengine"
	"github.com/skt-project/skt-server/tlspsk"
	"github.com/skt-project/skt-server/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	verbose := logLevel()
	logger := log.New(os.Stderr, "", log.LstdFlags)

	var activeHost *openpgpengine.Host
	var catalog []openpgpengine.KeyInfo
	if len(os.Args) > 1 {
		host, err := loadActiveKey(os.Args[1])
		if err != nil {
			logger.Printf("[ERROR] %v", err)
			return 1
		}
		activeHost = host
		catalog = host.List()
		if len(catalog) == 0 {
			logger.Printf("[ERROR] %s contains no secret keys", os.Args[1])
			return 1
		}
	} else {
		// spec.md §6/§4.5: with no path argument, Host still points at the
		// user's default OpenPGP configuration, not nothing. A missing or
		// unreadable default keyring only disables Active mode for this
		// run -- it is never a startup failure, since Passive (receiving)
		// requires no local keyring at all.
		host, err := openpgpengine.NewDefaultHost()
		switch {
		case err == nil:
			activeHost = host
			catalog = host.List()
			if verbose > 0 {
				logger.Printf("[INFO] loaded %d secret key(s) from default keyring", len(catalog))
			}
		case errors.Is(err, openpgpengine.ErrNoDefaultKeyring):
			if verbose > 0 {
				logger.Printf("[INFO] no default keyring found, active mode unavailable this run")
			}
		default:
			logger.Printf("[WARN] loading default keyring: %v", err)
		}
	}

	addr, err := addrsel.Choose(logger, verbose)
	if err != nil {
		logger.Printf("[ERROR] startup: %v", err)
		return 1
	}

	listener, err := transport.Listen(addr)
	if err != nil {
		logger.Printf("[ERROR] startup: %v", err)
		return 1
	}

	psk, err := tlspsk.NewPSK()
	if err != nil {
		logger.Printf("[ERROR] startup: %v", err)
		listener.Close()
		return 1
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		logger.Printf("[ERROR] startup: listener address is not a TCP address")
		listener.Close()
		return 1
	}
	port := tcpAddr.Port

	if err := skt.Advertise(os.Stdout, psk, addr, port); err != nil {
		logger.Printf("[ERROR] %v", err)
		listener.Close()
		return 1
	}
	if verbose > 0 {
		logger.Printf("[INFO] manual test hint: gnutls-cli --port=%d --pskusername=%s --pskkey=%s "+
			"--priority NONE:+VERS-TLS1.2:+ECDHE-PSK:+AES-128-GCM:+AEAD:+CURVE-X25519:+COMP-NULL:+SIGN-ALL %s",
			port, tlspsk.IdentityHint, psk.Hex(), addr)
	}

	baseDir := runtimeDir(logger, verbose)

	session := &skt.Session{
		Logger:           logger,
		Verbose:          verbose,
		PSK:              psk,
		Addr:             addr,
		Port:             port,
		EphemeralBaseDir: baseDir,
		NewEphemeral: func(dir string) (skt.ImportSink, error) {
			return openpgpengine.NewEphemeral(dir)
		},
		Host:    activeHostSource(activeHost),
		Catalog: catalog,
	}

	if err := session.Run(listener); err != nil {
		logger.Printf("[ERROR] %v", err)
		return 1
	}
	return 0
}

func activeHostSource(h *openpgpengine.Host) skt.ExportSource {
	if h == nil {
		return nil
	}
	return h
}

func loadActiveKey(path string) (*openpgpengine.Host, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	host, err := openpgpengine.NewHost(r)
	if err != nil {
		return nil, fmt.Errorf("loading key from %s: %w", path, err)
	}
	return host, nil
}

// logLevel reads LOG_LEVEL directly, defaulting to 0, matching the
// original's reliance on a plain integer environment variable rather than
// a flags/config library (SPEC_FULL.md §10's Configuration note).
func logLevel() int {
	v := os.Getenv("LOG_LEVEL")
	if v == "" {
		return 0
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// runtimeDir resolves the ephemeral homedir's parent directory per
// spec.md §6/§9: XDG_RUNTIME_DIR if set and writable, else TMPDIR, else
// /tmp. Unlike the original (which appears to overwrite the variable with
// a guessed /run/user/<uid> path), this uses whatever is set verbatim,
// resolving SPEC_FULL.md §13's open question as documented there.
func runtimeDir(logger *log.Logger, verbose int) string {
	for _, candidate := range []string{os.Getenv("XDG_RUNTIME_DIR"), os.Getenv("TMPDIR")} {
		if candidate == "" {
			continue
		}
		if writable(candidate) {
			return candidate
		}
		if verbose > 0 {
			logger.Printf("[WARN] %s is not writable, falling through", candidate)
		}
	}
	return os.TempDir()
}

// writable reports whether dir exists and is writable. The platform-
// specific half (writableAccess, in writable_unix.go/writable_other.go)
// does the actual probe; this wraps it with the directory-exists check
// shared by both platforms.
func writable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	return writableAccess(dir)
}
