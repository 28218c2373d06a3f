package tlspsk

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/skt-project/skt-server/csrand"
)

// cipherSuiteECDHEPSKAES128GCMSHA256 is TLS_ECDHE_PSK_WITH_AES_128_GCM_SHA256,
// RFC 8442 -- the one suite this engine ever offers or accepts. It is
// forward-secret (ECDHE), PSK-authenticated, AEAD (AES-128-GCM), and
// excludes every cipher/curve spec.md §4.4 excludes by construction: there
// is nothing else to negotiate down to.
var cipherSuiteECDHEPSKAES128GCMSHA256 = [2]byte{0xD0, 0x01}

// namedCurveX25519 is the NamedCurve codepoint for x25519, RFC 8422 §5.1.1 /
// RFC 7748.
const namedCurveX25519 = 0x001D

type hsPhase int

const (
	phaseAwaitClientHello hsPhase = iota
	phaseAwaitClientKeyExchange
	phaseAwaitClientFinished
	phaseEstablished
	phaseClosed
)

// Engine is the server side of the TLS 1.2 ECDHE-PSK handshake plus the
// established AES-128-GCM record layer. It is driven entirely
// synchronously: Feed appends bytes that arrived from the transport, and
// AdvanceHandshake/RecvRecord attempt to make progress against whatever has
// been fed so far, returning ErrAgain rather than blocking when more input
// is required. This realizes the spec's pull/push bridge (§4.4) adapted to
// a goroutine/channel world instead of a callback-per-readable-event world
// (see SPEC_FULL.md §10): the caller (session.go) owns the actual socket
// I/O, this engine only ever consumes and produces byte slices.
type Engine struct {
	psk   PSK
	phase hsPhase

	inbox []byte // raw bytes fed but not yet split into records

	transcript []byte // concatenated plaintext handshake message bytes, in order

	clientRandom [32]byte
	serverRandom [32]byte

	serverPriv, serverPub [32]byte
	clientECPub           [32]byte

	masterSecret []byte

	read, write *aeadState // nil until the respective direction's CCS

	// readPending/writePending stage the new key_block until the
	// corresponding ChangeCipherSpec activates it, matching real TLS:
	// the negotiated keys exist before either side switches, but only
	// take effect on that direction once its CCS is seen/sent.
	readPending, writePending *aeadState
}

// NewEngine constructs a server-side engine bound to psk.
func NewEngine(psk PSK) *Engine {
	return &Engine{psk: psk, phase: phaseAwaitClientHello}
}

// Feed appends bytes observed from the peer. It never blocks and never
// itself triggers parsing; call AdvanceHandshake or RecvRecord afterwards.
func (e *Engine) Feed(b []byte) {
	e.inbox = append(e.inbox, b...)
}

// AdvanceHandshake is idempotent and safe to call repeatedly (including
// with nothing new fed) until it reports established. It returns the bytes
// that must be written to the peer, if any, on this call.
func (e *Engine) AdvanceHandshake() (outbound []byte, established bool, err error) {
	switch e.phase {
	case phaseEstablished:
		return nil, true, nil
	case phaseClosed:
		return nil, false, errors.New("tlspsk: engine closed")
	}

	for {
		contentType, payload, rest, nerr := nextRecord(e.inbox)
		if errors.Is(nerr, ErrAgain) {
			return outbound, false, nil
		}
		if nerr != nil {
			return e.fail(nerr)
		}

		switch contentType {
		case recordTypeChangeCipherSpec:
			if e.phase != phaseAwaitClientKeyExchange {
				return e.fail(newAlert(alertHandshakeFailure, "unexpected ChangeCipherSpec"))
			}
			if len(payload) != 1 || payload[0] != 1 {
				return e.fail(newAlert(alertHandshakeFailure, "malformed ChangeCipherSpec"))
			}
			if e.readPending == nil {
				return e.fail(newAlert(alertHandshakeFailure, "ChangeCipherSpec before key exchange"))
			}
			e.read = e.readPending
			e.inbox = rest
			e.phase = phaseAwaitClientFinished
			continue

		case recordTypeHandshake:
			plaintext := payload
			if e.phase == phaseAwaitClientFinished {
				// The client's own ChangeCipherSpec has already
				// activated e.read: its Finished arrives as an AEAD
				// record body, not a plaintext handshake message.
				opened, oerr := e.read.open(recordTypeHandshake, payload)
				if oerr != nil {
					return e.fail(oerr)
				}
				plaintext = opened
			}
			out, done, herr := e.onHandshakeRecord(plaintext)
			e.inbox = rest
			if herr != nil {
				return e.fail(herr)
			}
			outbound = append(outbound, out...)
			if done {
				return outbound, true, nil
			}
			continue

		case recordTypeAlert:
			return e.fail(fmt.Errorf("tlspsk: peer sent alert during handshake"))

		default:
			return e.fail(newAlert(alertHandshakeFailure, "unexpected record type during handshake"))
		}
	}
}

// onHandshakeRecord processes every handshake message packed into one
// record (a client is free to coalesce ClientKeyExchange with Finished,
// though in practice a ChangeCipherSpec record always separates the two).
func (e *Engine) onHandshakeRecord(payload []byte) (outbound []byte, established bool, err error) {
	for len(payload) > 0 {
		if len(payload) < 4 {
			return nil, false, newAlert(alertHandshakeFailure, "truncated handshake message")
		}
		msgType := payload[0]
		length := int(payload[1])<<16 | int(payload[2])<<8 | int(payload[3])
		if len(payload) < 4+length {
			return nil, false, newAlert(alertHandshakeFailure, "truncated handshake message body")
		}
		body := payload[4 : 4+length]
		full := payload[:4+length]
		payload = payload[4+length:]

		switch e.phase {
		case phaseAwaitClientHello:
			if msgType != handshakeClientHello {
				return nil, false, newAlert(alertHandshakeFailure, "expected ClientHello")
			}
			if err := e.onClientHello(body); err != nil {
				return nil, false, err
			}
			e.transcript = append(e.transcript, full...)
			flight, err := e.buildServerFlight()
			if err != nil {
				return nil, false, err
			}
			e.phase = phaseAwaitClientKeyExchange
			outbound = append(outbound, flight...)

		case phaseAwaitClientKeyExchange:
			if msgType != handshakeClientKeyExchange {
				return nil, false, newAlert(alertHandshakeFailure, "expected ClientKeyExchange")
			}
			if err := e.onClientKeyExchange(body); err != nil {
				return nil, false, err
			}
			e.transcript = append(e.transcript, full...)

		case phaseAwaitClientFinished:
			if msgType != handshakeFinished {
				return nil, false, newAlert(alertHandshakeFailure, "expected Finished")
			}
			if e.read == nil {
				return nil, false, newAlert(alertHandshakeFailure, "Finished before ChangeCipherSpec")
			}
			if err := e.onClientFinished(body); err != nil {
				return nil, false, err
			}
			// full is the AEAD-opened plaintext Finished message; it
			// joins the transcript so the server's own Finished covers
			// it (RFC 5246 §7.4.9).
			e.transcript = append(e.transcript, full...)
			serverFlight := e.buildServerFinished()
			outbound = append(outbound, serverFlight...)
			e.phase = phaseEstablished
			return outbound, true, nil

		default:
			return nil, false, newAlert(alertHandshakeFailure, "unexpected handshake message")
		}
	}
	return outbound, false, nil
}

// onClientHello records the client random and confirms the client offers
// the one cipher suite this server speaks (RFC 5246 §7.4.1.2).
func (e *Engine) onClientHello(body []byte) error {
	if len(body) < 2+32+1 {
		return newAlert(alertHandshakeFailure, "truncated ClientHello")
	}
	copy(e.clientRandom[:], body[2:34])
	pos := 34

	if pos >= len(body) {
		return newAlert(alertHandshakeFailure, "truncated ClientHello session id")
	}
	sessionIDLen := int(body[pos])
	pos++
	pos += sessionIDLen
	if pos+2 > len(body) {
		return newAlert(alertHandshakeFailure, "truncated ClientHello cipher suites")
	}

	suitesLen := int(binary.BigEndian.Uint16(body[pos : pos+2]))
	pos += 2
	if pos+suitesLen > len(body) {
		return newAlert(alertHandshakeFailure, "truncated ClientHello cipher suite list")
	}
	suites := body[pos : pos+suitesLen]
	pos += suitesLen

	found := false
	for i := 0; i+1 < len(suites); i += 2 {
		if suites[i] == cipherSuiteECDHEPSKAES128GCMSHA256[0] && suites[i+1] == cipherSuiteECDHEPSKAES128GCMSHA256[1] {
			found = true
			break
		}
	}
	if !found {
		return newAlert(alertHandshakeFailure, "client does not offer TLS_ECDHE_PSK_WITH_AES_128_GCM_SHA256")
	}

	// Compression methods and extensions (supported_groups, etc.) are not
	// interpreted: this server only ever offers x25519 and there is
	// nothing to negotiate beyond the single cipher suite already
	// checked above.
	return nil
}

// buildServerFlight constructs ServerHello + ServerKeyExchange +
// ServerHelloDone (RFC 5246 §7.4, RFC 4492 §5.4) as one outbound handshake
// flight, generating the server's ephemeral X25519 keypair along the way.
func (e *Engine) buildServerFlight() ([]byte, error) {
	if err := csrand.Bytes(e.serverRandom[:]); err != nil {
		return nil, fmt.Errorf("tlspsk: failed to generate server random: %w", err)
	}
	if err := csrand.Bytes(e.serverPriv[:]); err != nil {
		return nil, fmt.Errorf("tlspsk: failed to generate ephemeral key: %w", err)
	}
	curve25519.ScalarBaseMult(&e.serverPub, &e.serverPriv)

	serverHello := buildServerHello(e.serverRandom)
	serverKeyExchange := buildServerKeyExchange(e.serverPub)
	serverHelloDone := wrapHandshake(handshakeServerHelloDone, nil)

	e.transcript = append(e.transcript, serverHello...)
	e.transcript = append(e.transcript, serverKeyExchange...)
	e.transcript = append(e.transcript, serverHelloDone...)

	var out []byte
	out = appendRecord(out, recordTypeHandshake, serverHello)
	out = appendRecord(out, recordTypeHandshake, serverKeyExchange)
	out = appendRecord(out, recordTypeHandshake, serverHelloDone)
	return out, nil
}

func buildServerHello(serverRandom [32]byte) []byte {
	body := make([]byte, 0, 2+32+1+2+1+2)
	body = append(body, versionMajor, versionMinor)
	body = append(body, serverRandom[:]...)
	body = append(body, 0) // session_id: empty
	body = append(body, cipherSuiteECDHEPSKAES128GCMSHA256[:]...)
	body = append(body, 0)    // compression_method: null
	body = append(body, 0, 0) // extensions: none
	return wrapHandshake(handshakeServerHello, body)
}

// buildServerKeyExchange encodes the PSK identity hint plus the ECDHE
// server params, RFC 4279 §3 + RFC 4492 §5.4. There is no signature: PSK
// cipher suites authenticate via possession of the key, not a certificate.
func buildServerKeyExchange(serverPub [32]byte) []byte {
	body := make([]byte, 0, 2+len(IdentityHint)+1+2+1+32)
	body = append(body, byte(len(IdentityHint)>>8), byte(len(IdentityHint)))
	body = append(body, []byte(IdentityHint)...)

	body = append(body, 3) // ECCurveType.named_curve
	body = append(body, byte(namedCurveX25519>>8), byte(namedCurveX25519))
	body = append(body, byte(len(serverPub)))
	body = append(body, serverPub[:]...)
	return wrapHandshake(handshakeServerKeyExchange, body)
}

// onClientKeyExchange reads the (ignored) PSK identity and the client's
// ECDHE public key, then derives the master secret per RFC 5489 §2: the
// premaster secret is the ECDHE shared secret and the PSK, each length-
// prefixed. The peer-supplied identity is intentionally never logged or
// interpreted (spec.md §4.4: "must not be logged at default verbosity nor
// interpreted") -- the PSK returned is always e.psk, regardless of what
// identity string the client sent.
func (e *Engine) onClientKeyExchange(body []byte) error {
	if len(body) < 2 {
		return newAlert(alertHandshakeFailure, "truncated ClientKeyExchange")
	}
	idLen := int(binary.BigEndian.Uint16(body[:2]))
	pos := 2 + idLen
	if pos >= len(body) {
		return newAlert(alertHandshakeFailure, "truncated ClientKeyExchange identity")
	}
	_ = body[2:pos] // peer identity: untrusted, deliberately unused

	pubLen := int(body[pos])
	pos++
	if pubLen != 32 || pos+pubLen > len(body) {
		return newAlert(alertHandshakeFailure, "malformed ClientKeyExchange ECDHE key")
	}
	copy(e.clientECPub[:], body[pos:pos+pubLen])

	var shared [32]byte
	curve25519.ScalarMult(&shared, &e.serverPriv, &e.clientECPub)

	premaster := make([]byte, 0, 2+32+2+PSKLength)
	premaster = append(premaster, 0, 32)
	premaster = append(premaster, shared[:]...)
	premaster = append(premaster, 0, PSKLength)
	premaster = append(premaster, e.psk[:]...)

	seed := append(append([]byte{}, e.clientRandom[:]...), e.serverRandom[:]...)
	e.masterSecret = prf(premaster, "master secret", seed, 48)

	keyBlockSeed := append(append([]byte{}, e.serverRandom[:]...), e.clientRandom[:]...)
	// AES-128-GCM per RFC 5288: 16-byte key + 4-byte implicit IV (salt)
	// per direction, no separate MAC key (AEAD).
	keyBlock := prf(e.masterSecret, "key expansion", keyBlockSeed, 2*(16+4))

	clientWriteKey := keyBlock[0:16]
	serverWriteKey := keyBlock[16:32]
	clientWriteIV := keyBlock[32:36]
	serverWriteIV := keyBlock[36:40]

	readState, err := newAEADState(clientWriteKey, clientWriteIV)
	if err != nil {
		return err
	}
	writeState, err := newAEADState(serverWriteKey, serverWriteIV)
	if err != nil {
		return err
	}
	e.readPending = readState
	e.writePending = writeState
	return nil
}

// onClientFinished verifies the client's Finished message (RFC 5246
// §7.4.9): verify_data must equal
// PRF(master_secret, "client finished", Hash(handshake_messages))[0:12],
// where the hash covers every handshake message up to but not including
// this Finished. body here has already been AEAD-opened and re-framed as
// a plaintext handshake message by the caller's generic 4-byte-header
// parse, since Finished is the one handshake message this engine ever
// receives under the newly activated read key.
func (e *Engine) onClientFinished(verifyData []byte) error {
	expected := e.finishedVerifyData("client finished")
	if subtle.ConstantTimeCompare(verifyData, expected) != 1 {
		return newAlert(alertDecryptError, "client Finished verify_data mismatch")
	}
	return nil
}

// finishedVerifyData computes PRF(master_secret, label, Hash(transcript))[0:12]
// over the transcript accumulated so far.
func (e *Engine) finishedVerifyData(label string) []byte {
	sum := sha256.Sum256(e.transcript)
	return prf(e.masterSecret, label, sum[:], 12)
}

// buildServerFinished activates the server's write direction (its own
// ChangeCipherSpec) and sends its Finished, completing the handshake.
func (e *Engine) buildServerFinished() []byte {
	var out []byte
	out = appendRecord(out, recordTypeChangeCipherSpec, []byte{1})
	e.write = e.writePending

	verifyData := e.finishedVerifyData("server finished")
	finishedMsg := wrapHandshake(handshakeFinished, verifyData)
	e.transcript = append(e.transcript, finishedMsg...)

	sealed := e.write.seal(recordTypeHandshake, finishedMsg)
	out = appendRecord(out, recordTypeHandshake, sealed)
	return out
}

func wrapHandshake(msgType byte, body []byte) []byte {
	out := make([]byte, 0, 4+len(body))
	out = append(out, msgType, byte(len(body)>>16), byte(len(body)>>8), byte(len(body)))
	return append(out, body...)
}

// fail transitions the engine to closed and returns the terminal error,
// queuing a fatal alert record as the final outbound write when the error
// carries one (spec.md §7: "TlsHandshake -- fatal alert or unexpected
// error" terminates the session; the alert is best-effort since the
// session is tearing the connection down regardless).
func (e *Engine) fail(err error) (outbound []byte, established bool, callErr error) {
	e.phase = phaseClosed
	var ae *alertError
	if errors.As(err, &ae) {
		return ae.record(), false, err
	}
	return nil, false, err
}

// RecvRecord attempts to decode exactly one application-data record from
// whatever has been fed so far. It returns ErrAgain when more bytes are
// required -- the caller's event loop re-enters on the next readable
// event, exactly as spec'd.
func (e *Engine) RecvRecord() ([]byte, error) {
	if e.phase != phaseEstablished {
		return nil, errors.New("tlspsk: handshake not complete")
	}
	contentType, payload, rest, err := nextRecord(e.inbox)
	if err != nil {
		return nil, err
	}
	if contentType == recordTypeAlert {
		e.inbox = rest
		return nil, fmt.Errorf("tlspsk: peer sent alert")
	}
	if contentType != recordTypeApplicationData {
		return nil, newAlert(alertHandshakeFailure, "unexpected record type post-handshake")
	}
	plaintext, err := e.read.open(recordTypeApplicationData, payload)
	if err != nil {
		return nil, err
	}
	e.inbox = rest
	return plaintext, nil
}

// SendRecord frames and seals payload as one or more application-data
// records, returning the wire bytes the caller must write to the
// connection in order.
func (e *Engine) SendRecord(payload []byte) ([]byte, error) {
	if e.phase != phaseEstablished {
		return nil, errors.New("tlspsk: handshake not complete")
	}
	var out []byte
	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > maxRecordPayload-256 {
			chunk = chunk[:maxRecordPayload-256]
		}
		payload = payload[len(chunk):]
		sealed := e.write.seal(recordTypeApplicationData, chunk)
		out = appendRecord(out, recordTypeApplicationData, sealed)
	}
	return out, nil
}

// Close marks the engine as finished; any subsequent calls fail.
func (e *Engine) Close() {
	e.phase = phaseClosed
	e.psk.Zero()
}
