package tlspsk

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
)

// Content types and the wire version, RFC 5246 §6.2.1 / App. A.1.
const (
	recordTypeChangeCipherSpec = 20
	recordTypeAlert            = 21
	recordTypeHandshake        = 22
	recordTypeApplicationData  = 23

	versionMajor = 3
	versionMinor = 3 // TLS 1.2

	recordHeaderLength = 5
)

// Handshake message types, RFC 5246 §7.4 / RFC 4492 §5.
const (
	handshakeClientHello       = 1
	handshakeServerHello       = 2
	handshakeServerKeyExchange = 12
	handshakeServerHelloDone   = 14
	handshakeClientKeyExchange = 16
	handshakeFinished          = 20
)

// Alert levels and descriptions actually raised by this package,
// RFC 5246 §7.2.
const (
	alertLevelFatal = 2

	alertHandshakeFailure = 40
	alertBadRecordMac     = 20
	alertDecryptError     = 51
)

// ErrAgain is returned when the engine requires more transport bytes before
// it can make progress -- the WouldBlock-equivalent sentinel threaded
// through session.go's event loop.
var ErrAgain = errors.New("tlspsk: more data needed")

// alertError is a fatal TLS alert raised by this engine; record() renders
// the alert record (header plus two-byte alert body) the engine hands back
// for the peer before the session tears the connection down.
type alertError struct {
	description byte
	msg         string
}

func (e *alertError) Error() string { return "tlspsk: " + e.msg }

func newAlert(description byte, msg string) *alertError {
	return &alertError{description: description, msg: msg}
}

func (e *alertError) record() []byte {
	return appendRecord(nil, recordTypeAlert, []byte{alertLevelFatal, e.description})
}

// appendRecord appends one TLS record (header + plaintext payload) to dst.
func appendRecord(dst []byte, contentType byte, payload []byte) []byte {
	dst = append(dst, contentType, versionMajor, versionMinor)
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(payload)))
	dst = append(dst, length[:]...)
	return append(dst, payload...)
}

// nextRecord splits one TLS record off the front of buf. It returns
// ErrAgain if buf does not yet hold a complete record.
func nextRecord(buf []byte) (contentType byte, payload, rest []byte, err error) {
	if len(buf) < recordHeaderLength {
		return 0, nil, nil, ErrAgain
	}
	length := int(binary.BigEndian.Uint16(buf[3:5]))
	if length > maxRecordPayload {
		return 0, nil, nil, newAlert(alertHandshakeFailure, "oversized record")
	}
	if len(buf) < recordHeaderLength+length {
		return 0, nil, nil, ErrAgain
	}
	contentType = buf[0]
	payload = buf[recordHeaderLength : recordHeaderLength+length]
	rest = buf[recordHeaderLength+length:]
	return contentType, payload, rest, nil
}

// maxRecordPayload bounds a single TLS record's ciphertext/plaintext
// length; spec.md's traffic is handshake messages and armored key
// blocks, both far under the 2^14 RFC 5246 ceiling, but the framer
// chunks exports into this size anyway (see Engine.SendRecord).
const maxRecordPayload = 16384

// aeadState is one direction's AES-128-GCM record protection state
// (RFC 5288): a 16-byte key, a 4-byte implicit salt drawn from the TLS 1.2
// key_block, and a strictly increasing 64-bit sequence number used as the
// GCM nonce's explicit part.
type aeadState struct {
	aead cipher.AEAD
	salt [4]byte
	seq  uint64
}

func newAEADState(key, salt []byte) (*aeadState, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("tlspsk: aes key schedule: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("tlspsk: gcm init: %w", err)
	}
	s := &aeadState{aead: gcm}
	copy(s.salt[:], salt)
	return s, nil
}

func (s *aeadState) nonce() []byte {
	nonce := make([]byte, 12)
	copy(nonce[:4], s.salt[:])
	binary.BigEndian.PutUint64(nonce[4:], s.seq)
	return nonce
}

func (s *aeadState) aad(contentType byte, length int) []byte {
	aad := make([]byte, 13)
	binary.BigEndian.PutUint64(aad[0:8], s.seq)
	aad[8] = contentType
	aad[9] = versionMajor
	aad[10] = versionMinor
	binary.BigEndian.PutUint16(aad[11:13], uint16(length))
	return aad
}

// seal encrypts plaintext as one AEAD record body (explicit nonce prefix
// followed by GCM ciphertext+tag) and advances the sequence number.
func (s *aeadState) seal(contentType byte, plaintext []byte) []byte {
	aad := s.aad(contentType, len(plaintext))
	nonce := s.nonce()
	sealed := s.aead.Seal(nil, nonce, plaintext, aad)

	out := make([]byte, 8+len(sealed))
	binary.BigEndian.PutUint64(out[:8], s.seq)
	copy(out[8:], sealed)
	s.seq++
	return out
}

// open decrypts an AEAD record body and advances the sequence number. A
// bad_record_mac is the wire-visible signature of a mismatched PSK (end-to-
// end scenario 3 in spec.md §8): every record the peer sends after that
// fails this check identically, and the failure never reveals which byte
// of the key differed.
func (s *aeadState) open(contentType byte, body []byte) ([]byte, error) {
	if len(body) < 8 {
		return nil, newAlert(alertBadRecordMac, "short AEAD record")
	}
	explicitSeq := body[:8]
	ciphertext := body[8:]

	nonce := make([]byte, 12)
	copy(nonce[:4], s.salt[:])
	copy(nonce[4:], explicitSeq)

	plaintextLen := len(ciphertext) - s.aead.Overhead()
	if plaintextLen < 0 {
		return nil, newAlert(alertBadRecordMac, "truncated AEAD record")
	}
	aad := s.aad(contentType, plaintextLen)

	plaintext, err := s.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, newAlert(alertBadRecordMac, "record authentication failed")
	}
	s.seq++
	return plaintext, nil
}
