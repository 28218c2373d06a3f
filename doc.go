// Package skt implements the secure transfer session: the joint state
// machine that generates and advertises a PSK, drives the TLS-PSK
// handshake to completion, commits to an active (export) or passive
// (import) role, frames OpenPGP armor blocks on the wire, and drives the
// interactive key-selection menu.
//
// This is the repository's core, the equivalent of the teacher's own
// top-level obfs4 package (obfs4.go, packet.go before adaptation):
// everything downstream of the transport and crypto primitives lives here,
// and everything upstream (tlspsk, openpgpengine, qr, transport, addrsel)
// is a leaf package this one composes.
package skt
