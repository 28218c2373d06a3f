package tlspsk

import (
	"crypto/hmac"
	"crypto/sha256"
)

// pHash implements the P_hash expansion function of RFC 5246 §5, iterated
// with HMAC-SHA256 (every cipher suite this package offers is a "_SHA256"
// suite, so there is only ever one PRF hash to implement).
//
//	A(0) = seed
//	A(i) = HMAC_hash(secret, A(i-1))
//	P_hash(secret, seed) = HMAC_hash(secret, A(1) + seed) +
//	                       HMAC_hash(secret, A(2) + seed) + ...
func pHash(secret, seed []byte, length int) []byte {
	out := make([]byte, 0, length+sha256.Size)

	a := seed
	for len(out) < length {
		mac := hmac.New(sha256.New, secret)
		mac.Write(a)
		a = mac.Sum(nil)

		mac = hmac.New(sha256.New, secret)
		mac.Write(a)
		mac.Write(seed)
		out = append(out, mac.Sum(nil)...)
	}
	return out[:length]
}

// prf is the TLS 1.2 PRF of RFC 5246 §5: P_hash(secret, label + seed).
func prf(secret []byte, label string, seed []byte, length int) []byte {
	labelAndSeed := make([]byte, 0, len(label)+len(seed))
	labelAndSeed = append(labelAndSeed, []byte(label)...)
	labelAndSeed = append(labelAndSeed, seed...)
	return pHash(secret, labelAndSeed, length)
}
