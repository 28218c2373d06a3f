package qr

// reedSolomonGeneratorPoly returns the generator polynomial of degree
// ecLen used for Reed-Solomon error correction, as coefficients from
// highest to lowest degree, leading coefficient always 1.
func reedSolomonGeneratorPoly(ecLen int) []byte {
	poly := []byte{1}
	for i := 0; i < ecLen; i++ {
		poly = polyMulMonomial(poly, gfExp[i])
	}
	return poly
}

// polyMulMonomial multiplies poly by (x - gfExp[i]), i.e. (x + root) in
// GF(2^8) where subtraction is XOR.
func polyMulMonomial(poly []byte, root byte) []byte {
	out := make([]byte, len(poly)+1)
	for i, coeff := range poly {
		out[i] ^= coeff
		out[i+1] ^= gfMul(coeff, root)
	}
	return out
}

// reedSolomonRemainder computes the ecLen error-correction codewords for a
// block of data codewords, via polynomial long division in GF(256).
func reedSolomonRemainder(data []byte, ecLen int) []byte {
	generator := reedSolomonGeneratorPoly(ecLen)

	remainder := make([]byte, len(data)+ecLen)
	copy(remainder, data)

	for i := 0; i < len(data); i++ {
		coeff := remainder[i]
		if coeff == 0 {
			continue
		}
		for j, g := range generator {
			remainder[i+j] ^= gfMul(g, coeff)
		}
	}

	return remainder[len(data):]
}
