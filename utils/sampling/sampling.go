// Package sampling implements sampling of random numbers from a byte source.
package sampling

import (
	"encoding/binary"
	"math"
)

// RandFloat64 returns a float uniformly distributed in [min, max) drawn from prng.
func RandFloat64(prng PRNG, min, max float64) float64 {
	b := []byte{0, 0, 0, 0, 0, 0, 0, 0}
	if _, err := prng.Read(b); err != nil {
		panic(err)
	}
	// 53 random bits
	f := float64(binary.LittleEndian.Uint64(b)>>11) / (1 << 53)
	return min + f*(max-min)
}

// RandUnitComplex returns a complex number of modulus one with a uniformly distributed argument.
func RandUnitComplex(prng PRNG) complex128 {
	theta := RandFloat64(prng, 0, 2*math.Pi)
	return complex(math.Cos(theta), math.Sin(theta))
}
