package sampling

import (
	"encoding/binary"
	"io"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// PRNG is an interface for the generation of random bytes.
type PRNG interface {
	io.Reader
}

// KeyedPRNG deterministically generates a sequence of bytes from a key using
// the extendable output function of blake2b. Two KeyedPRNG instantiated with
// the same key produce the same stream, which is what makes seeded numerical
// procedures reproducible across calls.
// WARNING: KeyedPRNG should NOT be read by multiple goroutines: the
// interleaving of the reads would make the sequence non-deterministic.
type KeyedPRNG struct {
	mutex sync.Mutex
	key   []byte
	xof   blake2b.XOF
}

// NewKeyedPRNG creates a new instance of KeyedPRNG.
// Accepts an optional key, else set key=nil which is treated as key=[]byte{}.
func NewKeyedPRNG(key []byte) (*KeyedPRNG, error) {
	var err error
	prng := new(KeyedPRNG)
	prng.key = append([]byte{}, key...)
	prng.xof, err = blake2b.NewXOF(blake2b.OutputLengthUnknown, key)
	return prng, err
}

// NewSeededPRNG creates a KeyedPRNG keyed with the little-endian encoding of seed.
func NewSeededPRNG(seed uint64) (*KeyedPRNG, error) {
	key := make([]byte, 8)
	binary.LittleEndian.PutUint64(key, seed)
	return NewKeyedPRNG(key)
}

// Key returns a copy of the key used to seed the PRNG.
// This value can be used with [NewKeyedPRNG] to instantiate
// a new PRNG that will produce the same stream of bytes.
func (prng *KeyedPRNG) Key() (key []byte) {
	return append([]byte{}, prng.key...)
}

// Read reads bytes from the KeyedPRNG on sum.
func (prng *KeyedPRNG) Read(sum []byte) (n int, err error) {
	prng.mutex.Lock()
	defer prng.mutex.Unlock()
	return prng.xof.Read(sum)
}

// Reset resets the PRNG to its initial state.
func (prng *KeyedPRNG) Reset() {
	prng.mutex.Lock()
	defer prng.mutex.Unlock()
	prng.xof.Reset()
}
