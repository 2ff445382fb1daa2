package hashkit

import "hash/fnv"

// Fnv1a64 folds a 64-bit FNV-1a digest down to 32 bits.
func Fnv1a64(key []byte) uint32 {
	h := fnv.New64a()
	h.Write(key)
	return uint32(h.Sum64())
}
