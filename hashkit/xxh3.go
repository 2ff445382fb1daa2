package hashkit

import "github.com/zeebo/xxh3"

// Xxh3 folds a 64-bit xxh3 digest down to 32 bits. It is the default
// acceptance-draw hash of the weighted consistent hash, which relies on
// its uniformity over the full uint32 range.
// https://github.com/rurban/smhasher/blob/master/doc/xxh3low.txt
func Xxh3(key []byte) uint32 {
	return uint32(xxh3.Hash(key))
}
