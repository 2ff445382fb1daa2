package hashkit

import "github.com/cespare/xxhash/v2"

// JumpConsistent maps a key to a bucket in [0, n) with Lamping and Veach's
// jump consistent hash over a 64-bit digest of the key. Growing or
// shrinking n by one relocates only about 1/n of the keys.
// http://arxiv.org/abs/1406.2294
func JumpConsistent(key []byte, n int) uint32 {
	if n <= 1 {
		return 0
	}
	h := xxhash.Sum64(key)
	var b int64 = -1
	var j int64
	for j < int64(n) {
		b = j
		h = h*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((h>>33)+1)))
	}
	return uint32(b)
}
