package hashkit

type Server struct {
	Name   string
	Weight int64
	Index  uint32
}

// HashKit dispatches a key to a server index.
type HashKit interface {
	Dispatch(key string) uint32
}

// BaseHashFunc maps a key to an index in [0, n). Implementations must be
// deterministic, and should move as few keys as possible when n changes.
type BaseHashFunc func(key []byte, n int) uint32

// Hash32Func is a deterministic 32-bit hash, uniformly distributed over
// the full uint32 range for varying keys.
type Hash32Func func(key []byte) uint32
