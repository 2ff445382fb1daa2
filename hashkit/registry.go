package hashkit

// Builder constructs a HashKit from a raw JSON config and a pool size.
type Builder func(raw []byte, n int) (HashKit, error)

var builders = map[string]Builder{
	TypeWeightedCh3: func(raw []byte, n int) (HashKit, error) {
		return NewWeightedCh3FromJSON(raw, n)
	},
}

// Register makes a hash strategy available to Build under the given name,
// replacing any previous registration. It is meant to be called from init
// functions and is not safe for concurrent use with Build.
func Register(name string, builder Builder) {
	builders[name] = builder
}

// Build instantiates the hash strategy registered under name.
func Build(name string, raw []byte, n int) (HashKit, error) {
	builder, ok := builders[name]
	if !ok {
		return nil, configErrorf("unknown hash type %q", name)
	}
	return builder(raw, n)
}
