package hashkit

import (
	"encoding/json"
	"fmt"
	"math"
)

// WeightedCh3NumTries is the default retry budget of the weighted hash.
// Each attempt succeeds with probability equal to the candidate's weight,
// so the budget only matters when the average weight is well below 1.
const WeightedCh3NumTries = 32

// TypeWeightedCh3 is the registry name of the weighted consistent hash.
const TypeWeightedCh3 = "WeightedCh3"

// ConfigError reports an invalid hash configuration. It is only returned
// at construction time, never by Dispatch.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "hashkit: " + e.Reason
}

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// WeightedCh3 is a weighted consistent hash over n servers, where n is the
// length of the weight list and every weight lies in [0.0, 1.0].
//
// Dispatch retries up to the configured budget:
//
//	index = baseHash(key + salt(attempt), n)
//	if probHash(key) < weights[index] * 2^32: return index
//
// and falls back to the last candidate when the budget is exhausted.
// The salts are reversed decimal representations of an increasing counter
// ("", "0", "1", ..., "9", "01", "11", "21", ...), so each attempt probes a
// distinct candidate while the acceptance draw stays fixed per key. With
// all weights at 1.0 the first attempt always accepts and the result
// equals the plain base hash. Reducing a single weight reroutes only a
// fraction of the keys that previously landed on that server.
type WeightedCh3 struct {
	weights []float64
	baseFn  BaseHashFunc
	probFn  Hash32Func
	retries int
}

// WeightedCh3Config carries the construction parameters of WeightedCh3.
// Zero values of the hash functions and retry count fall back to
// JumpConsistent, Xxh3 and WeightedCh3NumTries.
type WeightedCh3Config struct {
	Weights         []float64
	BaseHash        BaseHashFunc
	ProbabilityHash Hash32Func
	Retries         int
}

// NewWeightedCh3 builds the weighted hash from cfg. The pool size is taken
// to be len(cfg.Weights).
func NewWeightedCh3(cfg *WeightedCh3Config) (*WeightedCh3, error) {
	if cfg == nil {
		return nil, configErrorf("weighted hash config shouldn't be empty")
	}
	weights, err := validateWeights(cfg.Weights)
	if err != nil {
		return nil, err
	}
	h := &WeightedCh3{
		weights: weights,
		baseFn:  cfg.BaseHash,
		probFn:  cfg.ProbabilityHash,
		retries: cfg.Retries,
	}
	if h.baseFn == nil {
		h.baseFn = JumpConsistent
	}
	if h.probFn == nil {
		h.probFn = Xxh3
	}
	if h.retries <= 0 {
		h.retries = WeightedCh3NumTries
	}
	return h, nil
}

// NewWeightedCh3FromJSON builds the weighted hash from a raw JSON object of
// the format {"weights": [...]} and the expected pool size n, using the
// default hash functions and retry budget.
func NewWeightedCh3FromJSON(raw []byte, n int) (*WeightedCh3, error) {
	weights, err := ParseWeights(raw, n)
	if err != nil {
		return nil, err
	}
	return NewWeightedCh3(&WeightedCh3Config{Weights: weights})
}

// ParseWeights extracts the "weights" list from a raw JSON object and
// validates it against the expected pool size n. A missing field, a length
// mismatch, or any entry outside [0.0, 1.0] is a *ConfigError; the count
// is never silently truncated or padded.
func ParseWeights(raw []byte, n int) ([]float64, error) {
	var cfg struct {
		Weights *[]float64 `json:"weights"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, configErrorf("malformed weights config: %s", err)
	}
	if cfg.Weights == nil {
		return nil, configErrorf("weights field was missing")
	}
	if len(*cfg.Weights) != n {
		return nil, configErrorf("expected %d weights but got %d", n, len(*cfg.Weights))
	}
	return validateWeights(*cfg.Weights)
}

func validateWeights(weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, configErrorf("weighted hash requires at least one server")
	}
	copied := make([]float64, len(weights))
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0.0 || w > 1.0 {
			return nil, configErrorf("weight %v at index %d was outside [0.0, 1.0]", w, i)
		}
		copied[i] = w
	}
	return copied, nil
}

// Dispatch returns the server index for key using the configured retry
// budget. It never fails; when every attempt is rejected the last
// candidate is returned.
func (h *WeightedCh3) Dispatch(key string) uint32 {
	return h.DispatchN(key, h.retries)
}

// DispatchN is Dispatch with an explicit retry budget. A budget of zero
// performs a single unweighted base-hash lookup.
func (h *WeightedCh3) DispatchN(key string, retries int) uint32 {
	n := len(h.weights)
	keyBytes := []byte(key)

	index := h.baseFn(keyBytes, n)
	if retries <= 0 {
		return index
	}
	// The acceptance draw hashes the unsalted key, so it is fixed across
	// attempts and only the candidate varies.
	probability := uint64(h.probFn(keyBytes))
	if probability < acceptBound(h.weights[index]) {
		return index
	}

	salted := make([]byte, len(keyBytes), len(keyBytes)+saltDigitsMax)
	copy(salted, keyBytes)
	for attempt := 1; attempt < retries; attempt++ {
		salted = appendSalt(salted[:len(keyBytes)], attempt)
		index = h.baseFn(salted, n)
		if probability < acceptBound(h.weights[index]) {
			return index
		}
	}
	return index
}

// acceptBound maps a weight in [0.0, 1.0] linearly onto [0, 2^32], so a
// weight of 1.0 accepts every 32-bit draw.
func acceptBound(weight float64) uint64 {
	return uint64(weight * float64(uint64(1)<<32))
}

// Weights returns a copy of the server weights.
func (h *WeightedCh3) Weights() []float64 {
	weights := make([]float64, len(h.weights))
	copy(weights, h.weights)
	return weights
}

// Type returns the registry identifier of this hash strategy.
func (h *WeightedCh3) Type() string {
	return TypeWeightedCh3
}
