package pool

import "strings"

// extractHashPrefix returns the hash tag between the first '{' and the
// following '}' if the tag is non-empty, otherwise the whole key. Keys
// sharing a tag are routed to the same shard.
func extractHashPrefix(key string) string {
	if start := strings.IndexByte(key, '{'); start >= 0 {
		if stop := strings.IndexByte(key[start+1:], '}'); stop > 0 {
			return key[start+1 : start+1+stop]
		}
	}
	return key
}
