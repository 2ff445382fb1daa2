package hashkit

import (
	"fmt"
	"sort"
)

const KetamaPointsPerServer = 160

type continuumPoint struct {
	point  uint32
	server uint32
}

// Continuum is a ketama-style consistent hash ring. Each server owns a
// number of ring points proportional to its weight, derived from md5
// digests of the server name.
type Continuum struct {
	ring   []continuumPoint
	hashFn Hash32Func
}

// NewKetama builds a continuum over the given servers. A nil hashFn falls
// back to the md5-derived point hash the ring itself is built with.
func NewKetama(servers []*Server, hashFn Hash32Func) *Continuum {
	c := &Continuum{hashFn: hashFn}
	if c.hashFn == nil {
		c.hashFn = md5Point
	}
	c.ring = buildContinuum(servers)
	return c
}

func (c *Continuum) Dispatch(key string) uint32 {
	if len(c.ring) == 0 {
		return 0
	}
	h := c.hashFn([]byte(key))
	i := sort.Search(len(c.ring), func(i int) bool {
		return c.ring[i].point >= h
	})
	if i == len(c.ring) {
		i = 0
	}
	return c.ring[i].server
}

// Rebuild replaces the ring, e.g. after servers joined or left.
func (c *Continuum) Rebuild(servers []*Server) {
	c.ring = buildContinuum(servers)
}

func buildContinuum(servers []*Server) []continuumPoint {
	numServers := len(servers)
	ring := make([]continuumPoint, 0, numServers*KetamaPointsPerServer)

	var totalWeight int64
	for _, server := range servers {
		totalWeight += server.Weight
	}
	if totalWeight == 0 {
		return ring
	}

	const pointsPerDigest = 4
	for _, server := range servers {
		pct := float64(server.Weight) / float64(totalWeight)
		digests := int(pct * float64(KetamaPointsPerServer/pointsPerDigest) * float64(numServers))
		for i := 0; i < digests; i++ {
			digest := md5Digest([]byte(fmt.Sprintf("%s-%d", server.Name, i)))
			for alignment := 0; alignment < pointsPerDigest; alignment++ {
				ring = append(ring, continuumPoint{
					point:  pointAt(digest, alignment*4),
					server: server.Index,
				})
			}
		}
	}
	sort.Slice(ring, func(i, j int) bool { return ring[i].point < ring[j].point })
	return ring
}

func md5Point(key []byte) uint32 {
	return pointAt(md5Digest(key), 0)
}

func pointAt(digest []byte, offset int) uint32 {
	return uint32(digest[offset+3])<<24 | uint32(digest[offset+2])<<16 |
		uint32(digest[offset+1])<<8 | uint32(digest[offset])
}
