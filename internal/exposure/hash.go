package exposure

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sort"

	"github.com/sunfield/sunfield/internal/shade"
)

// ObstacleSetHash returns a stable, order-independent hash of an obstacle
// set. Obstacles are sorted canonically before hashing so two slices with
// the same records in any order produce the same value; the hash covers
// every field that affects shadow geometry.
func ObstacleSetHash(obstacles []shade.Obstacle) uint64 {
	sorted := make([]shade.Obstacle, len(obstacles))
	copy(sorted, obstacles)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Position.Lat != b.Position.Lat {
			return a.Position.Lat < b.Position.Lat
		}
		return a.Position.Lon < b.Position.Lon
	})

	h := fnv.New64a()
	var buf [8]byte
	writeF := func(v float64) {
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}

	for i := range sorted {
		o := &sorted[i]
		h.Write([]byte(o.ID))
		h.Write([]byte{0})
		h.Write([]byte(o.Kind))
		h.Write([]byte{0})
		writeF(o.Position.Lat)
		writeF(o.Position.Lon)
		writeF(o.HeightM)
		writeF(o.CanopyWidthM)
	}
	return h.Sum64()
}
