package collision

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/physics"
)

// Proxy is the broad-phase view of a body.
type Proxy struct {
	ID       physics.BodyID
	Min, Max mgl64.Vec3
	Fixed    bool
}

// ProxyOf builds the proxy of b from its world bounds.
func ProxyOf(b *physics.Body) Proxy {
	lo, hi := b.AABB()
	return Proxy{ID: b.ID, Min: lo, Max: hi, Fixed: b.Fixed()}
}

func (p Proxy) overlaps(o Proxy) bool {
	for k := 0; k < 3; k++ {
		if p.Max[k] < o.Min[k] || o.Max[k] < p.Min[k] {
			return false
		}
	}
	return true
}

// BroadPhase returns candidate pairs whose bounds overlap, sorted by PairKey. It sweeps
// along X; pairs of two fixed bodies are never reported.
func BroadPhase(proxies []Proxy) []physics.PairKey {
	sorted := make([]Proxy, len(proxies))
	copy(sorted, proxies)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Min[0] != sorted[j].Min[0] {
			return sorted[i].Min[0] < sorted[j].Min[0]
		}
		return sorted[i].ID.Less(sorted[j].ID)
	})

	var pairs []physics.PairKey
	active := make([]Proxy, 0, len(sorted))
	for _, p := range sorted {
		kept := active[:0]
		for _, a := range active {
			if a.Max[0] >= p.Min[0] {
				kept = append(kept, a)
			}
		}
		active = kept

		for _, a := range active {
			if a.Fixed && p.Fixed {
				continue
			}
			if a.overlaps(p) {
				pairs = append(pairs, physics.MakePairKey(a.ID, p.ID))
			}
		}
		active = append(active, p)
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })
	return pairs
}

// BruteForce tests every pair. It returns the same set as BroadPhase and exists to check it.
func BruteForce(proxies []Proxy) []physics.PairKey {
	var pairs []physics.PairKey
	for i := range proxies {
		for j := i + 1; j < len(proxies); j++ {
			a, b := proxies[i], proxies[j]
			if a.Fixed && b.Fixed {
				continue
			}
			if a.overlaps(b) {
				pairs = append(pairs, physics.MakePairKey(a.ID, b.ID))
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })
	return pairs
}
