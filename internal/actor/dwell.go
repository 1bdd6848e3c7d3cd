package actor

import (
	"math/rand"
	"sync"
	"time"
)

// Dwell returns how long a vehicle stays at the stop while riders board.
type Dwell func() time.Duration

// FixedDwell always returns d.
func FixedDwell(d time.Duration) Dwell {
	return func() time.Duration { return d }
}

// RandomDwell returns base plus a uniform jitter in [0, jitter).
// rng may be shared; access is serialized.
func RandomDwell(base, jitter time.Duration, rng *rand.Rand) Dwell {
	if jitter <= 0 || rng == nil {
		return FixedDwell(base)
	}
	var mu sync.Mutex
	return func() time.Duration {
		mu.Lock()
		j := time.Duration(rng.Int63n(int64(jitter)))
		mu.Unlock()
		return base + j
	}
}
