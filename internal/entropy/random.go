// Package entropy owns the single seeded generator a run draws from.
// Every shuffle, neighbor choice and probability check in a run goes
// through the *rand.Rand returned here, so one seed reproduces a run.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
)

// ResolveSeed returns seed unchanged unless it is zero, in which case a
// fresh non-zero seed is drawn from crypto/rand. The resolved seed should
// be recorded so the run can be replayed.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	for {
		s := cryptoSeed()
		if s != 0 {
			slog.Debug("drew random seed", "seed", s)
			return s
		}
	}
}

// New returns a generator for the given seed. The seed must already be
// resolved; zero is a valid, fixed seed here.
func New(seed int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed))
}

// cryptoSeed generates a positive int64 using crypto/rand.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}

// Bernoulli reports whether a uniform draw from rng falls below p.
// p <= 0 never succeeds; the draw is still consumed.
func Bernoulli(rng *mrand.Rand, p float64) bool {
	return rng.Float64() < p
}
