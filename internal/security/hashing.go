package security

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes passwords and success passwords with bcrypt.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher clamps cost into bcrypt's range; 0 selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost is the bcrypt work factor in use.
func (h *Hasher) Cost() int { return h.cost }

func (h *Hasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether secret matches hash. An empty hash (unknown account,
// secret never set) still costs one bcrypt comparison and always fails.
func (h *Hasher) Verify(hash, secret string) bool {
	if hash == "" {
		h.dummyOnce.Do(func() {
			h.dummy, _ = bcrypt.GenerateFromPassword([]byte("nettoria-dummy-secret"), h.cost)
		})
		if h.dummy != nil {
			_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(secret))
		}
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
