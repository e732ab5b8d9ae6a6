package cache

import (
	"time"

	generationdomain "github.com/roomvision/roomvision/internal/generation/domain"
)

const defaultEffectTTL = 10 * time.Minute

// EffectCache stores the generator effect catalog between provider refreshes.
type EffectCache interface {
	GetEffects() ([]generationdomain.Effect, bool)
	SetEffects(effects []generationdomain.Effect)
	Invalidate()
}

type effectCache struct {
	effects Cache[string, []generationdomain.Effect]
	ttl     time.Duration
}

// NewEffectCache returns an in-memory cache tuned for the effect catalog.
func NewEffectCache() EffectCache {
	return &effectCache{
		effects: NewTTLCache[string, []generationdomain.Effect](),
		ttl:     defaultEffectTTL,
	}
}

func (c *effectCache) GetEffects() ([]generationdomain.Effect, bool) {
	return c.effects.Get("effects")
}

func (c *effectCache) SetEffects(effects []generationdomain.Effect) {
	if len(effects) == 0 {
		return
	}
	c.effects.Set("effects", effects, c.ttl)
}

func (c *effectCache) Invalidate() {
	c.effects.Delete("effects")
}
