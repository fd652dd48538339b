package weather

import "sync"

// Cache holds the latest observation and the last one that was published.
// The MQTT client delivers messages on its own goroutine while the control
// loop reads on another, so access is serialized with a mutex.
type Cache struct {
	mu       sync.Mutex
	current  *Observation
	previous *Observation
}

func NewCache() *Cache {
	return &Cache{}
}

// SetCurrent replaces the latest observation. Later reports win; there is no
// queue.
func (c *Cache) SetCurrent(obs Observation) {
	c.mu.Lock()
	c.current = &obs
	c.mu.Unlock()
}

// Current returns the latest observation, if one has arrived yet.
func (c *Cache) Current() (Observation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Observation{}, false
	}
	return *c.current, true
}

// Changed reports whether the latest observation differs from the last
// committed one. A first observation with nothing committed counts as
// changed.
func (c *Cache) Changed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return false
	}
	if c.previous == nil {
		return true
	}
	return !c.current.Equal(*c.previous)
}

// Commit marks the current observation as published. Call only after all
// feeds for it went out.
func (c *Cache) Commit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		obs := *c.current
		c.previous = &obs
	}
}
