package realtime

import (
	"sort"

	"mentor-chat-service/internal/models"
)

// Cache holds the ordered, de-duplicated view of one conversation's messages.
// It is the single source of truth for "have we already rendered message X":
// rows arriving from the initial load, an optimistic local send, and the
// change feed all pass through it, and each id lands in the list exactly once.
//
// The cache is not safe for concurrent use; its owning synchronizer serializes
// access.
type Cache struct {
	seen map[string]struct{}
	msgs []models.Message
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{seen: make(map[string]struct{})}
}

// Reset replaces the contents with a bulk load, de-duplicating by id and
// sorting by creation time ascending (stable for equal timestamps).
func (c *Cache) Reset(msgs []models.Message) {
	c.seen = make(map[string]struct{}, len(msgs))
	c.msgs = c.msgs[:0]
	for _, msg := range msgs {
		if _, dup := c.seen[msg.ID]; dup {
			continue
		}
		c.seen[msg.ID] = struct{}{}
		c.msgs = append(c.msgs, msg)
	}
	sort.SliceStable(c.msgs, func(i, j int) bool {
		return c.msgs[i].CreatedAt.Before(c.msgs[j].CreatedAt)
	})
}

// Insert adds a message at its chronological position. Returns false without
// modifying anything if the id is already present, which is what makes the
// local-echo/feed-push race harmless. Appends at the tail in O(1) for the
// common in-order case; a late-delivered earlier row is placed by binary
// search instead of being mis-ordered at the end.
func (c *Cache) Insert(msg models.Message) bool {
	if _, dup := c.seen[msg.ID]; dup {
		return false
	}
	c.seen[msg.ID] = struct{}{}

	if n := len(c.msgs); n == 0 || !msg.CreatedAt.Before(c.msgs[n-1].CreatedAt) {
		c.msgs = append(c.msgs, msg)
		return true
	}

	idx := sort.Search(len(c.msgs), func(i int) bool {
		return c.msgs[i].CreatedAt.After(msg.CreatedAt)
	})
	c.msgs = append(c.msgs, models.Message{})
	copy(c.msgs[idx+1:], c.msgs[idx:])
	c.msgs[idx] = msg
	return true
}

// Replace swaps the stored message with the same id in place, keeping the
// original position. Returns false if the id is not present.
func (c *Cache) Replace(msg models.Message) bool {
	if _, ok := c.seen[msg.ID]; !ok {
		return false
	}
	for i := range c.msgs {
		if c.msgs[i].ID == msg.ID {
			c.msgs[i] = msg
			return true
		}
	}
	return false
}

// Contains reports whether the id has already been rendered.
func (c *Cache) Contains(id string) bool {
	_, ok := c.seen[id]
	return ok
}

// Messages returns a copy of the ordered list.
func (c *Cache) Messages() []models.Message {
	out := make([]models.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Len returns the number of cached messages.
func (c *Cache) Len() int {
	return len(c.msgs)
}
