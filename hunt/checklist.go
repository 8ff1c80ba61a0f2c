/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusCaptured Status = "captured"
)

// Item is a single target. Photo and CapturedAt are set iff Status is
// StatusCaptured.
type Item struct {
	ID             string
	Name           string
	ReferenceImage string
	Points         int
	Status         Status
	Photo          *Image
	CapturedAt     time.Time
}

func (i Item) Captured() bool {
	return i.Status == StatusCaptured
}

// Checklist holds the items of one session in play order.
type Checklist struct {
	items []Item
	index map[string]int
}

// NewChecklist builds a checklist with every catalog entry pending.
func NewChecklist(entries []Entry) *Checklist {
	c := &Checklist{
		items: make([]Item, len(entries)),
		index: make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		c.items[i] = Item{
			ID:             e.ID,
			Name:           e.Name,
			ReferenceImage: e.ReferenceImage,
			Points:         e.Points,
			Status:         StatusPending,
		}
		c.index[e.ID] = i
	}
	return c
}

func (c *Checklist) Len() int {
	return len(c.items)
}

func (c *Checklist) Get(id string) (Item, bool) {
	i, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Items returns a copy of the items in order.
func (c *Checklist) Items() []Item {
	return append([]Item(nil), c.items...)
}

func (c *Checklist) CapturedCount() int {
	n := 0
	for _, it := range c.items {
		if it.Captured() {
			n++
		}
	}
	return n
}

// markCaptured is the only mutation an item ever sees.
func (c *Checklist) markCaptured(id string, photo Image, at time.Time) error {
	i, ok := c.index[id]
	if !ok {
		return ErrUnknownItem
	}
	if c.items[i].Captured() {
		return ErrAlreadyCaptured
	}
	c.items[i].Status = StatusCaptured
	c.items[i].Photo = &photo
	c.items[i].CapturedAt = at
	return nil
}
