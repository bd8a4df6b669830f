package garage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Controller owns every configured door.
type Controller struct {
	mu    sync.RWMutex
	doors map[int]*Door
}

// NewController creates a door for each entry in opts. On error, doors
// already created are stopped and their pins released.
func NewController(opts []DoorOptions) (*Controller, error) {
	c := &Controller{doors: make(map[int]*Door, len(opts))}
	for _, o := range opts {
		if _, dup := c.doors[o.ID]; dup {
			c.Stop()
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidDoor, o.ID)
		}
		d, err := NewDoor(o)
		if err != nil {
			c.Stop()
			return nil, err
		}
		c.doors[o.ID] = d
	}
	return c, nil
}

// Start starts all doors.
func (c *Controller) Start(ctx context.Context) {
	for _, d := range c.sorted() {
		d.Start(ctx)
	}
}

// Stop stops all doors.
func (c *Controller) Stop() {
	for _, d := range c.sorted() {
		d.Stop()
	}
}

// Republish re-sends every door's state.
func (c *Controller) Republish() {
	for _, d := range c.sorted() {
		d.Republish()
	}
}

// Door returns the door with the given id.
func (c *Controller) Door(id int) (*Door, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.doors[id]
	if !ok {
		return nil, fmt.Errorf("%w: no door %d", ErrInvalidDoor, id)
	}
	return d, nil
}

// Statuses returns a snapshot of every door ordered by id.
func (c *Controller) Statuses() []Status {
	doors := c.sorted()
	out := make([]Status, 0, len(doors))
	for _, d := range doors {
		out = append(out, d.Status())
	}
	return out
}

func (c *Controller) sorted() []*Door {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Door, 0, len(c.doors))
	for _, d := range c.doors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
