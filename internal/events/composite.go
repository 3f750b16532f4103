package events

// Composite pairs a TickPublisher with a RunPublisher behind the
// single Publisher interface the simulation driver depends on.
type Composite struct {
	Ticks *TickPublisher
	Runs  *RunPublisher
}

func (c *Composite) PublishTick(event TickEvent) error {
	return c.Ticks.PublishTick(event)
}

func (c *Composite) PublishRunCompleted(event RunCompletedEvent) error {
	return c.Runs.PublishRunCompleted(event)
}

func (c *Composite) Close() error {
	err := c.Ticks.Close()
	if rerr := c.Runs.Close(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

var _ Publisher = (*Composite)(nil)
