package aia

import "log/slog"

// Dispatch drains every deliverable interrupt for a hart and returns how
// many handlers ran. It is the shared top half: an external-interrupt trap
// on the hart calls it, and it works through both backends in order,
// claim/complete on the platform controller first, then the hart's message
// file. A claim that comes back zero is a spurious interrupt and is
// dropped silently.
func (c *Complex) Dispatch(hart uint32) (int, error) {
	handled := 0

	if c.caps.HasPlatform && !c.caps.MSIEnabled {
		for {
			id, priority, err := c.platform.Claim(hart)
			if err != nil {
				return handled, c.fail(err)
			}
			if id == 0 {
				break
			}

			if c.debugging() {
				slog.Debug("aia: claimed", "hart", hart, "source", id, "priority", priority)
			}

			if h := c.handler(id); h != nil {
				h.HandleInterrupt(id)
			} else {
				slog.Warn("aia: no handler for claimed source", "hart", hart, "source", id)
			}

			c.platform.RecordHandled(id, hart)
			if err := c.platform.Complete(hart, id); err != nil {
				return handled, c.fail(err)
			}

			c.creditHart(hart)
			handled++
		}
	}

	if c.caps.HasMessage {
		n, err := c.drainMessages(hart)
		handled += n
		if err != nil {
			return handled, c.fail(err)
		}
	}

	return handled, nil
}

// drainMessages services the hart's interrupt file. The hardware pending
// words are read back rather than trusted from the shadow: an inbound MSI
// lands in the register file first. Masked EIDs stay latched so a later
// enable can still deliver them; only delivered EIDs are cleared.
func (c *Complex) drainMessages(hart uint32) (int, error) {
	words, err := c.message.HardwarePending(hart)
	if err != nil {
		return 0, err
	}

	handled := 0
	for eid := uint32(0); eid <= 63; eid++ {
		if words[eid/32]&(1<<(eid%32)) == 0 {
			continue
		}

		enabled, err := c.message.IsEnabled(hart, eid)
		if err != nil {
			return handled, err
		}
		if !enabled {
			continue
		}

		if c.debugging() {
			slog.Debug("aia: message delivered", "hart", hart, "eid", eid)
		}
		if h := c.message.Handler(eid); h != nil {
			h.HandleInterrupt(eid)
		} else {
			slog.Warn("aia: no handler for delivered EID", "hart", hart, "eid", eid)
		}

		if err := c.message.ClearPending(hart, eid); err != nil {
			return handled, err
		}
		c.creditHart(hart)
		handled++
	}
	return handled, nil
}

// creditHart feeds the load-balancing counters. Delivery totals live in
// the backends (per-source counts, dispatch counters); the complex's own
// statistics track routed operations, not dispatches.
func (c *Complex) creditHart(hart uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hart < uint32(len(c.hartLoad)) {
		c.hartLoad[hart]++
	}
}
