package game

import "skyhaul/internal/models"

// advanceCarriers moves every carrier on the route through its state
// machine: AtProducer → Gathering (dwell) → ToHub → AtHub (instant) →
// ToProducer → AtProducer. Position and spawn cadence both derive from
// the same cached arc, so spacing stays consistent with motion.
func (e *Engine) advanceCarriers(rs *routeState, dt float64) {
	speed := rs.cfg.BaseSpeed * e.mods.Speed
	for _, c := range rs.carriers {
		switch c.Phase {
		case models.PhaseAtProducer:
			c.Phase = models.PhaseGathering
			c.DwellRemaining = rs.cfg.GatherTime

		case models.PhaseGathering:
			c.DwellRemaining -= dt
			if c.DwellRemaining <= 0 {
				c.DwellRemaining = 0
				payload := rs.cfg.Commodity
				c.Payload = &payload
				c.Phase = models.PhaseToHub
				c.Progress = 0
			}

		case models.PhaseToHub:
			if rs.arcLength > 0 {
				c.Progress += speed * dt / rs.arcLength
			} else {
				c.Progress = 1
			}
			if c.Progress >= 1 {
				c.Progress = 1
				e.deliver(rs, c)
			}

		case models.PhaseToProducer:
			if rs.arcLength > 0 {
				c.Progress += speed * dt / rs.arcLength
			} else {
				c.Progress = 1
			}
			if c.Progress >= 1 {
				c.Phase = models.PhaseAtProducer
				c.Progress = 0
			}
		}
	}
}

// deliver hands the payload to the hub. The AtHub stop is instant: the
// carrier drops its unit, the storage and demand ledgers record it, and
// it turns straight around.
func (e *Engine) deliver(rs *routeState, c *models.Carrier) {
	c.Phase = models.PhaseAtHub

	if c.Payload != nil {
		commodity := *c.Payload
		rep, err := e.store.Receive(commodity, 1)
		if err != nil {
			// Unknown commodity here means a route outlived its
			// registration; a caller bug, not a sim state.
			e.log.Warn("delivery dropped", "commodity", commodity, "err", err)
		} else {
			if rep.Discarded > 0 {
				e.queueEvent(models.EventOverflowDiscarded, models.OverflowDiscardedPayload{
					Commodity: commodity,
					Amount:    rep.Discarded,
				})
			}
			if rep.Accepted > 0 {
				e.track.RecordDelivery(commodity, e.clock)
				payout := e.deliveryValue[commodity] * e.track.PayoutMultiplier(commodity) * e.mods.Income
				e.bank.Earn(payout)
			}
		}
		c.Payload = nil
	}

	c.Phase = models.PhaseToProducer
	c.Progress = 0
}
