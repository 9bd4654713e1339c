package pipeline

import (
	"time"
)

// producer fires on a timer, re-armed after every tick with the period
// current at that moment.
type producer struct {
	p    *Pipeline
	stop chan struct{}
	done chan struct{}
}

func startProducer(p *Pipeline) *producer {
	pr := &producer{
		p:    p,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go pr.run()
	return pr
}

func (pr *producer) run() {
	defer close(pr.done)

	timer := time.NewTimer(pr.p.tunables.TimerPeriod())
	defer timer.Stop()

	for {
		select {
		case <-pr.stop:
			return
		case <-timer.C:
			pr.p.tick()
			timer.Reset(pr.p.tunables.TimerPeriod())
		}
	}
}

// shutdown stops the timer and waits for a tick in progress to finish
func (pr *producer) shutdown() {
	close(pr.stop)
	<-pr.done
}

// tick generates one value, stages it and schedules a drain when the
// threshold is reached. It never blocks: a value that does not fit is dropped.
func (p *Pipeline) tick() {
	v := p.randFn(p.tunables.MaxRandom())
	rec := encodeValue(v)
	threshold := p.tunables.Threshold()

	// threshold test and CAS under bufMu: drain clears pending under it too
	p.bufMu.Lock()
	err := p.ring.Insert(rec[:])
	occ := p.ring.Occupancy()
	schedule := thresholdReached(occ, p.ring.Capacity(), threshold) && p.pending.CompareAndSwap(false, true)
	p.bufMu.Unlock()

	p.generated.Add(1)
	if p.metrics != nil {
		p.metrics.RecordValueGenerated()
	}
	if err != nil {
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.RecordValueDropped()
		}
		p.logger.Debug("staging buffer full, value dropped", "value", v, "occupancy", occ)
	} else {
		p.logger.Debug("value generated", "value", v, "occupancy", occ)
	}

	if !schedule {
		return
	}

	// alternate the preferred worker between successive drains
	hint := int(p.scheduled.Add(1) % 2)
	if err := p.pool.SubmitTo(hint, drainTask{}); err != nil {
		p.pending.Store(false)
		p.logger.Warn("drain not scheduled", "error", err)
	}
}
