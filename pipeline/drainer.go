package pipeline

import (
	"context"
)

type drainTask struct{}

// drain moves every whole value staged at the moment it runs into the list.
// The ring is locked only for the removal; the list append happens after.
func (p *Pipeline) drain(_ context.Context, _ drainTask) error {
	p.drainMu.Lock()
	defer p.drainMu.Unlock()

	p.bufMu.Lock()
	n := p.ring.Occupancy() / ValueSize
	data, err := p.ring.Remove(n * ValueSize)
	p.pending.Store(false)
	p.bufMu.Unlock()

	if err != nil {
		p.logger.Error("drain failed", "error", err)
		return err
	}

	values := decodeValues(data)
	p.drained.Add(int64(len(values)))
	p.list.Append(values...)

	p.drains.Add(1)
	if p.metrics != nil {
		p.metrics.RecordDrain(len(values))
	}
	p.logger.Info("drained staging buffer", "values", len(values))
	return nil
}
