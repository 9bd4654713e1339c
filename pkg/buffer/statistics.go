package buffer

import (
	"sync/atomic"
	"time"
)

// Statistics tracks ring activity. All counters are atomic so a snapshot can be
// taken without holding the lock that guards the ring itself.
type Statistics struct {
	inserts         atomic.Int64
	removes         atomic.Int64
	bytesIn         atomic.Int64
	bytesOut        atomic.Int64
	rejectedInserts atomic.Int64
	rejectedRemoves atomic.Int64
	clears          atomic.Int64
	occupancy       atomic.Int64
	maxOccupancy    atomic.Int64

	startTime time.Time
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

func (s *Statistics) insert(n, occupancy int) {
	s.inserts.Add(1)
	s.bytesIn.Add(int64(n))
	s.setOccupancy(occupancy)
}

func (s *Statistics) remove(n, occupancy int) {
	s.removes.Add(1)
	s.bytesOut.Add(int64(n))
	s.setOccupancy(occupancy)
}

func (s *Statistics) clear() {
	s.clears.Add(1)
	s.occupancy.Store(0)
}

func (s *Statistics) setOccupancy(occupancy int) {
	v := int64(occupancy)
	s.occupancy.Store(v)
	for {
		peak := s.maxOccupancy.Load()
		if v <= peak || s.maxOccupancy.CompareAndSwap(peak, v) {
			return
		}
	}
}

// Inserts returns the number of successful inserts.
func (s *Statistics) Inserts() int64 { return s.inserts.Load() }

// Removes returns the number of successful removes.
func (s *Statistics) Removes() int64 { return s.removes.Load() }

// BytesIn returns the total number of bytes inserted.
func (s *Statistics) BytesIn() int64 { return s.bytesIn.Load() }

// BytesOut returns the total number of bytes removed.
func (s *Statistics) BytesOut() int64 { return s.bytesOut.Load() }

// RejectedInserts returns the number of inserts refused for lack of space.
func (s *Statistics) RejectedInserts() int64 { return s.rejectedInserts.Load() }

// RejectedRemoves returns the number of removes refused for lack of data.
func (s *Statistics) RejectedRemoves() int64 { return s.rejectedRemoves.Load() }

// Clears returns the number of times the ring was reset.
func (s *Statistics) Clears() int64 { return s.clears.Load() }

// Occupancy returns the occupancy recorded by the last operation.
func (s *Statistics) Occupancy() int64 { return s.occupancy.Load() }

// MaxOccupancy returns the highest occupancy observed.
func (s *Statistics) MaxOccupancy() int64 { return s.maxOccupancy.Load() }

// Uptime returns how long the ring has existed.
func (s *Statistics) Uptime() time.Duration { return time.Since(s.startTime) }

// StatsSummary is a point-in-time copy of Statistics.
type StatsSummary struct {
	Inserts         int64         `json:"inserts"`
	Removes         int64         `json:"removes"`
	BytesIn         int64         `json:"bytes_in"`
	BytesOut        int64         `json:"bytes_out"`
	RejectedInserts int64         `json:"rejected_inserts"`
	RejectedRemoves int64         `json:"rejected_removes"`
	Clears          int64         `json:"clears"`
	Occupancy       int64         `json:"occupancy"`
	MaxOccupancy    int64         `json:"max_occupancy"`
	Uptime          time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Inserts:         s.Inserts(),
		Removes:         s.Removes(),
		BytesIn:         s.BytesIn(),
		BytesOut:        s.BytesOut(),
		RejectedInserts: s.RejectedInserts(),
		RejectedRemoves: s.RejectedRemoves(),
		Clears:          s.Clears(),
		Occupancy:       s.Occupancy(),
		MaxOccupancy:    s.MaxOccupancy(),
		Uptime:          s.Uptime(),
	}
}
