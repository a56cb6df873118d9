package atlas

import (
	"sync"
	"time"
)

const (
	defaultMeterInterval = time.Second
	minMeterInterval     = 50 * time.Millisecond
)

// MeterUpdate is delivered to a subscription callback on every reading.
type MeterUpdate struct {
	Param    string
	Value    Value
	Previous Value
	Changed  bool
	At       time.Time
}

// MeterSubscription polls one parameter at a fixed interval for as long
// as the connection that created it stays up. It is discarded when that
// connection drops and is not replayed after a reconnect.
type MeterSubscription struct {
	param    string
	format   string
	interval time.Duration
	callback func(MeterUpdate)

	mu        sync.Mutex
	last      Value
	hasLast   bool
	updatedAt time.Time

	done *closeOnce
}

func newMeterSubscription(param, format string, interval time.Duration, cb func(MeterUpdate)) *MeterSubscription {
	return &MeterSubscription{
		param:    param,
		format:   format,
		interval: interval,
		callback: cb,
		done:     newCloseOnce(),
	}
}

// Param returns the subscribed parameter name.
func (s *MeterSubscription) Param() string { return s.param }

// Interval returns the poll interval.
func (s *MeterSubscription) Interval() time.Duration { return s.interval }

// LastValue returns the most recent reading and when it arrived.
func (s *MeterSubscription) LastValue() (Value, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.updatedAt, s.hasLast
}

// Active reports whether the subscription is still polling.
func (s *MeterSubscription) Active() bool {
	return !s.done.IsClosed()
}

// record stores v and returns the update to deliver.
func (s *MeterSubscription) record(v Value) MeterUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	upd := MeterUpdate{
		Param:    s.param,
		Value:    v,
		Previous: s.last,
		Changed:  !s.hasLast || !s.last.Equal(v),
		At:       time.Now(),
	}
	s.last = v
	s.hasLast = true
	s.updatedAt = upd.At
	return upd
}

func (s *MeterSubscription) stop() {
	s.done.Close()
}
