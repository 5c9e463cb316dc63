package server

import "time"

// SlotInterval is the length of one protocol slot. Two slots a second
// makes the 600-slot game timeout roughly five minutes.
const SlotInterval = 500 * time.Millisecond

// Clock provides the coarse monotonic time unit used for expiry
// comparisons. Nothing else in the protocol reads the clock.
type Clock interface {
	NowSlot() uint64
}

// SlotClock derives slots from wall time.
type SlotClock struct{}

func (SlotClock) NowSlot() uint64 {
	return uint64(time.Now().UnixMilli() / SlotInterval.Milliseconds())
}
