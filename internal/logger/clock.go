package logger

import (
	"fmt"
	"time"
)

// utcClock caches a formatted "YYYY-MM-DD HH:MM:SS" timestamp and reformats
// only the seconds component on a sub-minute tick, doing the full
// broken-down-time recompute only when the minute rolls over. Ported from
// original_source/Log/log.hpp's utc_timer.
type utcClock struct {
	accMinute int64
	fmtBuf    [19]byte // "YYYY-MM-DD HH:MM:SS"
}

func newUTCClock() *utcClock {
	c := &utcClock{}
	c.full(time.Now())
	return c
}

// Format returns the cached "YYYY-MM-DD HH:MM:SS" string for now, refreshing
// the cache first if the minute (or more) has elapsed since the last call.
func (c *utcClock) Format(now time.Time) string {
	minute := now.Unix() / 60
	if minute != c.accMinute {
		c.full(now)
	} else {
		c.seconds(now)
	}
	return string(c.fmtBuf[:])
}

func (c *utcClock) full(now time.Time) {
	c.accMinute = now.Unix() / 60
	s := now.Format("2006-01-02 15:04:05")
	copy(c.fmtBuf[:], s)
}

func (c *utcClock) seconds(now time.Time) {
	sec := now.Second()
	c.fmtBuf[17] = byte('0' + sec/10)
	c.fmtBuf[18] = byte('0' + sec%10)
}

// dateStamp returns the YYYYMMDD stamp used in rotated log file names.
func dateStamp(now time.Time) string {
	return fmt.Sprintf("%04d%02d%02d", now.Year(), now.Month(), now.Day())
}
