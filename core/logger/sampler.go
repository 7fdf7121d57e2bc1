package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets keep out of every period calls through. A zero period lets
// everything through.
type sampler struct {
	keep   atomic.Int64
	period atomic.Int64
	n      atomic.Int64
}

func (s *sampler) set(keep, period int) {
	if keep <= 0 || period <= 0 {
		keep, period = 0, 0
	}
	if keep > period {
		keep = period
	}
	s.keep.Store(int64(keep))
	s.period.Store(int64(period))
	s.n.Store(0)
}

func (s *sampler) allow() bool {
	period := s.period.Load()
	if period == 0 {
		return true
	}
	return (s.n.Add(1)-1)%period < s.keep.Load()
}

// parseRatio reads "n/m" or "m" (meaning 1/m). Anything unparsable yields 0, 0.
func parseRatio(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(a))
		m, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return n, m
	}
	if m, err := strconv.Atoi(spec); err == nil && m > 0 {
		return 1, m
	}
	return 0, 0
}
