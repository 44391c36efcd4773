package poly

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrSharedTime is wrapped by NewSchedule when two instances would execute
// at the same time. Accesses at equal times are unordered, so such a
// schedule would hide every dependence between those instances.
var ErrSharedTime = errors.New("poly: instances share a schedule time")

// Schedule is an ordering oracle: it assigns every statement instance a
// time vector, and instances execute in lexicographic order of their times.
// Instances with equal times belong to the same statement instance and are
// unordered with respect to each other.
type Schedule struct {
	m     Map
	times map[string][]int64
}

// NewSchedule builds a schedule from a relation mapping each instance to a
// single time tuple, e.g. { S1[i] -> [0, i, 0] }. An instance with more
// than one time is rejected, and so are two instances whose times compare
// equal under CompareTimes.
func NewSchedule(m Map) (Schedule, error) {
	times := make(map[string][]int64, m.Len())
	owners := make(map[string]Tuple, m.Len())
	for _, p := range m.Pairs() {
		k := p.In.String()
		if _, dup := times[k]; dup {
			return Schedule{}, fmt.Errorf("instance %s is scheduled more than once", p.In)
		}
		tm := p.Out.Flat()
		key := timeKey(tm)
		if other, taken := owners[key]; taken {
			return Schedule{}, fmt.Errorf("%w: %s and %s at %s", ErrSharedTime, other, p.In, p.Out)
		}
		owners[key] = p.In
		times[k] = tm
	}
	return Schedule{m: m, times: times}, nil
}

// timeKey identifies a time vector up to trailing zeros, which
// CompareTimes ignores.
func timeKey(tm []int64) string {
	n := len(tm)
	for n > 0 && tm[n-1] == 0 {
		n--
	}
	var b strings.Builder
	for i, x := range tm[:n] {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(x, 10))
	}
	return b.String()
}

// Map returns the schedule as an instance -> time relation.
func (s Schedule) Map() Map { return s.m }

// Domain returns the scheduled instances.
func (s Schedule) Domain() Set { return s.m.Domain() }

// Time returns the time vector of t. Wrapped tuples are timed by their
// innermost instance, so tagged accesses share their statement's time.
func (s Schedule) Time(t Tuple) ([]int64, bool) {
	tm, ok := s.times[t.Instance().String()]
	return tm, ok
}

// Before reports whether a is scheduled strictly before b. Unscheduled
// instances are never ordered.
func (s Schedule) Before(a, b Tuple) bool {
	ta, ok1 := s.Time(a)
	tb, ok2 := s.Time(b)
	return ok1 && ok2 && CompareTimes(ta, tb) < 0
}

// IntersectDomain restricts the schedule to the instances in d.
func (s Schedule) IntersectDomain(d Set) Schedule {
	m := s.m.IntersectDomain(d)
	times := make(map[string][]int64, m.Len())
	for _, p := range m.pairs {
		times[p.In.String()] = s.times[p.In.String()]
	}
	return Schedule{m: m, times: times}
}

// CompareTimes compares time vectors lexicographically. A shorter vector is
// padded with zeros.
func CompareTimes(a, b []int64) int {
	n := max(len(a), len(b))
	for i := range n {
		var x, y int64
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Instances returns the scheduled instances in execution order, breaking
// ties by tuple order.
func (s Schedule) Instances() []Tuple {
	ts := s.Domain().Tuples()
	slices.SortStableFunc(ts, func(a, b Tuple) int {
		ta, _ := s.Time(a)
		tb, _ := s.Time(b)
		return CompareTimes(ta, tb)
	})
	return ts
}
