package poly

import (
	"errors"
	"fmt"
)

// ErrNoSchedule is returned by ComputeFlow when no schedule was set.
var ErrNoSchedule = errors.New("poly: access info has no schedule")

// ErrUnscheduled is returned by ComputeFlow when an access refers to an
// instance the schedule does not know.
var ErrUnscheduled = errors.New("poly: unscheduled instance")

// AccessInfo describes a dataflow problem: which accesses are sinks, which
// may act as sources, which definitely overwrite (kill) an element, and the
// schedule ordering them all. All relations map (possibly tagged) instances
// to array elements.
type AccessInfo struct {
	sink      Map
	maySource Map
	kill      Map
	schedule  Schedule
	scheduled bool
}

// FromSink starts a dataflow problem with the given sink accesses.
func FromSink(sink Map) AccessInfo {
	return AccessInfo{sink: sink}
}

// SetMaySource sets the accesses that may provide a value to a sink.
func (a AccessInfo) SetMaySource(m Map) AccessInfo {
	a.maySource = m
	return a
}

// SetKill sets the accesses that definitely overwrite an element and hide
// every earlier source from later sinks.
func (a AccessInfo) SetKill(m Map) AccessInfo {
	a.kill = m
	return a
}

// SetSchedule sets the ordering used to decide which accesses precede which.
func (a AccessInfo) SetSchedule(s Schedule) AccessInfo {
	a.schedule = s
	a.scheduled = true
	return a
}

// Flow is the result of ComputeFlow.
type Flow struct {
	full     Map
	noSource Map
}

// MayDependence returns { source -> sink }.
func (f Flow) MayDependence() Map { return f.full.Domain().Unwrap() }

// FullMayDependence returns { [source -> sink] -> element }.
func (f Flow) FullMayDependence() Map { return f.full }

// MayNoSource returns the sink accesses that may read a value defined
// outside the analyzed region: those not preceded by any kill of the same
// element.
func (f Flow) MayNoSource() Map { return f.noSource }

type timedAccess struct {
	inst Tuple
	time []int64
}

// ComputeFlow solves the dataflow problem.
//
// A may-source w accessing element e reaches a sink s accessing e when w is
// scheduled strictly before s and no kill of e is scheduled strictly between
// them. Accesses of the same instance share a time and are never ordered.
func (a AccessInfo) ComputeFlow() (Flow, error) {
	if !a.scheduled {
		return Flow{}, ErrNoSchedule
	}
	sources, err := a.indexByElement(a.maySource)
	if err != nil {
		return Flow{}, err
	}
	kills, err := a.indexByElement(a.kill)
	if err != nil {
		return Flow{}, err
	}

	var full mapBuilder
	var noSource mapBuilder
	for _, p := range a.sink.pairs {
		ts, ok := a.schedule.Time(p.In)
		if !ok {
			return Flow{}, fmt.Errorf("%w: sink %s", ErrUnscheduled, p.In)
		}
		elem := p.Out.String()

		var last []int64
		for _, k := range kills[elem] {
			if CompareTimes(k.time, ts) < 0 && (last == nil || CompareTimes(k.time, last) > 0) {
				last = k.time
			}
		}
		for _, w := range sources[elem] {
			if CompareTimes(w.time, ts) >= 0 {
				continue
			}
			if last != nil && CompareTimes(w.time, last) < 0 {
				continue
			}
			full.add(WrapPair(w.inst, p.In), p.Out)
		}
		if last == nil {
			noSource.add(p.In, p.Out)
		}
	}
	return Flow{full: full.build(), noSource: noSource.build()}, nil
}

func (a AccessInfo) indexByElement(m Map) (map[string][]timedAccess, error) {
	idx := make(map[string][]timedAccess)
	for _, p := range m.pairs {
		t, ok := a.schedule.Time(p.In)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnscheduled, p.In)
		}
		k := p.Out.String()
		idx[k] = append(idx[k], timedAccess{inst: p.In, time: t})
	}
	return idx, nil
}
