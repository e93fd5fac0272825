// event.go - Traffic events, feature extraction and normalization

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"io"
	"math/rand"
	"time"
)

// Protocol classes carried on events. Anything the capture layer cannot
// classify arrives as PROTO_OTHER.
const (
	PROTO_TCP   = "TCP"
	PROTO_UDP   = "UDP"
	PROTO_ICMP  = "ICMP"
	PROTO_OTHER = "OTHER"
)

type Direction int

const (
	DIR_INBOUND Direction = iota
	DIR_OUTBOUND
)

// Feature names produced by the default extractors.
const (
	FEAT_PACKET_SIZE = "packet_size"
	FEAT_PORT_RANGE  = "port_range"
	FEAT_ARRIVAL_GAP = "arrival_gap"
	FEAT_DIRECTION   = "direction"
)

const MAX_PACKET_SIZE = 65535.0

// PacketEvent is one observed traffic event as delivered by a capture or
// replay source. Immutable once produced.
type PacketEvent struct {
	Timestamp time.Time
	Size      int
	Protocol  string
	SrcPort   int
	DstPort   int
	Direction Direction
}

// FeatureVector is the normalized numeric view of one PacketEvent plus its
// categorical protocol class. Values are in [0,1] after normalization.
type FeatureVector struct {
	Timestamp time.Time
	Protocol  string
	Values    map[string]float32
}

// EventSource is the pull contract for capture and replay inputs. Next
// blocks until an event is available and returns io.EOF when a finite
// source is exhausted. Only this call may block in the pipeline.
type EventSource interface {
	Next() (PacketEvent, error)
	Close() error
}

type FeatureFunc func(ev PacketEvent) float32

// FeatureExtractor derives raw feature values from packet events. Extractors
// are registered by name; the set of registered names is the vocabulary that
// profile mapping rules are validated against at load time.
type FeatureExtractor struct {
	names []string
	fns   map[string]FeatureFunc
	prev  time.Time
}

func NewFeatureExtractor() *FeatureExtractor {
	fe := &FeatureExtractor{fns: make(map[string]FeatureFunc)}
	fe.AddFeature(FEAT_PACKET_SIZE, func(ev PacketEvent) float32 {
		return float32(ev.Size)
	})
	fe.AddFeature(FEAT_PORT_RANGE, func(ev PacketEvent) float32 {
		return float32(ev.SrcPort)
	})
	fe.AddFeature(FEAT_DIRECTION, func(ev PacketEvent) float32 {
		if ev.Direction == DIR_OUTBOUND {
			return 1.0
		}
		return 0.0
	})
	// Inter-arrival gap needs the previous timestamp, so it closes over the
	// extractor itself rather than the event alone.
	fe.AddFeature(FEAT_ARRIVAL_GAP, func(ev PacketEvent) float32 {
		if fe.prev.IsZero() {
			return 0.0
		}
		return float32(ev.Timestamp.Sub(fe.prev).Seconds())
	})
	return fe
}

func (fe *FeatureExtractor) AddFeature(name string, fn FeatureFunc) {
	if _, ok := fe.fns[name]; !ok {
		fe.names = append(fe.names, name)
	}
	fe.fns[name] = fn
}

// FeatureNames returns the registered feature vocabulary in registration
// order. Used for profile rule validation.
func (fe *FeatureExtractor) FeatureNames() []string {
	out := make([]string, len(fe.names))
	copy(out, fe.names)
	return out
}

// Extract runs every registered extractor over one event. The returned
// vector carries raw values; the Normalizer maps them into [0,1].
func (fe *FeatureExtractor) Extract(ev PacketEvent) FeatureVector {
	values := make(map[string]float32, len(fe.names))
	for _, name := range fe.names {
		values[name] = fe.fns[name](ev)
	}
	fe.prev = ev.Timestamp
	return FeatureVector{
		Timestamp: ev.Timestamp,
		Protocol:  ev.Protocol,
		Values:    values,
	}
}

// Normalizer rescales raw feature values into [0,1] against declared
// ranges. Values outside a declared range are clamped, never rejected.
// With Track set, features without a declared range are scaled against
// the running min/max observed so far instead of passing through raw.
type Normalizer struct {
	ranges   map[string][2]float32
	observed map[string][2]float32

	Track bool
}

// DefaultFeatureRanges covers the built-in extractors.
func DefaultFeatureRanges() map[string][2]float32 {
	return map[string][2]float32{
		FEAT_PACKET_SIZE: {0, MAX_PACKET_SIZE},
		FEAT_PORT_RANGE:  {0, 65535},
		FEAT_ARRIVAL_GAP: {0, 1.0},
		FEAT_DIRECTION:   {0, 1.0},
	}
}

func NewNormalizer(ranges map[string][2]float32) *Normalizer {
	if ranges == nil {
		ranges = DefaultFeatureRanges()
	}
	return &Normalizer{
		ranges:   ranges,
		observed: make(map[string][2]float32),
	}
}

// Normalize returns a new FeatureVector with every declared feature scaled
// into [0,1]. Features without a declared range pass through clamped, or
// scale against their observed running range when tracking is on.
func (n *Normalizer) Normalize(fv FeatureVector) FeatureVector {
	values := make(map[string]float32, len(fv.Values))
	for name, v := range fv.Values {
		r, ok := n.ranges[name]
		if !ok && n.Track {
			r, ok = n.observe(name, v)
		}
		if ok && r[1] > r[0] {
			v = (v - r[0]) / (r[1] - r[0])
		}
		values[name] = clamp01(v)
	}
	return FeatureVector{
		Timestamp: fv.Timestamp,
		Protocol:  fv.Protocol,
		Values:    values,
	}
}

// observe widens a feature's running range to include v. The first
// observation spans a single point; scaling starts once the range has
// opened up.
func (n *Normalizer) observe(name string, v float32) ([2]float32, bool) {
	r, seen := n.observed[name]
	if !seen {
		r = [2]float32{v, v}
	} else {
		if v < r[0] {
			r[0] = v
		}
		if v > r[1] {
			r[1] = v
		}
	}
	n.observed[name] = r
	return r, true
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// TrafficGenerator is a deterministic synthetic EventSource used by the
// demo mode and tests. A fixed seed yields a fixed event list. With Pace
// set, Next sleeps out the synthetic inter-event gaps so live demo mode
// plays in real time.
type TrafficGenerator struct {
	rng       *rand.Rand
	start     time.Time
	elapsed   time.Duration
	remaining int
	burst     int

	Pace bool
}

func NewTrafficGenerator(seed int64, count int) *TrafficGenerator {
	return &TrafficGenerator{
		rng:       rand.New(rand.NewSource(seed)),
		start:     time.Unix(0, 0),
		remaining: count,
	}
}

var generatorProtocols = []string{PROTO_TCP, PROTO_TCP, PROTO_UDP, PROTO_ICMP}

func (g *TrafficGenerator) Next() (PacketEvent, error) {
	if g.remaining <= 0 {
		return PacketEvent{}, io.EOF
	}
	g.remaining--

	// Bursty arrivals: occasionally emit a cluster with tiny gaps.
	var gap time.Duration
	if g.burst > 0 {
		g.burst--
		gap = time.Duration(1+g.rng.Intn(5)) * time.Millisecond
	} else {
		if g.rng.Intn(8) == 0 {
			g.burst = 2 + g.rng.Intn(6)
		}
		gap = time.Duration(20+g.rng.Intn(300)) * time.Millisecond
	}
	g.elapsed += gap
	if g.Pace {
		time.Sleep(gap)
	}

	proto := generatorProtocols[g.rng.Intn(len(generatorProtocols))]
	ev := PacketEvent{
		Timestamp: g.start.Add(g.elapsed),
		Size:      40 + g.rng.Intn(1460),
		Protocol:  proto,
		SrcPort:   1024 + g.rng.Intn(64511),
		DstPort:   []int{80, 443, 53, 22, 8080}[g.rng.Intn(5)],
		Direction: Direction(g.rng.Intn(2)),
	}
	return ev, nil
}

func (g *TrafficGenerator) Close() error { return nil }
