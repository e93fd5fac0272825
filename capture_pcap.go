// capture_pcap.go - gopacket capture and replay event sources

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"
)

// PcapSource reads packet events from a capture handle: either a pcap
// file (optionally replayed with the original inter-packet timing) or a
// live interface. It implements EventSource; Next is the pipeline's only
// blocking call.
type PcapSource struct {
	handle    *pcap.Handle
	pace      bool
	closeOnce sync.Once

	// Decoding state reused across packets
	eth     layers.Ethernet
	ip4     layers.IPv4
	ip6     layers.IPv6
	tcp     layers.TCP
	udp     layers.UDP
	icmp4   layers.ICMPv4
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType

	prevTS   time.Time // previous packet timestamp, for pacing
	prevWall time.Time
}

// NewPcapSource opens a capture file for replay. With pace set, Next
// sleeps out the recorded inter-packet gaps so live mode hears the
// traffic at its original rhythm; without it, events stream as fast as
// the batch aggregator can take them.
func NewPcapSource(path string, pace bool) (*PcapSource, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open pcap: %w", err)
	}
	return newPcapSource(handle, pace), nil
}

// NewLiveSource opens a network interface for live capture. An empty BPF
// filter captures everything IP.
func NewLiveSource(iface, bpf string) (*PcapSource, error) {
	handle, err := pcap.OpenLive(iface, 65535, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("capture: open interface %q: %w", iface, err)
	}
	if bpf == "" {
		bpf = "ip or ip6"
	}
	if err := handle.SetBPFFilter(bpf); err != nil {
		handle.Close()
		return nil, fmt.Errorf("capture: bpf filter: %w", err)
	}
	return newPcapSource(handle, false), nil
}

func newPcapSource(handle *pcap.Handle, pace bool) *PcapSource {
	s := &PcapSource{handle: handle, pace: pace}
	s.parser = gopacket.NewDecodingLayerParser(
		layers.LayerTypeEthernet,
		&s.eth, &s.ip4, &s.ip6, &s.tcp, &s.udp, &s.icmp4,
	)
	s.parser.IgnoreUnsupported = true
	s.decoded = make([]gopacket.LayerType, 0, 8)
	return s
}

// Next returns the next decodable packet as a PacketEvent. Undecodable
// frames are skipped, not errored: a capture full of exotic link types
// should degrade to fewer events, never crash mid-stream.
func (s *PcapSource) Next() (PacketEvent, error) {
	for {
		data, ci, err := s.handle.ReadPacketData()
		if err != nil {
			if errors.Is(err, pcap.NextErrorNoMorePackets) || errors.Is(err, io.EOF) {
				return PacketEvent{}, io.EOF
			}
			return PacketEvent{}, fmt.Errorf("capture: read: %w", err)
		}

		ev, ok := s.decode(data, ci)
		if !ok {
			continue
		}

		if s.pace {
			s.sleepGap(ev.Timestamp)
		}
		return ev, nil
	}
}

func (s *PcapSource) decode(data []byte, ci gopacket.CaptureInfo) (PacketEvent, bool) {
	if err := s.parser.DecodeLayers(data, &s.decoded); err != nil {
		// DecodingLayerParser errors on truncated or unknown stacks;
		// whatever it managed to decode before failing is still usable.
		if len(s.decoded) == 0 {
			return PacketEvent{}, false
		}
	}

	ev := PacketEvent{
		Timestamp: ci.Timestamp,
		Size:      ci.Length,
		Protocol:  PROTO_OTHER,
	}

	sawIP := false
	for _, lt := range s.decoded {
		switch lt {
		case layers.LayerTypeIPv4, layers.LayerTypeIPv6:
			sawIP = true
		case layers.LayerTypeTCP:
			ev.Protocol = PROTO_TCP
			ev.SrcPort = int(s.tcp.SrcPort)
			ev.DstPort = int(s.tcp.DstPort)
		case layers.LayerTypeUDP:
			ev.Protocol = PROTO_UDP
			ev.SrcPort = int(s.udp.SrcPort)
			ev.DstPort = int(s.udp.DstPort)
		case layers.LayerTypeICMPv4:
			ev.Protocol = PROTO_ICMP
		}
	}
	if !sawIP {
		return PacketEvent{}, false
	}

	// Ephemeral source port is the usual client-side signature; treat
	// server->client as inbound. Crude, but direction only drives pan.
	if ev.SrcPort != 0 && ev.SrcPort < ev.DstPort {
		ev.Direction = DIR_INBOUND
	} else {
		ev.Direction = DIR_OUTBOUND
	}

	return ev, true
}

// sleepGap reproduces the recorded inter-packet spacing on replay,
// clamped so pathological capture gaps don't freeze the monitor.
func (s *PcapSource) sleepGap(ts time.Time) {
	const maxGap = 2 * time.Second

	if !s.prevTS.IsZero() {
		gap := ts.Sub(s.prevTS)
		if gap > maxGap {
			gap = maxGap
		}
		if gap > 0 {
			elapsed := time.Since(s.prevWall)
			if sleep := gap - elapsed; sleep > 0 {
				time.Sleep(sleep)
			}
		}
	}
	s.prevTS = ts
	s.prevWall = time.Now()
}

// Close may be called from the shutdown path while Next blocks in a
// capture read; it is safe to call more than once.
func (s *PcapSource) Close() error {
	s.closeOnce.Do(s.handle.Close)
	return nil
}
