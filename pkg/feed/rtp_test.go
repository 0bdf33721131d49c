package feed

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/playout"
)

func TestSamplesFromNetwork(t *testing.T) {
	got := samplesFromNetwork([]byte{0x12, 0x34, 0xab, 0xcd})
	want := []byte{0x34, 0x12, 0xcd, 0xab}
	if !bytes.Equal(got, want) {
		t.Errorf("samplesFromNetwork = %x, want %x", got, want)
	}
}

type rtpSender struct {
	t    *testing.T
	conn net.Conn
	seq  uint16
	ts   uint32
	ssrc uint32
}

func newRTPSender(t *testing.T, addr net.Addr, ssrc uint32) *rtpSender {
	t.Helper()
	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial udp: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &rtpSender{t: t, conn: conn, seq: 100, ssrc: ssrc}
}

// send transmits one packet of network-order samples.
func (s *rtpSender) send(marker bool, payload []byte) {
	s.t.Helper()
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    96,
			SequenceNumber: s.seq,
			Timestamp:      s.ts,
			SSRC:           s.ssrc,
		},
		Payload: payload,
	}
	s.seq++
	s.ts += uint32(len(payload) / 2)
	raw, err := pkt.Marshal()
	if err != nil {
		s.t.Fatalf("marshal rtp packet: %v", err)
	}
	if _, err := s.conn.Write(raw); err != nil {
		s.t.Fatalf("send rtp packet: %v", err)
	}
}

func networkSamples(fill byte, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = fill
	}
	return data
}

func TestRTPIngestDeliversChunks(t *testing.T) {
	player, dev := newTestEngine(t)
	ingest, err := ListenRTP(player, "127.0.0.1:0", pcm.L16Mono16K, pcm.L16Mono16K)
	if err != nil {
		t.Fatalf("ListenRTP() error = %v", err)
	}
	defer ingest.Close()

	sender := newRTPSender(t, ingest.Addr(), 0xfeed)
	payload := networkSamples(0x21, 640)
	sender.send(false, payload)
	sender.send(false, payload)

	waitFor(t, func() bool { return len(dev.Scheduled()) == 2 }, "rtp chunks never reached the device")
	got := chunkBytes(t, dev.Scheduled()[0].Data())
	if !bytes.Equal(got, samplesFromNetwork(payload)) {
		t.Error("scheduled samples not byte-swapped from network order")
	}
}

func TestRTPIngestIdleCompletes(t *testing.T) {
	player, dev := newTestEngine(t)
	ingest, err := ListenRTP(player, "127.0.0.1:0", pcm.L16Mono16K, pcm.L16Mono16K,
		WithIdleComplete(100*time.Millisecond))
	if err != nil {
		t.Fatalf("ListenRTP() error = %v", err)
	}
	defer ingest.Close()

	sender := newRTPSender(t, ingest.Addr(), 0xbeef)
	sender.send(false, networkSamples(1, 640))

	waitFor(t, func() bool { return len(dev.Scheduled()) == 1 }, "rtp chunk never reached the device")
	dev.Advance(30 * time.Millisecond)

	// No more packets: the sweeper completes the request and playback
	// finalizes it.
	waitFor(t, func() bool { return len(player.Requests()) == 0 }, "idle stream not completed")
}

func TestRTPMarkerStartsNewRequest(t *testing.T) {
	var mu sync.Mutex
	var started []string
	player, dev := newTestEngine(t,
		playout.WithConcurrentRequests(true),
		playout.WithListener(playout.ListenerFuncs{
			OnStarted: func(messageID string) {
				mu.Lock()
				started = append(started, messageID)
				mu.Unlock()
			},
		}))
	ingest, err := ListenRTP(player, "127.0.0.1:0", pcm.L16Mono16K, pcm.L16Mono16K,
		WithIdleComplete(100*time.Millisecond))
	if err != nil {
		t.Fatalf("ListenRTP() error = %v", err)
	}
	defer ingest.Close()

	sender := newRTPSender(t, ingest.Addr(), 0xcafe)
	sender.send(true, networkSamples(1, 640))
	waitFor(t, func() bool { return len(dev.Scheduled()) == 1 }, "first talkspurt never arrived")

	// New talkspurt: completes the first request and opens a second.
	// The second chunk is only scheduled once the first finishes
	// playing, so advance the device while polling.
	sender.send(true, networkSamples(2, 640))
	waitFor(t, func() bool {
		dev.Advance(20 * time.Millisecond)
		return len(dev.Scheduled()) == 2
	}, "second talkspurt never arrived")

	waitFor(t, func() bool {
		dev.Advance(20 * time.Millisecond)
		return len(player.Requests()) == 0
	}, "requests not drained after idle")

	mu.Lock()
	n := len(started)
	mu.Unlock()
	if n != 2 {
		t.Errorf("playback started %d times, want 2", n)
	}
}

func TestRTPSequenceGapStillPlays(t *testing.T) {
	player, dev := newTestEngine(t)
	ingest, err := ListenRTP(player, "127.0.0.1:0", pcm.L16Mono16K, pcm.L16Mono16K)
	if err != nil {
		t.Fatalf("ListenRTP() error = %v", err)
	}
	defer ingest.Close()

	sender := newRTPSender(t, ingest.Addr(), 0xd00d)
	payload := networkSamples(4, 640)
	sender.send(false, payload) // seq 100 -> index 0
	sender.seq++                // drop one packet
	sender.send(false, payload) // seq 102 -> index 2

	// Index 1 is missing, so only the first chunk is playable.
	waitFor(t, func() bool { return len(dev.Scheduled()) == 1 }, "first chunk never reached the device")

	stats, ok := player.Stats(player.Active())
	if !ok {
		t.Fatal("active request has no stats")
	}
	if stats.TotalChunks != 2 {
		t.Errorf("TotalChunks = %d, want 2 (buffered out-of-order chunk)", stats.TotalChunks)
	}
}
