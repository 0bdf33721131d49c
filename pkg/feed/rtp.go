package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtp"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/playout"
)

// DefaultIdleComplete is how long an RTP stream may go silent before
// its request is completed.
const DefaultIdleComplete = 2 * time.Second

// RTPIngest maps RTP packets into player enqueues for producers that
// stream L16 over UDP instead of websocket. Each SSRC is one request; a
// marker bit starts a new request (completing the previous one); the
// unwrapped sequence number is the chunk index, so reordered datagrams
// land in their right slots. Streams with no packets for the idle
// window are completed by a sweeper.
//
// RTP carries L16 in network byte order; payloads are byte-swapped
// before decoding.
type RTPIngest struct {
	player  *playout.Player
	conn    *net.UDPConn
	decoder Decoder
	idle    time.Duration
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	streams map[uint32]*rtpStream
	closed  bool

	done chan struct{}
}

type rtpStream struct {
	requestID string
	messageID string
	lastSeq   uint16
	extSeq    int64
	lastSeen  time.Time
}

type RTPOption func(*RTPIngest)

func WithRTPLogger(l *slog.Logger) RTPOption {
	return func(r *RTPIngest) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithRTPMetrics(m *Metrics) RTPOption {
	return func(r *RTPIngest) { r.metrics = m }
}

// WithIdleComplete sets the silence window after which a stream's
// request is completed.
func WithIdleComplete(d time.Duration) RTPOption {
	return func(r *RTPIngest) {
		if d > 0 {
			r.idle = d
		}
	}
}

// ListenRTP starts an RTP listener on addr delivering chunks to player.
// from is the producers' sample rate format; to is the engine's.
func ListenRTP(player *playout.Player, addr string, from, to pcm.Format, opts ...RTPOption) (*RTPIngest, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("feed: resolve rtp addr %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("feed: listen rtp %s: %w", addr, err)
	}
	r := &RTPIngest{
		player:  player,
		conn:    conn,
		decoder: decoderFor(from, to),
		idle:    DefaultIdleComplete,
		logger:  slog.Default(),
		streams: make(map[uint32]*rtpStream),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics.connOpened("rtp")
	r.logger.Info("feed: rtp listening", "addr", conn.LocalAddr())
	go r.readLoop()
	go r.sweepLoop()
	return r, nil
}

// Addr returns the bound UDP address.
func (r *RTPIngest) Addr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *RTPIngest) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	close(r.done)
	r.metrics.connClosed("rtp")
	return r.conn.Close()
}

func (r *RTPIngest) readLoop() {
	buf := make([]byte, 2048)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Warn("feed: rtp read", "error", err)
			continue
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			r.metrics.RecordDecodeError("rtp")
			r.logger.Warn("feed: rtp parse", "error", err)
			continue
		}
		r.handle(&pkt)
	}
}

func (r *RTPIngest) handle(pkt *rtp.Packet) {
	if len(pkt.Payload) == 0 || len(pkt.Payload)%2 != 0 {
		r.metrics.RecordDecodeError("rtp")
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	var completed string
	st, ok := r.streams[pkt.SSRC]
	if !ok || pkt.Marker {
		if ok {
			completed = st.requestID
		}
		st = &rtpStream{
			requestID: uuid.NewString(),
			messageID: fmt.Sprintf("rtp-%08x", pkt.SSRC),
			lastSeq:   pkt.SequenceNumber,
		}
		r.streams[pkt.SSRC] = st
	} else {
		// int16 delta unwraps the 16-bit counter in both directions.
		st.extSeq += int64(int16(pkt.SequenceNumber - st.lastSeq))
		st.lastSeq = pkt.SequenceNumber
	}
	st.lastSeen = time.Now()
	requestID, messageID, index := st.requestID, st.messageID, st.extSeq
	r.mu.Unlock()

	if completed != "" {
		r.player.MarkComplete(completed)
	}
	if index < 0 {
		// Straggler from before the stream's first packet.
		r.metrics.RecordChunk("rtp", false)
		return
	}
	chunk, err := r.decoder.Decode(samplesFromNetwork(pkt.Payload))
	if err != nil {
		r.metrics.RecordDecodeError("rtp")
		r.logger.Warn("feed: rtp decode", "request_id", requestID, "error", err)
		return
	}
	accepted := r.player.Enqueue(requestID, int(index), chunk, messageID)
	r.metrics.RecordChunk("rtp", accepted)
}

func (r *RTPIngest) sweepLoop() {
	ticker := time.NewTicker(r.idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *RTPIngest) sweep() {
	now := time.Now()
	r.mu.Lock()
	var completed []string
	for ssrc, st := range r.streams {
		if now.Sub(st.lastSeen) >= r.idle {
			completed = append(completed, st.requestID)
			delete(r.streams, ssrc)
		}
	}
	r.mu.Unlock()
	for _, id := range completed {
		r.logger.Debug("feed: rtp stream idle, completing", "request_id", id)
		r.player.MarkComplete(id)
	}
}

// samplesFromNetwork converts big-endian wire samples to the native
// little-endian layout.
func samplesFromNetwork(payload []byte) []byte {
	out := make([]byte, len(payload))
	for i := 0; i+1 < len(payload); i += 2 {
		out[i], out[i+1] = payload[i+1], payload[i]
	}
	return out
}
