package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/audio/resampler"
	"github.com/loroworks/loro/go/pkg/jsontime"
	"github.com/loroworks/loro/go/pkg/playout"
	"github.com/loroworks/loro/go/pkg/soundbank"
)

// cueChunk is the slice duration cued clips are enqueued with.
const cueChunk = 200 * time.Millisecond

// Server accepts producer websockets on /feed and reports engine state
// on /stats. It is an http.Handler; callers own the http.Server around
// it.
type Server struct {
	player  *playout.Player
	format  pcm.Format
	bank    soundbank.Bank
	metrics *Metrics
	logger  *slog.Logger

	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

type ServerOption func(*Server)

func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServerMetrics attaches feed collectors to the server.
func WithServerMetrics(m *Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithServerBank lets producers cue clips from a sound bank by name
// instead of streaming the samples themselves.
func WithServerBank(b soundbank.Bank) ServerOption {
	return func(s *Server) { s.bank = b }
}

// WithCheckOrigin overrides the websocket origin check. The default
// accepts any origin; producers are devices, not browsers.
func WithCheckOrigin(check func(*http.Request) bool) ServerOption {
	return func(s *Server) { s.upgrader.CheckOrigin = check }
}

// NewServer creates a feed server delivering chunks to player in the
// given output format.
func NewServer(player *playout.Player, format pcm.Format, opts ...ServerOption) *Server {
	s := &Server{
		player: player,
		format: format,
		logger: slog.Default(),
		conns:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/feed", s.handleFeed)
	s.mux.HandleFunc("/stats", s.handleStats)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close tears down all producer connections. The player is left to its
// owner.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	return nil
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("feed: websocket upgrade", "error", err)
		return
	}
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)
	defer conn.Close()

	s.metrics.connOpened("ws")
	defer s.metrics.connClosed("ws")
	s.logger.Info("feed: producer connected", "remote", conn.RemoteAddr())
	defer s.logger.Info("feed: producer disconnected", "remote", conn.RemoteAddr())

	sess := &wsSession{
		server:   s,
		conn:     conn,
		decoders: make(map[pcm.Format]Decoder),
	}
	sess.run()
}

// wsSession is the per-connection read loop state. Replies are written
// from the read loop only.
type wsSession struct {
	server   *Server
	conn     *websocket.Conn
	decoders map[pcm.Format]Decoder
}

func (sess *wsSession) run() {
	for {
		msgType, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.server.logger.Warn("feed: read", "error", err)
			}
			return
		}
		switch msgType {
		case websocket.TextMessage:
			sess.handleText(data)
		case websocket.BinaryMessage:
			sess.handleBinary(data)
		}
	}
}

func (sess *wsSession) handleText(data []byte) {
	s := sess.server
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("feed: bad message", "error", err)
		return
	}
	switch msg.Type {
	case MessageHello:
		if msg.Rate != 0 {
			if _, err := FormatForRate(msg.Rate); err != nil {
				s.logger.Warn("feed: hello", "error", err)
				sess.conn.Close()
				return
			}
		}
		reply := Message{
			Type:   MessageHello,
			Rate:   s.format.SampleRate(),
			SentAt: jsontime.NowMilli(),
		}
		if err := sess.conn.WriteJSON(&reply); err != nil {
			s.logger.Warn("feed: hello reply", "error", err)
		}
	case MessageChunk:
		rate := msg.Rate
		if rate == 0 {
			rate = s.format.SampleRate()
		}
		format, err := FormatForRate(rate)
		if err != nil {
			s.metrics.RecordDecodeError("ws")
			s.logger.Warn("feed: chunk", "request_id", msg.RequestID, "error", err)
			return
		}
		sess.enqueue(msg.RequestID, msg.MessageID, msg.Index, format, msg.Audio, msg.Last)
	case MessageCue:
		sess.handleCue(&msg)
	case MessageComplete:
		s.player.MarkComplete(msg.RequestID)
	case MessageClear:
		s.player.Clear(msg.RequestID)
	case MessageClearAll:
		s.player.ClearAll()
	default:
		s.logger.Warn("feed: unknown message type", "data", string(data))
	}
}

// handleCue loads a clip from the server's bank and enqueues it under
// the message's request, sliced like any streamed audio. The clip's
// name doubles as the message id so listeners can tell cues apart.
func (sess *wsSession) handleCue(msg *Message) {
	s := sess.server
	if msg.RequestID == "" || msg.Name == "" {
		s.logger.Warn("feed: cue needs request_id and name", "request_id", msg.RequestID, "name", msg.Name)
		return
	}
	if s.bank == nil {
		s.logger.Warn("feed: cue without a sound bank", "name", msg.Name)
		return
	}
	clip, err := soundbank.ReadClip(context.Background(), s.bank, msg.Name)
	if err != nil {
		s.logger.Warn("feed: cue clip", "name", msg.Name, "error", err)
		return
	}
	if msg.Volume > 0 && msg.Volume != 1 {
		clip = pcm.Scale(clip, float32(msg.Volume))
	}
	clip, err = resampler.Convert(clip, s.format)
	if err != nil {
		s.logger.Warn("feed: cue resample", "name", msg.Name, "error", err)
		return
	}

	var raw bytes.Buffer
	raw.Grow(int(clip.Len()))
	if _, err := clip.WriteTo(&raw); err != nil {
		s.logger.Warn("feed: cue clip", "name", msg.Name, "error", err)
		return
	}
	data := raw.Bytes()
	step := int(s.format.BytesInDuration(cueChunk))
	for index := 0; len(data) > 0; index++ {
		n := min(step, len(data))
		accepted := s.player.Enqueue(msg.RequestID, index, s.format.DataChunk(data[:n]), "cue:"+msg.Name)
		s.metrics.RecordChunk("ws", accepted)
		data = data[n:]
	}
	s.player.MarkComplete(msg.RequestID)
}

func (sess *wsSession) handleBinary(data []byte) {
	s := sess.server
	frame, err := UnmarshalChunkFrame(data)
	if err != nil {
		s.metrics.RecordDecodeError("ws")
		s.logger.Warn("feed: bad binary frame", "error", err)
		return
	}
	sess.enqueue(frame.RequestID, frame.MessageID, frame.Index, frame.Format, frame.Samples, frame.Last)
}

func (sess *wsSession) enqueue(requestID, messageID string, index int, from pcm.Format, payload []byte, last bool) {
	s := sess.server
	dec, ok := sess.decoders[from]
	if !ok {
		dec = decoderFor(from, s.format)
		sess.decoders[from] = dec
	}
	chunk, err := dec.Decode(payload)
	if err != nil {
		s.metrics.RecordDecodeError("ws")
		s.logger.Warn("feed: decode chunk", "request_id", requestID, "index", index, "error", err)
		return
	}
	accepted := s.player.Enqueue(requestID, index, chunk, messageID)
	s.metrics.RecordChunk("ws", accepted)
	if last {
		s.player.MarkComplete(requestID)
	}
}

// RequestStats is one request's queue state in a stats response.
type RequestStats struct {
	RequestID string `json:"request_id"`
	playout.QueueStats
	Active  bool `json:"active"`
	Playing bool `json:"playing"`
}

// StatsResponse is the /stats payload.
type StatsResponse struct {
	Now      jsontime.Milli `json:"now"`
	Active   string         `json:"active,omitempty"`
	Playing  string         `json:"playing,omitempty"`
	Requests []RequestStats `json:"requests"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Now:      jsontime.NowMilli(),
		Active:   s.player.Active(),
		Playing:  s.player.Playing(),
		Requests: []RequestStats{},
	}
	for _, id := range s.player.Requests() {
		qs, ok := s.player.Stats(id)
		if !ok {
			continue
		}
		resp.Requests = append(resp.Requests, RequestStats{
			RequestID:  id,
			QueueStats: qs,
			Active:     id == resp.Active,
			Playing:    id == resp.Playing,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&resp); err != nil {
		s.logger.Warn("feed: write stats", "error", err)
	}
}
