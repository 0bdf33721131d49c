package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"
	"github.com/gorilla/websocket"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/buffer"
	"github.com/loroworks/loro/go/pkg/jsontime"
)

// ErrClientClosed is returned by sends on a closed Client.
var ErrClientClosed = errors.New("feed: client closed")

const helloTimeout = 10 * time.Second

// Client is the producer side of the feed websocket. Sends queue to a
// writer goroutine; on connection loss the writer reconnects with
// backoff and resends the frame that failed, so delivery is
// at-least-once and the receiver's index ordering makes resends
// harmless.
type Client struct {
	url       string
	format    pcm.Format
	dialer    *websocket.Dialer
	logger    *slog.Logger
	connectID string
	flush     time.Duration

	out    *buffer.Buffer[*outFrame]
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// outFrame is one queued wire frame, JSON or binary.
type outFrame struct {
	text   *Message
	binary []byte
}

type ClientOption func(*Client)

func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithFlushTimeout bounds how long Close waits for queued frames to
// reach the server.
func WithFlushTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.flush = d }
}

// Dial connects to a feed server. The context bounds the initial
// connection only; reconnects after that are governed by Close.
func Dial(ctx context.Context, url string, format pcm.Format, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:       url,
		format:    format,
		dialer:    websocket.DefaultDialer,
		logger:    slog.Default(),
		connectID: uuid.NewString(),
		flush:     5 * time.Second,
		out:       buffer.N[*outFrame](64),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	conn, err := c.connect(ctx)
	if err != nil {
		c.cancel()
		return nil, err
	}
	go c.run(conn)
	return c, nil
}

// SendChunk queues one audio chunk as a binary frame.
func (c *Client) SendChunk(requestID, messageID string, index int, data pcm.Chunk) error {
	return c.sendChunk(requestID, messageID, index, data, false)
}

// SendLast queues the final chunk of a request; the server completes
// the request after enqueuing it.
func (c *Client) SendLast(requestID, messageID string, index int, data pcm.Chunk) error {
	return c.sendChunk(requestID, messageID, index, data, true)
}

func (c *Client) sendChunk(requestID, messageID string, index int, data pcm.Chunk, last bool) error {
	var samples bytes.Buffer
	samples.Grow(int(data.Len()))
	if _, err := data.WriteTo(&samples); err != nil {
		return fmt.Errorf("feed: serialize chunk: %w", err)
	}
	frame, err := MarshalChunkFrame(&ChunkFrame{
		RequestID: requestID,
		MessageID: messageID,
		Index:     index,
		Format:    data.Format(),
		Last:      last,
		Samples:   samples.Bytes(),
	})
	if err != nil {
		return err
	}
	return c.queue(&outFrame{binary: frame})
}

// Cue asks the server to play a named clip from its own sound bank
// under requestID. A zero volume plays the clip unscaled.
func (c *Client) Cue(requestID, name string, volume float64) error {
	return c.queue(&outFrame{text: &Message{
		Type:      MessageCue,
		RequestID: requestID,
		Name:      name,
		Volume:    volume,
		SentAt:    jsontime.NowMilli(),
	}})
}

// Complete marks a request finished without sending more audio.
func (c *Client) Complete(requestID string) error {
	return c.queue(&outFrame{text: &Message{
		Type:      MessageComplete,
		RequestID: requestID,
		SentAt:    jsontime.NowMilli(),
	}})
}

// Clear discards a request on the server.
func (c *Client) Clear(requestID string) error {
	return c.queue(&outFrame{text: &Message{
		Type:      MessageClear,
		RequestID: requestID,
		SentAt:    jsontime.NowMilli(),
	}})
}

// ClearAll discards every request on the server.
func (c *Client) ClearAll() error {
	return c.queue(&outFrame{text: &Message{
		Type:   MessageClearAll,
		SentAt: jsontime.NowMilli(),
	}})
}

func (c *Client) queue(f *outFrame) error {
	if err := c.out.Add(f); err != nil {
		return ErrClientClosed
	}
	return nil
}

// Close flushes queued frames for up to the flush timeout, then tears
// the connection down.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.out.CloseWrite()
		select {
		case <-c.done:
		case <-time.After(c.flush):
		}
		c.cancel()
	})
	<-c.done
	return nil
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", c.url, err)
	}
	hello := Message{
		Type:      MessageHello,
		ConnectID: c.connectID,
		Rate:      c.format.SampleRate(),
		SentAt:    jsontime.NowMilli(),
	}
	if err := conn.WriteJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("feed: send hello: %w", err)
	}
	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	var reply Message
	if err := conn.ReadJSON(&reply); err != nil {
		conn.Close()
		return nil, fmt.Errorf("feed: read hello reply: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	if reply.Type != MessageHello {
		conn.Close()
		return nil, fmt.Errorf("feed: unexpected hello reply type %v", reply.Type)
	}
	c.logger.Info("feed: connected", "url", c.url, "server_rate", reply.Rate)
	return conn, nil
}

func (c *Client) run(conn *websocket.Conn) {
	defer close(c.done)
	defer func() {
		if conn != nil {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		}
	}()

	backoff := c.newBackoff()
	var pending *outFrame
	for {
		if c.ctx.Err() != nil {
			return
		}
		if conn == nil {
			var err error
			conn, err = c.connect(c.ctx)
			if err != nil {
				c.logger.Warn("feed: reconnect", "error", err)
				if gax.Sleep(c.ctx, backoff.Pause()) != nil {
					return
				}
				continue
			}
			backoff = c.newBackoff()
		}
		if pending == nil {
			f, err := c.out.Next()
			if err != nil {
				return
			}
			pending = f
		}
		if err := c.write(conn, pending); err != nil {
			c.logger.Warn("feed: write failed, reconnecting", "error", err)
			conn.Close()
			conn = nil
			continue
		}
		pending = nil
	}
}

func (c *Client) newBackoff() gax.Backoff {
	return gax.Backoff{
		Initial:    200 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2,
	}
}

func (c *Client) write(conn *websocket.Conn, f *outFrame) error {
	if f.text != nil {
		return conn.WriteJSON(f.text)
	}
	return conn.WriteMessage(websocket.BinaryMessage, f.binary)
}
