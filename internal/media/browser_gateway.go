package media

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxbridge/voicecore/internal/logger"
	"github.com/voxbridge/voicecore/internal/types"
)

// wsConn is the subset of *websocket.Conn the Gateway variants need. It
// exists so tests can substitute a fake without standing up a real socket.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// BrowserGateway transports 16 kHz mono PCM16 over a WebSocket message
// channel: binary frames in both directions. Inbound frames are forwarded
// to the Voice Pipeline unchanged; outbound frames are re-encoded to
// Float32 samples, the format browser AudioWorklet playback expects.
type BrowserGateway struct {
	conn    wsConn
	callID  string
	rec     *types.RecordingBuffer
	outbox  *outboundQueue
	inbox   chan inboundResult
	closeMu sync.Mutex
	closed  bool
	logOnce sync.Once
}

type inboundResult struct {
	data []byte
	err  error
}

// NewBrowserGateway wraps an established WebSocket connection. Callers
// typically construct this from the *websocket.Conn returned by
// websocket.Upgrader.Upgrade.
func NewBrowserGateway(callID string, conn wsConn) *BrowserGateway {
	g := &BrowserGateway{
		conn:   conn,
		callID: callID,
		rec: &types.RecordingBuffer{
			CallID: callID, SampleRate: 16000, Channels: 1, BitDepth: 16,
		},
		outbox: newOutboundQueue(64),
		inbox:  make(chan inboundResult, 16),
	}
	go g.writeLoop()
	go g.readLoop()
	return g
}

// readLoop is the single reader of the underlying connection: gorilla's
// websocket.Conn forbids concurrent reads, so ReceiveAudio never calls
// conn.ReadMessage directly.
func (g *BrowserGateway) readLoop() {
	defer close(g.inbox)
	for {
		_, data, err := g.conn.ReadMessage()
		g.inbox <- inboundResult{data: data, err: err}
		if err != nil {
			return
		}
	}
}

func (g *BrowserGateway) ReceiveAudio(ctx context.Context) (*types.AudioChunk, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r, ok := <-g.inbox:
		if !ok {
			return nil, io.EOF
		}
		if r.err != nil {
			if websocket.IsCloseError(r.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, r.err
		}
		g.rec.Append(r.data)
		return &types.AudioChunk{CallID: g.callID, Data: r.data, Timestamp: timeNowUnixNano()}, nil
	case <-time.After(receiveIdleTimeout):
		return nil, nil
	}
}

func (g *BrowserGateway) SendAudio(chunk *types.AudioChunk) error {
	if err := g.outbox.enqueue(pcm16ToFloat32LE(chunk.Data)); err != nil {
		g.logOnce.Do(func() {
			logger.Warn("send_audio after close, dropping", "call_id", g.callID)
		})
	}
	return nil
}

func (g *BrowserGateway) CancelPlayback() {
	g.outbox.cancel()
}

func (g *BrowserGateway) RecordingBuffer() *types.RecordingBuffer {
	return g.rec
}

func (g *BrowserGateway) Close() error {
	g.closeMu.Lock()
	defer g.closeMu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.outbox.close()
	return g.conn.Close()
}

func (g *BrowserGateway) writeLoop() {
	for chunk := range g.outbox.chunks {
		if chunk.generation != g.outbox.currentGeneration() {
			continue
		}
		if err := g.conn.WriteMessage(websocket.BinaryMessage, chunk.data); err != nil {
			g.logOnce.Do(func() {
				logger.Warn("media gateway send after close", "call_id", g.callID, "error", err.Error())
			})
			return
		}
	}
}

// pcm16ToFloat32LE converts 16-bit signed little-endian PCM samples to
// IEEE-754 float32 little-endian samples normalized to [-1, 1], the format
// expected by a browser AudioWorklet's output buffer.
func pcm16ToFloat32LE(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		sample := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		f := float32(sample) / 32768.0
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}
