package media

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/voxbridge/voicecore/internal/logger"
	"github.com/voxbridge/voicecore/internal/types"
)

// rtpPacketInterval is the standard G.711 RTP packetization interval: one
// frame per 20ms of audio. writeLoop paces outbound frames to this rate so
// a burst of buffered TTS audio cannot flood the RTP leg faster than the
// far end plays it back (§5 outbound back-pressure policy).
const rtpPacketInterval = 20 * time.Millisecond

// rtpConn is the narrow frame transport a SIP leg needs: read/write one
// G.711 payload per call, with io.EOF on session teardown. The SIP/RTP
// packet parsing itself (sequence numbers, jitter buffer, payload type
// negotiation) is out of scope — this is the interface to it.
type rtpConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
	Close() error
}

// SIPGateway transports G.711 μ-law 8 kHz over an RTP frame connection and
// converts at the boundary: inbound frames are upsampled to 16 kHz PCM16
// for the rest of the pipeline, outbound 16 kHz PCM16 is downsampled and
// μ-law encoded before the wire.
type SIPGateway struct {
	conn    rtpConn
	callID  string
	rec     *types.RecordingBuffer
	outbox  *outboundQueue
	inbox   chan inboundResult
	pacer   *rate.Limiter
	closeMu sync.Mutex
	closed  bool
	logOnce sync.Once
}

// NewSIPGateway wraps an established RTP frame connection for one call leg.
func NewSIPGateway(callID string, conn rtpConn) *SIPGateway {
	g := &SIPGateway{
		conn:   conn,
		callID: callID,
		rec: &types.RecordingBuffer{
			CallID: callID, SampleRate: 16000, Channels: 1, BitDepth: 16,
		},
		outbox: newOutboundQueue(64),
		inbox:  make(chan inboundResult, 16),
		pacer:  rate.NewLimiter(rate.Every(rtpPacketInterval), 1),
	}
	go g.writeLoop()
	go g.readLoop()
	return g
}

func (g *SIPGateway) readLoop() {
	defer close(g.inbox)
	for {
		frame, err := g.conn.ReadFrame()
		if err != nil {
			g.inbox <- inboundResult{err: err}
			return
		}
		g.inbox <- inboundResult{data: upsamplePCM16(muLawToPCM(frame))}
	}
}

func (g *SIPGateway) ReceiveAudio(ctx context.Context) (*types.AudioChunk, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r, ok := <-g.inbox:
		if !ok {
			return nil, io.EOF
		}
		if r.err != nil {
			if r.err == io.EOF {
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

func (g *SIPGateway) SendAudio(chunk *types.AudioChunk) error {
	if err := g.outbox.enqueue(pcmToMuLawBytes(downsamplePCM16(chunk.Data))); err != nil {
		g.logOnce.Do(func() {
			logger.Warn("send_audio after close, dropping", "call_id", g.callID)
		})
	}
	return nil
}

func (g *SIPGateway) CancelPlayback() {
	g.outbox.cancel()
}

func (g *SIPGateway) RecordingBuffer() *types.RecordingBuffer {
	return g.rec
}

func (g *SIPGateway) Close() error {
	g.closeMu.Lock()
	defer g.closeMu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.outbox.close()
	return g.conn.Close()
}

func (g *SIPGateway) writeLoop() {
	for chunk := range g.outbox.chunks {
		if chunk.generation != g.outbox.currentGeneration() {
			continue
		}
		if err := g.pacer.Wait(context.Background()); err != nil {
			return
		}
		if err := g.conn.WriteFrame(chunk.data); err != nil {
			g.logOnce.Do(func() {
				logger.Warn("media gateway send after close", "call_id", g.callID, "error", err.Error())
			})
			return
		}
	}
}
