package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxbridge/voicecore/internal/logger"
	"github.com/voxbridge/voicecore/internal/types"
)

// telephonyEvent mirrors the provider-agnostic shape of a telephony media
// stream event (Twilio Media Streams and equivalents): a JSON envelope
// carrying base64-encoded audio rather than raw binary frames.
type telephonyEvent struct {
	Event     string          `json:"event"`
	StreamSID string          `json:"streamSid,omitempty"`
	Media     *telephonyMedia `json:"media,omitempty"`
}

type telephonyMedia struct {
	Payload string `json:"payload"`
}

// TelephonyGateway transports 16 kHz mono PCM16 over a telephony provider's
// JSON/base64 WebSocket media stream. No resampling is needed: the
// provider already delivers 16 kHz, unlike the SIP/RTP leg.
type TelephonyGateway struct {
	conn      wsConn
	callID    string
	streamSID string
	rec       *types.RecordingBuffer
	outbox    *outboundQueue
	inbox     chan inboundResult
	closeMu   sync.Mutex
	closed    bool
	logOnce   sync.Once
}

// NewTelephonyGateway wraps an established telephony-provider WebSocket
// connection. streamSID identifies the provider-side stream and is echoed
// on every outbound media frame.
func NewTelephonyGateway(callID, streamSID string, conn wsConn) *TelephonyGateway {
	g := &TelephonyGateway{
		conn:      conn,
		callID:    callID,
		streamSID: streamSID,
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

func (g *TelephonyGateway) readLoop() {
	defer close(g.inbox)
	for {
		_, data, err := g.conn.ReadMessage()
		if err != nil {
			g.inbox <- inboundResult{err: err}
			return
		}

		var evt telephonyEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			logger.Warn("telephony gateway: malformed event", "call_id", g.callID, "error", err.Error())
			continue
		}
		if evt.Event != "media" || evt.Media == nil {
			continue
		}

		pcm, err := base64.StdEncoding.DecodeString(evt.Media.Payload)
		if err != nil {
			logger.Warn("telephony gateway: malformed payload", "call_id", g.callID, "error", err.Error())
			continue
		}
		g.inbox <- inboundResult{data: pcm}
	}
}

func (g *TelephonyGateway) ReceiveAudio(ctx context.Context) (*types.AudioChunk, error) {
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

func (g *TelephonyGateway) SendAudio(chunk *types.AudioChunk) error {
	if err := g.outbox.enqueue(chunk.Data); err != nil {
		g.logOnce.Do(func() {
			logger.Warn("send_audio after close, dropping", "call_id", g.callID)
		})
	}
	return nil
}

func (g *TelephonyGateway) CancelPlayback() {
	g.outbox.cancel()
}

func (g *TelephonyGateway) RecordingBuffer() *types.RecordingBuffer {
	return g.rec
}

func (g *TelephonyGateway) Close() error {
	g.closeMu.Lock()
	defer g.closeMu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.outbox.close()
	return g.conn.Close()
}

func (g *TelephonyGateway) writeLoop() {
	for chunk := range g.outbox.chunks {
		if chunk.generation != g.outbox.currentGeneration() {
			continue
		}
		evt := telephonyEvent{
			Event:     "media",
			StreamSID: g.streamSID,
			Media:     &telephonyMedia{Payload: base64.StdEncoding.EncodeToString(chunk.data)},
		}
		payload, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		if err := g.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			g.logOnce.Do(func() {
				logger.Warn("media gateway send after close", "call_id", g.callID, "error", err.Error())
			})
			return
		}
	}
}
