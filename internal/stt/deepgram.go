package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxbridge/voicecore/internal/apperrors"
	"github.com/voxbridge/voicecore/internal/types"
)

const (
	deepgramDefaultURL = "wss://api.deepgram.com/v1/listen"
	deepgramHandshake  = 15 * time.Second
)

// DeepgramService streams audio to Deepgram's listen endpoint and relays
// its model-native Partial/Final/EndOfTurn events. It satisfies
// StreamingService directly: Deepgram supplies real incremental
// transcripts, so no VAD-derived batching is needed.
type DeepgramService struct {
	apiKey string
	url    string
	dialer *websocket.Dialer
}

// NewDeepgramService creates a Deepgram streaming STT adapter.
func NewDeepgramService(apiKey string) *DeepgramService {
	return &DeepgramService{
		apiKey: apiKey,
		url:    deepgramDefaultURL,
		dialer: &websocket.Dialer{HandshakeTimeout: deepgramHandshake},
	}
}

func (s *DeepgramService) Name() string {
	return "deepgram"
}

type deepgramMessage struct {
	Type    string `json:"type"`
	Channel *struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel,omitempty"`
	IsFinal     bool `json:"is_final"`
	SpeechFinal bool `json:"speech_final"`
}

// StreamTranscribe opens a Deepgram WebSocket connection, forwards chunks as
// binary frames, and translates Deepgram's JSON result frames into
// TranscriptEvents. Dropped connections are reported as a transient error;
// callers reconnect once per the provider error policy.
func (s *DeepgramService) StreamTranscribe(
	ctx context.Context, chunks <-chan *types.AudioChunk,
) (<-chan types.TranscriptEvent, error) {
	q := url.Values{}
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	q.Set("endpointing", "300")

	reqURL := s.url + "?" + q.Encode()
	headers := http.Header{}
	headers.Set("Authorization", "Token "+s.apiKey)

	conn, _, err := s.dialer.DialContext(ctx, reqURL, headers)
	if err != nil {
		return nil, apperrors.NewKind("deepgram", "StreamTranscribe", apperrors.KindTransientProvider, err)
	}

	out := make(chan types.TranscriptEvent, 16)
	var writeMu sync.Mutex

	go func() {
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				writeMu.Lock()
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				writeMu.Unlock()
				return
			case chunk, ok := <-chunks:
				if !ok {
					writeMu.Lock()
					conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
					writeMu.Unlock()
					return
				}
				writeMu.Lock()
				err := conn.WriteMessage(websocket.BinaryMessage, chunk.Data)
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	go func() {
		defer close(out)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				out <- types.TranscriptEvent{Kind: types.EventSTTError, ErrKind: types.ProviderErrorTransient, Err: err}
				return
			}

			var msg deepgramMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg.Channel == nil || len(msg.Channel.Alternatives) == 0 {
				continue
			}

			alt := msg.Channel.Alternatives[0]
			if alt.Transcript == "" {
				continue
			}

			if msg.IsFinal {
				out <- types.TranscriptEvent{Kind: types.EventFinal, Text: alt.Transcript, Confidence: alt.Confidence}
			} else {
				out <- types.TranscriptEvent{Kind: types.EventPartial, Text: alt.Transcript}
			}

			if msg.SpeechFinal {
				out <- types.TranscriptEvent{Kind: types.EventEndTurn, Confidence: alt.Confidence}
			}
		}
	}()

	return out, nil
}
