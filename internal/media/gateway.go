// Package media implements the Media Gateway: the uniform bidirectional
// audio transport contract that the Voice Pipeline drives, with one
// concrete variant per transport (browser, SIP/RTP, telephony-provider).
// All three normalize inbound/outbound audio to 16 kHz mono PCM16 little-
// endian internally; only the wire format at the transport boundary
// differs.
package media

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voxbridge/voicecore/internal/types"
)

// timeNowUnixNano is the package's single time source for AudioChunk
// timestamps, overridable in tests.
var timeNowUnixNano = func() int64 { return time.Now().UnixNano() }

// receiveIdleTimeout bounds how long ReceiveAudio blocks before reporting
// idle, matching the "non-blocking up to a short timeout" contract.
const receiveIdleTimeout = 50 * time.Millisecond

// ErrClosed is returned by SendAudio and ReceiveAudio after Close.
var ErrClosed = errors.New("media gateway closed")

// Gateway is the transport-agnostic contract every Media Gateway variant
// satisfies.
type Gateway interface {
	// ReceiveAudio returns the next inbound chunk, or (nil, nil) if none
	// arrived within the idle window. Returns io.EOF once the transport
	// closes the connection from the far end.
	ReceiveAudio(ctx context.Context) (*types.AudioChunk, error)

	// SendAudio enqueues outbound PCM for playback. A no-op after Close.
	SendAudio(chunk *types.AudioChunk) error

	// CancelPlayback drops any pending outbound audio. Used for barge-in:
	// the caller stops TTS generation and calls this to purge what's
	// already queued for the wire.
	CancelPlayback()

	// RecordingBuffer is the append-only sink of inbound raw PCM for this
	// call, attached once at construction.
	RecordingBuffer() *types.RecordingBuffer

	// Close is idempotent: it releases transport resources and flushes
	// RecordingBuffer. Safe to call more than once.
	Close() error
}

// outboundQueue is the shared playback-queue plumbing used by every Gateway
// variant: a buffered channel that a transport-specific writer goroutine
// drains, plus a generation counter so CancelPlayback can discard whatever
// is already queued without racing the writer goroutine.
type outboundQueue struct {
	mu         sync.Mutex
	generation uint64
	chunks     chan outboundChunk
	closed     bool
}

type outboundChunk struct {
	generation uint64
	data       []byte
}

func newOutboundQueue(capacity int) *outboundQueue {
	return &outboundQueue{chunks: make(chan outboundChunk, capacity)}
}

func (q *outboundQueue) enqueue(data []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	gen := q.generation
	q.mu.Unlock()

	select {
	case q.chunks <- outboundChunk{generation: gen, data: data}:
		return nil
	default:
		// Outbound buffer full: drop rather than block the caller, matching
		// how the inbound side drops under backpressure (see Gateway variants).
		return nil
	}
}

// cancel bumps the generation so any chunk already sitting in the channel
// (queued under the old generation) is discarded by the writer loop.
func (q *outboundQueue) cancel() {
	q.mu.Lock()
	q.generation++
	q.mu.Unlock()

drain:
	for {
		select {
		case <-q.chunks:
		default:
			break drain
		}
	}
}

func (q *outboundQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.chunks)
}

// currentGeneration reads the generation under lock, for writer loops that
// need to discard a chunk pulled after a concurrent cancel.
func (q *outboundQueue) currentGeneration() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generation
}
