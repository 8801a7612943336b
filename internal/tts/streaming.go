package tts

import (
	"context"
	"io"

	"github.com/voxbridge/voicecore/internal/types"
)

// chunkSize is the read size used to turn a non-streaming Service's
// io.ReadCloser into an incremental chunk stream. HTTP response bodies
// still deliver bytes as the provider generates them, so chunking the
// read loop gives a real (if coarser) first-chunk latency improvement
// over buffering the entire response.
const chunkSize = 4096

// StreamSynthesize adapts any Service to the stream_synthesize contract,
// emitting types.SynthesisEvent over a channel. Providers implementing
// StreamingService use their native chunking; others are wrapped by
// reading the batch response incrementally. ctx cancellation stops
// delivery within one read interval and closes the underlying reader.
func StreamSynthesize(ctx context.Context, svc Service, text string, config SynthesisConfig) (<-chan types.SynthesisEvent, error) {
	if streaming, ok := svc.(StreamingService); ok {
		return streamNative(ctx, streaming, text, config)
	}
	return streamChunkedReader(ctx, svc, text, config)
}

func streamNative(ctx context.Context, svc StreamingService, text string, config SynthesisConfig) (<-chan types.SynthesisEvent, error) {
	chunks, err := svc.SynthesizeStream(ctx, text, config)
	if err != nil {
		return nil, err
	}

	out := make(chan types.SynthesisEvent, 8)
	go func() {
		defer close(out)
		for c := range chunks {
			if c.Error != nil {
				out <- types.SynthesisEvent{Kind: types.SynthesisError, ErrKind: types.ProviderErrorTransient, Err: c.Error}
				return
			}
			if len(c.Data) > 0 {
				out <- types.SynthesisEvent{Kind: types.SynthesisChunk, Audio: c.Data}
			}
			if c.Final {
				out <- types.SynthesisEvent{Kind: types.SynthesisDone}
				return
			}
		}
	}()
	return out, nil
}

func streamChunkedReader(ctx context.Context, svc Service, text string, config SynthesisConfig) (<-chan types.SynthesisEvent, error) {
	reader, err := svc.Synthesize(ctx, text, config)
	if err != nil {
		return nil, err
	}

	out := make(chan types.SynthesisEvent, 8)
	go func() {
		defer close(out)
		defer reader.Close()

		buf := make([]byte, chunkSize)
		for {
			select {
			case <-ctx.Done():
				out <- types.SynthesisEvent{Kind: types.SynthesisError, ErrKind: types.ProviderErrorTransient, Err: ctx.Err()}
				return
			default:
			}

			n, err := reader.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				out <- types.SynthesisEvent{Kind: types.SynthesisChunk, Audio: chunk}
			}
			if err == io.EOF {
				out <- types.SynthesisEvent{Kind: types.SynthesisDone}
				return
			}
			if err != nil {
				out <- types.SynthesisEvent{Kind: types.SynthesisError, ErrKind: types.ProviderErrorTransient, Err: err}
				return
			}
		}
	}()
	return out, nil
}
