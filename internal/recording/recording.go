// Package recording serializes a call's raw audio buffer to a storable
// artifact and hands it to an external storage sink, and accumulates the
// call's transcript into a structured, summarizable form.
package recording

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/voxbridge/voicecore/internal/types"
)

// filePermissions guards any local artifact this package writes before
// handoff (the storage sink is the durable home; disk use here is scratch).
const filePermissions = 0600

const (
	wavHeaderSize  = 44
	pcmFormatTag   = 1 // linear PCM
	bitsPerByte    = 8
	riffHeaderTag  = "RIFF"
	waveFormatTag  = "WAVE"
	fmtChunkTag    = "fmt "
	dataChunkTag   = "data"
	fmtChunkLength = 16
)

// ToWAV serializes a RecordingBuffer's accumulated PCM16 chunks into a
// single WAV-container byte slice: a standard 44-byte PCM header followed
// by the concatenated sample data, in the order chunks were appended.
func ToWAV(buf *types.RecordingBuffer) ([]byte, error) {
	if buf == nil {
		return nil, fmt.Errorf("recording: nil buffer")
	}

	dataSize := buf.TotalBytes()
	out := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))

	sampleRate := uint32(buf.SampleRate)
	channels := uint16(buf.Channels)
	bitDepth := uint16(buf.BitDepth)
	blockAlign := channels * bitDepth / bitsPerByte
	byteRate := sampleRate * uint32(blockAlign)

	out.WriteString(riffHeaderTag)
	writeUint32(out, uint32(dataSize)+uint32(wavHeaderSize)-8) //nolint:gosec // header size is a small positive constant
	out.WriteString(waveFormatTag)

	out.WriteString(fmtChunkTag)
	writeUint32(out, fmtChunkLength)
	writeUint16(out, pcmFormatTag)
	writeUint16(out, channels)
	writeUint32(out, sampleRate)
	writeUint32(out, byteRate)
	writeUint16(out, blockAlign)
	writeUint16(out, bitDepth)

	out.WriteString(dataChunkTag)
	writeUint32(out, uint32(dataSize)) //nolint:gosec // call audio is bounded well under 4GiB
	for _, chunk := range buf.Chunks {
		out.Write(chunk)
	}

	return out.Bytes(), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

// Metadata travels alongside a recording artifact to its storage sink.
type Metadata struct {
	TenantID   string `json:"tenant_id"`
	CampaignID string `json:"campaign_id"`
	CallID     string `json:"call_id"`
}

// StorageSink is the external collaborator a recording is hand off to on
// call end. Implementations might write to object storage, a local disk
// staging area, or (in tests) an in-memory map.
type StorageSink interface {
	Store(ctx context.Context, meta Metadata, wav []byte) error
}

// Export serializes a call's recording buffer and hands it, with its
// identifying metadata, to sink. It is the call-end counterpart to the
// Media Gateway's per-chunk Append during the call.
func Export(ctx context.Context, sink StorageSink, session *types.CallSession) error {
	if session == nil {
		return fmt.Errorf("recording: nil session")
	}
	wav, err := ToWAV(session.RecordingBuffer)
	if err != nil {
		return fmt.Errorf("recording: serialize: %w", err)
	}
	meta := Metadata{
		TenantID:   session.TenantID,
		CampaignID: session.CampaignID,
		CallID:     session.CallID,
	}
	if err := sink.Store(ctx, meta, wav); err != nil {
		return fmt.Errorf("recording: store: %w", err)
	}
	return nil
}

// FileSink stages recordings under a local directory, one {call_id}.wav
// plus a {call_id}.json metadata sidecar per call. It is meant for local
// development and tests; production deployments hand recordings to an
// object-storage-backed StorageSink instead.
type FileSink struct {
	Dir string
}

// Store writes wav and meta to Dir.
func (f *FileSink) Store(_ context.Context, meta Metadata, wav []byte) error {
	if err := os.MkdirAll(f.Dir, 0o700); err != nil {
		return fmt.Errorf("recording: mkdir: %w", err)
	}
	wavPath := filepath.Join(f.Dir, meta.CallID+".wav")
	if err := os.WriteFile(wavPath, wav, filePermissions); err != nil {
		return fmt.Errorf("recording: write wav: %w", err)
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("recording: marshal metadata: %w", err)
	}
	metaPath := filepath.Join(f.Dir, meta.CallID+".json")
	if err := os.WriteFile(metaPath, metaBytes, filePermissions); err != nil {
		return fmt.Errorf("recording: write metadata: %w", err)
	}
	return nil
}
