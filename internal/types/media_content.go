package types

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
)

// Common recording MIME types.
const (
	MIMETypeAudioWAV = "audio/wav"
	MIMETypeAudioMP3 = "audio/mpeg"
)

// MediaContent carries one exported call recording's audio payload, as
// either inline base64 data or a local file path. Storage backends accept
// either and normalize to durable storage on StoreMedia.
type MediaContent struct {
	Data     *string // base64-encoded WAV bytes
	FilePath *string // local path to an already-written WAV file
	URL      *string // external URL, e.g. a telephony provider's recording URL

	StorageReference *string

	MIMEType   string
	SizeKB     *int64
	Duration   *int // seconds
	Channels   *int
	PolicyName *string // retention policy to apply, e.g. "retain-90days"
}

// Validate checks that exactly one data source is set and MIMEType is present.
func (mc *MediaContent) Validate() error {
	sources := 0
	if mc.Data != nil && *mc.Data != "" {
		sources++
	}
	if mc.FilePath != nil && *mc.FilePath != "" {
		sources++
	}
	if mc.URL != nil && *mc.URL != "" {
		sources++
	}
	if sources != 1 {
		return fmt.Errorf("media content must have exactly one data source, found %d", sources)
	}
	if mc.MIMEType == "" {
		return fmt.Errorf("media content must have mime_type")
	}
	return nil
}

// ReadData returns a reader over the recording's bytes, decoding base64
// data or opening the referenced file as needed.
func (mc *MediaContent) ReadData() (io.ReadCloser, error) {
	if mc.Data != nil {
		decoded, err := base64.StdEncoding.DecodeString(*mc.Data)
		if err != nil {
			return nil, fmt.Errorf("decode base64 data: %w", err)
		}
		return io.NopCloser(strings.NewReader(string(decoded))), nil
	}
	if mc.FilePath != nil {
		f, err := os.Open(*mc.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open file %s: %w", *mc.FilePath, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("no data source available")
}
