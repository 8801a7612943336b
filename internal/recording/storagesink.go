package recording

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/voxbridge/voicecore/internal/storage"
	"github.com/voxbridge/voicecore/internal/types"
)

// MediaStoreSink adapts a storage.MediaStorageService (e.g. local.FileStore)
// into a recording.StorageSink, so call recordings flow through the same
// content-addressed, deduplicating, policy-aware storage layer as any other
// stored media. Metadata's RunID and ConversationID carry the call's
// tenant and campaign, since MediaMetadata has no dedicated tenant field.
type MediaStoreSink struct {
	Backend    storage.MediaStorageService
	PolicyName string // retention policy applied to every stored recording, e.g. "retain-90days"
}

// Store base64-encodes wav and hands it to Backend.StoreMedia under
// metadata derived from meta.
func (s *MediaStoreSink) Store(ctx context.Context, meta Metadata, wav []byte) error {
	encoded := base64.StdEncoding.EncodeToString(wav)
	content := &types.MediaContent{
		Data:     &encoded,
		MIMEType: types.MIMETypeAudioWAV,
	}
	if err := content.Validate(); err != nil {
		return fmt.Errorf("recording: media content: %w", err)
	}

	mediaMeta := &storage.MediaMetadata{
		RunID:          meta.TenantID,
		ConversationID: meta.CampaignID,
		SessionID:      meta.CallID,
		MIMEType:       types.MIMETypeAudioWAV,
		SizeBytes:      int64(len(wav)),
		Timestamp:      time.Now(),
		PolicyName:     s.PolicyName,
	}

	if _, err := s.Backend.StoreMedia(ctx, content, mediaMeta); err != nil {
		return fmt.Errorf("recording: store media: %w", err)
	}
	return nil
}
