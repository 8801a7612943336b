package recording

import (
	"strings"

	"github.com/voxbridge/voicecore/internal/types"
)

// TranscriptSummary is the call-end emission of the Transcript Accumulator:
// the structured turn array plus the two derived views most callers want
// (concatenated plain text, and counts for analytics). Persistence beyond
// this point is the caller's responsibility.
type TranscriptSummary struct {
	Turns     []types.TranscriptTurn `json:"turns"`
	PlainText string                 `json:"plain_text"`
	WordCount int                    `json:"word_count"`
	TurnCount int                    `json:"turn_count"`
}

// Summarize builds a TranscriptSummary from a call's accumulated turns.
// Turns are appended to the session by CallSession.AppendTurn as the
// Voice Pipeline finalizes each side of the dialogue; Summarize is the
// passive, read-only collector invoked at call end.
func Summarize(turns []types.TranscriptTurn) TranscriptSummary {
	var text strings.Builder
	words := 0
	for i, t := range turns {
		if i > 0 {
			text.WriteByte('\n')
		}
		text.WriteString(string(t.Role))
		text.WriteString(": ")
		text.WriteString(t.Content)
		words += len(strings.Fields(t.Content))
	}

	return TranscriptSummary{
		Turns:     turns,
		PlainText: text.String(),
		WordCount: words,
		TurnCount: len(turns),
	}
}
