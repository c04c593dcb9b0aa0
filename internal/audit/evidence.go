package audit

import (
	"fmt"
	"strings"
)

const rawTextPlaceholder = "N/A"

// EvidenceBundle is the merged proof for one audit: pasted text plus the
// screenshot transcript.
type EvidenceBundle struct {
	RawText          string
	VisionTranscript string
}

// AggregateEvidence merges pasted text and a screenshot transcript.
func AggregateEvidence(rawText, visionTranscript string) EvidenceBundle {
	return EvidenceBundle{
		RawText:          strings.TrimSpace(rawText),
		VisionTranscript: strings.TrimSpace(visionTranscript),
	}
}

// String renders the labeled sections embedded in the roast prompt. Missing
// raw text reads N/A; a missing transcript renders empty.
func (b EvidenceBundle) String() string {
	raw := b.RawText
	if raw == "" {
		raw = rawTextPlaceholder
	}
	return fmt.Sprintf("RAW TEXT INPUT: \"%s\"\nSCREENSHOT TRANSCRIPT: \"%s\"", raw, b.VisionTranscript)
}

// Recap is the shorter evidence block used as chat context.
func (b EvidenceBundle) Recap() string {
	recap := fmt.Sprintf("Text Evidence: \"%s\"", b.RawText)
	if b.VisionTranscript != "" {
		recap += fmt.Sprintf("\nScreenshot Transcript: \"%s\"", b.VisionTranscript)
	}
	return recap
}
