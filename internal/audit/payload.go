package audit

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

const maxRedFlags = 5

var (
	reasoningBlockPattern = regexp.MustCompile(`(?is)<think>.*?</think>|<thinking>.*?</thinking>|<reasoning>.*?</reasoning>`)
	reasoningClosePattern = regexp.MustCompile(`(?i)</(?:think|thinking|reasoning)>`)
	codeFencePattern      = regexp.MustCompile("(?i)```(?:json)?")
)

// StripReasoning removes reasoning blocks a model leaked into its answer.
// A dangling close tag drops everything before it.
func StripReasoning(text string) string {
	text = reasoningBlockPattern.ReplaceAllString(text, "")
	if loc := reasoningClosePattern.FindAllStringIndex(text, -1); len(loc) > 0 {
		text = text[loc[len(loc)-1][1]:]
	}
	return strings.TrimSpace(text)
}

func stripCodeFences(text string) string {
	return strings.TrimSpace(codeFencePattern.ReplaceAllString(text, ""))
}

// ExtractJSONPayload pulls the outermost JSON object out of free-form model
// text after removing reasoning blocks and Markdown fences.
func ExtractJSONPayload(raw string) (string, error) {
	text := stripCodeFences(StripReasoning(raw))
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrMalformedOutput)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no json object found", ErrMalformedOutput)
	}
	return text[start : end+1], nil
}

type roastPayload struct {
	ToxicityScore       *float64 `json:"toxicityScore"`
	Verdict             string   `json:"verdict"`
	ShortAnalysis       string   `json:"shortAnalysis"`
	HiddenRedFlagsCount *float64 `json:"hiddenRedFlagsCount"`
	DetailedAnalysis    *string  `json:"detailedAnalysis"`
	RedFlagsList        []string `json:"redFlagsList"`
	Advice              *string  `json:"advice"`
}

// ParseRoastResult extracts and validates a RoastResult from model text.
// toxicityScore must be present and numeric and verdict must be non-blank;
// premium fields are optional. Numeric fields are clamped to their ranges.
func ParseRoastResult(raw string) (RoastResult, error) {
	payload, err := ExtractJSONPayload(raw)
	if err != nil {
		return RoastResult{}, err
	}

	var p roastPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return RoastResult{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if p.ToxicityScore == nil || math.IsNaN(*p.ToxicityScore) {
		return RoastResult{}, fmt.Errorf("%w: toxicityScore missing", ErrMalformedOutput)
	}
	verdict := strings.TrimSpace(p.Verdict)
	if verdict == "" {
		return RoastResult{}, fmt.Errorf("%w: verdict missing", ErrMalformedOutput)
	}

	result := RoastResult{
		ToxicityScore:    clampInt(int(math.Round(*p.ToxicityScore)), 0, 100),
		Verdict:          verdict,
		ShortAnalysis:    strings.TrimSpace(p.ShortAnalysis),
		DetailedAnalysis: nonBlank(p.DetailedAnalysis),
		Advice:           nonBlank(p.Advice),
	}

	for _, flag := range p.RedFlagsList {
		if flag = strings.TrimSpace(flag); flag != "" {
			result.RedFlagsList = append(result.RedFlagsList, flag)
		}
		if len(result.RedFlagsList) == maxRedFlags {
			break
		}
	}

	hidden := len(result.RedFlagsList)
	if p.HiddenRedFlagsCount != nil {
		hidden = int(math.Round(*p.HiddenRedFlagsCount))
	}
	result.HiddenRedFlagsCount = clampInt(hidden, 2, maxRedFlags)
	return result, nil
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
