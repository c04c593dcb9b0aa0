package audit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/love-auditor/internal/inference"
)

// MaxScreenshotBytes caps the decoded screenshot payload.
const MaxScreenshotBytes = 5 << 20

var (
	// ErrInvalidInput wraps validation failures on AuditInput.
	ErrInvalidInput = errors.New("audit: invalid input")
	// ErrMisconfigured is returned alongside a fallback value when the
	// inference provider has no credentials to use.
	ErrMisconfigured = errors.New("audit: inference misconfigured")
	// ErrMalformedOutput means the model answered but the payload could not
	// be turned into a RoastResult.
	ErrMalformedOutput = errors.New("audit: malformed model output")
)

// Gender describes the partner being audited.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// ParseGender normalizes a gender value case-insensitively.
func ParseGender(raw string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male", "m":
		return GenderMale, nil
	case "female", "f":
		return GenderFemale, nil
	case "other":
		return GenderOther, nil
	default:
		return "", fmt.Errorf("%w: unknown gender %q", ErrInvalidInput, raw)
	}
}

// RelationshipStatus describes where the relationship stands.
type RelationshipStatus string

const (
	StatusDating        RelationshipStatus = "Dating"
	StatusMarried       RelationshipStatus = "Married"
	StatusEx            RelationshipStatus = "Ex"
	StatusTalking       RelationshipStatus = "Talking Stage"
	StatusSituationship RelationshipStatus = "Situationship"
)

// ParseStatus normalizes a relationship status case-insensitively.
func ParseStatus(raw string) (RelationshipStatus, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	switch normalized {
	case "dating":
		return StatusDating, nil
	case "married":
		return StatusMarried, nil
	case "ex":
		return StatusEx, nil
	case "talking", "talking stage", "talking_stage":
		return StatusTalking, nil
	case "situationship", "situationalship":
		return StatusSituationship, nil
	default:
		return "", fmt.Errorf("%w: unknown relationship status %q", ErrInvalidInput, raw)
	}
}

// AuditInput is everything the user submitted for a roast. Screenshot is a
// base64 data URL (or bare base64) of the uploaded image.
type AuditInput struct {
	Gender     Gender             `json:"gender"`
	Status     RelationshipStatus `json:"status"`
	ChatText   string             `json:"chat_text"`
	Screenshot string             `json:"screenshot,omitempty"`
}

func (in AuditInput) HasScreenshot() bool {
	return strings.TrimSpace(in.Screenshot) != ""
}

// Validate checks enums, requires some evidence and enforces the screenshot
// size limit.
func (in AuditInput) Validate() error {
	if _, err := ParseGender(string(in.Gender)); err != nil {
		return err
	}
	if _, err := ParseStatus(string(in.Status)); err != nil {
		return err
	}
	if strings.TrimSpace(in.ChatText) == "" && !in.HasScreenshot() {
		return fmt.Errorf("%w: chat text or screenshot is required", ErrInvalidInput)
	}
	if !in.HasScreenshot() {
		return nil
	}

	// Reject oversized payloads before decoding them.
	if len(in.Screenshot) > (MaxScreenshotBytes/3+1)*4+256 {
		return fmt.Errorf("%w: screenshot exceeds %d bytes", ErrInvalidInput, MaxScreenshotBytes)
	}
	mime, data, err := inference.ParseDataURL(in.Screenshot)
	if err != nil {
		return fmt.Errorf("%w: screenshot: %v", ErrInvalidInput, err)
	}
	if !strings.HasPrefix(mime, "image/") {
		return fmt.Errorf("%w: screenshot must be an image, got %s", ErrInvalidInput, mime)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: screenshot is empty", ErrInvalidInput)
	}
	if len(data) > MaxScreenshotBytes {
		return fmt.Errorf("%w: screenshot exceeds %d bytes", ErrInvalidInput, MaxScreenshotBytes)
	}
	return nil
}

// Normalize returns a copy with canonical enum values and trimmed text.
func (in AuditInput) Normalize() (AuditInput, error) {
	gender, err := ParseGender(string(in.Gender))
	if err != nil {
		return AuditInput{}, err
	}
	status, err := ParseStatus(string(in.Status))
	if err != nil {
		return AuditInput{}, err
	}
	in.Gender = gender
	in.Status = status
	in.ChatText = strings.TrimSpace(in.ChatText)
	in.Screenshot = strings.TrimSpace(in.Screenshot)
	return in, in.Validate()
}

// RoastResult is the verdict produced for one audit. DetailedAnalysis,
// RedFlagsList and Advice are premium content and may be absent.
type RoastResult struct {
	ToxicityScore       int      `json:"toxicityScore"`
	Verdict             string   `json:"verdict"`
	ShortAnalysis       string   `json:"shortAnalysis"`
	HiddenRedFlagsCount int      `json:"hiddenRedFlagsCount"`
	DetailedAnalysis    *string  `json:"detailedAnalysis,omitempty"`
	RedFlagsList        []string `json:"redFlagsList,omitempty"`
	Advice              *string  `json:"advice,omitempty"`
}

// Free returns the result with premium fields removed.
func (r RoastResult) Free() RoastResult {
	r.DetailedAnalysis = nil
	r.RedFlagsList = nil
	r.Advice = nil
	return r
}

func (r RoastResult) HasPremiumContent() bool {
	return r.DetailedAnalysis != nil || len(r.RedFlagsList) > 0 || r.Advice != nil
}

// FallbackRoast is the static result served when every attempt failed.
func FallbackRoast() RoastResult {
	detailed := "The AI is currently overwhelmed. Try text mode."
	advice := "Refresh and try again."
	return RoastResult{
		ToxicityScore:       88,
		Verdict:             "SYSTEM OVERLOAD",
		ShortAnalysis:       "My vision circuits are fried. Upload text instead.",
		HiddenRedFlagsCount: 3,
		DetailedAnalysis:    &detailed,
		RedFlagsList:        []string{"Server Busy", "Rate Limit Hit"},
		Advice:              &advice,
	}
}

// ChatRole identifies who spoke a ChatTurn.
type ChatRole string

const (
	ChatRoleUser    ChatRole = "user"
	ChatRoleAuditor ChatRole = "auditor"
)

type ChatTurn struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

// ChatApology is the reply served when every chat attempt failed.
const ChatApology = "I'm overwhelmed by the toxicity right now. Ask me again in a sec."
