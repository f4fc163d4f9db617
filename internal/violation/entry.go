// Package violation models detected content violations and the merge and
// clustering passes that turn raw per-frame and per-word detections into
// reviewable findings.
package violation

// Decision is the moderator's verdict on a finding.
type Decision string

const (
	DecisionPending Decision = "PENDING"
	DecisionValid   Decision = "VALID"
	DecisionInvalid Decision = "INVALID"
)

// Entry is one violation finding anchored to a second of the recording.
// Category and Label run in parallel: Category names the violation class,
// Label carries the model's description of what was seen or heard.
type Entry struct {
	Second   float64  `json:"second"`
	ClipURL  string   `json:"clip_url,omitempty"`
	Decision Decision `json:"decision"`
	Category []string `json:"category"`
	Label    []string `json:"label"`
}

// AudioHit is a blacklisted word located in the transcript.
type AudioHit struct {
	Word string  `json:"word"`
	Time float64 `json:"time"`
}

// Audio hits attach to findings under these fixed markers.
const (
	AudioCategory = "SARA"
	AudioLabel    = "kata_kasar"
)
