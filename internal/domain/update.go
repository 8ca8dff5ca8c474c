package domain

import "time"

// UpdateType is the kind of development activity being reported.
type UpdateType string

const (
	UpdateCodeWritten UpdateType = "code_written"
	UpdateBugFix      UpdateType = "bug_fix"
	UpdateCodeReview  UpdateType = "code_review"
	UpdateLearning    UpdateType = "learning"
	UpdateRefactoring UpdateType = "refactoring"
)

// UpdateTypes lists the recognized kinds in display order.
var UpdateTypes = []UpdateType{UpdateCodeWritten, UpdateBugFix, UpdateCodeReview, UpdateLearning, UpdateRefactoring}

func (t UpdateType) Valid() bool {
	for _, v := range UpdateTypes {
		if v == t {
			return true
		}
	}
	return false
}

// MaxSnippetLen bounds code_snippet in characters.
const MaxSnippetLen = 500

// UpdatePayload is the "payload" object of an ingestion request.
type UpdatePayload struct {
	Type         UpdateType `json:"type"`
	Description  string     `json:"description"`
	FilesChanged []string   `json:"files_changed,omitempty"`
	Concepts     []string   `json:"concepts,omitempty"`
	CodeSnippet  string     `json:"code_snippet,omitempty"`
}

// UpdateEnvelope is the body posted to the ingestion service.
type UpdateEnvelope struct {
	Source    string        `json:"source"`
	Payload   UpdatePayload `json:"payload"`
	CreatedAt *time.Time    `json:"created_at,omitempty"`
}
