package db

import "fmt"

// OutcomeKind classifies the result of a post mutation
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeNotFound  OutcomeKind = "not_found"
	OutcomeForbidden OutcomeKind = "forbidden"
	OutcomeNoChange  OutcomeKind = "no_change"
)

// Outcome is the structured result of Delete and SetStatus. Callers map
// Kind to their own status codes; store failures are errors, not outcomes.
type Outcome struct {
	Kind    OutcomeKind `json:"status"`
	Message string      `json:"message"`
	PostID  int64       `json:"post_id"`
}

func newOutcome(kind OutcomeKind, postID int64, format string, args ...interface{}) *Outcome {
	return &Outcome{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		PostID:  postID,
	}
}
