package domain

import (
	"slices"
	"time"
)

// AssessmentDecision is the outcome recorded on an assessment.
type AssessmentDecision string

const (
	DecisionAccepted AssessmentDecision = "ACCEPTED"
	DecisionRejected AssessmentDecision = "REJECTED"
)

// AssessmentStatus is the derived CAS1 assessment status.
type AssessmentStatus string

const (
	AssessmentNotStarted       AssessmentStatus = "NOT_STARTED"
	AssessmentInProgress       AssessmentStatus = "IN_PROGRESS"
	AssessmentAwaitingResponse AssessmentStatus = "AWAITING_RESPONSE"
	AssessmentCompleted        AssessmentStatus = "COMPLETED"
	AssessmentReallocated      AssessmentStatus = "REALLOCATED"
)

// ReferralStatus is the stored CAS3 assessment status.
type ReferralStatus string

const (
	ReferralUnallocated  ReferralStatus = "UNALLOCATED"
	ReferralInReview     ReferralStatus = "IN_REVIEW"
	ReferralReadyToPlace ReferralStatus = "READY_TO_PLACE"
	ReferralRejected     ReferralStatus = "REJECTED"
	ReferralClosed       ReferralStatus = "CLOSED"
)

var referralTransitions = map[ReferralStatus][]ReferralStatus{
	ReferralUnallocated:  {ReferralInReview},
	ReferralInReview:     {ReferralReadyToPlace, ReferralRejected, ReferralUnallocated},
	ReferralReadyToPlace: {ReferralClosed, ReferralInReview},
}

// CanTransitionTo reports whether a manual referral status change is allowed.
func (s ReferralStatus) CanTransitionTo(next ReferralStatus) bool {
	return slices.Contains(referralTransitions[s], next)
}

// ParseReferralStatus validates a status received from the API.
func ParseReferralStatus(raw string) (ReferralStatus, bool) {
	s := ReferralStatus(raw)
	switch s {
	case ReferralUnallocated, ReferralInReview, ReferralReadyToPlace, ReferralRejected, ReferralClosed:
		return s, true
	}
	return "", false
}

// Assessment is the decision record for an application. At most one
// assessment per application is live; the others carry ReallocatedAt.
type Assessment struct {
	ID                 string
	ApplicationID      string
	Service            ServiceName
	AllocatedToUserID  *string
	AllocatedAt        *time.Time
	ReallocatedAt      *time.Time
	SchemaVersion      string
	Data               *string
	Document           *string
	Decision           *AssessmentDecision
	RejectionRationale *string
	SubmittedAt        *time.Time
	CreatedAt          time.Time
	ReferralStatus     ReferralStatus

	ClarificationNotes []ClarificationNote
}

// IsReallocated reports whether the assessment was handed to someone else.
func (a *Assessment) IsReallocated() bool { return a.ReallocatedAt != nil }

// HasDecision reports whether accept or reject already ran.
func (a *Assessment) HasDecision() bool { return a.Decision != nil }

// HasOpenClarification reports whether a note is still waiting for a response.
func (a *Assessment) HasOpenClarification() bool {
	for _, n := range a.ClarificationNotes {
		if n.Response == nil {
			return true
		}
	}
	return false
}

// DeriveAssessmentStatus computes the CAS1 status from stored fields.
func DeriveAssessmentStatus(a *Assessment) AssessmentStatus {
	switch {
	case a.Decision != nil:
		return AssessmentCompleted
	case a.ReallocatedAt != nil:
		return AssessmentReallocated
	case a.HasOpenClarification():
		return AssessmentAwaitingResponse
	case a.Data != nil:
		return AssessmentInProgress
	default:
		return AssessmentNotStarted
	}
}

// ClarificationNote is a question raised by the assessor.
type ClarificationNote struct {
	ID                 string
	AssessmentID       string
	CreatedByUserID    string
	Query              string
	Response           *string
	ResponseReceivedOn *time.Time
	CreatedAt          time.Time
}

// AssessmentStatusChange is one row of CAS3 referral status history.
type AssessmentStatusChange struct {
	ID              string
	AssessmentID    string
	FromStatus      ReferralStatus
	ToStatus        ReferralStatus
	ChangedByUserID string
	CreatedAt       time.Time
}
