package notification

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/repository"
)

// SendKind is the River job kind for outbound email.
const SendKind = "send_email"

// SendArgs carries one email through the job queue.
type SendArgs struct {
	Email Email `json:"email"`
}

// Kind implements river.JobArgs.
func (SendArgs) Kind() string { return SendKind }

// Triggers decides who is emailed for each workflow change and enqueues the
// message on the caller's transaction.
type Triggers struct {
	frontendURL    string
	referralsInbox string
}

// NewTriggers creates the trigger set.
func NewTriggers(cfg config.NotifyConfig) *Triggers {
	return &Triggers{
		frontendURL:    strings.TrimRight(cfg.FrontendURL, "/"),
		referralsInbox: cfg.CAS2ReferralsAddress,
	}
}

func (t *Triggers) enqueue(ctx context.Context, tx repository.Store, to, toName string, tpl Template, p map[string]string) error {
	if strings.TrimSpace(to) == "" {
		logger.FromContext(ctx).Warn("Email skipped: recipient has no address",
			zap.String("template", string(tpl)),
		)
		return nil
	}
	args := SendArgs{Email: Email{To: to, ToName: toName, Template: tpl, Personalisation: p}}
	if err := tx.Enqueue(ctx, args); err != nil {
		return fmt.Errorf("enqueue %s email: %w", tpl, err)
	}
	return nil
}

func (t *Triggers) applicationURL(service domain.ServiceName, id string) string {
	switch service {
	case domain.ServiceCAS2:
		return t.frontendURL + "/cas2/applications/" + id
	case domain.ServiceCAS3:
		return t.frontendURL + "/temporary-accommodation/applications/" + id
	}
	return t.frontendURL + "/applications/" + id
}

// ApplicationSubmitted confirms a submission to its applicant.
func (t *Triggers) ApplicationSubmitted(ctx context.Context, tx repository.Store, applicant *domain.User, app *domain.Application) error {
	return t.enqueue(ctx, tx, applicant.Email, applicant.Name, TemplateApplicationSubmitted, map[string]string{
		"crn":            app.CRN,
		"applicationUrl": t.applicationURL(app.Service, app.ID),
	})
}

// AssessmentDecided tells the applicant the outcome of the assessment.
func (t *Triggers) AssessmentDecided(ctx context.Context, tx repository.Store, applicant *domain.User, app *domain.Application, decision domain.AssessmentDecision) error {
	tpl := TemplateAssessmentAccepted
	if decision == domain.DecisionRejected {
		tpl = TemplateAssessmentRejected
	}
	return t.enqueue(ctx, tx, applicant.Email, applicant.Name, tpl, map[string]string{
		"crn":            app.CRN,
		"applicationUrl": t.applicationURL(app.Service, app.ID),
	})
}

// BookingMade tells the applicant where the person has been placed.
func (t *Triggers) BookingMade(ctx context.Context, tx repository.Store, applicant *domain.User, crn string, premises *domain.Premises, r domain.DateRange) error {
	return t.enqueue(ctx, tx, applicant.Email, applicant.Name, TemplateBookingMade, map[string]string{
		"crn":           crn,
		"premisesName":  premises.Name,
		"arrivalDate":   domain.FormatDate(r.Start),
		"departureDate": domain.FormatDate(r.End),
	})
}

// Cas2Submitted alerts the referral team to a new CAS2 referral.
func (t *Triggers) Cas2Submitted(ctx context.Context, tx repository.Store, app *domain.Cas2Application) error {
	return t.enqueue(ctx, tx, t.referralsInbox, "", TemplateCas2ReferralSent, map[string]string{
		"nomsNumber":     app.NomsNumber,
		"applicationUrl": t.applicationURL(domain.ServiceCAS2, app.ID),
	})
}

// Cas2StatusUpdated tells the referrer about an assessor's status change.
func (t *Triggers) Cas2StatusUpdated(ctx context.Context, tx repository.Store, referrer *domain.User, app *domain.Cas2Application, status domain.Cas2Status) error {
	return t.enqueue(ctx, tx, referrer.Email, referrer.Name, TemplateCas2StatusUpdated, map[string]string{
		"nomsNumber":     app.NomsNumber,
		"statusLabel":    status.Label,
		"applicationUrl": t.applicationURL(domain.ServiceCAS2, app.ID),
	})
}
