package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
	"approvedpremises.io/cas/internal/repository/memstore"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name        string
		email       Email
		wantSubject string
		wantErr     bool
	}{
		{
			name: "status update",
			email: Email{Template: TemplateCas2StatusUpdated, Personalisation: map[string]string{
				"nomsNumber": "A1234BC", "statusLabel": "Place offered", "applicationUrl": "https://x/cas2/applications/1",
			}},
			wantSubject: "CAS2 referral for A1234BC: Place offered",
		},
		{
			name:    "unknown template",
			email:   Email{Template: "nope"},
			wantErr: true,
		},
		{
			name:    "missing personalisation",
			email:   Email{Template: TemplateApplicationSubmitted, Personalisation: map[string]string{"crn": "X1"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body, err := Render(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, subject)
			assert.NotEmpty(t, body)
		})
	}
}

func TestLogSender(t *testing.T) {
	err := LogSender{}.Send(context.Background(), Email{
		Template:        TemplateApplicationSubmitted,
		Personalisation: map[string]string{"crn": "X1", "applicationUrl": "u"},
	})
	assert.NoError(t, err)
	assert.IsType(t, LogSender{}, NewSender(config.NotifyConfig{Enabled: false}))
}

func TestTriggers_EnqueueOnTransaction(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	trig := NewTriggers(config.NotifyConfig{FrontendURL: "https://cas.example/", CAS2ReferralsAddress: "referrals@example.org"})

	applicant := &domain.User{ID: "u1", Name: "Ann", Email: "ann@example.org"}
	noEmail := &domain.User{ID: "u2"}
	app := &domain.Application{ID: "app-1", Service: domain.ServiceCAS1, CRN: "X320741"}
	cas2 := &domain.Cas2Application{ID: "c-1", NomsNumber: "A1234BC"}

	err := store.InTx(ctx, func(tx repository.Store) error {
		require.NoError(t, trig.ApplicationSubmitted(ctx, tx, applicant, app))
		require.NoError(t, trig.AssessmentDecided(ctx, tx, applicant, app, domain.DecisionRejected))
		require.NoError(t, trig.Cas2Submitted(ctx, tx, cas2))
		return trig.ApplicationSubmitted(ctx, tx, noEmail, app)
	})
	require.NoError(t, err)

	jobs := store.Jobs()
	require.Len(t, jobs, 3)

	first := jobs[0].(SendArgs)
	assert.Equal(t, "ann@example.org", first.Email.To)
	assert.Equal(t, "https://cas.example/applications/app-1", first.Email.Personalisation["applicationUrl"])
	assert.Equal(t, TemplateAssessmentRejected, jobs[1].(SendArgs).Email.Template)

	referral := jobs[2].(SendArgs)
	assert.Equal(t, "referrals@example.org", referral.Email.To)
	assert.Equal(t, "https://cas.example/cas2/applications/c-1", referral.Email.Personalisation["applicationUrl"])
}
