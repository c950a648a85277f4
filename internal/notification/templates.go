package notification

import (
	"fmt"
	"strings"
	"text/template"
)

// Template names an email layout.
type Template string

const (
	TemplateApplicationSubmitted Template = "application-submitted"
	TemplateAssessmentAccepted   Template = "assessment-accepted"
	TemplateAssessmentRejected   Template = "assessment-rejected"
	TemplateBookingMade          Template = "booking-made"
	TemplateCas2ReferralSent     Template = "cas2-referral-submitted"
	TemplateCas2StatusUpdated    Template = "cas2-status-updated"
)

type layout struct {
	subject *template.Template
	body    *template.Template
}

func mustLayout(name, subject, body string) layout {
	return layout{
		subject: template.Must(template.New(name + "-subject").Option("missingkey=error").Parse(subject)),
		body:    template.Must(template.New(name + "-body").Option("missingkey=error").Parse(body)),
	}
}

var layouts = map[Template]layout{
	TemplateApplicationSubmitted: mustLayout(string(TemplateApplicationSubmitted),
		"Approved Premises application submitted for {{.crn}}",
		`Your application for {{.crn}} has been submitted and will be assessed.

View it at {{.applicationUrl}}
`),
	TemplateAssessmentAccepted: mustLayout(string(TemplateAssessmentAccepted),
		"Approved Premises application accepted for {{.crn}}",
		`The application for {{.crn}} has been assessed as suitable.

View it at {{.applicationUrl}}
`),
	TemplateAssessmentRejected: mustLayout(string(TemplateAssessmentRejected),
		"Approved Premises application rejected for {{.crn}}",
		`The application for {{.crn}} has been assessed as unsuitable.

View it at {{.applicationUrl}}
`),
	TemplateBookingMade: mustLayout(string(TemplateBookingMade),
		"Placement booked for {{.crn}} at {{.premisesName}}",
		`A placement has been booked for {{.crn}} at {{.premisesName}} from {{.arrivalDate}} to {{.departureDate}}.
`),
	TemplateCas2ReferralSent: mustLayout(string(TemplateCas2ReferralSent),
		"New CAS2 referral for {{.nomsNumber}}",
		`A short-term accommodation referral has been submitted for {{.nomsNumber}}.

View it at {{.applicationUrl}}
`),
	TemplateCas2StatusUpdated: mustLayout(string(TemplateCas2StatusUpdated),
		"CAS2 referral for {{.nomsNumber}}: {{.statusLabel}}",
		`The status of the referral for {{.nomsNumber}} is now "{{.statusLabel}}".

View it at {{.applicationUrl}}
`),
}

// Render produces the subject and plain-text body of e.
func Render(e Email) (subject, body string, err error) {
	l, ok := layouts[e.Template]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", e.Template)
	}
	var sb, bb strings.Builder
	if err := l.subject.Execute(&sb, e.Personalisation); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", e.Template, err)
	}
	if err := l.body.Execute(&bb, e.Personalisation); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", e.Template, err)
	}
	return sb.String(), bb.String(), nil
}
