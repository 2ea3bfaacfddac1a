package notify

import (
	"bytes"
	"fmt"
	"text/template"

	contracts "propel/contracts/mq"
)

var (
	welcomeTmpl = template.Must(template.New("welcome").Parse(`Hi {{.Name}},

Welcome to Propel! Your {{.Role}} account is ready.
{{if eq .Role "creator"}}Start your first project whenever you are ready.{{else}}Browse projects and back the ideas you believe in.{{end}}

The Propel team
`))

	projectCreatedTmpl = template.Must(template.New("project_created").Parse(`Hi {{.CreatorName}},

Your project "{{.Title}}" is live with a goal of {{.GoalAmount}} {{.Currency}}.
Share it with your supporters to get the first donations in.

The Propel team
`))

	donationReceiptTmpl = template.Must(template.New("donation_receipt").Parse(`Hi {{.DonorName}},

Thank you for donating {{.Amount}} {{.Currency}} to "{{.ProjectTitle}}".
Donation reference: #{{.DonationID}}
{{if eq .ProjectStatus "funded"}}With your help the project has reached its goal!
{{end}}
The Propel team
`))

	refundTmpl = template.Must(template.New("donation_refund").Parse(`Hi {{.DonorName}},

Your donation #{{.DonationID}} of {{.Amount}} {{.Currency}} to "{{.ProjectTitle}}" has been refunded.
Refund reference: {{.RefundID}}

The Propel team
`))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func WelcomeMessage(p contracts.UserRegisteredPayload) (Message, error) {
	body, err := render(welcomeTmpl, p)
	if err != nil {
		return Message{}, err
	}
	return Message{To: p.Email, Subject: "Welcome to Propel", Body: body}, nil
}

func ProjectCreatedMessage(p contracts.ProjectCreatedPayload) (Message, error) {
	body, err := render(projectCreatedTmpl, p)
	if err != nil {
		return Message{}, err
	}
	return Message{To: p.CreatorEmail, Subject: "Your project is live: " + p.Title, Body: body}, nil
}

func DonationReceiptMessage(p contracts.DonationPayload) (Message, error) {
	body, err := render(donationReceiptTmpl, p)
	if err != nil {
		return Message{}, err
	}
	return Message{To: p.DonorEmail, Subject: "Thank you for your donation", Body: body}, nil
}

func RefundMessage(p contracts.DonationPayload) (Message, error) {
	body, err := render(refundTmpl, p)
	if err != nil {
		return Message{}, err
	}
	return Message{To: p.DonorEmail, Subject: "Your donation was refunded", Body: body}, nil
}
