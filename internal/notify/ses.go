// Package notify delivers invitation mail through Amazon SES.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/internal/portal"
)

// EmailClient is the part of the SES v2 client the sender needs.
type EmailClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender mails invitees when a project invitation is created.
type SESSender struct {
	client  EmailClient
	from    string
	baseURL string
	logger  *zap.Logger
}

// NewSESSender creates a sender for cfg. baseURL is the portal address the
// invitation links point to.
func NewSESSender(cfg aws.Config, from, baseURL string, logger *zap.Logger) *SESSender {
	return NewSender(sesv2.NewFromConfig(cfg), from, baseURL, logger)
}

// NewSender creates a sender on any SES client.
func NewSender(client EmailClient, from, baseURL string, logger *zap.Logger) *SESSender {
	return &SESSender{client: client, from: from, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

var invitationBody = template.Must(template.New("invitation").Parse(`<p>Bonjour,</p>
<p>Vous êtes invité(e) à rejoindre le projet <strong>{{.Project}}</strong> en tant que {{.Role}}.</p>
{{if .Message}}<blockquote>{{.Message}}</blockquote>{{end}}
<p><a href="{{.Link}}">Accepter l'invitation</a></p>
<p>Cette invitation expire le {{.Expires}}.</p>`))

var roleLabels = map[portal.ProjectRole]string{
	portal.RoleOwner:        "propriétaire",
	portal.RoleManager:      "gestionnaire",
	portal.RoleContributor:  "contributeur",
	portal.RoleViewer:       "observateur",
	portal.RoleProfessional: "professionnel",
}

// InvitationCreated sends the invitation mail.
func (s *SESSender) InvitationCreated(ctx context.Context, inv *portal.ProjectInvitation, project *portal.Project) error {
	role, ok := roleLabels[inv.Role]
	if !ok {
		role = string(inv.Role)
	}
	data := struct {
		Project string
		Role    string
		Message string
		Link    string
		Expires string
	}{
		Project: project.Name,
		Role:    role,
		Link:    fmt.Sprintf("%s/invitations/%s", s.baseURL, inv.ID),
		Expires: inv.ExpiresAt.In(time.UTC).Format("02/01/2006"),
	}
	if inv.Message != nil {
		data.Message = *inv.Message
	}

	var body bytes.Buffer
	if err := invitationBody.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render invitation: %w", err)
	}

	subject := fmt.Sprintf("Invitation au projet %s", project.Name)
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{inv.InvitedEmail}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(body.String()), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("kind"), Value: aws.String("project_invitation")},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send invitation to %s: %w", inv.InvitedEmail, err)
	}

	s.logger.Info("Invitation sent",
		zap.String("invitation_id", inv.ID),
		zap.String("project_id", project.ID),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
