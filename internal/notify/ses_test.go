package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/internal/portal"
)

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sesv2.SendEmailOutput)
	return out, args.Error(1)
}

func testInvitation() (*portal.ProjectInvitation, *portal.Project) {
	msg := "Bienvenue <sur> le chantier"
	return &portal.ProjectInvitation{
			ID:           "inv-1",
			ProjectID:    "demo-project-1",
			InvitedEmail: "awa@example.sn",
			Role:         portal.RoleContributor,
			Message:      &msg,
			ExpiresAt:    time.Date(2024, 5, 22, 9, 0, 0, 0, time.UTC),
		}, &portal.Project{
			ID:   "demo-project-1",
			Name: "Villa Almadies",
		}
}

func TestInvitationCreatedSendsMail(t *testing.T) {
	client := &mockSES{}
	var sent *sesv2.SendEmailInput
	client.On("SendEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*sesv2.SendEmailInput) }).
		Return(&sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil)

	s := NewSender(client, "portail@example.sn", "https://portail.example.sn/", zap.NewNop())
	inv, project := testInvitation()
	require.NoError(t, s.InvitationCreated(context.Background(), inv, project))

	require.NotNil(t, sent)
	assert.Equal(t, "portail@example.sn", aws.ToString(sent.FromEmailAddress))
	assert.Equal(t, []string{"awa@example.sn"}, sent.Destination.ToAddresses)
	assert.Equal(t, "Invitation au projet Villa Almadies", aws.ToString(sent.Content.Simple.Subject.Data))

	html := aws.ToString(sent.Content.Simple.Body.Html.Data)
	assert.Contains(t, html, "contributeur")
	assert.Contains(t, html, `href="https://portail.example.sn/invitations/inv-1"`)
	assert.Contains(t, html, "22/05/2024")
	assert.Contains(t, html, "Bienvenue &lt;sur&gt; le chantier")
	client.AssertExpectations(t)
}

func TestInvitationCreatedWrapsSendError(t *testing.T) {
	client := &mockSES{}
	client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	s := NewSender(client, "portail@example.sn", "https://portail.example.sn", zap.NewNop())
	inv, project := testInvitation()
	err := s.InvitationCreated(context.Background(), inv, project)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "awa@example.sn")
	assert.Contains(t, err.Error(), "throttled")
}

func TestSenderPlugsIntoTracker(t *testing.T) {
	client := &mockSES{}
	client.On("SendEmail", mock.Anything, mock.Anything).
		Return(&sesv2.SendEmailOutput{MessageId: aws.String("msg-2")}, nil).Once()

	svc := portal.NewService(portal.NewFixtureRepository(), zap.NewNop(), portal.Options{Fixture: true})
	tracker := portal.NewTracker(svc, zap.NewNop(), portal.TrackerOptions{
		Notifier: NewSender(client, "portail@example.sn", "https://portail.example.sn", zap.NewNop()),
	})

	inv, err := tracker.Invite(context.Background(), &portal.ProjectInvitation{
		ProjectID: "demo-project-1", InvitedBy: "demo-client-1", InvitedEmail: "moussa@example.sn", Role: portal.RoleViewer,
	})
	require.NoError(t, err)
	assert.Equal(t, portal.InvitationPending, inv.Status)
	client.AssertExpectations(t)
}
