package email

import (
	"context"
	"errors"
	"testing"

	"github.com/shandysiswandi/inboxed/internal/form/entity"
	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"github.com/shandysiswandi/inboxed/internal/pkg/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Send(ctx context.Context, msg mail.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockClient) Close() error { return nil }

func TestMail_Send(t *testing.T) {
	// Arrange
	client := new(mockClient)
	want := mail.Message{
		FromName: "Jane",
		To:       []string{"inbox@example.com"},
		ReplyTo:  "jane@example.com",
		Subject:  "New Form Submission from Jane",
		TextBody: "text",
		HTMLBody: "<p>html</p>",
		Attachments: []mail.Attachment{
			{Filename: "a.png", Path: "/tmp/up/1", ContentType: "image/png"},
		},
		Headers: map[string]string{"X-Submission-ID": "42"},
	}
	client.On("Send", mock.Anything, want).Return(nil).Once()

	// Act
	err := New(client, instrument.NewNoop()).Send(context.Background(), entity.OutboundEmail{
		SubmissionID:     "42",
		FromDisplayName:  "Jane",
		ReplyToAddress:   "jane@example.com",
		RecipientAddress: "inbox@example.com",
		Subject:          "New Form Submission from Jane",
		PlainTextBody:    "text",
		HTMLBody:         "<p>html</p>",
		Attachments:      []entity.Attachment{{Filename: "a.png", SourcePath: "/tmp/up/1", ContentType: "image/png"}},
	})

	// Assert
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestMail_SendError(t *testing.T) {
	client := new(mockClient)
	boom := errors.New("dial tcp: connection refused")
	client.On("Send", mock.Anything, mock.Anything).Return(boom).Once()

	err := New(client, instrument.NewNoop()).Send(context.Background(), entity.OutboundEmail{RecipientAddress: "inbox@example.com"})

	require.ErrorIs(t, err, boom)
}

func TestToMessage_NoSubmissionID(t *testing.T) {
	msg := toMessage(entity.OutboundEmail{RecipientAddress: "inbox@example.com"})

	assert.Nil(t, msg.Headers)
	assert.Empty(t, msg.Attachments)
}
