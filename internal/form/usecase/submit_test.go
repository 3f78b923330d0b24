package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/inboxed/internal/form/entity"
	"github.com/shandysiswandi/inboxed/internal/pkg/clock"
	"github.com/shandysiswandi/inboxed/internal/pkg/config"
	"github.com/shandysiswandi/inboxed/internal/pkg/goerror"
	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"github.com/shandysiswandi/inboxed/internal/pkg/validator"
	"github.com/shandysiswandi/inboxed/internal/pkg/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMail struct {
	mock.Mock
}

func (m *mockMail) Send(ctx context.Context, email entity.OutboundEmail) error {
	return m.Called(ctx, email).Error(0)
}

type mockFiles struct {
	mock.Mock
}

func (m *mockFiles) Remove(ctx context.Context, files []entity.UploadedFile) entity.CleanupReport {
	args := m.Called(ctx, files)
	return args.Get(0).(entity.CleanupReport)
}

type fakeRecorder struct {
	mu         sync.Mutex
	outcomes   []string
	dispatches int
}

func (f *fakeRecorder) Submission(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeRecorder) Dispatch(time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches++
}

type fixedID int64

func (f fixedID) Generate() int64 { return int64(f) }

type fixture struct {
	uc      *Usecase
	mail    *mockMail
	files   *mockFiles
	metrics *fakeRecorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(`
form:
  to_email: inbox@example.com
smtp:
  send_timeout_seconds: 5
`))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	f := fixture{mail: new(mockMail), files: new(mockFiles), metrics: &fakeRecorder{}}
	f.uc = New(Dependency{
		Config:     cfg,
		UID:        fixedID(42),
		Clock:      clock.NewManual(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)),
		Validator:  v,
		RepoMail:   f.mail,
		RepoFile:   f.files,
		Metrics:    f.metrics,
		Instrument: instrument.NewNoop(),
	})
	return f
}

func validInput() SubmitInput {
	return SubmitInput{
		Tenant: "acme",
		FormID: "contact",
		Name:   "Jane",
		Email:  "jane@example.com",
		Data:   valueobject.Object(),
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	return gerr.StatusCode()
}

func TestSubmit_Success(t *testing.T) {
	// Arrange
	f := newFixture(t)
	var sent entity.OutboundEmail
	f.mail.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(entity.OutboundEmail)
	}).Return(nil).Once()

	// Act
	out, err := f.uc.Submit(context.Background(), validInput())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "42", out.SubmissionID)
	assert.Equal(t, "42", sent.SubmissionID)
	assert.Equal(t, "jane@example.com", sent.ReplyToAddress)
	assert.Equal(t, "inbox@example.com", sent.RecipientAddress)
	assert.Equal(t, "New Form Submission from Jane", sent.Subject)
	assert.Contains(t, sent.PlainTextBody, "Submitted: 2025-01-02T03:04:05.000Z")
	assert.Equal(t, []string{"sent"}, f.metrics.outcomes)
	assert.Equal(t, 1, f.metrics.dispatches)
	f.mail.AssertExpectations(t)
	f.files.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestSubmit_Honeypot(t *testing.T) {
	for _, website := range []string{"x", "http://spam.example", "  y  "} {
		t.Run(website, func(t *testing.T) {
			// Arrange
			f := newFixture(t)
			in := validInput()
			in.Website = website

			// Act
			_, err := f.uc.Submit(context.Background(), in)

			// Assert
			require.Error(t, err)
			assert.Equal(t, "Bot detected.", err.Error())
			assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
			assert.Equal(t, []string{"bot"}, f.metrics.outcomes)
			f.mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmit_BlankHoneypotIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.mail.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	in := validInput()
	in.Website = "   \t"

	_, err := f.uc.Submit(context.Background(), in)

	require.NoError(t, err)
	f.mail.AssertExpectations(t)
}

func TestSubmit_HoneypotRunsBeforeValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Submit(context.Background(), SubmitInput{Website: "bot", Data: valueobject.String("{bad")})

	require.Error(t, err)
	assert.Equal(t, "Bot detected.", err.Error())
}

func TestSubmit_DataString(t *testing.T) {
	t.Run("parsed object", func(t *testing.T) {
		f := newFixture(t)
		var sent entity.OutboundEmail
		f.mail.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			sent = args.Get(1).(entity.OutboundEmail)
		}).Return(nil).Once()
		in := validInput()
		in.Data = valueobject.String(`{"plan":"pro","seats":3}`)

		_, err := f.uc.Submit(context.Background(), in)

		require.NoError(t, err)
		assert.Contains(t, sent.PlainTextBody, "Additional Data:\n{\n  \"plan\": \"pro\",\n  \"seats\": 3\n}\n")
	})

	t.Run("malformed", func(t *testing.T) {
		f := newFixture(t)
		in := validInput()
		in.Name = ""
		in.Data = valueobject.String(`{"plan":`)

		_, err := f.uc.Submit(context.Background(), in)

		require.Error(t, err)
		assert.Equal(t, "Invalid JSON in `data` field", err.Error())
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		assert.Equal(t, []string{"malformed"}, f.metrics.outcomes)
		f.mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("nested too deeply", func(t *testing.T) {
		f := newFixture(t)
		in := validInput()
		in.Data = valueobject.String(`{"a":` + strings.Repeat("[", 100000) + strings.Repeat("]", 100000) + `}`)

		_, err := f.uc.Submit(context.Background(), in)

		require.Error(t, err)
		assert.Equal(t, "Invalid JSON in `data` field", err.Error())
		assert.Equal(t, []string{"malformed"}, f.metrics.outcomes)
		f.mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(in *SubmitInput)
		wantFields []string
	}{
		{name: "empty tenant", mutate: func(in *SubmitInput) { in.Tenant = "" }, wantFields: []string{"tenant"}},
		{name: "empty form id", mutate: func(in *SubmitInput) { in.FormID = "" }, wantFields: []string{"formId"}},
		{name: "empty name", mutate: func(in *SubmitInput) { in.Name = "" }, wantFields: []string{"name"}},
		{name: "bad email", mutate: func(in *SubmitInput) { in.Email = "nope" }, wantFields: []string{"email"}},
		{name: "missing data", mutate: func(in *SubmitInput) { in.Data = valueobject.JSON{} }, wantFields: []string{"data"}},
		{name: "array data", mutate: func(in *SubmitInput) { in.Data = valueobject.String("[1]") }, wantFields: []string{"data"}},
		{
			name: "everything wrong",
			mutate: func(in *SubmitInput) {
				*in = SubmitInput{Email: "x", Data: valueobject.Null()}
			},
			wantFields: []string{"tenant", "formId", "name", "email", "data"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newFixture(t)
			in := validInput()
			tt.mutate(&in)

			// Act
			_, err := f.uc.Submit(context.Background(), in)

			// Assert
			var gerr *goerror.Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, "Invalid request data", gerr.Msg())
			var verr validator.V10ValidationError
			require.ErrorAs(t, err, &verr)
			fields := make([]string, 0, len(verr))
			for _, fe := range verr {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
			assert.Equal(t, []string{"invalid"}, f.metrics.outcomes)
			f.mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmit_MistypedFields(t *testing.T) {
	// Arrange
	f := newFixture(t)
	in := validInput()
	in.Name = ""
	in.Email = "nope"
	in.FieldErrors = validator.V10ValidationError{
		{Field: "message", Rule: "string", Message: "message must be a string, got bool"},
		{Field: "name", Rule: "string", Message: "name must be a string, got number"},
	}

	// Act
	_, err := f.uc.Submit(context.Background(), in)

	// Assert
	var verr validator.V10ValidationError
	require.ErrorAs(t, err, &verr)
	got := make([]string, 0, len(verr))
	for _, fe := range verr {
		got = append(got, fe.Field+":"+fe.Rule)
	}
	assert.Equal(t, []string{"name:string", "email:email", "message:string"}, got)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Equal(t, []string{"invalid"}, f.metrics.outcomes)
	f.mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSubmit_MistypedFieldsAfterHoneypot(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Website = "123"
	in.FieldErrors = validator.V10ValidationError{{Field: "tenant", Rule: "string"}}

	_, err := f.uc.Submit(context.Background(), in)

	require.Error(t, err)
	assert.Equal(t, "Bot detected.", err.Error())
}

func TestSubmit_SanitizesBeforeCompose(t *testing.T) {
	// Arrange
	f := newFixture(t)
	var sent entity.OutboundEmail
	f.mail.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(entity.OutboundEmail)
	}).Return(nil).Once()
	f.files.On("Remove", mock.Anything, mock.Anything).Return(entity.CleanupReport{Files: 1, Succeeded: 1}).Once()

	in := validInput()
	in.Name = "<b>Jane</b><script>alert(1)</script>"
	in.Attachments = []entity.UploadedFile{{TemporaryPath: "/tmp/up/abc", OriginalName: "../../etc/passwd.png", MimeType: "image/png"}}

	// Act
	_, err := f.uc.Submit(context.Background(), in)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Jane", sent.FromDisplayName)
	assert.Equal(t, "New Form Submission from Jane", sent.Subject)
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, "passwd.png", sent.Attachments[0].Filename)
	assert.Equal(t, "/tmp/up/abc", sent.Attachments[0].SourcePath)
}

func TestSubmit_DispatchFailure(t *testing.T) {
	// Arrange
	f := newFixture(t)
	files := []entity.UploadedFile{{TemporaryPath: "/tmp/up/a", OriginalName: "a.png"}}
	f.mail.On("Send", mock.Anything, mock.Anything).Return(errors.New("535 auth failed")).Once()
	f.files.On("Remove", mock.Anything, files).Return(entity.CleanupReport{Files: 1, Succeeded: 1}).Once()
	in := validInput()
	in.Attachments = files

	// Act
	_, err := f.uc.Submit(context.Background(), in)

	// Assert
	require.Error(t, err)
	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Failed to send email", gerr.Msg())
	assert.Equal(t, http.StatusInternalServerError, gerr.StatusCode())
	assert.Equal(t, []string{"failed"}, f.metrics.outcomes)
	f.files.AssertExpectations(t)
}

func TestSubmit_CleanupRunsOnEveryExit(t *testing.T) {
	files := []entity.UploadedFile{{TemporaryPath: "/tmp/up/a", OriginalName: "a.png"}}

	tests := []struct {
		name   string
		mutate func(in *SubmitInput)
		send   error
	}{
		{name: "sent", send: nil},
		{name: "dispatch failed", send: errors.New("boom")},
		{name: "bot", mutate: func(in *SubmitInput) { in.Website = "x" }},
		{name: "malformed", mutate: func(in *SubmitInput) { in.Data = valueobject.String("{") }},
		{name: "invalid", mutate: func(in *SubmitInput) { in.Email = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.mail.On("Send", mock.Anything, mock.Anything).Return(tt.send).Maybe()
			f.files.On("Remove", mock.Anything, files).Return(entity.CleanupReport{Files: 1, Failed: 1}).Once()
			in := validInput()
			in.Attachments = files
			if tt.mutate != nil {
				tt.mutate(&in)
			}

			_, _ = f.uc.Submit(context.Background(), in)

			f.files.AssertNumberOfCalls(t, "Remove", 1)
		})
	}
}

func TestSubmit_DispatchIgnoresClientCancel(t *testing.T) {
	// Arrange
	f := newFixture(t)
	var sendCtxErr error
	var hasDeadline bool
	f.mail.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		sendCtxErr = ctx.Err()
		_, hasDeadline = ctx.Deadline()
	}).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	_, err := f.uc.Submit(ctx, validInput())

	// Assert
	require.NoError(t, err)
	assert.NoError(t, sendCtxErr)
	assert.True(t, hasDeadline)
}
