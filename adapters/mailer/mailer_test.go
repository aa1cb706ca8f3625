package mailer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/layer-3/zeroturbo/adapters/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	return &sesv2.SendEmailOutput{}, f.err
}

func TestSESMailer_SendCode(t *testing.T) {
	ses := &fakeSES{}
	m := mailer.NewSESMailerWithClient(ses, "zeroturbo.example.com")

	require.NoError(t, m.SendCode(context.Background(), "x@example.com", "123456"))

	require.NotNil(t, ses.input)
	assert.Equal(t, "ZeroTurbo <auth@zeroturbo.example.com>", aws.ToString(ses.input.FromEmailAddress))
	assert.Equal(t, []string{"x@example.com"}, ses.input.Destination.ToAddresses)
	assert.Equal(t, "ZeroTurbo Pin Code: 123456", aws.ToString(ses.input.Content.Simple.Subject.Data))
	assert.Contains(t, aws.ToString(ses.input.Content.Simple.Body.Text.Data), "123456")
}

func TestSESMailer_Error(t *testing.T) {
	boom := errors.New("throttled")
	m := mailer.NewSESMailerWithClient(&fakeSES{err: boom}, "example.com")

	err := m.SendCode(context.Background(), "x@example.com", "123456")
	assert.ErrorIs(t, err, boom)
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := mailer.NewLogMailer(zap.New(core))

	require.NoError(t, m.SendCode(context.Background(), "x@example.com", "654321"))

	entries := logs.FilterMessage("pin code issued").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "654321", entries[0].ContextMap()["code"])
}
