package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
)

var testCfg = config.MailConfig{FromEmail: "no-reply@fashionmarket.com", FromName: "FashionMarket"}

func TestSendGridBuildsMessage(t *testing.T) {
	var captured *mail.SGMailV3
	var hadDeadline bool
	sg := newSendGrid(func(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
		captured = email
		_, hadDeadline = ctx.Deadline()
		return &rest.Response{StatusCode: 202}, nil
	}, testCfg, logger.Nop())

	err := sg.Send(context.Background(), Message{
		To:      "ana@example.com",
		Subject: "Your credit note CN-2026-000001",
		Body:    "Hello",
		Attachments: []Attachment{{
			Filename: "CN-2026-000001.txt",
			Content:  []byte("credit note"),
		}},
	})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.True(t, hadDeadline)
	assert.Equal(t, "no-reply@fashionmarket.com", captured.From.Address)
	require.Len(t, captured.Personalizations, 1)
	assert.Equal(t, "ana@example.com", captured.Personalizations[0].To[0].Address)
	require.Len(t, captured.Attachments, 1)
	assert.Equal(t, "text/plain", captured.Attachments[0].Type)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("credit note")), captured.Attachments[0].Content)
}

func TestSendGridErrors(t *testing.T) {
	failing := newSendGrid(func(context.Context, *mail.SGMailV3) (*rest.Response, error) {
		return nil, errors.New("network")
	}, testCfg, logger.Nop())
	assert.ErrorContains(t, failing.Send(context.Background(), Message{To: "a@b.c", Subject: "s", Body: "b"}), "network")

	rejected := newSendGrid(func(context.Context, *mail.SGMailV3) (*rest.Response, error) {
		return &rest.Response{StatusCode: 400, Body: "bad request"}, nil
	}, testCfg, logger.Nop())
	assert.ErrorContains(t, rejected.Send(context.Background(), Message{To: "a@b.c", Subject: "s", Body: "b"}), "status 400")

	assert.Error(t, rejected.Send(context.Background(), Message{Subject: "s", Body: "b"}))
}

func TestNewSelectsTransport(t *testing.T) {
	sender, err := New(testCfg, false, nil)
	require.NoError(t, err)
	_, isLog := sender.(*LogSender)
	assert.True(t, isLog)
	assert.NoError(t, sender.Send(context.Background(), Message{To: "a@b.c", Subject: "s", Body: "b"}))

	_, err = New(testCfg, true, nil)
	assert.Error(t, err)

	cfg := testCfg
	cfg.SendgridAPIKey = "SG.key"
	sender, err = New(cfg, true, nil)
	require.NoError(t, err)
	_, isSendGrid := sender.(*SendGrid)
	assert.True(t, isSendGrid)
}
