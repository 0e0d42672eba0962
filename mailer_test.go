package warehouse_test

import (
	"context"
	"testing"

	warehouse "github.com/goliatone/go-warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailMessage_Type(t *testing.T) {
	assert.Equal(t, "notification.send_email", warehouse.MailMessage{}.Type())
}

func TestMailMessage_Validate(t *testing.T) {
	valid := warehouse.MailMessage{
		Recipients: []string{"clerk@example.com"},
		Subject:    "hello",
	}
	assert.NoError(t, valid.Validate())

	assert.Error(t, warehouse.MailMessage{Subject: "hello"}.Validate())
	assert.Error(t, warehouse.MailMessage{Recipients: []string{"clerk@example.com"}}.Validate())
}

func TestMemoryMailQueue(t *testing.T) {
	queue := warehouse.NewMemoryMailQueue()

	require.NoError(t, queue.Enqueue(context.Background(), warehouse.MailMessage{
		Recipients: []string{"clerk@example.com"},
		Subject:    "Verify your email address",
		HTMLBody:   "<p>hi</p>",
	}))

	messages := queue.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, []string{"clerk@example.com"}, messages[0].Recipients)
	assert.Equal(t, "Verify your email address", messages[0].Subject)

	// Messages returns a copy, not the backing slice
	messages[0].Subject = "tampered"
	assert.Equal(t, "Verify your email address", queue.Messages()[0].Subject)

	// Undeliverable messages never reach the queue
	assert.Error(t, queue.Enqueue(context.Background(), warehouse.MailMessage{Subject: "no recipients"}))
	assert.Len(t, queue.Messages(), 1)
}

func TestLogSender(t *testing.T) {
	sender := warehouse.LogSender{}
	assert.NoError(t, sender.Send(context.Background(), warehouse.MailMessage{
		Recipients: []string{"clerk@example.com"},
		Subject:    "hello",
	}))
}
