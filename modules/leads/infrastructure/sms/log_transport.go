package sms

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/leadflow/pkg/composables"
	"github.com/iota-uz/leadflow/pkg/phone"
)

// LogTransport stands in for the gateway when none is configured.
type LogTransport struct{}

func NewLogTransport() *LogTransport {
	return &LogTransport{}
}

func (LogTransport) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &TransportError{Kind: KindTimeout, Err: err}
	}
	id := "log-" + uuid.NewString()
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"to":         phone.Mask(msg.To),
		"message_id": id,
		"length":     len(msg.Message),
	}).Info("sms gateway not configured, message logged only")
	return id, nil
}
