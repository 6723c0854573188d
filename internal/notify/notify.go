// Package notify delivers outbound text messages to the configured recipients.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/sweeney/fridge-sensor/internal/settings"
)

// Gateway sends one message to one recipient.
type Gateway interface {
	Send(ctx context.Context, recipient, credential, text string) error
}

// Broadcast sends text to every recipient in order. A failure for one
// recipient does not stop the others; all failures are returned together.
func Broadcast(ctx context.Context, gw Gateway, recipients []settings.Recipient, text string) error {
	var errs error
	for _, r := range recipients {
		if err := gw.Send(ctx, r.Phone, r.APIKey, text); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("send to %s: %w", r.Phone, err))
		}
	}
	return errs
}

// AlarmText is the message sent when the alarm asserts.
func AlarmText(device string, temp, target float64) string {
	return fmt.Sprintf("🌡️ ALARM: %s - temperature: %.1f°C (threshold: %.1f°C)!!", device, temp, target)
}

// ReminderText is the message sent while the alarm stays asserted.
func ReminderText(device string, temp float64) string {
	return fmt.Sprintf("🌡️ Reminder: %s is still too warm!! (temperature: %.1f°C)", device, temp)
}
