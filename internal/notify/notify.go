// Package notify implements the notifier fan-out facade, spec.md
// §4.11: a thin facade over one adapter per channel, each invoked only
// when the recipient carries the address that channel needs.
package notify

import (
	"context"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dispatch-and-delivery/internal/models"
)

// ChannelAdapter delivers one message on one channel.
type ChannelAdapter interface {
	Send(ctx context.Context, recipient models.Recipient, title, body string) error
}

// AuditFunc persists the delivery log, wired to Sink.appendAudit.
type AuditFunc func(ctx context.Context, log models.NotificationLog)

const bodyPrefixLimit = 100

// sendOutcome pairs one channel's operator-facing result with the raw
// error it failed with, so Send can still errors.Is/errors.As against
// the original error after fanning attempts out through conc.
type sendOutcome struct {
	result models.ChannelResult
	err    error
}

// Facade fans a single send request out across every adapter whose
// channel was requested and whose recipient address is present.
type Facade struct {
	adapters map[models.Channel]ChannelAdapter
	audit    AuditFunc
	log      *zap.SugaredLogger
}

// New constructs a Facade from a channel->adapter map. Channels with
// no adapter configured are silently skipped on Send (not every
// deployment wires every channel).
func New(adapters map[models.Channel]ChannelAdapter, audit AuditFunc, log *zap.SugaredLogger) *Facade {
	return &Facade{adapters: adapters, audit: audit, log: log}
}

func hasAddress(r models.Recipient, ch models.Channel) bool {
	switch ch {
	case models.ChannelPush:
		return r.PushToken != ""
	case models.ChannelSMS:
		return r.Phone != ""
	case models.ChannelEmail:
		return r.Email != ""
	case models.ChannelWebhook:
		return r.WebhookURL != ""
	case models.ChannelChat:
		return r.ChatID != ""
	default:
		return false
	}
}

// Send invokes the adapter for every requested channel the recipient
// can be reached on, aggregates per-channel outcomes, persists a
// delivery log, and returns a combined error for every channel that
// failed (nil if every attempted channel succeeded, and nil if no
// channel was attempted).
func (f *Facade) Send(ctx context.Context, recipient models.Recipient, title, body string, severity models.Severity, channels []models.Channel) error {
	bodyPrefix := body
	if len(bodyPrefix) > bodyPrefixLimit {
		bodyPrefix = bodyPrefix[:bodyPrefixLimit]
	}

	p := pool.NewWithResults[sendOutcome]()
	for _, ch := range channels {
		adapter, ok := f.adapters[ch]
		if !ok || !hasAddress(recipient, ch) {
			continue
		}
		ch, adapter := ch, adapter
		p.Go(func() sendOutcome {
			err := adapter.Send(ctx, recipient, title, body)
			if err != nil {
				if f.log != nil {
					f.log.Errorw("channel send failed", "channel", ch, "recipient", recipient.ID, "error", err)
				}
				return sendOutcome{result: models.ChannelResult{Channel: ch, Sent: false, Error: err.Error()}, err: err}
			}
			return sendOutcome{result: models.ChannelResult{Channel: ch, Sent: true}}
		})
	}
	outcomes := p.Wait()

	results := make([]models.ChannelResult, 0, len(outcomes))
	var errs error
	for _, o := range outcomes {
		results = append(results, o.result)
		if o.err != nil {
			errs = multierr.Append(errs, o.err)
		}
	}

	successful := errs == nil && len(results) > 0
	entry := models.NotificationLog{
		RecipientID: recipient.ID, Role: recipient.Role, Title: title,
		BodyPrefix: bodyPrefix, Severity: severity, Results: results, Successful: successful,
	}
	if f.audit != nil {
		f.audit(ctx, entry)
	}
	return errs
}

// OptimalChannels selects the default channel set for a recipient and
// severity, per spec.md §4.11: always push (if token), sms for
// urgent/critical (if phone), email for critical (if email), chat for
// admin recipients. Deduplicated by construction (each appended once).
func OptimalChannels(recipient models.Recipient, severity models.Severity) []models.Channel {
	var channels []models.Channel
	if recipient.PushToken != "" {
		channels = append(channels, models.ChannelPush)
	}
	if (severity == models.SeverityUrgent || severity == models.SeverityCritical) && recipient.Phone != "" {
		channels = append(channels, models.ChannelSMS)
	}
	if severity == models.SeverityCritical && recipient.Email != "" {
		channels = append(channels, models.ChannelEmail)
	}
	if recipient.Role == "admin" {
		channels = append(channels, models.ChannelChat)
	}
	return channels
}
