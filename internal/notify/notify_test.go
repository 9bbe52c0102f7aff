package notify

import (
	"context"
	"errors"
	"testing"

	"dispatch-and-delivery/internal/models"
)

type fakeAdapter struct {
	err error
}

func (f *fakeAdapter) Send(ctx context.Context, recipient models.Recipient, title, body string) error {
	return f.err
}

func TestSendSkipsChannelsWithoutAddress(t *testing.T) {
	push := &fakeAdapter{}
	sms := &fakeAdapter{}
	f := New(map[models.Channel]ChannelAdapter{
		models.ChannelPush: push,
		models.ChannelSMS:  sms,
	}, nil, nil)

	recipient := models.Recipient{ID: "u1", PushToken: "tok"}
	err := f.Send(context.Background(), recipient, "title", "body", models.SeverityNormal,
		[]models.Channel{models.ChannelPush, models.ChannelSMS})
	if err != nil {
		t.Fatalf("Send returned %v", err)
	}
}

func TestSendAggregatesFailuresAndLogsDelivery(t *testing.T) {
	boom := errors.New("boom")
	var logged models.NotificationLog
	audit := func(ctx context.Context, log models.NotificationLog) { logged = log }

	f := New(map[models.Channel]ChannelAdapter{
		models.ChannelEmail: &fakeAdapter{err: boom},
	}, audit, nil)

	recipient := models.Recipient{ID: "u1", Email: "u1@example.com"}
	err := f.Send(context.Background(), recipient, "title", "body", models.SeverityCritical, []models.Channel{models.ChannelEmail})

	if !errors.Is(err, boom) {
		t.Fatalf("Send returned %v; want boom", err)
	}
	if logged.Successful {
		t.Errorf("NotificationLog.Successful = true; want false")
	}
	if len(logged.Results) != 1 || logged.Results[0].Sent {
		t.Errorf("Results = %+v; want one failed result", logged.Results)
	}
}

func TestOptimalChannelsAlwaysPushIfTokenPresent(t *testing.T) {
	recipient := models.Recipient{PushToken: "tok"}
	channels := OptimalChannels(recipient, models.SeverityNormal)
	if len(channels) != 1 || channels[0] != models.ChannelPush {
		t.Errorf("OptimalChannels = %v; want [push]", channels)
	}
}

func TestOptimalChannelsCriticalAddsEmailAndSMS(t *testing.T) {
	recipient := models.Recipient{PushToken: "tok", Phone: "555", Email: "a@b.com"}
	channels := OptimalChannels(recipient, models.SeverityCritical)

	want := map[models.Channel]bool{models.ChannelPush: true, models.ChannelSMS: true, models.ChannelEmail: true}
	if len(channels) != len(want) {
		t.Fatalf("OptimalChannels = %v; want 3 channels", channels)
	}
	for _, ch := range channels {
		if !want[ch] {
			t.Errorf("unexpected channel %v", ch)
		}
	}
}

func TestOptimalChannelsAdminGetsChat(t *testing.T) {
	recipient := models.Recipient{Role: "admin"}
	channels := OptimalChannels(recipient, models.SeverityNormal)
	if len(channels) != 1 || channels[0] != models.ChannelChat {
		t.Errorf("OptimalChannels(admin) = %v; want [chat]", channels)
	}
}

func TestSignBodyIsDeterministic(t *testing.T) {
	sig1 := signBody([]byte("secret"), []byte("payload"))
	sig2 := signBody([]byte("secret"), []byte("payload"))
	if sig1 != sig2 {
		t.Errorf("signBody not deterministic: %q vs %q", sig1, sig2)
	}
}
