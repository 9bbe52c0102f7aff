package models

// Severity is the urgency attached to a notification or incident.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityUrgent   Severity = "urgent"
	SeverityCritical Severity = "critical"
)

// Channel is one delivery channel the notifier facade can fan out to,
// per spec.md §4.11.
type Channel string

const (
	ChannelPush    Channel = "push"
	ChannelSMS     Channel = "sms"
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
	ChannelChat    Channel = "chat"
)

// Recipient carries whatever addresses a notifier adapter needs to
// reach someone; a zero-value field means that channel is unusable.
type Recipient struct {
	ID         string
	Role       string
	PushToken  string
	Phone      string
	Email      string
	WebhookURL string
	ChatID     string
}

// ChannelResult is the per-channel outcome of a Send call.
type ChannelResult struct {
	Channel Channel
	Sent    bool
	Error   string
}

// NotificationLog is the persisted record for one Send call, per
// spec.md §6's notification_logs schema.
type NotificationLog struct {
	RecipientID string
	Role        string
	Title       string
	BodyPrefix  string
	Severity    Severity
	Results     []ChannelResult
	Successful  bool
}
