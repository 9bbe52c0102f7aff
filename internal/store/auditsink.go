package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AuditSinkInterface is the append-only log collaborator spec.md §6
// names Sink.appendAudit: every topic (security_logs,
// security_incidents, performance_alerts, performance_reports,
// fraud_scores, resource_alerts, notification_logs, predictions)
// appends through this one method.
type AuditSinkInterface interface {
	AppendAudit(ctx context.Context, topic string, record any) error
}

// AuditSink implements AuditSinkInterface as a Redis list per topic —
// append-only, bounded, and cheap to tail for the operator surface,
// without needing a relational schema per topic.
type AuditSink struct {
	client    *redis.Client
	keyPrefix string
	maxLen    int64
}

// NewAuditSink wraps an already-connected redis client. keyPrefix
// namespaces every topic's list key; maxLen bounds each list with
// LTRIM (0 means unbounded).
func NewAuditSink(client *redis.Client, keyPrefix string, maxLen int64) *AuditSink {
	return &AuditSink{client: client, keyPrefix: keyPrefix, maxLen: maxLen}
}

func (s *AuditSink) key(topic string) string {
	return s.keyPrefix + ":" + topic
}

// AppendAudit JSON-encodes record and LPUSHes it onto the topic's
// list, trimming to maxLen when configured.
func (s *AuditSink) AppendAudit(ctx context.Context, topic string, record any) error {
	payload, err := json.Marshal(struct {
		Record any       `json:"record"`
		At     time.Time `json:"at"`
	}{Record: record, At: time.Now()})
	if err != nil {
		return fmt.Errorf("AppendAudit marshal: %w", err)
	}

	key := s.key(topic)
	if err := s.client.LPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("AppendAudit lpush: %w", err)
	}
	if s.maxLen > 0 {
		if err := s.client.LTrim(ctx, key, 0, s.maxLen-1).Err(); err != nil {
			return fmt.Errorf("AppendAudit ltrim: %w", err)
		}
	}
	return nil
}
