// Package threat implements the fraud/abuse scoring meter, spec.md
// §4.9: a bounded per-subject activity window and the clamped sum of
// session, network, temporal, and behavioral sub-analyses.
package threat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dispatch-and-delivery/internal/models"
)

// ActionThresholds mirrors spec.md §6's threat.actionThresholds
// (30/50/75/95): LOW, MEDIUM, HIGH, SUSPENDED cutoffs.
type ActionThresholds struct {
	Low       float64
	Medium    float64
	High      float64
	Suspended float64
}

// DefaultActionThresholds matches spec.md §4.9/§6's stated defaults.
func DefaultActionThresholds() ActionThresholds {
	return ActionThresholds{Low: 30, Medium: 50, High: 75, Suspended: 95}
}

// NetworkReputation checks IP reputation, per spec.md §6's
// IpReputation collaborator interface.
type NetworkReputation interface {
	IsBlacklisted(ctx context.Context, ip string) bool
}

// DeviceHistory returns a subject's previously observed
// IP/UA/fingerprint combinations, per spec.md §6's DeviceStore.
type DeviceHistory interface {
	Recent(ctx context.Context, subject string) ([]models.DeviceRecord, error)
}

// IncidentFunc persists a security incident; wired to Sink.appendAudit.
type IncidentFunc func(ctx context.Context, subject, activity string, result models.ThreatResult, severity models.Severity, tctx models.ThreatContext)

// AuditFunc persists the fraud_scores record every Score call produces,
// independent of whether any threshold action fired.
type AuditFunc func(ctx context.Context, subject, activity string, result models.ThreatResult, factors map[string]float64, at time.Time)

// NotifyFunc forwards a threshold-triggered notification.
type NotifyFunc func(ctx context.Context, subject string, severity models.Severity, channels []models.Channel)

// ActivitySource supplies a subject's persisted activity history, so
// a freshly restarted process doesn't score the first request after
// a crash against an empty window. Wired to internal/store's
// ActivityStore.
type ActivitySource interface {
	Recent(ctx context.Context, subject string, fromInstant time.Time) ([]models.ActivityEntry, error)
}

// activitySeedLookback matches fraudSubscore's velocity window — older
// history wouldn't affect any scoring function anyway.
const activitySeedLookback = 5 * time.Minute

// Meter tracks per-subject rolling activity and computes threat
// scores.
type Meter struct {
	mu      sync.Mutex
	windows map[string][]models.ActivityEntry
	suspended map[string]bool
	localSuspiciousIPs map[string]bool

	thresholds ActionThresholds
	reputation NetworkReputation
	devices    DeviceHistory
	incident   IncidentFunc
	notify     NotifyFunc
	activity   ActivitySource
	audit      AuditFunc
	log        *zap.SugaredLogger
	now        func() time.Time
}

// SetActivitySource wires a persisted-history lookup used to seed a
// subject's in-memory window the first time Score observes them.
// Optional — nil (the default) means every subject starts cold.
func (m *Meter) SetActivitySource(src ActivitySource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = src
}

// SetAuditFunc wires the fraud_scores persistence sink. Optional — nil
// (the default) means Score still computes and returns a result but
// persists nothing, matching SetActivitySource's setter shape so
// existing New(...) call sites are unaffected.
func (m *Meter) SetAuditFunc(fn AuditFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = fn
}

// New constructs a Meter.
func New(thresholds ActionThresholds, reputation NetworkReputation, devices DeviceHistory, incident IncidentFunc, notify NotifyFunc, log *zap.SugaredLogger) *Meter {
	return &Meter{
		windows:            make(map[string][]models.ActivityEntry),
		suspended:          make(map[string]bool),
		localSuspiciousIPs: make(map[string]bool),
		thresholds:         thresholds,
		reputation:         reputation,
		devices:            devices,
		incident:           incident,
		notify:             notify,
		log:                log,
		now:                time.Now,
	}
}

// MarkSuspiciousIP adds ip to the local suspicious set (distinct from
// the external blacklist collection queried via NetworkReputation).
func (m *Meter) MarkSuspiciousIP(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localSuspiciousIPs[ip] = true
}

// IsSuspended reports whether subject has been auto-suspended by a
// prior Score call crossing the Suspended threshold.
func (m *Meter) IsSuspended(subject string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended[subject]
}

// SuspendedSubjects lists every subject currently auto-suspended, for
// the operator-facing snapshot.
func (m *Meter) SuspendedSubjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.suspended))
	for subject, suspended := range m.suspended {
		if suspended {
			out = append(out, subject)
		}
	}
	return out
}

func (m *Meter) recordActivity(ctx context.Context, subject, activity string) []models.ActivityEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.windows[subject]; !seen && m.activity != nil {
		if seeded, err := m.activity.Recent(ctx, subject, m.now().Add(-activitySeedLookback)); err == nil {
			m.windows[subject] = seeded
		} else if m.log != nil {
			m.log.Warnw("activity source seed failed", "subject", subject, "error", err)
		}
	}

	entry := models.ActivityEntry{Activity: activity, At: m.now()}
	buf := append(m.windows[subject], entry)
	if len(buf) > models.MaxActivityWindow {
		buf = buf[len(buf)-models.TrimActivityWindow:]
	}
	m.windows[subject] = buf
	return append([]models.ActivityEntry(nil), buf...)
}

// Score records activity for subject and returns the blended 0..100
// threat score, triggering threshold actions and persisting an audit
// record.
func (m *Meter) Score(ctx context.Context, subject, activity string, tctx models.ThreatContext) models.ThreatResult {
	window := m.recordActivity(ctx, subject, activity)

	session := m.sessionScore(tctx)
	network := m.networkScore(ctx, tctx)
	temporal := m.temporalScore(window)
	behavioral := m.behavioralScore(ctx, subject, tctx, window)

	score := session + network + temporal + behavioral
	if score > 100 {
		score = 100
	}

	level := m.levelFor(score)
	result := models.ThreatResult{Score: score, Level: level}

	if m.audit != nil {
		factors := map[string]float64{
			"session": session, "network": network,
			"temporal": temporal, "behavioral": behavioral,
		}
		m.audit(ctx, subject, activity, result, factors, m.now())
	}

	m.applyThresholdActions(ctx, subject, activity, result, tctx)
	return result
}

func (m *Meter) levelFor(score float64) models.ThreatLevel {
	switch {
	case score >= m.thresholds.Suspended:
		return models.ThreatSuspended
	case score >= m.thresholds.High:
		return models.ThreatHigh
	case score >= m.thresholds.Medium:
		return models.ThreatMedium
	case score >= m.thresholds.Low:
		return models.ThreatLow
	default:
		return models.ThreatNone
	}
}

func (m *Meter) applyThresholdActions(ctx context.Context, subject, activity string, result models.ThreatResult, tctx models.ThreatContext) {
	switch {
	case result.Score >= m.thresholds.High:
		if result.Score >= m.thresholds.Suspended {
			m.mu.Lock()
			m.suspended[subject] = true
			m.mu.Unlock()
		}
		if m.incident != nil {
			m.incident(ctx, subject, activity, result, models.SeverityCritical, tctx)
		}
		if m.notify != nil {
			m.notify(ctx, subject, models.SeverityCritical, []models.Channel{models.ChannelEmail, models.ChannelChat})
		}
	case result.Score >= m.thresholds.Medium:
		if m.incident != nil {
			m.incident(ctx, subject, activity, result, models.SeverityUrgent, tctx)
		}
		if m.notify != nil {
			m.notify(ctx, subject, models.SeverityUrgent, nil)
		}
	case result.Score >= m.thresholds.Low:
		if m.incident != nil {
			m.incident(ctx, subject, activity, result, models.SeverityNormal, tctx)
		}
	}
}

// sessionScore: +20 multiple devices, +30 rapid location change, +15
// unusual user-agent, +25 excessive failed logins.
func (m *Meter) sessionScore(tctx models.ThreatContext) float64 {
	var s float64
	if tctx.MultipleDevices {
		s += 20
	}
	if tctx.RapidLocationChanges {
		s += 30
	}
	if tctx.UnusualUserAgent {
		s += 15
	}
	if tctx.ExcessiveFailedLogins {
		s += 25
	}
	return s
}

// networkScore: +40 local suspicious set, +60 external blacklist,
// +10 VPN, +35 Tor.
func (m *Meter) networkScore(ctx context.Context, tctx models.ThreatContext) float64 {
	var s float64
	if tctx.ClientIP != "" {
		m.mu.Lock()
		suspicious := m.localSuspiciousIPs[tctx.ClientIP]
		m.mu.Unlock()
		if suspicious {
			s += 40
		}
		if m.reputation != nil && m.reputation.IsBlacklisted(ctx, tctx.ClientIP) {
			s += 60
		}
	}
	if tctx.VPNDetected {
		s += 10
	}
	if tctx.TorDetected {
		s += 35
	}
	return s
}

// temporalScore: +15 local hour in [0,5]; +25 rapid action pattern
// (>5 identical activities or >15 total activities in the last
// minute).
func (m *Meter) temporalScore(window []models.ActivityEntry) float64 {
	var s float64
	now := m.now()
	if hour := now.Hour(); hour >= 0 && hour <= 5 {
		s += 15
	}

	cutoff := now.Add(-time.Minute)
	total := 0
	byActivity := make(map[string]int)
	for _, e := range window {
		if e.At.Before(cutoff) {
			continue
		}
		total++
		byActivity[e.Activity]++
	}
	if total > 15 {
		s += 25
	} else {
		for _, n := range byActivity {
			if n > 5 {
				s += 25
				break
			}
		}
	}
	return s
}

// behavioralScore: +40 automated behavior, +30 unusual transaction,
// plus 0.8*fraudSubscore.
func (m *Meter) behavioralScore(ctx context.Context, subject string, tctx models.ThreatContext, window []models.ActivityEntry) float64 {
	var s float64
	if tctx.AutomatedBehaviorDetected {
		s += 40
	}
	if tctx.UnusualTransactionPattern {
		s += 30
	}
	s += 0.8 * m.fraudSubscore(ctx, subject, tctx, window)
	return s
}

// fraudSubscore aggregates velocity, device novelty, time-of-day
// risk, and location anomaly, per spec.md §4.9. Deliberately additive
// with the rest of behavioralScore rather than deduplicated against
// session/network signals — distinct heuristics may legitimately fire
// on the same underlying event.
func (m *Meter) fraudSubscore(ctx context.Context, subject string, tctx models.ThreatContext, window []models.ActivityEntry) float64 {
	var s float64

	cutoff := m.now().Add(-5 * time.Minute)
	count := 0
	kinds := make(map[string]bool)
	for _, e := range window {
		if e.At.Before(cutoff) {
			continue
		}
		count++
		kinds[e.Activity] = true
	}
	switch {
	case count > 10:
		s += 40
	case count > 5:
		s += 20
	}
	if len(kinds) > 8 {
		s += 30
	}

	s += m.deviceNoveltyScore(ctx, subject, tctx)

	if hour := m.now().Hour(); hour >= 0 && hour <= 5 {
		s += 10
	}
	if tctx.RapidLocationChanges {
		s += 10
	}

	return s
}

func (m *Meter) deviceNoveltyScore(ctx context.Context, subject string, tctx models.ThreatContext) float64 {
	if m.devices == nil {
		return 0
	}
	history, err := m.devices.Recent(ctx, subject)
	if err != nil || len(history) == 0 {
		return 0
	}

	var knownIP, knownUA, knownFingerprint bool
	for _, d := range history {
		if d.IP == tctx.ClientIP {
			knownIP = true
		}
		if d.UserAgent == tctx.UserAgent {
			knownUA = true
		}
		if d.Fingerprint == tctx.DeviceFingerprint {
			knownFingerprint = true
		}
	}

	var s float64
	if tctx.ClientIP != "" && !knownIP {
		s += 20
	}
	if tctx.UserAgent != "" && !knownUA {
		s += 15
	}
	if tctx.DeviceFingerprint != "" && !knownFingerprint {
		s += 25
	}
	return s
}
