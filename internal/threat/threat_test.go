package threat

import (
	"context"
	"testing"
	"time"

	"dispatch-and-delivery/internal/models"
)

func TestScoreSessionFactorsSum(t *testing.T) {
	m := New(DefaultActionThresholds(), nil, nil, nil, nil, nil)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	tctx := models.ThreatContext{MultipleDevices: true, UnusualUserAgent: true}
	result := m.Score(context.Background(), "user-1", "login", tctx)

	if result.Score != 35 {
		t.Errorf("Score = %v; want 35 (20+15)", result.Score)
	}
	if result.Level != models.ThreatLow {
		t.Errorf("Level = %v; want LOW", result.Level)
	}
}

func TestScoreClampsAt100(t *testing.T) {
	m := New(DefaultActionThresholds(), nil, nil, nil, nil, nil)
	tctx := models.ThreatContext{
		MultipleDevices: true, RapidLocationChanges: true, UnusualUserAgent: true,
		ExcessiveFailedLogins: true, VPNDetected: true, TorDetected: true,
		AutomatedBehaviorDetected: true, UnusualTransactionPattern: true,
	}
	result := m.Score(context.Background(), "user-1", "login", tctx)
	if result.Score != 100 {
		t.Errorf("Score = %v; want clamped to 100", result.Score)
	}
	if result.Level != models.ThreatSuspended {
		t.Errorf("Level = %v; want SUSPENDED", result.Level)
	}
}

func TestHighThreatBelowSuspendedThresholdDoesNotSuspend(t *testing.T) {
	m := New(ActionThresholds{Low: 30, Medium: 50, High: 20, Suspended: 90}, nil, nil, nil, nil, nil)
	tctx := models.ThreatContext{TorDetected: true, VPNDetected: true}
	m.Score(context.Background(), "user-1", "login", tctx)

	if m.IsSuspended("user-1") {
		t.Errorf("subject suspended below the Suspended threshold")
	}
}

func TestTemporalScoreNightHourBonus(t *testing.T) {
	m := New(DefaultActionThresholds(), nil, nil, nil, nil, nil)
	night := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return night }

	got := m.temporalScore(nil)
	if got != 15 {
		t.Errorf("temporalScore at 02:00 = %v; want 15", got)
	}
}

func TestTemporalScoreRapidActionPattern(t *testing.T) {
	m := New(DefaultActionThresholds(), nil, nil, nil, nil, nil)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	var window []models.ActivityEntry
	for i := 0; i < 6; i++ {
		window = append(window, models.ActivityEntry{Activity: "click", At: base.Add(-10 * time.Second)})
	}
	got := m.temporalScore(window)
	if got != 25 {
		t.Errorf("temporalScore with 6 identical recent activities = %v; want 25", got)
	}
}

type fakeReputation struct{ blacklisted map[string]bool }

func (f fakeReputation) IsBlacklisted(ctx context.Context, ip string) bool {
	return f.blacklisted[ip]
}

func TestScorePersistsFraudScoreAuditRegardlessOfThreshold(t *testing.T) {
	m := New(DefaultActionThresholds(), nil, nil, nil, nil, nil)
	var gotSubject, gotActivity string
	var gotFactors map[string]float64
	m.SetAuditFunc(func(ctx context.Context, subject, activity string, result models.ThreatResult, factors map[string]float64, at time.Time) {
		gotSubject, gotActivity, gotFactors = subject, activity, factors
	})

	result := m.Score(context.Background(), "user-1", "login", models.ThreatContext{})
	if result.Level != models.ThreatNone {
		t.Fatalf("expected a below-threshold score for this test, got level %v", result.Level)
	}
	if gotSubject != "user-1" || gotActivity != "login" {
		t.Errorf("audit not invoked with expected subject/activity: %q/%q", gotSubject, gotActivity)
	}
	if gotFactors == nil {
		t.Fatalf("audit func was not invoked")
	}
	sum := gotFactors["session"] + gotFactors["network"] + gotFactors["temporal"] + gotFactors["behavioral"]
	if sum != result.Score {
		t.Errorf("factor breakdown sums to %v; want %v", sum, result.Score)
	}
}

func TestNetworkScoreBlacklistAndSuspiciousSet(t *testing.T) {
	rep := fakeReputation{blacklisted: map[string]bool{"1.2.3.4": true}}
	m := New(DefaultActionThresholds(), rep, nil, nil, nil, nil)
	m.MarkSuspiciousIP("9.9.9.9")

	got := m.networkScore(context.Background(), models.ThreatContext{ClientIP: "1.2.3.4"})
	if got != 60 {
		t.Errorf("networkScore(blacklisted) = %v; want 60", got)
	}

	got = m.networkScore(context.Background(), models.ThreatContext{ClientIP: "9.9.9.9"})
	if got != 40 {
		t.Errorf("networkScore(locally suspicious) = %v; want 40", got)
	}
}
