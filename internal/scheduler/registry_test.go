package scheduler

import (
	"context"
	"testing"
)

func TestLoadSystemJobsParsesAllEightEntries(t *testing.T) {
	specs, err := LoadSystemJobs()
	if err != nil {
		t.Fatalf("LoadSystemJobs returned %v", err)
	}
	if len(specs) != 8 {
		t.Fatalf("LoadSystemJobs returned %d entries; want 8", len(specs))
	}
}

func TestInstallSystemJobsRequiresAllHandlers(t *testing.T) {
	s := New(DefaultConfig(), nil)
	err := InstallSystemJobs(s, map[string]JobFunc{
		"cleanup-sweeper": func(ctx context.Context) error { return nil },
	})
	if err == nil {
		t.Fatalf("InstallSystemJobs succeeded with missing handlers; want error")
	}
}

func TestInstallSystemJobsSchedulesEveryEntry(t *testing.T) {
	s := New(DefaultConfig(), nil)
	specs, _ := LoadSystemJobs()
	handlers := make(map[string]JobFunc, len(specs))
	for _, spec := range specs {
		handlers[spec.ID] = func(ctx context.Context) error { return nil }
	}

	if err := InstallSystemJobs(s, handlers); err != nil {
		t.Fatalf("InstallSystemJobs returned %v", err)
	}
	if len(s.Snapshot()) != len(specs) {
		t.Errorf("Snapshot length = %d; want %d", len(s.Snapshot()), len(specs))
	}
}
