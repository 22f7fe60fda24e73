package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "render", "message") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_StageChange(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(0, "staging", "") {
		t.Error("first stage should log")
	}
	if s.ShouldLog(0, "staging", "again") {
		t.Error("same stage and percent should not log again")
	}
	if !s.ShouldLog(0, "  rendering ", "") {
		t.Error("different stage should log")
	}
	if s.lastStage != "rendering" {
		t.Errorf("lastStage = %q, want rendering (trimmed)", s.lastStage)
	}
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{4, false},
		{10, true},
		{19.9, false},
		{40, true},
		{30, false},
		{100, true},
		{100, false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, "rendering", ""); got != step.want {
			t.Fatalf("step %d (%.1f%%): ShouldLog = %v, want %v", i, step.percent, got, step.want)
		}
	}
}

func TestProgressSampler_NegativePercentOnlyLogsStage(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(-1, "rendering", "") {
		t.Error("stage change should log even with unknown percent")
	}
	if s.ShouldLog(-1, "rendering", "") {
		t.Error("unknown percent without stage change should not log")
	}
}

func TestProgressSampler_Reset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "rendering", "")
	s.Reset()
	if s.lastStage != "" || s.lastBucket != -1 {
		t.Fatalf("reset did not clear state: %q %d", s.lastStage, s.lastBucket)
	}
	if !s.ShouldLog(50, "rendering", "") {
		t.Error("expected log after reset")
	}
}
