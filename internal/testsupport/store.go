package testsupport

import (
	"context"
	"testing"

	"natronfarm/internal/config"
	"natronfarm/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a job with a single-chunk frame range for tests.
func NewJob(t testing.TB, store *jobs.Store, dataFile string, first, last int) *jobs.Job {
	t.Helper()

	job := &jobs.Job{
		Name:       "Test Job",
		DataFile:   dataFile,
		Plugin:     jobs.PluginInfo{Version: "2.0"},
		FirstFrame: first,
		LastFrame:  last,
		ChunkSize:  last - first + 1,
	}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}
