package jobs_test

import (
	"context"
	"testing"

	"natronfarm/internal/jobs"
	"natronfarm/internal/testsupport"
)

func TestCreateJobSplitsFramesIntoTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := &jobs.Job{
		Name:       "Comp",
		DataFile:   "/projects/comp.ntp",
		Plugin:     jobs.PluginInfo{Version: "2.3", WriterNodeName: "Write1"},
		FirstFrame: 1,
		LastFrame:  10,
		ChunkSize:  4,
	}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected job ID to be assigned")
	}

	tasks, err := store.ListTasks(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	want := []string{"1-4", "5-8", "9-10"}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, task := range tasks {
		if task.ID != i {
			t.Fatalf("task %d has id %d", i, task.ID)
		}
		if task.FrameRange() != want[i] {
			t.Fatalf("task %d range = %s, want %s", i, task.FrameRange(), want[i])
		}
		if task.Status != jobs.TaskStatusQueued {
			t.Fatalf("task %d status = %s, want queued", i, task.Status)
		}
		if task.ExitCode != nil {
			t.Fatalf("task %d should have no exit code yet", i)
		}
	}

	fetched, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched == nil || fetched.Plugin.WriterNodeName != "Write1" || fetched.Plugin.Version != "2.3" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
	if fetched.Environment == nil {
		t.Fatal("expected empty environment map, got nil")
	}
}

func TestSaveJobPersistsEnvironment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/projects/a.ntp", 1, 1)

	job.SetEnvironmentKeyValue("NATRON_LOCATION", "/opt/Natron-2.3")
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	fetched, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if value, ok := fetched.EnvironmentKeyValue("NATRON_LOCATION"); !ok || value != "/opt/Natron-2.3" {
		t.Fatalf("expected persisted environment, got %v", fetched.Environment)
	}
}

func TestSaveJobRejectsUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.SaveJob(context.Background(), &jobs.Job{ID: "missing"}); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestGetJobMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job, err := store.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %#v", job)
	}
}

func TestTaskLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/projects/a.ntp", 1, 10)

	if err := store.MarkTaskRunning(ctx, job.ID, 0); err != nil {
		t.Fatalf("MarkTaskRunning failed: %v", err)
	}
	if err := store.UpdateTaskProgress(ctx, job.ID, 0, 40, "Frame rendered: 5"); err != nil {
		t.Fatalf("UpdateTaskProgress failed: %v", err)
	}
	task, err := store.GetTask(ctx, job.ID, 0)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Status != jobs.TaskStatusRunning || task.Progress != 40 || task.StatusMessage != "Frame rendered: 5" {
		t.Fatalf("unexpected running task: %#v", task)
	}

	code := 3
	if err := store.FinishTask(ctx, job.ID, 0, jobs.TaskStatusFailed, &code, "renderer returned non-zero error code 3"); err != nil {
		t.Fatalf("FinishTask failed: %v", err)
	}
	task, err = store.GetTask(ctx, job.ID, 0)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Status != jobs.TaskStatusFailed || task.ExitCode == nil || *task.ExitCode != 3 {
		t.Fatalf("unexpected finished task: %#v", task)
	}
	if task.Failure == "" {
		t.Fatal("expected failure reason")
	}

	if err := store.FinishTask(ctx, job.ID, 0, jobs.TaskStatusRunning, nil, ""); err == nil {
		t.Fatal("expected error when finishing with non-terminal status")
	}
	if err := store.MarkTaskRunning(ctx, job.ID, 42); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestListJobsReturnsAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, store, "/a.ntp", 1, 1)
	testsupport.NewJob(t, store, "/b.ntp", 1, 1)

	list, err := store.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	testsupport.NewJob(t, store, "/a.ntp", 1, 1)
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	list, err := reopened.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected job to survive reopen, got %d", len(list))
	}
}
