package prospect_test

import (
	"context"
	"errors"
	"testing"

	app "github.com/mohammadpnp/prospect-import/internal/application/prospect"
	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
)

func seedJob(t *testing.T, jobs *memJobs, owner int64, total int) domain.ImportJob {
	t.Helper()

	job, err := jobs.Create(context.Background(), domain.NewImportJob{OwnerID: owner, TotalRows: total})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func linkProspects(store *memStore, owner, fileID int64, n int) {
	for range n {
		id := store.seed(owner, "", "", "")
		fid := fileID
		store.prospects[id].FileID = &fid
	}
}

func TestGetImportProgressDerived(t *testing.T) {
	t.Parallel()

	jobs := newMemJobs()
	store := newMemStore()
	job := seedJob(t, jobs, 1, 10)
	linkProspects(store, 1, job.ID, 4)

	uc := app.NewGetImportProgress(jobs, store, nil, app.ProgressDerived)
	out, err := uc.Execute(context.Background(), app.GetImportProgressInput{CallerID: 1, FileID: job.ID})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Total != 10 || out.Done != 4 || out.Status != domain.StatusCreated {
		t.Fatalf("unexpected progress: %+v", out)
	}
}

func TestGetImportProgressCounter(t *testing.T) {
	t.Parallel()

	jobs := newMemJobs()
	job := seedJob(t, jobs, 1, 10)
	jobs.setDone(job.ID, 7)

	uc := app.NewGetImportProgress(jobs, newMemStore(), nil, app.ProgressCounter)
	out, err := uc.Execute(context.Background(), app.GetImportProgressInput{CallerID: 1, FileID: job.ID})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Done != 7 {
		t.Fatalf("expected done 7, got %d", out.Done)
	}
}

func TestGetImportProgressNeverExceedsTotal(t *testing.T) {
	t.Parallel()

	// Duplicate emails collapse, so a later force import can re-point more
	// prospects at a file than it has rows.
	for _, mode := range []app.ProgressMode{app.ProgressDerived, app.ProgressCounter} {
		jobs := newMemJobs()
		store := newMemStore()
		job := seedJob(t, jobs, 1, 3)
		linkProspects(store, 1, job.ID, 5)
		jobs.setDone(job.ID, 9)

		uc := app.NewGetImportProgress(jobs, store, nil, mode)
		out, err := uc.Execute(context.Background(), app.GetImportProgressInput{CallerID: 1, FileID: job.ID})
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", mode, err)
		}
		if out.Done != 3 {
			t.Fatalf("%s: expected done clamped to 3, got %d", mode, out.Done)
		}
	}
}

func TestGetImportProgressOwnership(t *testing.T) {
	t.Parallel()

	jobs := newMemJobs()
	job := seedJob(t, jobs, 1, 3)
	uc := app.NewGetImportProgress(jobs, newMemStore(), nil, app.ProgressDerived)

	tests := []struct {
		name string
		in   app.GetImportProgressInput
		want error
	}{
		{name: "other owner", in: app.GetImportProgressInput{CallerID: 2, FileID: job.ID}, want: app.ErrForbidden},
		{name: "unknown id", in: app.GetImportProgressInput{CallerID: 1, FileID: 999}, want: app.ErrNotFound},
		{name: "no caller", in: app.GetImportProgressInput{FileID: job.ID}, want: app.ErrUnauthorized},
	}

	for _, tc := range tests {
		_, err := uc.Execute(context.Background(), tc.in)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestGetImportProgressRepositoryError(t *testing.T) {
	t.Parallel()

	jobs := newMemJobs()
	jobs.getErr = errors.New("db down")
	uc := app.NewGetImportProgress(jobs, newMemStore(), nil, app.ProgressDerived)

	_, err := uc.Execute(context.Background(), app.GetImportProgressInput{CallerID: 1, FileID: 1})
	if !errors.Is(err, app.ErrGetProgress) {
		t.Fatalf("expected ErrGetProgress, got %v", err)
	}
}

func TestGetImportProgressUsesCache(t *testing.T) {
	t.Parallel()

	jobs := newMemJobs()
	store := newMemStore()
	job := seedJob(t, jobs, 1, 10)
	cache := newCountingCache()

	uc := app.NewGetImportProgress(jobs, store, cache, app.ProgressDerived)
	for range 3 {
		if _, err := uc.Execute(context.Background(), app.GetImportProgressInput{CallerID: 1, FileID: job.ID}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	if cache.loads != 1 {
		t.Fatalf("expected one load, got %d", cache.loads)
	}

	// A cached snapshot still enforces ownership.
	if _, err := uc.Execute(context.Background(), app.GetImportProgressInput{CallerID: 2, FileID: job.ID}); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
