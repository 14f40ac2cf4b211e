package data_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/data"
	"github.com/sous-os/sous-core/internal/domain/job"
	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/testutil"
)

func newJobRepo(t *testing.T, db *sql.DB, tp data.TimeProvider) *data.JobRepo {
	t.Helper()
	backoff, err := job.NewBackoffPolicy(time.Second, 30*time.Second)
	require.NoError(t, err)
	return data.NewJobRepo(db, data.RepoConfig{
		Backoff:      backoff,
		TimeProvider: tp,
	})
}

func enqueueTestJob(t *testing.T, repo *data.JobRepo, req *model.EnqueueRequest) *model.Job {
	t.Helper()
	if req == nil {
		req = testutil.NewEnqueueRequest().Build()
	}
	created, err := repo.Enqueue(context.Background(), req)
	require.NoError(t, err)
	return created
}

func TestJobRepoEnqueue(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(t, db, nil)

		t.Run("persists a pending job", func(t *testing.T) {
			created := enqueueTestJob(t, repo, testutil.NewEnqueueRequest().
				WithQueue(model.QueueIntelligence).
				WithKind(model.KindCalculateRecipeCost).
				WithMaxAttempts(5).
				Build())

			assert.NotEmpty(t, created.ID)
			assert.Equal(t, model.JobStatusPending, created.Status)
			assert.Equal(t, 0, created.Attempts)
			assert.Equal(t, 5, created.MaxAttempts)
			assert.Nil(t, created.LeaseExpiresAt)

			fetched, err := repo.GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, created.ID, fetched.ID)
			assert.JSONEq(t, string(created.Payload), string(fetched.Payload))
		})

		t.Run("defaults max attempts", func(t *testing.T) {
			created := enqueueTestJob(t, repo, testutil.NewEnqueueRequest().WithMaxAttempts(0).Build())
			assert.Equal(t, 3, created.MaxAttempts)
		})

		t.Run("honors scheduled time", func(t *testing.T) {
			at := time.Now().Add(time.Hour).UTC()
			created := enqueueTestJob(t, repo, testutil.NewEnqueueRequest().WithScheduledAt(at).Build())
			assert.WithinDuration(t, at, created.ScheduledAt, time.Second)
		})

		t.Run("rejects nil request", func(t *testing.T) {
			_, err := repo.Enqueue(ctx, nil)
			assert.Error(t, err)
		})

		t.Run("rejects invalid payload", func(t *testing.T) {
			req := testutil.NewEnqueueRequest().Build()
			req.Payload = json.RawMessage(`{not json`)
			_, err := repo.Enqueue(ctx, req)
			assert.Error(t, err)
		})
	})
}

func TestJobRepoReserveNext(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(t, db, nil)

		t.Run("leases the oldest eligible job", func(t *testing.T) {
			first := enqueueTestJob(t, repo, nil)
			enqueueTestJob(t, repo, nil)

			leased, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
			require.NoError(t, err)
			assert.Equal(t, first.ID, leased.ID)
			assert.Equal(t, model.JobStatusLeased, leased.Status)
			assert.Equal(t, 1, leased.Attempts)
			require.NotNil(t, leased.LeaseExpiresAt)
			assert.True(t, leased.LeaseExpiresAt.After(time.Now()))
		})

		t.Run("skips future-scheduled jobs", func(t *testing.T) {
			testutil.CleanupTestDB(t, db)
			enqueueTestJob(t, repo, testutil.NewEnqueueRequest().
				WithScheduledAt(time.Now().Add(time.Hour)).
				Build())

			_, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
			assert.ErrorIs(t, err, model.ErrNoJobsAvailable)
		})

		t.Run("rejects unknown queues", func(t *testing.T) {
			_, err := repo.ReserveNext(ctx, model.QueueName("billing"), 30)
			assert.Error(t, err)
		})

		t.Run("empty queue reports no jobs", func(t *testing.T) {
			_, err := repo.ReserveNext(ctx, model.QueueSupport, 30)
			assert.ErrorIs(t, err, model.ErrNoJobsAvailable)
		})
	})
}

func TestJobRepoCompleteAndHeartbeat(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(t, db, nil)

		created := enqueueTestJob(t, repo, nil)
		leased, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
		require.NoError(t, err)
		require.Equal(t, created.ID, leased.ID)

		ok, err := repo.Heartbeat(ctx, leased.ID, 60)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Complete(ctx, leased.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		done, err := repo.GetByID(ctx, leased.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, done.Status)
		assert.NotNil(t, done.CompletedAt)
		assert.Nil(t, done.LeaseExpiresAt)

		// Terminal jobs no longer accept lease operations.
		ok, err = repo.Heartbeat(ctx, leased.ID, 60)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.Complete(ctx, leased.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestJobRepoRetryWithBackoff(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := data.NewFixedTimeProvider(testutil.TestTime())
		repo := newJobRepo(t, db, clock)

		enqueueTestJob(t, repo, nil)
		leased, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
		require.NoError(t, err)

		failed, err := repo.Fail(ctx, core.FailJobParams{ID: leased.ID, ErrMsg: "vendor timeout"})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, failed.Status)
		require.NotNil(t, failed.LastError)
		assert.Equal(t, "vendor timeout", *failed.LastError)
		assert.True(t, failed.ScheduledAt.After(clock.Now()), "retry must wait out its backoff")

		// Still backing off.
		_, err = repo.ReserveNext(ctx, model.QueueIntelligence, 30)
		assert.ErrorIs(t, err, model.ErrNoJobsAvailable)

		// Once the backoff window passes the job is leased again and the
		// attempt counter keeps its history.
		clock.AddTime(time.Minute)
		retried, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
		require.NoError(t, err)
		assert.Equal(t, leased.ID, retried.ID)
		assert.Equal(t, 2, retried.Attempts)
	})
}

func TestJobRepoFailTerminal(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(t, db, nil)

		t.Run("permanent failure dead-letters immediately", func(t *testing.T) {
			enqueueTestJob(t, repo, testutil.NewEnqueueRequest().WithMaxAttempts(5).Build())
			leased, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
			require.NoError(t, err)

			dead, err := repo.Fail(ctx, core.FailJobParams{
				ID:        leased.ID,
				ErrMsg:    "recipe graph contains a cycle",
				Permanent: true,
			})
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusDeadLettered, dead.Status)
			assert.NotNil(t, dead.CompletedAt)
		})

		t.Run("exhausted attempts dead-letter", func(t *testing.T) {
			testutil.CleanupTestDB(t, db)
			enqueueTestJob(t, repo, testutil.NewEnqueueRequest().WithMaxAttempts(1).Build())
			leased, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
			require.NoError(t, err)

			dead, err := repo.Fail(ctx, core.FailJobParams{ID: leased.ID, ErrMsg: "still broken"})
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusDeadLettered, dead.Status)
		})

		t.Run("failing a job that is not leased", func(t *testing.T) {
			created := enqueueTestJob(t, repo, nil)
			_, err := repo.Fail(ctx, core.FailJobParams{ID: created.ID, ErrMsg: "nope"})
			assert.ErrorIs(t, err, data.ErrJobNotLeased)
		})
	})
}

func TestJobRepoLeaseExpiry(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := data.NewFixedTimeProvider(testutil.TestTime())
		repo := newJobRepo(t, db, clock)

		t.Run("expired lease is redelivered", func(t *testing.T) {
			enqueueTestJob(t, repo, nil)
			leased, err := repo.ReserveNext(ctx, model.QueueIntelligence, 1)
			require.NoError(t, err)
			assert.Equal(t, 1, leased.Attempts)

			clock.AddTime(2 * time.Second)
			redelivered, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
			require.NoError(t, err)
			assert.Equal(t, leased.ID, redelivered.ID)
			assert.Equal(t, 2, redelivered.Attempts)
		})

		t.Run("expiry after the final attempt dead-letters", func(t *testing.T) {
			testutil.CleanupTestDB(t, db)
			created := enqueueTestJob(t, repo, testutil.NewEnqueueRequest().WithMaxAttempts(1).Build())
			_, err := repo.ReserveNext(ctx, model.QueueIntelligence, 1)
			require.NoError(t, err)

			clock.AddTime(2 * time.Second)
			_, err = repo.ReserveNext(ctx, model.QueueIntelligence, 30)
			assert.ErrorIs(t, err, model.ErrNoJobsAvailable)

			dead, err := repo.GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusDeadLettered, dead.Status)
			require.NotNil(t, dead.LastError)
			assert.Contains(t, *dead.LastError, "lease expired")
		})
	})
}

func TestJobRepoLeaseExpiryDeadLetterHook(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := data.NewFixedTimeProvider(testutil.TestTime())
		backoff, err := job.NewBackoffPolicy(time.Second, 30*time.Second)
		require.NoError(t, err)

		var observed []*model.Job
		repo := data.NewJobRepo(db, data.RepoConfig{
			Backoff:      backoff,
			TimeProvider: clock,
			OnLeaseExpiryDeadLetter: func(_ context.Context, j *model.Job) {
				observed = append(observed, j)
			},
		})

		created := enqueueTestJob(t, repo, testutil.NewEnqueueRequest().WithMaxAttempts(1).Build())
		_, err = repo.ReserveNext(ctx, model.QueueIntelligence, 1)
		require.NoError(t, err)

		// The sweep on the next reserve dead-letters the expired job and
		// reports it through the hook.
		clock.AddTime(2 * time.Second)
		_, err = repo.ReserveNext(ctx, model.QueueIntelligence, 30)
		assert.ErrorIs(t, err, model.ErrNoJobsAvailable)

		require.Len(t, observed, 1)
		assert.Equal(t, created.ID, observed[0].ID)
		assert.Equal(t, model.JobStatusDeadLettered, observed[0].Status)
		require.NotNil(t, observed[0].LastError)
		assert.Contains(t, *observed[0].LastError, "lease expired")

		// A lease that merely returns to the pool does not fire the hook.
		observed = nil
		second := enqueueTestJob(t, repo, testutil.NewEnqueueRequest().WithMaxAttempts(3).Build())
		_, err = repo.ReserveNext(ctx, model.QueueIntelligence, 1)
		require.NoError(t, err)
		clock.AddTime(2 * time.Second)
		redelivered, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
		require.NoError(t, err)
		assert.Equal(t, second.ID, redelivered.ID)
		assert.Empty(t, observed)
	})
}

func TestJobRepoRequeue(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(t, db, nil)

		created := enqueueTestJob(t, repo, testutil.NewEnqueueRequest().WithMaxAttempts(1).Build())
		leased, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
		require.NoError(t, err)
		_, err = repo.Fail(ctx, core.FailJobParams{ID: leased.ID, ErrMsg: "boom", Permanent: true})
		require.NoError(t, err)

		listed, err := repo.ListDeadLettered(ctx, model.QueueIntelligence, 10)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, created.ID, listed[0].ID)

		requeued, err := repo.Requeue(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, requeued.Status)
		assert.Equal(t, 0, requeued.Attempts)
		assert.Nil(t, requeued.CompletedAt)

		// A pending job cannot be requeued again.
		_, err = repo.Requeue(ctx, created.ID)
		assert.ErrorIs(t, err, data.ErrJobNotRequeueable)
	})
}

func TestJobRepoStatsAndDepth(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(t, db, nil)

		enqueueTestJob(t, repo, nil)
		enqueueTestJob(t, repo, nil)
		leased, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
		require.NoError(t, err)
		ok, err := repo.Complete(ctx, leased.ID)
		require.NoError(t, err)
		require.True(t, ok)

		stats, err := repo.Stats(ctx, model.QueueIntelligence)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Pending)
		assert.Equal(t, 0, stats.Leased)
		assert.Equal(t, 1, stats.Completed)

		depth, err := repo.PendingDepth(ctx, model.QueueIntelligence)
		require.NoError(t, err)
		assert.Equal(t, 1, depth)

		other, err := repo.PendingDepth(ctx, model.QueueSales)
		require.NoError(t, err)
		assert.Equal(t, 0, other)
	})
}

func TestJobRepoGetByIDNotFound(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := newJobRepo(t, db, nil)
		_, err := repo.GetByID(context.Background(), "00000000-0000-0000-0000-00000000dead")
		assert.ErrorIs(t, err, data.ErrJobNotFound)
	})
}

func TestJobRepoDeleteOldJobs(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := data.NewFixedTimeProvider(testutil.TestTime())
		repo := newJobRepo(t, db, clock)

		complete := func(t *testing.T) {
			t.Helper()
			enqueueTestJob(t, repo, nil)
			leased, err := repo.ReserveNext(ctx, model.QueueIntelligence, 30)
			require.NoError(t, err)
			ok, err := repo.Complete(ctx, leased.ID)
			require.NoError(t, err)
			require.True(t, ok)
		}

		complete(t)
		complete(t)

		// Not old enough yet.
		clock.AddTime(time.Hour)
		deleted, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
			Status:    model.JobStatusCompleted,
			MaxAge:    24 * time.Hour,
			BatchSize: 10,
		})
		require.NoError(t, err)
		assert.Zero(t, deleted)

		clock.AddTime(48 * time.Hour)

		t.Run("respects the batch size", func(t *testing.T) {
			deleted, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusCompleted,
				MaxAge:    24 * time.Hour,
				BatchSize: 1,
			})
			require.NoError(t, err)
			assert.EqualValues(t, 1, deleted)

			deleted, err = repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusCompleted,
				MaxAge:    24 * time.Hour,
				BatchSize: 10,
			})
			require.NoError(t, err)
			assert.EqualValues(t, 1, deleted)
		})

		t.Run("rejects non-terminal statuses", func(t *testing.T) {
			_, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusPending,
				MaxAge:    24 * time.Hour,
				BatchSize: 10,
			})
			assert.Error(t, err)
		})
	})
}

func TestJobRepoWaitForNotification(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := newJobRepo(t, db, nil)

		notified := make(chan error, 1)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		go func() {
			notified <- repo.WaitForNotification(ctx, model.QueueIntelligence)
		}()

		// Give the listener time to attach before enqueueing.
		time.Sleep(200 * time.Millisecond)
		enqueueTestJob(t, repo, nil)

		select {
		case err := <-notified:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("notification never arrived")
		}
	})
}
