package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/data/pgxutil"
	"github.com/sous-os/sous-core/internal/domain/model"
)

// SQL used by ReserveNext to atomically lease the next eligible job. Failed
// jobs become eligible again once their backoff window has elapsed.
const reserveNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE queue = $1 AND status IN ('pending', 'failed') AND scheduled_at <= $2
    ORDER BY scheduled_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'leased',
    attempts = j.attempts + 1,
    lease_expires_at = $3,
    updated_at = $4
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.queue, j.kind, j.status, j.payload, j.organization_id, j.attempts, j.max_attempts, j.last_error, j.scheduled_at, j.lease_expires_at, j.completed_at, j.created_at, j.updated_at`

// Enqueue persists a new pending job and notifies listeners on the queue's channel.
func (r *JobRepo) Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("enqueue request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}
	if !json.Valid(req.Payload) {
		return nil, errors.New("payload must be valid JSON")
	}

	var job *model.Job
	if txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var insertErr error
			job, insertErr = r.insertJobInTx(ctx, tx, req)
			return insertErr
		},
	}); txErr != nil {
		return nil, txErr
	}

	return job, nil
}

// insertJobInTx inserts a job within a pgx.Tx and returns the created job.
func (r *JobRepo) insertJobInTx(ctx context.Context, tx pgx.Tx, req *model.EnqueueRequest) (*model.Job, error) {
	var scheduledAt time.Time
	if req.ScheduledAt != nil {
		scheduledAt = req.ScheduledAt.UTC()
	} else {
		scheduledAt = r.timeProvider.Now().UTC()
	}

	query := `
      INSERT INTO jobs(queue, kind, status, payload, organization_id, scheduled_at, max_attempts)
      VALUES ($1,$2,'pending',$3,$4,$5,$6)
      RETURNING ` + jobColumns

	rows, err := tx.Query(ctx, query,
		req.Queue,
		req.Kind,
		[]byte(req.Payload),
		req.OrganizationID,
		scheduledAt,
		r.maxAttempts(req.MaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	job, collectErr := collectJobFromRows(rows)
	rows.Close()
	if collectErr != nil {
		return nil, fmt.Errorf("collect job: %w", collectErr)
	}

	channel := "job_added_" + string(req.Queue)
	if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, channel, job.ID); execErr != nil {
		return nil, fmt.Errorf("send job notification: %w", execErr)
	}

	return job, nil
}

// collectJobFromRows collects a single job from pgx rows using pgx v5 helpers.
func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	payload                                []byte
	lastError                              sql.NullString
	leaseExpiresAt, completedAt            sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.Queue,
		&job.Kind,
		&job.Status,
		&d.payload,
		&job.OrganizationID,
		&job.Attempts,
		&job.MaxAttempts,
		&d.lastError,
		&job.ScheduledAt,
		&d.leaseExpiresAt,
		&d.completedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.Payload = cloneJSON(d.payload)
	job.LastError = cloneNullableString(d.lastError)
	job.LeaseExpiresAt = cloneNullableTime(d.leaseExpiresAt)
	job.CompletedAt = cloneNullableTime(d.completedAt)
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	data.apply(job)
	return job, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// Advisory lock namespace for requeueExpired to avoid cross-queue contention.
const advisoryLockRequeueMajor int64 = 1001

func advisoryLockRequeueMinor(queue model.QueueName) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(queue))
	hashValue := h.Sum32()
	maxInt32 := uint32(math.MaxInt32)
	if hashValue > maxInt32 {
		hashValue &= maxInt32
	}
	return int64(hashValue)
}

// requeueExpired returns expired leases on the given queue to the eligible
// pool and returns the number of jobs requeued. The attempt was already
// counted at lease time, so a crashed worker still consumes an attempt.
func (r *JobRepo) requeueExpired(ctx context.Context, queue model.QueueName) (int64, error) {
	var rowsAffected int64
	var deadLettered []*model.Job
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			minorKey := advisoryLockRequeueMinor(queue)
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)", advisoryLockRequeueMajor, minorKey).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			rows, err := tx.QueryContext(ctx, `
          UPDATE jobs
          SET status = CASE WHEN attempts >= max_attempts THEN 'dead_lettered' ELSE 'pending' END,
              last_error = CASE WHEN attempts >= max_attempts THEN 'lease expired after final attempt' ELSE last_error END,
              completed_at = CASE WHEN attempts >= max_attempts THEN $2::timestamptz ELSE completed_at END,
              lease_expires_at = NULL,
              updated_at = $2
          WHERE queue = $1 AND status = 'leased'
            AND lease_expires_at IS NOT NULL
            AND lease_expires_at < $2
          RETURNING `+jobColumns, queue, currentTime.UTC())
			if err != nil {
				return fmt.Errorf("requeue expired: %w", err)
			}
			defer func() {
				_ = rows.Close()
			}()

			for rows.Next() {
				j, scanErr := scanJobFromRow(rows)
				if scanErr != nil {
					return fmt.Errorf("scan requeued job: %w", scanErr)
				}
				rowsAffected++
				if j.Status == model.JobStatusDeadLettered {
					deadLettered = append(deadLettered, j)
				}
			}
			return rows.Err()
		},
	})
	if err != nil {
		return 0, err
	}

	// The hook runs after commit so a slow or panicking observer never holds
	// the sweep transaction open.
	if r.cfg.OnLeaseExpiryDeadLetter != nil {
		for _, j := range deadLettered {
			r.cfg.OnLeaseExpiryDeadLetter(ctx, j)
		}
	}
	return rowsAffected, nil
}

// ReserveNext leases the next eligible job on the given queue for processing.
func (r *JobRepo) ReserveNext(
	ctx context.Context,
	queue model.QueueName,
	leaseSeconds int,
) (*model.Job, error) {
	if !queue.Valid() {
		return nil, fmt.Errorf("invalid queue: %s", queue)
	}

	if _, err := r.requeueExpired(ctx, queue); err != nil {
		return nil, fmt.Errorf("requeue expired jobs: %w", err)
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			currentTime := r.timeProvider.Now()
			leaseExpiresAt := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

			rows, qerr := tx.Query(
				ctx,
				reserveNextUpdateSQL,
				queue,
				currentTime.UTC(),
				leaseExpiresAt.UTC(),
				currentTime.UTC(),
			)
			if qerr != nil {
				return fmt.Errorf("reserve job: %w", qerr)
			}
			defer rows.Close()

			j, cerr := collectJobFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("reserve job: %w", cerr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, err
	}
	return job, nil
}

// Heartbeat refreshes the lease on a leased job.
func (r *JobRepo) Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}

	currentTime := r.timeProvider.Now().UTC()
	leaseExpiration := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

	query := `
		UPDATE jobs
		SET lease_expires_at = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'leased'
	`

	res, err := r.DB.ExecContext(ctx, query, jobID, leaseExpiration, currentTime)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Complete marks a leased job as completed successfully.
func (r *JobRepo) Complete(ctx context.Context, id string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE jobs
		SET status = 'completed',
		    completed_at = $2,
		    updated_at = $3,
		    lease_expires_at = NULL,
		    last_error = NULL
		WHERE id = $1 AND status = 'leased'
	`

	res, err := r.DB.ExecContext(ctx, query, id, currentTime, currentTime)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Fail records a failed attempt on a leased job. Permanent failures and jobs
// out of attempts move to dead_lettered; otherwise the job is rescheduled
// with exponential backoff. Returns the updated job.
func (r *JobRepo) Fail(ctx context.Context, params core.FailJobParams) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var attempts, maxAttempts int
			row := tx.QueryRowContext(ctx, `
				SELECT attempts, max_attempts FROM jobs
				WHERE id = $1 AND status = 'leased'
				FOR UPDATE
			`, params.ID)
			if scanErr := row.Scan(&attempts, &maxAttempts); scanErr != nil {
				if errors.Is(scanErr, sql.ErrNoRows) {
					return ErrJobNotLeased
				}
				return fmt.Errorf("lock job for fail: %w", scanErr)
			}

			currentTime := r.timeProvider.Now()
			dead := params.Permanent || attempts >= maxAttempts

			var status model.JobStatus
			var scheduledAt, completedAt any
			if dead {
				status = model.JobStatusDeadLettered
				scheduledAt = nil
				completedAt = currentTime.UTC()
			} else {
				status = model.JobStatusFailed
				scheduledAt = currentTime.Add(r.cfg.Backoff.Delay(attempts)).UTC()
				completedAt = nil
			}

			updateRow := tx.QueryRowContext(ctx, `
				UPDATE jobs
				SET status = $2,
				    last_error = $3,
				    scheduled_at = COALESCE($4::timestamptz, scheduled_at),
				    completed_at = $5,
				    lease_expires_at = NULL,
				    updated_at = $6
				WHERE id = $1
				RETURNING `+jobColumns, params.ID, status, params.ErrMsg, scheduledAt, completedAt, currentTime.UTC())

			j, scanErr := scanJobFromRow(updateRow)
			if scanErr != nil {
				return fmt.Errorf("fail job: %w", scanErr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Stats returns counts of jobs per state for the given queue.
func (r *JobRepo) Stats(ctx context.Context, queue model.QueueName) (*model.QueueStats, error) {
	var s model.QueueStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')       AS pending,
    count(*) FILTER (WHERE status = 'leased')        AS leased,
    count(*) FILTER (WHERE status = 'completed')     AS completed,
    count(*) FILTER (WHERE status = 'failed')        AS failed,
    count(*) FILTER (WHERE status = 'dead_lettered') AS dead_lettered
  FROM jobs
  WHERE queue = $1
  `, queue).Scan(
		&s.Pending,
		&s.Leased,
		&s.Completed,
		&s.Failed,
		&s.DeadLettered,
	)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return &s, nil
}

// PendingDepth returns the number of jobs awaiting a lease on the queue,
// including failed jobs waiting out their backoff.
func (r *JobRepo) PendingDepth(ctx context.Context, queue model.QueueName) (int, error) {
	var depth int
	err := r.DB.QueryRowContext(ctx, `
		SELECT count(*) FROM jobs
		WHERE queue = $1 AND status IN ('pending', 'failed')
	`, queue).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("pending depth: %w", err)
	}
	return depth, nil
}

// ListDeadLettered returns the most recently dead-lettered jobs on the queue.
func (r *JobRepo) ListDeadLettered(ctx context.Context, queue model.QueueName, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	var jobs []*model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, qerr := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE queue = $1 AND status = 'dead_lettered'
			ORDER BY completed_at DESC
			LIMIT $2
		`, queue, limit)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		for rows.Next() {
			j, scanErr := scanJobFromRow(rows)
			if scanErr != nil {
				return scanErr
			}
			jobs = append(jobs, j)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list dead-lettered jobs: %w", err)
	}
	return jobs, nil
}

// Requeue returns a dead-lettered job to the pending pool with a fresh
// attempt budget and notifies the queue's listeners.
func (r *JobRepo) Requeue(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			currentTime := r.timeProvider.Now().UTC()
			rows, qerr := tx.Query(ctx, `
				UPDATE jobs
				SET status = 'pending',
				    attempts = 0,
				    scheduled_at = $2,
				    completed_at = NULL,
				    lease_expires_at = NULL,
				    updated_at = $2
				WHERE id = $1 AND status = 'dead_lettered'
				RETURNING `+jobColumns, id, currentTime)
			if qerr != nil {
				return fmt.Errorf("requeue job: %w", qerr)
			}
			j, cerr := collectJobFromRows(rows)
			rows.Close()
			if errors.Is(cerr, pgx.ErrNoRows) {
				return ErrJobNotRequeueable
			}
			if cerr != nil {
				return fmt.Errorf("collect requeued job: %w", cerr)
			}

			channel := "job_added_" + string(j.Queue)
			if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, channel, j.ID); execErr != nil {
				return fmt.Errorf("send job notification: %w", execErr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// WaitForNotification waits for a PostgreSQL notification indicating new jobs
// are available on the queue.
func (r *JobRepo) WaitForNotification(ctx context.Context, queue model.QueueName) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			_ = cerr
		}
	}()

	channel := "job_added_" + string(queue)
	quoted := pgx.Identifier{channel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", channel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			_ = execErr
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, qerr := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = $1
		`, id)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		job, cerr = collectJobFromRows(rows)
		return cerr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}
