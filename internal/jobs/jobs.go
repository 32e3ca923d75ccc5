// Package jobs implements the C6 job orchestrator: lifecycle management,
// atomic progress emission with a capped rolling log, fan-out persistence
// of per-ticker results, and live progress streaming to subscribers.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/catalystengine/screener/internal/store"
)

// Status is a job's lifecycle state. Transitions are monotone:
// Pending -> Running -> {Success, Failed}.
type Status string

const (
	Pending Status = "PENDING"
	Running Status = "RUNNING"
	Success Status = "SUCCESS"
	Failed  Status = "FAILED"
)

// progressLogCap bounds the rolling log kept on every job record.
const progressLogCap = 100

// legacyJobIDPattern recognizes the legacy YYYYMMDD-HHMMSS-shortid form,
// which this module still accepts on read per spec §9.
var legacyJobIDPattern = regexp.MustCompile(`^\d{8}-\d{6}-[a-zA-Z0-9]+$`)

// ProgressEvent is the canonical wire shape for one progress update,
// matching spec §6's snake_case field names exactly.
type ProgressEvent struct {
	JobID       string `json:"job_id"`
	JobType     string `json:"job_type"`
	Status      Status `json:"status"`
	StepCurrent int    `json:"step_current"`
	StepTotal   int    `json:"step_total"`
	StepName    string `json:"step_name"`
	Message     string `json:"message"`
	UpdatedAt   string `json:"updated_at"`
}

// Record is the full persisted job document.
type Record struct {
	JobID         string
	JobType       string
	Status        Status
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Options       json.RawMessage
	ProgressLog   []ProgressEvent
	Snapshot      *ProgressEvent
	Results       json.RawMessage
	ResultSummary json.RawMessage
	ErrorMessage  string
	ErrorStep     string
	TriggerSource string
	ParentJobID   string
}

// Store persists job records and their per-candidate fan-out detail over
// the standard-profile SQLite database.
type Store struct {
	db  *store.DB
	log zerolog.Logger

	subsMu sync.Mutex
	subs   map[string][]chan ProgressEvent
	done   map[string]chan struct{}
}

// New builds a Store over an already-migrated standard-profile database.
func New(db *store.DB, log zerolog.Logger) *Store {
	return &Store{
		db:   db,
		log:  log.With().Str("component", "jobs").Logger(),
		subs: make(map[string][]chan ProgressEvent),
		done: make(map[string]chan struct{}),
	}
}

// IsValidJobID reports whether id is a UUIDv4 or the legacy short-id form.
func IsValidJobID(id string) bool {
	if _, err := uuid.Parse(id); err == nil {
		return true
	}
	return legacyJobIDPattern.MatchString(id)
}

// CreateJob inserts a new PENDING job with empty progress state and mints
// a fresh UUIDv4 id.
func (s *Store) CreateJob(jobType string, options json.RawMessage, triggerSource, parentJobID string) (string, error) {
	jobID := uuid.New().String()
	now := time.Now()

	_, err := s.db.Exec(`
		INSERT INTO screening_jobs (job_id, job_type, status, created_at, options, progress_log, trigger_source, parent_job_id)
		VALUES (?, ?, ?, ?, ?, '[]', ?, ?)
	`, jobID, jobType, Pending, now.Unix(), string(options), triggerSource, parentJobID)
	if err != nil {
		return "", fmt.Errorf("creating job: %w", err)
	}
	return jobID, nil
}

// StartJob transitions a job to RUNNING and stamps started_at.
func (s *Store) StartJob(jobID string) error {
	_, err := s.db.Exec(`UPDATE screening_jobs SET status = ?, started_at = ? WHERE job_id = ?`,
		Running, time.Now().Unix(), jobID)
	if err != nil {
		return fmt.Errorf("starting job %s: %w", jobID, err)
	}
	return nil
}

// UpdateProgress atomically overwrites the job's snapshot fields and
// appends one log entry, capped at the last progressLogCap entries, then
// fans the event out to any live subscribers. Emission failures are
// logged and swallowed -- per spec §7 they must never abort the pipeline.
func (s *Store) UpdateProgress(jobID, jobType string, status Status, stepCurrent, stepTotal int, stepName, message string) {
	evt := ProgressEvent{
		JobID: jobID, JobType: jobType, Status: status,
		StepCurrent: stepCurrent, StepTotal: stepTotal, StepName: stepName,
		Message: message, UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.persistProgress(jobID, evt); err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("progress emission failed, continuing pipeline")
	}

	s.publish(jobID, evt)
}

func (s *Store) persistProgress(jobID string, evt ProgressEvent) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var rawLog string
	if err := tx.QueryRow(`SELECT progress_log FROM screening_jobs WHERE job_id = ?`, jobID).Scan(&rawLog); err != nil {
		return err
	}

	var log []ProgressEvent
	if rawLog != "" {
		_ = json.Unmarshal([]byte(rawLog), &log)
	}
	log = append(log, evt)
	if len(log) > progressLogCap {
		log = log[len(log)-progressLogCap:]
	}

	logBytes, err := json.Marshal(log)
	if err != nil {
		return err
	}
	snapBytes, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE screening_jobs SET status = ?, progress_log = ?, progress_snapshot = ? WHERE job_id = ?`,
		evt.Status, string(logBytes), string(snapBytes), jobID); err != nil {
		return err
	}

	return tx.Commit()
}

// CompleteJob marks a job SUCCESS, persists lightweight result lists on
// the job document, and fan-out-persists one detail record per candidate
// sharing a single processed_at timestamp. Detail persistence failure is
// logged but does not fail the job -- the summary is authoritative.
func (s *Store) CompleteJob(jobID, jobType string, results, resultSummary json.RawMessage, details map[string]json.RawMessage) {
	now := time.Now()

	finalEvt := ProgressEvent{
		JobID: jobID, JobType: jobType, Status: Success,
		StepName: "complete", Message: "job completed",
		UpdatedAt: now.UTC().Format(time.RFC3339),
	}

	_, err := s.db.Exec(`
		UPDATE screening_jobs
		SET status = ?, completed_at = ?, results = ?, result_summary = ?, progress_snapshot = ?
		WHERE job_id = ?
	`, Success, now.Unix(), string(results), string(resultSummary), mustJSON(finalEvt), jobID)
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to persist job completion")
	}

	s.persistDetails(jobID, now, details)
	s.publish(jobID, finalEvt)
	s.closeSubscribers(jobID)
}

func (s *Store) persistDetails(jobID string, processedAt time.Time, details map[string]json.RawMessage) {
	for ticker, payload := range details {
		_, err := s.db.Exec(`
			INSERT INTO screening_results (job_id, ticker, processed_at, payload)
			VALUES (?, ?, ?, ?)
		`, jobID, ticker, processedAt.Unix(), string(payload))
		if err != nil {
			s.log.Warn().Err(err).Str("job_id", jobID).Str("ticker", ticker).Msg("failed to persist result detail, job summary remains authoritative")
		}
	}
}

// FailJob marks a job FAILED with an error message and the stage at which
// it failed.
func (s *Store) FailJob(jobID, jobType, errorMessage, errorStep string) {
	now := time.Now()
	evt := ProgressEvent{
		JobID: jobID, JobType: jobType, Status: Failed,
		StepName: errorStep, Message: errorMessage,
		UpdatedAt: now.UTC().Format(time.RFC3339),
	}

	_, err := s.db.Exec(`
		UPDATE screening_jobs SET status = ?, completed_at = ?, error_message = ?, error_step = ?, progress_snapshot = ?
		WHERE job_id = ?
	`, Failed, now.Unix(), errorMessage, errorStep, mustJSON(evt), jobID)
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to persist job failure")
	}

	s.publish(jobID, evt)
	s.closeSubscribers(jobID)
}

// GetJobDetail loads a job record by id, tolerant of corrupted JSON
// columns (returns them as nil rather than failing the whole read).
func (s *Store) GetJobDetail(jobID string) (Record, error) {
	var rec Record
	var createdAt int64
	var startedAt, completedAt sql.NullInt64
	var options, progressLog, snapshot, results, resultSummary sql.NullString
	var errorMessage, errorStep, triggerSource, parentJobID sql.NullString
	var status string

	err := s.db.QueryRow(`
		SELECT job_id, job_type, status, created_at, started_at, completed_at,
		       options, progress_log, progress_snapshot, results, result_summary,
		       error_message, error_step, trigger_source, parent_job_id
		FROM screening_jobs WHERE job_id = ?
	`, jobID).Scan(&rec.JobID, &rec.JobType, &status, &createdAt, &startedAt, &completedAt,
		&options, &progressLog, &snapshot, &results, &resultSummary,
		&errorMessage, &errorStep, &triggerSource, &parentJobID)
	if err != nil {
		return Record{}, fmt.Errorf("loading job %s: %w", jobID, err)
	}

	rec.Status = Status(status)
	rec.CreatedAt = time.Unix(createdAt, 0)
	if startedAt.Valid {
		t := time.Unix(startedAt.Int64, 0)
		rec.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		rec.CompletedAt = &t
	}
	rec.Options = json.RawMessage(options.String)
	rec.Results = json.RawMessage(results.String)
	rec.ResultSummary = json.RawMessage(resultSummary.String)
	rec.ErrorMessage = errorMessage.String
	rec.ErrorStep = errorStep.String
	rec.TriggerSource = triggerSource.String
	rec.ParentJobID = parentJobID.String

	if progressLog.Valid && progressLog.String != "" {
		_ = json.Unmarshal([]byte(progressLog.String), &rec.ProgressLog)
	}
	if snapshot.Valid && snapshot.String != "" {
		var s ProgressEvent
		if json.Unmarshal([]byte(snapshot.String), &s) == nil {
			rec.Snapshot = &s
		}
	}

	return rec, nil
}

// ListJobHistory returns up to limit job summaries, most recent first,
// skipping the first skip rows. Corrupted rows are skipped rather than
// failing the whole page.
func (s *Store) ListJobHistory(limit, skip int) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT job_id FROM screening_jobs ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("listing job history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			s.log.Warn().Err(err).Msg("skipping corrupted job history row")
			continue
		}
		rec, err := s.GetJobDetail(id)
		if err != nil {
			s.log.Warn().Err(err).Str("job_id", id).Msg("skipping unreadable job detail")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Subscribe registers ch to receive every future progress event for
// jobID until the job terminates or ctx is cancelled.
func (s *Store) Subscribe(ctx context.Context, jobID string) <-chan ProgressEvent {
	ch := make(chan ProgressEvent, 16)

	s.subsMu.Lock()
	s.subs[jobID] = append(s.subs[jobID], ch)
	s.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		s.unsubscribe(jobID, ch)
	}()

	return ch
}

func (s *Store) publish(jobID string, evt ProgressEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs[jobID] {
		select {
		case ch <- evt:
		default:
			s.log.Warn().Str("job_id", jobID).Msg("subscriber channel full, dropping progress event")
		}
	}
}

func (s *Store) closeSubscribers(jobID string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs[jobID] {
		close(ch)
	}
	delete(s.subs, jobID)
}

func (s *Store) unsubscribe(jobID string, target chan ProgressEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	chans := s.subs[jobID]
	for i, ch := range chans {
		if ch == target {
			s.subs[jobID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
