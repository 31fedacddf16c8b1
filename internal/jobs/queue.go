package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chengyoucen9-png/bbdyy-idea/pkg/log"
)

// Executor runs one job and returns the fingerprint under which its result
// was persisted.
type Executor func(ctx context.Context, job *TranscriptionJob) (resultKey string, err error)

// Queue is an in-process transcription job queue with a fixed worker pool,
// dedupe on an application-chosen key, and optional persistence for restart
// recovery. Callers always receive snapshots, never the internal job
// structs.
type Queue struct {
	workerCount int
	store       Store

	mu         sync.RWMutex
	jobs       map[string]*TranscriptionJob
	dedupe     map[string]string
	idCounter  uint64
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewQueue creates a queue with the given worker count. A nil store
// disables persistence. Jobs left running in the store from a previous
// process are reset to pending.
func NewQueue(workerCount int, store Store) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	q := &Queue{
		workerCount: workerCount,
		store:       store,
		jobs:        make(map[string]*TranscriptionJob),
		dedupe:      make(map[string]string),
		pendingIDs:  make(chan string, 256),
		stopCh:      make(chan struct{}),
	}
	q.hydrateFromStore(context.Background())
	return q
}

// Enqueue adds a job, or returns the active job holding the same dedupe
// key. The second return is false when an existing job was returned.
func (q *Queue) Enqueue(req EnqueueRequest) (*TranscriptionJob, bool) {
	now := time.Now()

	q.mu.Lock()
	if req.DedupeKey != "" {
		if id, ok := q.dedupe[req.DedupeKey]; ok {
			if existing, exists := q.jobs[id]; exists {
				snapshot := cloneJob(existing)
				q.mu.Unlock()
				return snapshot, false
			}
			delete(q.dedupe, req.DedupeKey)
		}
	}

	id := fmt.Sprintf("job-%d", atomic.AddUint64(&q.idCounter, 1))
	job := &TranscriptionJob{
		ID:        id,
		Source:    req.Source,
		DedupeKey: req.DedupeKey,
		Payload:   req.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.jobs[id] = job
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = id
	}
	started := q.started
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	if started {
		q.enqueuePendingID(id)
	}
	return snapshot, true
}

// Get returns a snapshot of one job.
func (q *Queue) Get(id string) (*TranscriptionJob, bool) {
	q.mu.RLock()
	job, ok := q.jobs[id]
	q.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns snapshots of all known jobs.
func (q *Queue) List() []*TranscriptionJob {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ret := make([]*TranscriptionJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	return ret
}

// Start launches the worker pool. Pending jobs recovered from the store are
// dispatched first. Calling Start twice is a no-op.
func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]string, 0)
	for id, job := range q.jobs {
		if job.Status == StatusPending {
			pending = append(pending, id)
		}
	}
	q.mu.Unlock()

	for _, id := range pending {
		q.enqueuePendingID(id)
	}

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

// Stop shuts the workers down and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			job, ok := q.markRunning(id)
			if !ok {
				continue
			}

			resultKey, err := exec(context.Background(), job)
			if err != nil {
				q.markFailed(id, err)
				continue
			}
			q.markSuccess(id, resultKey)
		}
	}
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() { q.pendingIDs <- id }()
	}
}

func (q *Queue) markRunning(id string) (*TranscriptionJob, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusPending {
		q.mu.Unlock()
		return nil, false
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	return snapshot, true
}

func (q *Queue) markSuccess(id, resultKey string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status = StatusSuccess
	job.Error = ""
	job.ResultKey = resultKey
	job.UpdatedAt = time.Now()
	q.releaseDedupeLocked(job)
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
}

func (q *Queue) markFailed(id string, err error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status = StatusFailed
	if err != nil {
		job.Error = err.Error()
	}
	job.UpdatedAt = time.Now()
	q.releaseDedupeLocked(job)
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
}

func (q *Queue) releaseDedupeLocked(job *TranscriptionJob) {
	if job == nil || job.DedupeKey == "" {
		return
	}
	if id, ok := q.dedupe[job.DedupeKey]; ok && id == job.ID {
		delete(q.dedupe, job.DedupeKey)
	}
}

func (q *Queue) hydrateFromStore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*TranscriptionJob, 0)
	q.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		job := cloneJob(raw)
		if job.Status == StatusRunning {
			// The previous process died mid-job; run it again.
			job.Status = StatusPending
			job.UpdatedAt = now
			toPersist = append(toPersist, cloneJob(job))
		}
		q.jobs[job.ID] = job
		if job.Status == StatusPending && job.DedupeKey != "" {
			q.dedupe[job.DedupeKey] = job.ID
		}
		q.updateIDCounterLocked(job.ID)
	}
	q.mu.Unlock()

	for _, job := range toPersist {
		q.persistJob(job)
	}
}

func (q *Queue) updateIDCounterLocked(jobID string) {
	var n uint64
	if _, err := fmt.Sscanf(jobID, "job-%d", &n); err != nil {
		return
	}
	if n > q.idCounter {
		q.idCounter = n
	}
}

func (q *Queue) persistJob(job *TranscriptionJob) {
	if q.store == nil || job == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func cloneJob(job *TranscriptionJob) *TranscriptionJob {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}
