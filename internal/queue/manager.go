package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
)

// ErrQueueFull is returned when the bounded task queue cannot accept more
// work
var ErrQueueFull = errors.New("indexing queue is full")

// EventPublisher receives task state transitions for the status channel
type EventPublisher interface {
	PublishTask(task *models.IndexTask)
}

// item is one queued unit of work; the payload stays in memory, only the
// task record is persisted
type item struct {
	task    models.IndexTask
	payload *models.IndexPayload
}

// Manager runs the bounded indexing work queue: enqueued submissions are
// processed by a small worker pool through the transaction manager, with
// task state persisted through badgerhold and pushed to the status
// channel.
type Manager struct {
	txn    *index.TxnManager
	store  *badgerhold.Store
	events EventPublisher
	logger arbor.ILogger

	ch        chan *item
	batchSize int

	mu      sync.Mutex
	pending int // items staged since the last commit

	wg        sync.WaitGroup
	cancel    context.CancelFunc
	available atomic.Bool
}

// NewManager creates the queue manager. events may be nil.
func NewManager(txn *index.TxnManager, store *badgerhold.Store, cfg *common.Config,
	events EventPublisher, logger arbor.ILogger) *Manager {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Manager{
		txn:       txn,
		store:     store,
		events:    events,
		logger:    logger,
		ch:        make(chan *item, cfg.Queue.Size),
		batchSize: cfg.Queue.CommitBatchSize,
	}
}

// Start marks tasks orphaned by a previous run and launches the workers
func (m *Manager) Start(ctx context.Context, concurrency int) {
	m.failOrphanedTasks()

	ctx, m.cancel = context.WithCancel(ctx)
	for i := 0; i < concurrency; i++ {
		m.wg.Add(1)
		go m.worker(ctx, i)
	}

	m.available.Store(true)

	m.logger.Info().
		Int("workers", concurrency).
		Int("capacity", cap(m.ch)).
		Msg("Indexing queue started")
}

// Available reports whether the indexing pipeline accepts work
func (m *Manager) Available() bool {
	return m.available.Load()
}

// Stop stops accepting work, cancels the workers and waits for them to
// exit, then commits any staged work. A task already being processed runs
// to completion; items still waiting in the queue are not processed, and
// their task records stay QUEUED until the next Start marks them failed.
func (m *Manager) Stop() {
	m.available.Store(false)
	if m.cancel != nil {
		m.cancel()
	}
	close(m.ch)
	m.wg.Wait()
	m.commitStaged()
	m.logger.Info().Msg("Indexing queue stopped")
}

// Enqueue queues an update task for the accession. Returns the task and
// its queue position.
func (m *Manager) Enqueue(accNo string, payload *models.IndexPayload) (*models.IndexTask, int, error) {
	return m.enqueue(accNo, payload, false)
}

// EnqueueDelete queues a deletion task for the accession
func (m *Manager) EnqueueDelete(accNo string) (*models.IndexTask, int, error) {
	return m.enqueue(accNo, nil, true)
}

func (m *Manager) enqueue(accNo string, payload *models.IndexPayload, isDelete bool) (*models.IndexTask, int, error) {
	if !m.available.Load() {
		return nil, 0, models.ErrWebsocketClosed
	}

	now := time.Now()
	task := models.IndexTask{
		ID:        common.NewTaskID(),
		AccNo:     accNo,
		State:     models.TaskQueued,
		Delete:    isDelete,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.store.Upsert(task.ID, &task); err != nil {
		return nil, 0, fmt.Errorf("failed to persist task: %w", err)
	}

	it := &item{task: task, payload: payload}
	select {
	case m.ch <- it:
	default:
		task.State = models.TaskError
		task.Message = "queue full"
		m.persist(&task)
		return nil, 0, ErrQueueFull
	}

	m.publish(&task)
	return &task, len(m.ch), nil
}

// Status reports the most recent task for an accession
func (m *Manager) Status(accNo string) *models.TaskStatusResponse {
	var tasks []models.IndexTask
	err := m.store.Find(&tasks, badgerhold.Where("AccNo").Eq(accNo).SortBy("CreatedAt").Reverse().Limit(1))
	if err != nil || len(tasks) == 0 {
		return &models.TaskStatusResponse{State: models.TaskNotFound}
	}
	t := tasks[0]
	return &models.TaskStatusResponse{State: t.State, Message: t.Message, TaskID: t.ID}
}

// StatusByTaskID reports one task by its id
func (m *Manager) StatusByTaskID(taskID string) *models.TaskStatusResponse {
	var task models.IndexTask
	if err := m.store.Get(taskID, &task); err != nil {
		return &models.TaskStatusResponse{State: models.TaskNotFound}
	}
	return &models.TaskStatusResponse{State: task.State, Message: task.Message, TaskID: task.ID}
}

// worker processes queued items until the channel closes or the context
// ends
func (m *Manager) worker(ctx context.Context, id int) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case it, ok := <-m.ch:
			if !ok {
				return
			}
			m.process(it)
		}
	}
}

func (m *Manager) process(it *item) {
	task := it.task
	task.State = models.TaskInProgress
	task.UpdatedAt = time.Now()
	m.persist(&task)
	m.publish(&task)

	var err error
	if it.task.Delete {
		err = m.txn.DeleteSubmission(task.AccNo)
	} else if it.payload == nil {
		err = fmt.Errorf("no payload for task %s", task.ID)
	} else {
		err = m.txn.UpdateSubmission(task.AccNo, it.payload.Submission, it.payload.Files, it.payload.PageTab)
		if err == nil {
			err = m.maybeCommit()
		}
	}

	task.UpdatedAt = time.Now()
	if err != nil {
		task.State = models.TaskError
		task.Message = err.Error()
		m.logger.Error().Err(err).Str("accession", task.AccNo).Str("task", task.ID).Msg("Indexing task failed")
	} else {
		task.State = models.TaskDone
	}
	m.persist(&task)
	m.publish(&task)
}

// maybeCommit commits when the staged batch reaches the configured size,
// or when no further item is waiting in the queue
func (m *Manager) maybeCommit() error {
	m.mu.Lock()
	m.pending++
	flush := m.batchSize <= 1 || m.pending >= m.batchSize || len(m.ch) == 0
	if flush {
		m.pending = 0
	}
	m.mu.Unlock()

	if !flush {
		return nil
	}
	return m.txn.Commit()
}

func (m *Manager) commitStaged() {
	m.mu.Lock()
	staged := m.pending
	m.pending = 0
	m.mu.Unlock()
	if staged == 0 {
		return
	}
	if err := m.txn.Commit(); err != nil {
		m.logger.Error().Err(err).Msg("Final queue commit failed")
	}
}

// failOrphanedTasks marks tasks left QUEUED or IN_PROGRESS by a previous
// process as failed; their payloads did not survive the restart
func (m *Manager) failOrphanedTasks() {
	var tasks []models.IndexTask
	err := m.store.Find(&tasks, badgerhold.Where("State").In(
		badgerhold.Slice([]models.TaskState{models.TaskQueued, models.TaskInProgress})...))
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to scan for orphaned tasks")
		return
	}
	for i := range tasks {
		tasks[i].State = models.TaskError
		tasks[i].Message = "interrupted by restart"
		tasks[i].UpdatedAt = time.Now()
		m.persist(&tasks[i])
	}
	if len(tasks) > 0 {
		m.logger.Warn().Int("tasks", len(tasks)).Msg("Marked orphaned tasks as failed")
	}
}

func (m *Manager) persist(task *models.IndexTask) {
	if err := m.store.Upsert(task.ID, task); err != nil {
		m.logger.Error().Err(err).Str("task", task.ID).Msg("Failed to persist task state")
	}
}

func (m *Manager) publish(task *models.IndexTask) {
	if m.events != nil {
		m.events.PublishTask(task)
	}
}
