package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"autoqa/backend/internal/models"
)

var (
	ErrQueueFull      = errors.New("replay queue is full")
	ErrExecutorClosed = errors.New("replay executor is shut down")
	ErrAlreadyRunning = errors.New("replay is already queued or running")
)

// Player runs one replay to completion.
type Player interface {
	Replay(ctx context.Context, data models.ScrollData, device string) *Result
}

type Job struct {
	ReplayID uint
	Data     models.ScrollData
	Device   string
	// Done receives the result on the worker goroutine.
	Done func(*Result)
}

// Executor runs replay jobs on a fixed number of workers. Each job can be
// cancelled while it is queued or running.
type Executor struct {
	player    Player
	workQueue chan queuedJob
	wg        sync.WaitGroup
	logger    *zap.Logger

	mu      sync.Mutex
	closed  bool
	running map[uint]context.CancelFunc
}

type queuedJob struct {
	Job
	ctx context.Context
}

func New(player Player, maxWorkers int, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	e := &Executor{
		player:    player,
		workQueue: make(chan queuedJob, maxWorkers*2),
		running:   make(map[uint]context.CancelFunc),
		logger:    logger.Named("executor"),
	}
	for i := 0; i < maxWorkers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	e.logger.Info("Replay executor initialized", zap.Int("workers", maxWorkers))
	return e
}

// Submit queues job without blocking.
func (e *Executor) Submit(job Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExecutorClosed
	}
	if _, ok := e.running[job.ReplayID]; ok {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	select {
	case e.workQueue <- queuedJob{Job: job, ctx: ctx}:
		e.running[job.ReplayID] = cancel
		return nil
	default:
		cancel()
		return ErrQueueFull
	}
}

// Cancel stops a queued or running replay. It reports whether the replay
// was known.
func (e *Executor) Cancel(replayID uint) bool {
	e.mu.Lock()
	cancel, ok := e.running[replayID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running returns the IDs of queued and running replays in ascending order.
func (e *Executor) Running() []uint {
	e.mu.Lock()
	ids := make([]uint, 0, len(e.running))
	for id := range e.running {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Shutdown cancels every replay and waits for the workers to exit.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for _, cancel := range e.running {
		cancel()
	}
	close(e.workQueue)
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("Replay executor stopped")
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for job := range e.workQueue {
		result := e.run(job)
		if job.Done != nil {
			job.Done(result)
		}

		e.mu.Lock()
		if cancel, ok := e.running[job.ReplayID]; ok {
			cancel()
			delete(e.running, job.ReplayID)
		}
		e.mu.Unlock()
	}
}

func (e *Executor) run(job queuedJob) (result *Result) {
	if err := job.ctx.Err(); err != nil {
		now := time.Now()
		result = &Result{StartTime: now, EndTime: now, ErrorMessage: "replay cancelled before start"}
		result.addLog("warn", result.ErrorMessage, -1)
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Replay panicked", zap.Uint("replay_id", job.ReplayID), zap.Any("panic", r))
			now := time.Now()
			result = &Result{StartTime: now, EndTime: now, ErrorMessage: fmt.Sprintf("replay panicked: %v", r)}
			result.addLog("error", result.ErrorMessage, -1)
		}
	}()

	e.logger.Info("Replay started", zap.Uint("replay_id", job.ReplayID), zap.String("url", job.Data.URL))
	result = e.player.Replay(job.ctx, job.Data, job.Device)
	e.logger.Info("Replay finished",
		zap.Uint("replay_id", job.ReplayID),
		zap.Bool("success", result.Success),
		zap.Duration("duration", result.Duration()))
	return result
}
