// Package worker runs admitted training jobs off a bounded queue. Each job
// owns its run's event log for the duration of training and is the only
// writer that may emit the run's single terminal event.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"llmlab/internal/event"
	"llmlab/internal/packs"
	"llmlab/internal/run"
	"llmlab/internal/store"
	"llmlab/internal/trainer"
)

// Pool is a fixed set of goroutines consuming run ids from a bounded queue.
type Pool struct {
	store  *store.Store
	logger *slog.Logger
	jobs   chan string
	wg     sync.WaitGroup
}

// NewPool creates a pool with the given queue capacity. The pool does not
// consume until Start is called.
func NewPool(st *store.Store, logger *slog.Logger, queueSize int) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = run.MaxConcurrent
	}
	return &Pool{
		store:  st,
		logger: logger,
		jobs:   make(chan string, queueSize),
	}
}

// Enqueue hands a run to the pool without blocking. A full queue is an error
// so admission can fail the run instead of stalling the request.
func (p *Pool) Enqueue(runID string) error {
	select {
	case p.jobs <- runID:
		return nil
	default:
		return fmt.Errorf("worker queue full")
	}
}

// Start launches the consumer goroutines. They drain until Stop is called or
// ctx is canceled.
func (p *Pool) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = run.MaxConcurrent
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case runID, ok := <-p.jobs:
					if !ok {
						return
					}
					p.runJob(runID)
				}
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *Pool) runJob(runID string) {
	logger := p.logger.With("run_id", runID)

	summary, err := p.store.GetRun(runID)
	if err != nil {
		logger.Warn("run gone before start", "error", err)
		return
	}

	// A cancel that lands while the run is still queued never starts
	// training; step 0 marks that nothing ran.
	if p.store.CancelRequested(runID) {
		p.finish(logger, runID, event.TypeRunCanceled, &event.RunCanceled{Step: 0}, run.StatusCanceled, "")
		return
	}

	docs, err := p.resolveDocs(summary.PackID)
	if err != nil {
		p.fail(logger, runID, fmt.Sprintf("resolve pack: %v", err))
		return
	}

	if err := p.store.UpdateStatus(runID, run.StatusRunning, ""); err != nil {
		logger.Warn("run expired before start", "error", err)
		return
	}
	logger.Info("run started", "pack_id", summary.PackID, "num_steps", summary.Config.NumSteps)

	defer func() {
		if r := recover(); r != nil {
			p.fail(logger, runID, fmt.Sprintf("panic: %v", r))
		}
	}()

	emit := func(typ event.Type, payload event.Payload) error {
		_, err := p.store.Append(runID, typ, payload)
		return err
	}
	cancel := func() bool { return p.store.CancelRequested(runID) }

	result, err := trainer.Train(docs, summary.Config, emit, cancel)
	if err != nil {
		p.fail(logger, runID, err.Error())
		return
	}

	switch result.Status {
	case run.StatusCanceled:
		if err := p.store.UpdateStatus(runID, run.StatusCanceled, ""); err != nil {
			logger.Warn("status update failed", "error", err)
		}
		logger.Info("run canceled", "steps_completed", result.StepsCompleted)
	default:
		p.finish(logger, runID, event.TypeRunCompleted, &event.RunCompleted{
			StepsCompleted: result.StepsCompleted,
			FinalLoss:      result.FinalLoss,
			VocabSize:      result.VocabSize,
		}, run.StatusCompleted, "")
		logger.Info("run completed", "steps_completed", result.StepsCompleted, "final_loss", result.FinalLoss)
	}
}

// resolveDocs maps a pack id to its documents, reading upload text from the
// store when needed.
func (p *Pool) resolveDocs(packID string) ([]string, error) {
	uploadText := ""
	if uploadID, ok := packs.UploadID(packID); ok {
		text, err := p.store.UploadText(uploadID)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", uploadID, err)
		}
		uploadText = text
	}
	return packs.Resolve(packID, uploadText)
}

// fail emits the terminal run.failed event and moves the run to failed.
func (p *Pool) fail(logger *slog.Logger, runID, msg string) {
	logger.Error("run failed", "error", msg)
	p.finish(logger, runID, event.TypeRunFailed, &event.RunFailed{Error: msg}, run.StatusFailed, msg)
}

func (p *Pool) finish(logger *slog.Logger, runID string, typ event.Type, payload event.Payload, status run.Status, errMsg string) {
	if _, err := p.store.Append(runID, typ, payload); err != nil {
		logger.Warn("terminal event append failed", "error", err)
	}
	if err := p.store.UpdateStatus(runID, status, errMsg); err != nil {
		logger.Warn("status update failed", "error", err)
	}
}
