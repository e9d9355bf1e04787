//go:build cucumber

package cucumber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	"github.com/cucumber/godog"

	"llmlab/internal/api"
	"llmlab/internal/client"
	"llmlab/internal/event"
	"llmlab/internal/registry"
	"llmlab/internal/run"
	"llmlab/internal/store"
	"llmlab/internal/worker"
)

type featureState struct {
	server   *httptest.Server
	store    *store.Store
	pool     *worker.Pool
	client   *client.Client
	cancelFn context.CancelFunc

	runIDs      []string
	lastSummary run.Summary
	lastErr     error
	cancelState string
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	state := &featureState{}

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		state.cleanup()
		return ctx, nil
	})

	ctx.Step(`^a running server$`, state.aRunningServer)
	ctx.Step(`^a running server with paused workers$`, state.aRunningServerWithPausedWorkers)
	ctx.Step(`^I start a run on the "([^"]+)" pack with (\d+) steps$`, state.iStartARun)
	ctx.Step(`^I start (\d+) runs on the "([^"]+)" pack$`, state.iStartRuns)
	ctx.Step(`^I wait for the run to finish$`, state.iWaitForTheRun)
	ctx.Step(`^the first run reaches a terminal status$`, state.theFirstRunFinishes)
	ctx.Step(`^I request cancellation$`, state.iRequestCancellation)
	ctx.Step(`^the run status is "([^"]+)"$`, state.theRunStatusIs)
	ctx.Step(`^the cancel state is "([^"]+)"$`, state.theCancelStateIs)
	ctx.Step(`^the event log starts with "([^"]+)"$`, state.theEventLogStartsWith)
	ctx.Step(`^the event log contains exactly one terminal event$`, state.exactlyOneTerminalEvent)
	ctx.Step(`^the event log is still empty$`, state.theEventLogIsEmpty)
	ctx.Step(`^replaying the stream from the start yields the same sequence$`, state.replayMatchesLog)
	ctx.Step(`^run creation fails with admission rejected$`, state.creationWasAdmissionRejected)
}

func (s *featureState) startServer(workers int) error {
	st := store.New(nil, time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := worker.NewPool(st, logger, 16)
	reg := registry.New(st, pool)

	ctx, cancel := context.WithCancel(context.Background())
	if workers > 0 {
		pool.Start(ctx, workers)
	}

	s.server = httptest.NewServer(api.NewHandler(api.Config{
		Store:        st,
		Registry:     reg,
		Logger:       logger,
		PollInterval: 10 * time.Millisecond,
	}))
	s.store = st
	s.pool = pool
	s.cancelFn = cancel
	s.client = client.New(s.server.URL)
	s.runIDs = nil
	s.lastErr = nil
	return nil
}

func (s *featureState) cleanup() {
	if s.server != nil {
		s.server.Close()
		s.server = nil
	}
	if s.cancelFn != nil {
		s.cancelFn()
		s.cancelFn = nil
	}
}

func (s *featureState) aRunningServer() error {
	return s.startServer(2)
}

func (s *featureState) aRunningServerWithPausedWorkers() error {
	return s.startServer(0)
}

func tinyConfig(steps int) run.Config {
	cfg := run.DefaultConfig()
	cfg.NEmbd = 8
	cfg.NHead = 2
	cfg.BlockSize = 8
	cfg.NumSteps = steps
	cfg.SampleCount = 1
	cfg.SampleInterval = 100
	return cfg
}

func (s *featureState) iStartARun(packID string, steps int) error {
	summary, err := s.client.CreateRun(context.Background(), packID, tinyConfig(steps))
	s.lastSummary = summary
	s.lastErr = err
	if err == nil {
		s.runIDs = append(s.runIDs, summary.RunID)
	}
	return nil
}

func (s *featureState) iStartRuns(count int, packID string) error {
	for i := 0; i < count; i++ {
		summary, err := s.client.CreateRun(context.Background(), packID, tinyConfig(2))
		if err != nil {
			return fmt.Errorf("run %d: %w", i+1, err)
		}
		s.runIDs = append(s.runIDs, summary.RunID)
	}
	return nil
}

func (s *featureState) iWaitForTheRun() error {
	if s.lastErr != nil {
		return s.lastErr
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		summary, err := s.client.GetRun(context.Background(), s.lastSummary.RunID)
		if err != nil {
			return err
		}
		if summary.Status.Terminal() {
			s.lastSummary = summary
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("run %s never finished", s.lastSummary.RunID)
}

func (s *featureState) theFirstRunFinishes() error {
	if len(s.runIDs) == 0 {
		return fmt.Errorf("no runs started")
	}
	return s.store.UpdateStatus(s.runIDs[0], run.StatusCompleted, "")
}

func (s *featureState) iRequestCancellation() error {
	state, err := s.client.CancelRun(context.Background(), s.lastSummary.RunID)
	if err != nil {
		return err
	}
	s.cancelState = state
	return nil
}

func (s *featureState) theRunStatusIs(want string) error {
	if s.lastErr != nil {
		return s.lastErr
	}
	summary, err := s.client.GetRun(context.Background(), s.lastSummary.RunID)
	if err != nil {
		return err
	}
	if string(summary.Status) != want {
		return fmt.Errorf("status is %s, want %s", summary.Status, want)
	}
	return nil
}

func (s *featureState) theCancelStateIs(want string) error {
	if s.cancelState != want {
		return fmt.Errorf("cancel state is %q, want %q", s.cancelState, want)
	}
	return nil
}

func (s *featureState) theEventLogStartsWith(want string) error {
	events, err := s.store.Read(s.lastSummary.RunID, 0)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("event log is empty")
	}
	if string(events[0].Type) != want {
		return fmt.Errorf("first event is %s, want %s", events[0].Type, want)
	}
	return nil
}

func (s *featureState) exactlyOneTerminalEvent() error {
	events, err := s.store.Read(s.lastSummary.RunID, 0)
	if err != nil {
		return err
	}
	terminals := 0
	for _, evt := range events {
		if evt.Type.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		return fmt.Errorf("found %d terminal events, want exactly 1", terminals)
	}
	if !events[len(events)-1].Type.Terminal() {
		return fmt.Errorf("terminal event is not last")
	}
	return nil
}

func (s *featureState) theEventLogIsEmpty() error {
	events, err := s.store.Read(s.lastSummary.RunID, 0)
	if err != nil {
		return err
	}
	if len(events) != 0 {
		return fmt.Errorf("event log has %d events, want none", len(events))
	}
	return nil
}

func (s *featureState) replayMatchesLog() error {
	stored, err := s.store.Read(s.lastSummary.RunID, 0)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	out := make(chan event.Event, len(stored)+16)
	if err := s.client.StreamEvents(ctx, s.lastSummary.RunID, 0, out); err != nil {
		return err
	}
	close(out)

	var streamed []event.Event
	for evt := range out {
		streamed = append(streamed, evt)
	}
	if len(streamed) != len(stored) {
		return fmt.Errorf("stream replayed %d events, log has %d", len(streamed), len(stored))
	}
	for i := range stored {
		if streamed[i].Seq != stored[i].Seq || streamed[i].Type != stored[i].Type {
			return fmt.Errorf("replay diverges at %d: %d/%s vs %d/%s",
				i, streamed[i].Seq, streamed[i].Type, stored[i].Seq, stored[i].Type)
		}
	}
	return nil
}

func (s *featureState) creationWasAdmissionRejected() error {
	var apiErr *client.APIError
	if !errors.As(s.lastErr, &apiErr) || apiErr.StatusCode != 429 {
		return fmt.Errorf("expected 429 admission rejection, got %v", s.lastErr)
	}
	return nil
}
