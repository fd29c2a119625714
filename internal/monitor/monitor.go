// Package monitor drives one observation run end to end.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"linkwatch/internal/config"
	"linkwatch/internal/diff"
	"linkwatch/internal/extract"
	"linkwatch/internal/fetch"
	"linkwatch/internal/model"
	"linkwatch/internal/notify"
	"linkwatch/internal/store"
)

// runLockTTL caps how long a crashed run can block the next one.
const runLockTTL = 30 * time.Minute

// Summary describes what one run observed and did.
type Summary struct {
	RunID    uuid.UUID
	FirstRun bool
	Rows     int
	Changes  int
	Failures int
}

// Monitor wires fetcher, extractor, diff engine, store and notifier into a
// single run. Callers wanting an overall run deadline wrap the context they
// pass to Run.
type Monitor struct {
	cfg       *config.Config
	fetcher   fetch.Fetcher
	extractor *extract.Extractor
	engine    *diff.Engine
	store     store.Store
	notifier  notify.Notifier
	logger    *zap.Logger
}

// New assembles a monitor from its collaborators.
func New(cfg *config.Config, fetcher fetch.Fetcher, st store.Store, notifier notify.Notifier, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extract.NewExtractor(cfg.Monitor.Brand.Tokens),
		engine:    diff.NewEngine(cfg.Monitor.Brand.Name),
		store:     st,
		notifier:  notifier,
		logger:    logger,
	}
}

// pageResult is the outcome of observing one monitored URL. A failed page
// contributes no rows but stays visible through its error.
type pageResult struct {
	pageURL string
	rows    []model.LinkObservation
	err     error
}

// Run performs one observation run: fetch and extract every monitored page,
// diff against the stored snapshot, notify, and persist the new baseline.
// Failures on individual pages are isolated; an invalid previous snapshot is
// fatal and leaves the stored baseline untouched.
func (m *Monitor) Run(ctx context.Context) (*Summary, error) {
	if err := m.store.AcquireRunLock(ctx, runLockTTL); err != nil {
		return nil, err
	}
	defer m.store.ReleaseRunLock(ctx)

	current := model.NewReport()
	logger := m.logger.With(zap.String("run_id", current.RunID.String()))
	logger.Info("Run started", zap.Int("pages", len(m.cfg.Monitor.Articles)))

	results := m.observeAll(ctx, logger)

	var failures []string
	for _, res := range results {
		if res.err != nil {
			failures = append(failures, notify.FormatFailure(res.pageURL, res.err))
			continue
		}
		current.Rows = append(current.Rows, res.rows...)
	}

	if err := current.Validate(); err != nil {
		return nil, fmt.Errorf("current report failed validation: %w", err)
	}

	summary := &Summary{
		RunID:    current.RunID,
		Rows:     len(current.Rows),
		Failures: len(failures),
	}

	previous, err := m.store.LoadReport(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		summary.FirstRun = true
		m.send(ctx, logger, append(failures, notify.MsgFirstReport))
		if err := m.persist(ctx, current, *summary, nil); err != nil {
			return nil, err
		}
		logger.Info("First report created", zap.Int("rows", summary.Rows))
		return summary, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load previous report: %w", err)
	}
	// A baseline that breaks the diff invariants must not be silently
	// replaced; that would lose the ability to detect future changes.
	if err := previous.Validate(); err != nil {
		return nil, fmt.Errorf("previous report failed validation: %w", err)
	}

	changes := m.engine.Changes(previous, current)
	summary.Changes = len(changes)

	messages := failures
	if len(changes) > 0 {
		messages = append(messages, notify.FormatChanges(changes)...)
	} else {
		messages = append(messages, notify.MsgNoChanges)
	}
	m.send(ctx, logger, messages)

	if err := m.persist(ctx, current, *summary, changes); err != nil {
		return nil, err
	}

	logger.Info("Run complete",
		zap.Int("rows", summary.Rows),
		zap.Int("changes", summary.Changes),
		zap.Int("failures", summary.Failures))
	return summary, nil
}

// observeAll fetches and extracts every monitored page. Fetches may run on a
// bounded worker pool, but results land in a slice indexed by source order,
// so the diff always processes pages in the configured list order.
func (m *Monitor) observeAll(ctx context.Context, logger *zap.Logger) []pageResult {
	urls := m.cfg.Monitor.Articles
	results := make([]pageResult, len(urls))

	workers := m.cfg.Monitor.Fetch.Concurrency
	if workers > len(urls) {
		workers = len(urls)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = m.observe(ctx, logger, urls[i])
			}
		}()
	}
	for i := range urls {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (m *Monitor) observe(ctx context.Context, logger *zap.Logger, pageURL string) pageResult {
	logger.Info("Observing page", zap.String("url", pageURL))

	html, err := m.fetcher.Render(ctx, pageURL)
	if err != nil {
		logger.Error("Fetch failed", zap.String("url", pageURL), zap.Error(err))
		return pageResult{pageURL: pageURL, err: err}
	}

	_, rows, err := m.extractor.Extract(pageURL, html)
	if err != nil {
		logger.Error("Extraction failed", zap.String("url", pageURL), zap.Error(err))
		return pageResult{pageURL: pageURL, err: err}
	}
	return pageResult{pageURL: pageURL, rows: rows}
}

// send delivers notifications. Delivery failures are logged and never block
// the snapshot save.
func (m *Monitor) send(ctx context.Context, logger *zap.Logger, messages []string) {
	if len(messages) == 0 {
		return
	}
	if err := m.notifier.Notify(ctx, messages); err != nil {
		logger.Error("Notification failed", zap.Error(err))
	}
}

func (m *Monitor) persist(ctx context.Context, report *model.Report, summary Summary, changes []model.Change) error {
	if err := m.store.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	info := store.RunInfo{
		RunID:      summary.RunID,
		FinishedAt: time.Now(),
		Rows:       summary.Rows,
		Changes:    summary.Changes,
		Failures:   summary.Failures,
	}
	if err := m.store.SaveRun(ctx, info, changes); err != nil {
		return fmt.Errorf("save run info: %w", err)
	}
	return nil
}
