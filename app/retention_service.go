package app

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"ldaengine/domain/roster"
	"ldaengine/domain/run"
	"ldaengine/internal/errors"
	"ldaengine/internal/lda"
	"ldaengine/internal/logging"
	"ldaengine/internal/masterlist"
	"ldaengine/ports"
)

// ServiceOptions configures the pipelines a service runs.
type ServiceOptions struct {
	LDA   lda.Options
	Merge masterlist.Options
	Now   func() time.Time
}

// DefaultServiceOptions returns pipeline defaults.
func DefaultServiceOptions() ServiceOptions {
	return ServiceOptions{
		LDA:   lda.DefaultOptions(),
		Merge: masterlist.DefaultOptions(),
		Now:   time.Now,
	}
}

// RetentionService runs LDA reports and Master List merges against workbook
// files, one run per workbook sheet at a time, and records each in the ledger.
type RetentionService struct {
	opener ports.WorkbookOpener
	runs   ports.RunRepository
	opts   ServiceOptions
	logger *zap.Logger

	// one guard per absolute workbook path; never pruned, so it grows
	// with the number of distinct workbooks the process touches
	mu     sync.Mutex
	guards map[string]*semaphore.Weighted
}

// NewRetentionService creates the service. runs may be nil to skip the ledger.
func NewRetentionService(opener ports.WorkbookOpener, runs ports.RunRepository, opts ServiceOptions, logger *zap.Logger) *RetentionService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LDA.Now == nil {
		opts.LDA.Now = opts.Now
	}
	return &RetentionService{
		opener: opener,
		runs:   runs,
		opts:   opts,
		logger: logging.OrNop(logger).Named("RetentionService"),
		guards: make(map[string]*semaphore.Weighted),
	}
}

// ReportRequest asks for one LDA report.
type ReportRequest struct {
	Workbook string
	Settings roster.Settings
	Progress ports.ProgressSink
}

// ReportOutcome is a finished report run.
type ReportOutcome struct {
	Run    *run.Run
	Report *lda.Report
}

// MergeRequest asks for one Master List merge.
type MergeRequest struct {
	Workbook string
	Settings roster.Settings
	Import   *roster.Snapshot
	Progress ports.ProgressSink
}

// MergeOutcome is a finished merge run.
type MergeOutcome struct {
	Run    *run.Run
	Result *masterlist.Result
}

// GenerateReport writes a new LDA sheet into the workbook and saves it.
func (s *RetentionService) GenerateReport(ctx context.Context, req ReportRequest) (*ReportOutcome, error) {
	if req.Workbook == "" {
		return nil, errors.InvalidInput("workbook path is required")
	}
	var report *lda.Report
	rn, err := s.execute(ctx, run.KindLDAReport, req.Workbook, req.Settings.MasterSheetName(), func(ctx context.Context, book ports.Workbook) (*run.Run, error) {
		p := lda.NewProcessor(book, s.opts.LDA, req.Progress, s.logger)
		r, err := p.Generate(ctx, req.Settings)
		if err != nil {
			return nil, err
		}
		report = r
		return &run.Run{
			Sheet:       r.SheetName,
			RowsWritten: r.PrimaryRows + r.FailingRows,
			Summary:     ReportSummary(r),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &ReportOutcome{Run: rn, Report: report}, nil
}

// MergeMasterList reconciles an import into the workbook's Master List and saves it.
func (s *RetentionService) MergeMasterList(ctx context.Context, req MergeRequest) (*MergeOutcome, error) {
	if req.Workbook == "" {
		return nil, errors.InvalidInput("workbook path is required")
	}
	if req.Import == nil {
		return nil, errors.InvalidInput("import is required")
	}
	var result *masterlist.Result
	rn, err := s.execute(ctx, run.KindMerge, req.Workbook, req.Settings.MasterSheetName(), func(ctx context.Context, book ports.Workbook) (*run.Run, error) {
		m := masterlist.NewMerger(book, s.opts.Merge, req.Progress, s.logger)
		r, err := m.Merge(ctx, req.Settings, req.Import)
		if err != nil {
			return nil, err
		}
		result = r
		return &run.Run{
			Sheet:       r.Sheet,
			RowsWritten: r.NewRows + r.ExistingRows,
			NewRows:     r.NewRows,
			Summary:     MergeSummary(r),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &MergeOutcome{Run: rn, Result: result}, nil
}

// ListRuns pages the ledger, newest first.
func (s *RetentionService) ListRuns(ctx context.Context, limit, offset int) ([]*run.Run, error) {
	if s.runs == nil {
		return []*run.Run{}, nil
	}
	return s.runs.List(ctx, limit, offset)
}

// GetRun loads one ledger entry.
func (s *RetentionService) GetRun(ctx context.Context, id run.ID) (*run.Run, error) {
	if s.runs == nil {
		return nil, errors.NotFound("run " + id.String())
	}
	return s.runs.GetByID(ctx, id)
}

// RunSummaryHTML renders a run's markdown summary.
func (s *RetentionService) RunSummaryHTML(ctx context.Context, id run.ID) ([]byte, error) {
	rn, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return RenderSummaryHTML(RunSummary(rn)), nil
}

type pipeline func(ctx context.Context, book ports.Workbook) (*run.Run, error)

// execute guards, records and runs one pipeline. Once the workbook is open
// the run is detached from ctx: a started run completes or fails on its own.
func (s *RetentionService) execute(ctx context.Context, kind run.Kind, workbook, sheet string, fn pipeline) (*run.Run, error) {
	key := guardKey(workbook)
	guard := s.guard(key)
	if !guard.TryAcquire(1) {
		return nil, errors.RunInProgress(key)
	}
	defer guard.Release(1)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "run cancelled before start")
	}

	rn := run.New(kind, workbook, sheet, s.opts.Now())
	if s.runs != nil {
		if err := s.runs.Create(ctx, rn); err != nil {
			return nil, err
		}
	}
	logger := s.logger.With(zap.String("run_id", rn.ID.String()), zap.String("kind", string(kind)), zap.String("workbook", workbook))
	logger.Info("run started")

	out, err := s.runOn(context.WithoutCancel(ctx), workbook, fn)
	if err != nil {
		rn.Fail(err, s.opts.Now())
		logger.Error("run failed", zap.String("code", errors.GetCode(err)), zap.Error(err))
	} else {
		rn.Sheet = out.Sheet
		rn.RowsWritten = out.RowsWritten
		rn.NewRows = out.NewRows
		rn.Summary = out.Summary
		rn.Complete(s.opts.Now())
		logger.Info("run completed",
			zap.String("sheet", rn.Sheet),
			zap.Int("rows", rn.RowsWritten),
			zap.Duration("duration", rn.Duration()))
	}

	if s.runs != nil {
		if uerr := s.runs.Update(context.WithoutCancel(ctx), rn); uerr != nil {
			logger.Warn("failed to record run outcome", zap.Error(uerr))
		}
	}
	return rn, err
}

// runOn opens the workbook, runs fn and saves only on success.
func (s *RetentionService) runOn(ctx context.Context, workbook string, fn pipeline) (*run.Run, error) {
	book, err := s.opener.Open(ctx, workbook)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open workbook %s", workbook)
	}
	defer func() {
		if cerr := book.Close(); cerr != nil {
			s.logger.Warn("failed to close workbook", zap.String("workbook", workbook), zap.Error(cerr))
		}
	}()

	out, err := fn(ctx, book)
	if err != nil {
		return nil, err
	}
	if err := book.Save(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to save workbook %s", workbook)
	}
	return out, nil
}

func (s *RetentionService) guard(key string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guards[key]
	if !ok {
		g = semaphore.NewWeighted(1)
		s.guards[key] = g
	}
	return g
}

// guardKey identifies a workbook file. Every run rewrites and saves the
// whole file, so two runs on one workbook conflict whatever sheet they touch.
func guardKey(workbook string) string {
	abs, err := filepath.Abs(workbook)
	if err != nil {
		return filepath.Clean(workbook)
	}
	return abs
}
