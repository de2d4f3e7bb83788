package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"legiscribe-backend/analysis"
	"legiscribe-backend/extractor"
	"legiscribe-backend/gateway"
	"legiscribe-backend/models"
	"legiscribe-backend/repository"
	"legiscribe-backend/storage"

	"github.com/google/uuid"
)

// Pipeline step names, surfaced to clients through job progress
const (
	StepExtractingText  = "Extracting Text"
	StepExtractClauses  = "Extracting Clauses"
	StepSummarizing     = "Summarizing Bill"
	StepStakeholders    = "Analyzing Stakeholder Impact"
	StepPrecedent       = "Analyzing Precedent"
	StepPublicSentiment = "Analyzing Public Sentiment"
	StepComparing       = "Comparing Versions"
	StepAssembling      = "Assembling Results"
)

const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in_progress"
	StepStatusCompleted  = "completed"
	StepStatusFailed     = "failed"
)

const (
	defaultMaxAttempts    = 3
	defaultAttemptTimeout = 3 * time.Minute
)

// BillService orchestrates the bill processing pipeline: text extraction,
// the parallel analysis batch with retry, version comparison, and assembly
// of the final ProcessedBill.
type BillService struct {
	extractor      *extractor.Extractor
	ops            *analysis.Ops
	billRepo       *repository.BillRepository
	jobRepo        *repository.AnalysisJobRepository
	store          storage.Storage
	maxAttempts    int
	attemptTimeout time.Duration
	sleep          func(time.Duration)
}

// BillServiceOption is a functional option for BillService
type BillServiceOption func(*BillService)

// BillWithExtractor sets the text extractor
func BillWithExtractor(e *extractor.Extractor) BillServiceOption {
	return func(s *BillService) {
		s.extractor = e
	}
}

// BillWithOperations sets the analysis operations
func BillWithOperations(ops *analysis.Ops) BillServiceOption {
	return func(s *BillService) {
		s.ops = ops
	}
}

// BillWithRepository sets the bill repository
func BillWithRepository(repo *repository.BillRepository) BillServiceOption {
	return func(s *BillService) {
		s.billRepo = repo
	}
}

// BillWithJobRepository sets the analysis job repository
func BillWithJobRepository(repo *repository.AnalysisJobRepository) BillServiceOption {
	return func(s *BillService) {
		s.jobRepo = repo
	}
}

// BillWithStorage sets the document archive storage
func BillWithStorage(store storage.Storage) BillServiceOption {
	return func(s *BillService) {
		s.store = store
	}
}

// BillWithAttemptTimeout bounds each analysis attempt
func BillWithAttemptTimeout(d time.Duration) BillServiceOption {
	return func(s *BillService) {
		s.attemptTimeout = d
	}
}

// BillWithMaxAttempts sets how many analysis attempts are allowed
func BillWithMaxAttempts(n int) BillServiceOption {
	return func(s *BillService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// BillWithSleep replaces the backoff sleep, used by tests
func BillWithSleep(sleep func(time.Duration)) BillServiceOption {
	return func(s *BillService) {
		s.sleep = sleep
	}
}

// NewBillService creates a BillService with the given options
func NewBillService(opts ...BillServiceOption) *BillService {
	s := &BillService{
		extractor:      extractor.New(),
		maxAttempts:    defaultMaxAttempts,
		attemptTimeout: defaultAttemptTimeout,
		sleep:          time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ops == nil {
		s.ops = analysis.New(nil, nil, nil)
	}
	return s
}

// ProgressFunc receives pipeline step transitions
type ProgressFunc func(step, status string)

// ProcessBillRequest carries the uploaded document and, in compare mode,
// the amended version
type ProcessBillRequest struct {
	Document        models.UploadedDocument
	AmendedDocument *models.UploadedDocument
	Progress        ProgressFunc
}

// ProcessBillResult contains the assembled bill
type ProcessBillResult struct {
	Bill *models.ProcessedBill
}

// batchResult collects the settled outcomes of one parallel analysis attempt
type batchResult struct {
	clauses    *analysis.ExtractClausesResult
	clausesErr error

	summary    *analysis.SummarizeBillResult
	summaryErr error

	stakeholders    *models.StakeholderAnalysis
	stakeholdersErr error

	precedent    *models.PrecedentAnalysis
	precedentErr error

	sentiment    *models.SentimentAnalysis
	sentimentErr error
}

// requiredErr returns the failure of a required operation, or nil when both
// required operations produced usable output
func (b *batchResult) requiredErr() error {
	if b.clausesErr != nil {
		return b.clausesErr
	}
	if b.clauses == nil || len(b.clauses.Clauses) == 0 {
		return fmt.Errorf("extractClauses: %w",
			gateway.NewError(gateway.StatusInvalidOutput, errors.New("no clauses returned")))
	}
	if b.summaryErr != nil {
		return b.summaryErr
	}
	if b.summary == nil || b.summary.Summary == "" {
		return fmt.Errorf("summarizeBill: %w",
			gateway.NewError(gateway.StatusInvalidOutput, errors.New("empty summary returned")))
	}
	return nil
}

// ProcessBill runs the full pipeline synchronously. On failure the returned
// error is always a *Failure carrying a user-presentable message.
func (s *BillService) ProcessBill(ctx context.Context, req ProcessBillRequest) (*ProcessBillResult, error) {
	progress := req.Progress
	if progress == nil {
		progress = func(string, string) {}
	}

	progress(StepExtractingText, StepStatusInProgress)

	billText, err := s.extractor.Extract(req.Document)
	if err != nil {
		progress(StepExtractingText, StepStatusFailed)
		return nil, classify(err)
	}

	var amendedText string
	if req.AmendedDocument != nil {
		amendedText, err = s.extractor.Extract(*req.AmendedDocument)
		if err != nil {
			progress(StepExtractingText, StepStatusFailed)
			return nil, classify(err)
		}
	}

	progress(StepExtractingText, StepStatusCompleted)

	batch, err := s.runAnalysisWithRetry(ctx, billText, progress)
	if err != nil {
		return nil, classify(err)
	}

	var comparison *models.BillComparison
	if req.AmendedDocument != nil {
		progress(StepComparing, StepStatusInProgress)
		comparison, err = s.ops.CompareBills(ctx, billText, amendedText)
		if err != nil {
			progress(StepComparing, StepStatusFailed)
			return nil, classify(fmt.Errorf("compareBills: %w", err))
		}
		progress(StepComparing, StepStatusCompleted)
	}

	progress(StepAssembling, StepStatusInProgress)

	bill := &models.ProcessedBill{
		ID:           uuid.New(),
		FileName:     req.Document.FileName,
		OriginalText: billText,
		Clauses:      normalizeClauses(batch.clauses.Clauses),
		Summary:      batch.summary.Summary,
		Comparison:   comparison,
		CreatedAt:    time.Now(),
	}

	// Optional analyses degrade to absence rather than failing the run
	if batch.stakeholdersErr == nil {
		bill.StakeholderAnalysis = batch.stakeholders
	} else {
		log.Printf("Warning: stakeholder analysis failed for %s: %v", req.Document.FileName, batch.stakeholdersErr)
	}
	if batch.precedentErr == nil {
		bill.PrecedentAnalysis = batch.precedent
	} else {
		log.Printf("Warning: precedent analysis failed for %s: %v", req.Document.FileName, batch.precedentErr)
	}
	if batch.sentimentErr == nil {
		bill.SentimentAnalysis = batch.sentiment
	} else {
		log.Printf("Warning: sentiment analysis failed for %s: %v", req.Document.FileName, batch.sentimentErr)
	}

	progress(StepAssembling, StepStatusCompleted)

	return &ProcessBillResult{Bill: bill}, nil
}

// runAnalysisWithRetry executes the parallel analysis batch, retrying whole
// attempts on retryable required failures with exponential backoff
func (s *BillService) runAnalysisWithRetry(ctx context.Context, billText string, progress ProgressFunc) (*batchResult, error) {
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		batch := s.runAnalysisBatch(ctx, billText, progress)

		reqErr := batch.requiredErr()
		if reqErr == nil {
			return batch, nil
		}
		lastErr = reqErr

		// A timed-out attempt retries like an unavailable service, but a
		// canceled parent context does not
		retryable := gateway.IsRetryable(reqErr)
		if errors.Is(reqErr, context.DeadlineExceeded) && ctx.Err() == nil {
			retryable = true
		}
		if !retryable || attempt == s.maxAttempts {
			break
		}

		delay := time.Duration(1<<attempt) * time.Second
		log.Printf("Warning: analysis attempt %d/%d failed, retrying in %s: %v",
			attempt, s.maxAttempts, delay, reqErr)
		s.sleep(delay)
	}

	return nil, lastErr
}

// runAnalysisBatch launches the five analysis operations in parallel and
// waits for every one to settle
func (s *BillService) runAnalysisBatch(ctx context.Context, billText string, progress ProgressFunc) *batchResult {
	attemptCtx := ctx
	if s.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
		defer cancel()
	}

	progress(StepExtractClauses, StepStatusInProgress)
	progress(StepSummarizing, StepStatusInProgress)
	progress(StepStakeholders, StepStatusInProgress)
	progress(StepPrecedent, StepStatusInProgress)
	progress(StepPublicSentiment, StepStatusInProgress)

	batch := &batchResult{}

	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		batch.clauses, batch.clausesErr = s.ops.ExtractClauses(attemptCtx, billText)
	}()
	go func() {
		defer wg.Done()
		batch.summary, batch.summaryErr = s.ops.SummarizeBill(attemptCtx, billText)
	}()
	go func() {
		defer wg.Done()
		batch.stakeholders, batch.stakeholdersErr = s.ops.AnalyzeStakeholders(attemptCtx, billText)
	}()
	go func() {
		defer wg.Done()
		batch.precedent, batch.precedentErr = s.ops.AnalyzePrecedent(attemptCtx, billText)
	}()
	go func() {
		defer wg.Done()
		batch.sentiment, batch.sentimentErr = s.ops.AnalyzePublicSentiment(attemptCtx, billText)
	}()

	wg.Wait()

	progress(StepExtractClauses, stepStatus(batch.clausesErr))
	progress(StepSummarizing, stepStatus(batch.summaryErr))
	progress(StepStakeholders, stepStatus(batch.stakeholdersErr))
	progress(StepPrecedent, stepStatus(batch.precedentErr))
	progress(StepPublicSentiment, stepStatus(batch.sentimentErr))

	return batch
}

func stepStatus(err error) string {
	if err != nil {
		return StepStatusFailed
	}
	return StepStatusCompleted
}

// normalizeClauses enforces sequential clause numbering and clause-N ids
// regardless of what the model produced
func normalizeClauses(clauses models.ClauseList) models.ClauseList {
	out := make(models.ClauseList, len(clauses))
	copy(out, clauses)
	for i := range out {
		out[i].ClauseNumber = i + 1
		out[i].ClauseID = fmt.Sprintf("clause-%d", i+1)
	}
	return out
}

// ExplainClauseRequest identifies a clause within its bill
type ExplainClauseRequest struct {
	ClauseText string
	BillText   string
}

// ExplainClauseResult contains the plain-language explanation
type ExplainClauseResult struct {
	Explanation string
}

// ExplainClause produces a plain-language explanation of a single clause.
// It is a one-shot operation with no retry.
func (s *BillService) ExplainClause(ctx context.Context, req ExplainClauseRequest) (*ExplainClauseResult, error) {
	res, err := s.ops.ExplainClause(ctx, req.ClauseText, req.BillText)
	if err != nil {
		return nil, classify(err)
	}
	return &ExplainClauseResult{Explanation: res.Explanation}, nil
}

// CreateJobRequest starts background processing of an uploaded bill
type CreateJobRequest struct {
	Document        models.UploadedDocument
	AmendedDocument *models.UploadedDocument
}

// CreateJobResult contains the queued job
type CreateJobResult struct {
	Job *models.AnalysisJob
}

// jobSteps returns the pending step list for a new job
func jobSteps(compareMode bool) models.AnalysisSteps {
	names := []string{
		StepExtractingText,
		StepExtractClauses,
		StepSummarizing,
		StepStakeholders,
		StepPrecedent,
		StepPublicSentiment,
	}
	if compareMode {
		names = append(names, StepComparing)
	}
	names = append(names, StepAssembling)

	steps := make(models.AnalysisSteps, len(names))
	for i, name := range names {
		steps[i] = models.AnalysisStep{Name: name, Status: StepStatusPending}
	}
	return steps
}

// CreateJob records a pending analysis job and archives the raw upload
// when storage is configured
func (s *BillService) CreateJob(ctx context.Context, req CreateJobRequest) (*CreateJobResult, error) {
	job := &models.AnalysisJob{
		ID:       uuid.New(),
		FileName: req.Document.FileName,
		Status:   models.JobStatusPending,
		Steps:    jobSteps(req.AmendedDocument != nil),
	}

	if s.store != nil {
		data, err := extractor.DecodePayload(req.Document.Content)
		if err != nil {
			return nil, classify(err)
		}
		path, err := s.store.Upload(ctx, job.ID, req.Document.FileName, bytes.NewReader(data))
		if err != nil {
			log.Printf("Warning: failed to archive upload %s: %v", req.Document.FileName, err)
		} else {
			job.StoragePath = &path
		}
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create analysis job: %w", err)
	}

	return &CreateJobResult{Job: job}, nil
}

// ProcessJob runs the pipeline for a queued job, updating step progress as
// it goes and persisting the bill on success. Intended to run in a
// background goroutine with its own context.
func (s *BillService) ProcessJob(ctx context.Context, jobID uuid.UUID, req ProcessBillRequest) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		log.Printf("Warning: failed to load analysis job %s: %v", jobID, err)
		return
	}

	if err := s.jobRepo.UpdateStatus(ctx, job.ID, models.JobStatusInProgress); err != nil {
		log.Printf("Warning: failed to mark job %s in progress: %v", job.ID, err)
	}

	steps := job.Steps
	var mu sync.Mutex
	req.Progress = func(step, status string) {
		mu.Lock()
		defer mu.Unlock()
		for i := range steps {
			if steps[i].Name == step {
				steps[i].Status = status
				break
			}
		}
		if err := s.jobRepo.UpdateProgress(ctx, job.ID, step, steps); err != nil {
			log.Printf("Warning: failed to update job %s progress: %v", job.ID, err)
		}
	}

	result, err := s.ProcessBill(ctx, req)
	if err != nil {
		failure := AsFailure(err)
		log.Printf("Analysis job %s failed: %v", job.ID, failure)
		if err := s.jobRepo.Fail(ctx, job.ID, failure.Message); err != nil {
			log.Printf("Warning: failed to mark job %s failed: %v", job.ID, err)
		}
		return
	}

	if s.billRepo != nil {
		if err := s.billRepo.Create(ctx, result.Bill); err != nil {
			log.Printf("Warning: failed to persist bill for job %s: %v", job.ID, err)
			if err := s.jobRepo.Fail(ctx, job.ID, msgUnknown); err != nil {
				log.Printf("Warning: failed to mark job %s failed: %v", job.ID, err)
			}
			return
		}
	}

	if err := s.jobRepo.Complete(ctx, job.ID, result.Bill.ID); err != nil {
		log.Printf("Warning: failed to mark job %s completed: %v", job.ID, err)
	}

	log.Printf("Analysis job %s completed, bill %s", job.ID, result.Bill.ID)
}

// GetJob returns a job by id
func (s *BillService) GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	return s.jobRepo.GetByID(ctx, id)
}

// GetBill returns a processed bill by id
func (s *BillService) GetBill(ctx context.Context, id uuid.UUID) (*models.ProcessedBill, error) {
	return s.billRepo.GetByID(ctx, id)
}

// ListBills returns recent processed bills
func (s *BillService) ListBills(ctx context.Context, limit int) ([]*models.ProcessedBill, error) {
	return s.billRepo.List(ctx, limit)
}
