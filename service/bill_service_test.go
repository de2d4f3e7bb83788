package service_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"legiscribe-backend/analysis"
	"legiscribe-backend/gateway"
	"legiscribe-backend/models"
	"legiscribe-backend/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const billText = "Section 1. Short title.\nSection 2. Appropriations."

var errUnavailable = gateway.NewError(gateway.StatusUnavailable,
	errors.New("model API error (status 503): overloaded"))

func txtDocument(name, text string) models.UploadedDocument {
	return models.UploadedDocument{
		FileName: name,
		Content:  "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(text)),
		MimeType: models.MimeTypePlainText,
	}
}

func validOutput(operation string) string {
	switch operation {
	case analysis.OpExtractClauses:
		return `{"clauses": [
			{"clauseId": "clause-1", "clauseNumber": 1, "text": "Section 1. Short title.", "summary": "Title."},
			{"clauseId": "clause-2", "clauseNumber": 2, "text": "Section 2. Appropriations.", "summary": "Funding."}
		]}`
	case analysis.OpSummarizeBill:
		return `{"summary": "A two-section bill."}`
	case analysis.OpCompareBills:
		return `{"comparisonSummary": "Section 2 changed.", "changedSections": []}`
	case analysis.OpStakeholders:
		return `{"overallImpactSummary": "Broad impact.", "stakeholderImpacts": []}`
	case analysis.OpPrecedent:
		return `{"historicalContext": "Follows earlier acts.", "precedents": []}`
	case analysis.OpPublicSentiment:
		return `{"overallSentiment": "Neutral", "sentimentSummary": "Little reaction.", "keyArguments": [], "keyTopics": []}`
	case analysis.OpExplainClause:
		return `{"explanation": "Plain words."}`
	default:
		return ""
	}
}

// scriptedBackend returns valid output for every operation unless a script
// overrides the n-th call to that operation
type scriptedBackend struct {
	mu     sync.Mutex
	calls  map[string]int
	script func(operation string, call int) (string, error, bool)
}

func newScriptedBackend(script func(operation string, call int) (string, error, bool)) *scriptedBackend {
	return &scriptedBackend{calls: make(map[string]int), script: script}
}

func (b *scriptedBackend) Generate(ctx context.Context, req gateway.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	b.calls[req.Operation]++
	n := b.calls[req.Operation]
	b.mu.Unlock()

	if b.script != nil {
		if out, err, ok := b.script(req.Operation, n); ok {
			return out, err
		}
	}
	return validOutput(req.Operation), nil
}

func (b *scriptedBackend) callCount(operation string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[operation]
}

func (b *scriptedBackend) totalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

// sleepRecorder captures backoff delays without waiting
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// stallingBackend blocks until the request context expires on the first
// call to each operation, then answers normally
type stallingBackend struct {
	mu    sync.Mutex
	calls map[string]int
}

func (b *stallingBackend) Generate(ctx context.Context, req gateway.Request) (string, error) {
	b.mu.Lock()
	b.calls[req.Operation]++
	n := b.calls[req.Operation]
	b.mu.Unlock()

	if n == 1 {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return validOutput(req.Operation), nil
}

func newTestService(backend gateway.Backend, sleeper *sleepRecorder) *service.BillService {
	return service.NewBillService(
		service.BillWithOperations(analysis.New(gateway.New(backend), nil, nil)),
		service.BillWithSleep(sleeper.sleep),
	)
}

func TestProcessBill_Success(t *testing.T) {
	backend := newScriptedBackend(nil)
	svc := newTestService(backend, &sleepRecorder{})

	result, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: txtDocument("bill.txt", billText),
	})
	require.NoError(t, err)

	bill := result.Bill
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", bill.ID.String())
	assert.Equal(t, "bill.txt", bill.FileName)
	assert.Equal(t, billText, bill.OriginalText)
	assert.Equal(t, "A two-section bill.", bill.Summary)
	require.Len(t, bill.Clauses, 2)

	assert.NotNil(t, bill.StakeholderAnalysis)
	assert.NotNil(t, bill.PrecedentAnalysis)
	assert.NotNil(t, bill.SentimentAnalysis)
	assert.Nil(t, bill.Comparison)

	// One attempt, five operations, no comparison
	assert.Equal(t, 5, backend.totalCalls())
}

func TestProcessBill_SequentialClauseNumbering(t *testing.T) {
	backend := newScriptedBackend(func(operation string, call int) (string, error, bool) {
		if operation == analysis.OpExtractClauses {
			// Model numbering is off and ids are arbitrary
			return `{"clauses": [
				{"clauseId": "c-17", "clauseNumber": 17, "text": "First.", "summary": "s1"},
				{"clauseId": "weird", "clauseNumber": 3, "text": "Second.", "summary": "s2"},
				{"clauseId": "", "clauseNumber": 0, "text": "Third.", "summary": "s3"}
			]}`, nil, true
		}
		return "", nil, false
	})
	svc := newTestService(backend, &sleepRecorder{})

	result, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: txtDocument("bill.txt", billText),
	})
	require.NoError(t, err)

	clauses := result.Bill.Clauses
	require.Len(t, clauses, 3)
	for i, c := range clauses {
		assert.Equal(t, i+1, c.ClauseNumber)
		assert.Equal(t, fmt.Sprintf("clause-%d", i+1), c.ClauseID)
	}
	assert.Equal(t, "First.", clauses[0].Text)
	assert.Equal(t, "Third.", clauses[2].Text)
}

func TestProcessBill_RetryThenSuccess(t *testing.T) {
	backend := newScriptedBackend(func(operation string, call int) (string, error, bool) {
		if operation == analysis.OpExtractClauses && call <= 2 {
			return "", errUnavailable, true
		}
		return "", nil, false
	})
	sleeper := &sleepRecorder{}
	svc := newTestService(backend, sleeper)

	result, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: txtDocument("bill.txt", billText),
	})
	require.NoError(t, err)
	require.Len(t, result.Bill.Clauses, 2)

	assert.Equal(t, 3, backend.callCount(analysis.OpExtractClauses))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.recorded())
}

func TestProcessBill_AttemptTimeoutRetries(t *testing.T) {
	backend := &stallingBackend{calls: make(map[string]int)}
	sleeper := &sleepRecorder{}
	svc := service.NewBillService(
		service.BillWithOperations(analysis.New(gateway.New(backend), nil, nil)),
		service.BillWithSleep(sleeper.sleep),
		service.BillWithAttemptTimeout(50*time.Millisecond),
	)

	result, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: txtDocument("bill.txt", billText),
	})
	require.NoError(t, err)
	require.Len(t, result.Bill.Clauses, 2)

	// The expired first attempt retries like an unavailable service
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.recorded())
}

func TestProcessBill_RetriesExhausted(t *testing.T) {
	backend := newScriptedBackend(func(operation string, call int) (string, error, bool) {
		if operation == analysis.OpSummarizeBill {
			return "", errUnavailable, true
		}
		return "", nil, false
	})
	sleeper := &sleepRecorder{}
	svc := newTestService(backend, sleeper)

	_, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: txtDocument("bill.txt", billText),
	})
	require.Error(t, err)

	failure := service.AsFailure(err)
	assert.Equal(t, service.FailureServiceUnavailable, failure.Kind)
	assert.Equal(t, "The AI service is temporarily unavailable due to high demand. Please try again in a few moments.", failure.Message)

	assert.Equal(t, 3, backend.callCount(analysis.OpSummarizeBill))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.recorded())
}

func TestProcessBill_RateLimitedRetries(t *testing.T) {
	rateLimited := gateway.NewError(gateway.StatusRateLimited,
		errors.New("model API error (status 429): quota"))

	backend := newScriptedBackend(func(operation string, call int) (string, error, bool) {
		if operation == analysis.OpExtractClauses && call == 1 {
			return "", rateLimited, true
		}
		return "", nil, false
	})
	sleeper := &sleepRecorder{}
	svc := newTestService(backend, sleeper)

	_, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: txtDocument("bill.txt", billText),
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.recorded())
}

func TestProcessBill_NonRetryableShortCircuits(t *testing.T) {
	backend := newScriptedBackend(func(operation string, call int) (string, error, bool) {
		if operation == analysis.OpExtractClauses {
			return `{"not": "clauses"}`, nil, true
		}
		return "", nil, false
	})
	sleeper := &sleepRecorder{}
	svc := newTestService(backend, sleeper)

	_, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: txtDocument("bill.txt", billText),
	})
	require.Error(t, err)

	failure := service.AsFailure(err)
	assert.Equal(t, service.FailureModelOutputInvalid, failure.Kind)

	// A single attempt, no backoff
	assert.Equal(t, 1, backend.callCount(analysis.OpExtractClauses))
	assert.Empty(t, sleeper.recorded())
}

func TestProcessBill_EmptyClauseListFailsAttempt(t *testing.T) {
	backend := newScriptedBackend(func(operation string, call int) (string, error, bool) {
		if operation == analysis.OpExtractClauses {
			return `{"clauses": []}`, nil, true
		}
		return "", nil, false
	})
	sleeper := &sleepRecorder{}
	svc := newTestService(backend, sleeper)

	_, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: txtDocument("bill.txt", billText),
	})
	require.Error(t, err)
	assert.Equal(t, service.FailureModelOutputInvalid, service.AsFailure(err).Kind)
	assert.Equal(t, 1, backend.callCount(analysis.OpExtractClauses))
}

func TestProcessBill_OptionalAnalysesDegrade(t *testing.T) {
	backend := newScriptedBackend(func(operation string, call int) (string, error, bool) {
		switch operation {
		case analysis.OpPublicSentiment:
			return "", errUnavailable, true
		case analysis.OpPrecedent:
			return `{"wrong": "shape"}`, nil, true
		}
		return "", nil, false
	})
	sleeper := &sleepRecorder{}
	svc := newTestService(backend, sleeper)

	result, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: txtDocument("bill.txt", billText),
	})
	require.NoError(t, err)

	bill := result.Bill
	assert.Nil(t, bill.SentimentAnalysis)
	assert.Nil(t, bill.PrecedentAnalysis)
	assert.NotNil(t, bill.StakeholderAnalysis)
	require.Len(t, bill.Clauses, 2)

	// Optional failures never trigger a retry
	assert.Equal(t, 1, backend.callCount(analysis.OpPublicSentiment))
	assert.Empty(t, sleeper.recorded())
}

func TestProcessBill_UnsupportedTypeNeverCallsModel(t *testing.T) {
	backend := newScriptedBackend(nil)
	svc := newTestService(backend, &sleepRecorder{})

	_, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: models.UploadedDocument{
			FileName: "photo.png",
			Content:  "data:image/png;base64,aGVsbG8=",
			MimeType: "image/png",
		},
	})
	require.Error(t, err)
	assert.Equal(t, service.FailureUnsupportedFileType, service.AsFailure(err).Kind)
	assert.Zero(t, backend.totalCalls())
}

func TestProcessBill_MalformedUploadNeverCallsModel(t *testing.T) {
	backend := newScriptedBackend(nil)
	svc := newTestService(backend, &sleepRecorder{})

	_, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: models.UploadedDocument{
			FileName: "bill.txt",
			Content:  "data:text/plain;base64,!!!",
			MimeType: models.MimeTypePlainText,
		},
	})
	require.Error(t, err)
	assert.Equal(t, service.FailureMalformedUpload, service.AsFailure(err).Kind)
	assert.Zero(t, backend.totalCalls())
}

func TestProcessBill_CompareMode(t *testing.T) {
	backend := newScriptedBackend(nil)
	svc := newTestService(backend, &sleepRecorder{})

	amended := txtDocument("bill-v2.txt", billText+"\nSection 3. Sunset clause.")
	result, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document:        txtDocument("bill.txt", billText),
		AmendedDocument: &amended,
	})
	require.NoError(t, err)

	require.NotNil(t, result.Bill.Comparison)
	assert.Equal(t, "Section 2 changed.", result.Bill.Comparison.ComparisonSummary)
	assert.Equal(t, 1, backend.callCount(analysis.OpCompareBills))
}

func TestProcessBill_SingleModeSkipsComparison(t *testing.T) {
	backend := newScriptedBackend(nil)
	svc := newTestService(backend, &sleepRecorder{})

	result, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: txtDocument("bill.txt", billText),
	})
	require.NoError(t, err)
	assert.Nil(t, result.Bill.Comparison)
	assert.Zero(t, backend.callCount(analysis.OpCompareBills))
}

func TestProcessBill_ComparisonRunsAfterBatch(t *testing.T) {
	var order []string
	var mu sync.Mutex

	backend := newScriptedBackend(func(operation string, call int) (string, error, bool) {
		mu.Lock()
		order = append(order, operation)
		mu.Unlock()
		return "", nil, false
	})
	svc := newTestService(backend, &sleepRecorder{})

	amended := txtDocument("bill-v2.txt", billText)
	_, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document:        txtDocument("bill.txt", billText),
		AmendedDocument: &amended,
	})
	require.NoError(t, err)

	require.Len(t, order, 6)
	assert.Equal(t, analysis.OpCompareBills, order[len(order)-1])
}

func TestProcessBill_ComparisonFailureFailsRun(t *testing.T) {
	backend := newScriptedBackend(func(operation string, call int) (string, error, bool) {
		if operation == analysis.OpCompareBills {
			return "", errUnavailable, true
		}
		return "", nil, false
	})
	sleeper := &sleepRecorder{}
	svc := newTestService(backend, sleeper)

	amended := txtDocument("bill-v2.txt", billText)
	_, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document:        txtDocument("bill.txt", billText),
		AmendedDocument: &amended,
	})
	require.Error(t, err)
	assert.Equal(t, service.FailureServiceUnavailable, service.AsFailure(err).Kind)

	// The comparison failure does not re-run the batch
	assert.Equal(t, 1, backend.callCount(analysis.OpExtractClauses))
	assert.Empty(t, sleeper.recorded())
}

func TestProcessBill_ProgressSteps(t *testing.T) {
	backend := newScriptedBackend(nil)
	svc := newTestService(backend, &sleepRecorder{})

	var mu sync.Mutex
	completed := map[string]bool{}

	_, err := svc.ProcessBill(context.Background(), service.ProcessBillRequest{
		Document: txtDocument("bill.txt", billText),
		Progress: func(step, status string) {
			mu.Lock()
			defer mu.Unlock()
			if status == service.StepStatusCompleted {
				completed[step] = true
			}
		},
	})
	require.NoError(t, err)

	for _, step := range []string{
		service.StepExtractingText,
		service.StepExtractClauses,
		service.StepSummarizing,
		service.StepStakeholders,
		service.StepPrecedent,
		service.StepPublicSentiment,
		service.StepAssembling,
	} {
		assert.True(t, completed[step], "step %q not completed", step)
	}
}

func TestExplainClause(t *testing.T) {
	backend := newScriptedBackend(nil)
	svc := newTestService(backend, &sleepRecorder{})

	result, err := svc.ExplainClause(context.Background(), service.ExplainClauseRequest{
		ClauseText: "Section 1. Short title.",
		BillText:   billText,
	})
	require.NoError(t, err)
	assert.Equal(t, "Plain words.", result.Explanation)
}

func TestExplainClause_Error(t *testing.T) {
	backend := newScriptedBackend(func(operation string, call int) (string, error, bool) {
		return "", errUnavailable, true
	})
	svc := newTestService(backend, &sleepRecorder{})

	_, err := svc.ExplainClause(context.Background(), service.ExplainClauseRequest{
		ClauseText: "x",
		BillText:   "y",
	})
	require.Error(t, err)
	assert.Equal(t, service.FailureServiceUnavailable, service.AsFailure(err).Kind)
}

func TestAsFailure_Unclassified(t *testing.T) {
	failure := service.AsFailure(errors.New("something odd"))
	assert.Equal(t, service.FailureUnknown, failure.Kind)
	assert.Contains(t, failure.Message, "something odd")
}
