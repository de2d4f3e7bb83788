package analysis

import "legiscribe-backend/models"

// Operation names, fixed catalog
const (
	OpExtractClauses  = "extractClauses"
	OpSummarizeBill   = "summarizeBill"
	OpExplainClause   = "explainClause"
	OpCompareBills    = "compareBills"
	OpStakeholders    = "analyzeStakeholders"
	OpPrecedent       = "analyzePrecedent"
	OpPublicSentiment = "analyzePublicSentiment"
)

// ExtractClausesResult is the output of the extractClauses operation
type ExtractClausesResult struct {
	Clauses models.ClauseList `json:"clauses"`
}

// SummarizeBillResult is the output of the summarizeBill operation
type SummarizeBillResult struct {
	Summary string `json:"summary"`
}

// ExplainClauseResult is the output of the explainClause operation
type ExplainClauseResult struct {
	Explanation string `json:"explanation"`
}
