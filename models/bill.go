package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Clause represents a structurally distinct, numbered unit of bill text
type Clause struct {
	ClauseID     string `json:"clauseId"`
	ClauseNumber int    `json:"clauseNumber"`
	Text         string `json:"text"`
	Summary      string `json:"summary"`
}

// ClauseList represents the ordered clauses of a bill
type ClauseList []Clause

// Value implements driver.Valuer for JSONB
func (c ClauseList) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB
func (c *ClauseList) Scan(value interface{}) error {
	if value == nil {
		*c = make(ClauseList, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*c = make(ClauseList, 0)
		return nil
	}

	if len(bytes) == 0 {
		*c = make(ClauseList, 0)
		return nil
	}

	return json.Unmarshal(bytes, c)
}

// ComparisonSection represents one changed section between two bill versions
type ComparisonSection struct {
	SectionTitle string `json:"sectionTitle"`
	OriginalText string `json:"originalText"`
	AmendedText  string `json:"amendedText"`
	Implication  string `json:"implication"`
}

// BillComparison represents the comparison between an original and amended bill
type BillComparison struct {
	ComparisonSummary string              `json:"comparisonSummary"`
	ChangedSections   []ComparisonSection `json:"changedSections"`
}

// Value implements driver.Valuer for JSONB
func (b BillComparison) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner for JSONB
func (b *BillComparison) Scan(value interface{}) error {
	return scanJSONB(value, b)
}

// StakeholderImpact represents the effect of a bill on one stakeholder group
type StakeholderImpact struct {
	StakeholderGroup string   `json:"stakeholderGroup"`
	ImpactSummary    string   `json:"impactSummary"`
	PotentialEffects []string `json:"potentialEffects"`
}

// StakeholderAnalysis represents the stakeholder impact report for a bill
type StakeholderAnalysis struct {
	OverallImpactSummary string              `json:"overallImpactSummary"`
	StakeholderImpacts   []StakeholderImpact `json:"stakeholderImpacts"`
}

// Value implements driver.Valuer for JSONB
func (s StakeholderAnalysis) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *StakeholderAnalysis) Scan(value interface{}) error {
	return scanJSONB(value, s)
}

// Precedent represents a historical law or landmark case related to a bill
type Precedent struct {
	PrecedentName string `json:"precedentName"`
	Description   string `json:"description"`
}

// PrecedentAnalysis represents the historical/legal context report for a bill
type PrecedentAnalysis struct {
	HistoricalContext string      `json:"historicalContext"`
	Precedents        []Precedent `json:"precedents"`
}

// Value implements driver.Valuer for JSONB
func (p PrecedentAnalysis) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB
func (p *PrecedentAnalysis) Scan(value interface{}) error {
	return scanJSONB(value, p)
}

// Sentiment represents the overall public sentiment classification
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentMixed    Sentiment = "Mixed"
	SentimentNeutral  Sentiment = "Neutral"
)

// SentimentArgument represents one public argument about a bill
type SentimentArgument struct {
	Side    string `json:"side"`
	Summary string `json:"summary"`
}

// SentimentAnalysis represents the public sentiment report for a bill
type SentimentAnalysis struct {
	OverallSentiment Sentiment           `json:"overallSentiment"`
	SentimentSummary string              `json:"sentimentSummary"`
	KeyArguments     []SentimentArgument `json:"keyArguments"`
	KeyTopics        []string            `json:"keyTopics"`
}

// Value implements driver.Valuer for JSONB
func (s SentimentAnalysis) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *SentimentAnalysis) Scan(value interface{}) error {
	return scanJSONB(value, s)
}

// ProcessedBill is the result of one successful processing run.
// Clauses and Summary are always present; the analysis fields are each
// present only when the corresponding operation succeeded.
type ProcessedBill struct {
	ID                  uuid.UUID            `json:"id"`
	FileName            string               `json:"fileName"`
	OriginalText        string               `json:"originalText"`
	Clauses             ClauseList           `json:"clauses"`
	Summary             string               `json:"summary"`
	Comparison          *BillComparison      `json:"comparison,omitempty"`
	StakeholderAnalysis *StakeholderAnalysis `json:"stakeholderAnalysis,omitempty"`
	PrecedentAnalysis   *PrecedentAnalysis   `json:"precedentAnalysis,omitempty"`
	SentimentAnalysis   *SentimentAnalysis   `json:"sentimentAnalysis,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

// scanJSONB decodes a JSONB column into dst, tolerating the value shapes
// pgx may hand back
func scanJSONB(value interface{}, dst interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, dst)
}
