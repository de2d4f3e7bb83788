// Package analysis declares the fixed catalog of bill analysis operations.
// Each operation binds a prompt template, an output schema, and typed
// input/output shapes to the model gateway. extractClauses and
// summarizeBill are required for a valid result; the others degrade to an
// absent field when they fail.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"legiscribe-backend/gateway"
	"legiscribe-backend/models"
)

// Generation temperatures. Extraction and comparison run near-deterministic;
// narrative operations get slightly more freedom.
const (
	tempStructured = 0.2
	tempNarrative  = 0.3
)

// Ops binds the operation catalog to a gateway
type Ops struct {
	gw      *gateway.Gateway
	prompts *Catalog
	search  SearchProvider
}

// New creates the operation catalog. A nil catalog or search provider
// falls back to the built-in prompts and the mock search backend.
func New(gw *gateway.Gateway, prompts *Catalog, search SearchProvider) *Ops {
	if prompts == nil {
		prompts = DefaultCatalog()
	}
	if search == nil {
		search = MockSearchProvider{}
	}
	return &Ops{gw: gw, prompts: prompts, search: search}
}

// ExtractClauses segments the bill into sequentially numbered clauses
func (o *Ops) ExtractClauses(ctx context.Context, billText string) (*ExtractClausesResult, error) {
	raw, err := o.gw.Invoke(ctx, OpExtractClauses, o.prompts.Template(OpExtractClauses),
		map[string]string{"billText": billText}, extractClausesSchema(), tempStructured)
	if err != nil {
		return nil, err
	}

	var result ExtractClausesResult
	if err := unmarshalOutput(OpExtractClauses, raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SummarizeBill shortens the bill while preserving meaning and structure
func (o *Ops) SummarizeBill(ctx context.Context, billText string) (*SummarizeBillResult, error) {
	raw, err := o.gw.Invoke(ctx, OpSummarizeBill, o.prompts.Template(OpSummarizeBill),
		map[string]string{"billText": billText}, summarizeBillSchema(), tempNarrative)
	if err != nil {
		return nil, err
	}

	var result SummarizeBillResult
	if err := unmarshalOutput(OpSummarizeBill, raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExplainClause explains one clause using the full bill only as context
func (o *Ops) ExplainClause(ctx context.Context, clauseText, billText string) (*ExplainClauseResult, error) {
	raw, err := o.gw.Invoke(ctx, OpExplainClause, o.prompts.Template(OpExplainClause),
		map[string]string{"clauseText": clauseText, "billText": billText}, explainClauseSchema(), tempNarrative)
	if err != nil {
		return nil, err
	}

	var result ExplainClauseResult
	if err := unmarshalOutput(OpExplainClause, raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CompareBills reports the changed sections between two bill versions
func (o *Ops) CompareBills(ctx context.Context, originalText, amendedText string) (*models.BillComparison, error) {
	raw, err := o.gw.Invoke(ctx, OpCompareBills, o.prompts.Template(OpCompareBills),
		map[string]string{"originalBillText": originalText, "amendedBillText": amendedText}, compareBillsSchema(), tempStructured)
	if err != nil {
		return nil, err
	}

	var result models.BillComparison
	if err := unmarshalOutput(OpCompareBills, raw, &result); err != nil {
		return nil, err
	}
	if result.ChangedSections == nil {
		result.ChangedSections = []models.ComparisonSection{}
	}
	return &result, nil
}

// AnalyzeStakeholders reports the bill's impact per stakeholder group
func (o *Ops) AnalyzeStakeholders(ctx context.Context, billText string) (*models.StakeholderAnalysis, error) {
	raw, err := o.gw.Invoke(ctx, OpStakeholders, o.prompts.Template(OpStakeholders),
		map[string]string{"billText": billText}, stakeholdersSchema(), tempNarrative)
	if err != nil {
		return nil, err
	}

	var result models.StakeholderAnalysis
	if err := unmarshalOutput(OpStakeholders, raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzePrecedent reports the bill's historical context and precedents
func (o *Ops) AnalyzePrecedent(ctx context.Context, billText string) (*models.PrecedentAnalysis, error) {
	raw, err := o.gw.Invoke(ctx, OpPrecedent, o.prompts.Template(OpPrecedent),
		map[string]string{"billText": billText}, precedentSchema(), tempNarrative)
	if err != nil {
		return nil, err
	}

	var result models.PrecedentAnalysis
	if err := unmarshalOutput(OpPrecedent, raw, &result); err != nil {
		return nil, err
	}
	if result.Precedents == nil {
		result.Precedents = []models.Precedent{}
	}
	return &result, nil
}

// AnalyzePublicSentiment reports public reaction, using the searchTheWeb
// tool to gather supporting snippets
func (o *Ops) AnalyzePublicSentiment(ctx context.Context, billText string) (*models.SentimentAnalysis, error) {
	raw, err := o.gw.Invoke(ctx, OpPublicSentiment, o.prompts.Template(OpPublicSentiment),
		map[string]string{"billText": billText}, sentimentSchema(), tempNarrative, searchTool(o.search))
	if err != nil {
		return nil, err
	}

	var result models.SentimentAnalysis
	if err := unmarshalOutput(OpPublicSentiment, raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// unmarshalOutput decodes schema-validated gateway output into its typed
// shape. A decode failure here means the schema and the type drifted apart.
func unmarshalOutput(operation string, raw json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return gateway.NewError(gateway.StatusInvalidOutput,
			fmt.Errorf("%s: decode output: %w", operation, err))
	}
	return nil
}
