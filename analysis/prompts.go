package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Prompt templates are tunable configuration, not logic. The defaults below
// ship with the binary; a catalog built with LoadCatalog overrides any of
// them from <dir>/<operation>.prompt files so prompts can be iterated
// without touching orchestration code.

const extractClausesPrompt = `You are an expert legal assistant specializing in parsing legislative documents.
Your task is to meticulously break down the provided bill text into its individual, distinct clauses, ensuring that each clause is kept together as a single unit.

- **CRITICAL RULE**: A clause and all of its subsections (e.g., (1), (a), (i), etc.) are a single unit. Do NOT split them into separate entries. Identify the start of a new clause (e.g., "Section. 1.", "Clause 2.", "Article. I.") and capture all text belonging to it until the next clause begins.
- Analyze the entire structure of the document to identify these distinct clauses.
- For each clause, you must also provide a concise, one-sentence summary of its main purpose or effect.
- Pay close attention to the document's structure (Parts, sections, sub-sections). Your extraction must preserve this hierarchy by keeping all parts of a clause together.
- Sequentially number each extracted clause, starting from 1.
- For each clause, create a unique ID in the format "clause-N", where N is its sequential number.
- The full, original text of each clause, including all its sub-parts, must be preserved without any modification.
- Return the result as a structured JSON object containing a list of these clause objects.

Bill Text:
{{{billText}}}`

const summarizeBillPrompt = `You are an expert legal professional tasked with summarizing legislative bills.

Summarize the following bill text so that it is materially shorter than the original.
Preserve the original legal meaning and intent.
Maintain all original formatting, including headings, sections, and numbering.

Bill Text:
{{{billText}}}`

const explainClausePrompt = `You are an expert legal analyst. Your task is to explain a specific clause from a legislative bill in simple, easy-to-understand terms.
You must consider the context of the entire bill to provide an accurate and relevant explanation.

Explain the purpose, meaning, and potential implications of the following clause.

Clause to Explain:
"{{{clauseText}}}"

Full Bill Context:
"{{{billText}}}"`

const compareBillsPrompt = `You are an expert legal analyst. Your task is to compare two versions of a legislative bill and produce a detailed report on the changes.

You must identify which clauses or sections have been added, removed, or modified. For each change, you must explain the legal and practical implication of that change. Report only sections with a detectable textual or substantive difference; if the two versions are identical, report no changed sections.

Original Bill:
"{{{originalBillText}}}"

Amended Bill:
"{{{amendedBillText}}}"`

const stakeholdersPrompt = `You are an expert public policy and economic analyst. Your task is to analyze the provided legislative bill and create a detailed report on its potential impact on various stakeholders.

- **Identify Stakeholders**: Identify the key industries, demographics, geographic regions, or other groups that will be most affected by this bill.
- **Summarize Impact**: For each stakeholder group, provide a neutral, evidence-based summary of the potential impact.
- **Detail Effects**: List specific potential effects, both positive and negative. Consider financial, regulatory, social, and operational impacts.
- **Overall Summary**: Start with a high-level summary of the bill's primary societal and economic consequences.

Do not express personal opinions or political bias. Your analysis must be based solely on the text of the bill provided.

Bill Text:
"{{{billText}}}"`

const precedentPrompt = `You are an expert legal historian. Your task is to analyze the provided legislative bill and report on its historical and legal precedents.

- **Analyze Historical Context**: Based on the content of the bill, provide a summary of the legal or societal history that likely led to its creation.
- **Identify Precedents**: Identify key historical laws, landmark court cases, or established legal principles that are relevant to this bill.
- **Describe the Relationship**: For each precedent identified, explain its relationship to the current bill. Does the bill extend, modify, contradict, or codify the precedent?

Your analysis must be objective and based on established legal and historical facts.

Bill Text:
"{{{billText}}}"`

const sentimentPrompt = `You are an expert public sentiment and media analyst. Your task is to analyze the provided legislative bill and determine the public's reaction to it.

1.  **Identify Key Topics**: First, read the bill and identify 2-3 key topics or phrases that would be the subject of public discussion (e.g., "digital privacy rights," "carbon tax," "small business grants").
2.  **Search for Information**: Use the 'searchTheWeb' tool for each of these key topics to find relevant news articles, social media posts, and public discussions.
3.  **Synthesize Findings**: Based on the search results, synthesize the information into a comprehensive report.
    - Determine the **Overall Sentiment** (Positive, Negative, Mixed, or Neutral).
    - Write a **Sentiment Summary** explaining the general public mood and the main reasons for it.
    - Extract and list the most prominent **Key Arguments**, categorizing them by their stance (e.g., For, Against, Concern).
    - List the **Key Topics** you used for your search.

Your analysis must be neutral and based solely on the information gathered by the tool. Respond with a single JSON object with the fields overallSentiment, sentimentSummary, keyArguments, and keyTopics.

Bill Text:
"{{{billText}}}"`

// Catalog holds the prompt template for each operation
type Catalog struct {
	templates map[string]string
}

// DefaultCatalog returns the built-in prompt templates
func DefaultCatalog() *Catalog {
	return &Catalog{
		templates: map[string]string{
			OpExtractClauses:  extractClausesPrompt,
			OpSummarizeBill:   summarizeBillPrompt,
			OpExplainClause:   explainClausePrompt,
			OpCompareBills:    compareBillsPrompt,
			OpStakeholders:    stakeholdersPrompt,
			OpPrecedent:       precedentPrompt,
			OpPublicSentiment: sentimentPrompt,
		},
	}
}

// LoadCatalog returns the defaults with any <operation>.prompt files found
// in dir layered on top. An empty dir returns the defaults unchanged.
func LoadCatalog(dir string) (*Catalog, error) {
	c := DefaultCatalog()
	if dir == "" {
		return c, nil
	}

	for name := range c.templates {
		path := filepath.Join(dir, name+".prompt")
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read prompt override %s: %w", path, err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			c.templates[name] = text
		}
	}

	return c, nil
}

// Template returns the prompt template for an operation
func (c *Catalog) Template(operation string) string {
	return c.templates[operation]
}
