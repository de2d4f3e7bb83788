package analysis

import (
	"context"
	"log"

	"legiscribe-backend/gateway"
)

// SearchResult is one web search hit handed back to the model
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// SearchProvider is the swappable search backend behind the searchTheWeb
// tool. Any real search API satisfies this; the default is a fixed mock.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// MockSearchProvider returns a fixed result set regardless of query
type MockSearchProvider struct{}

// Search returns the canned result set
func (MockSearchProvider) Search(ctx context.Context, query string) ([]SearchResult, error) {
	log.Printf("Simulating web search for: %q", query)
	return []SearchResult{
		{
			URL:     "https://news.example.com/article-1",
			Title:   "New Bill Sparks Widespread Debate on Economic Impact",
			Snippet: "Experts and citizens alike are weighing in on the potential financial consequences of the proposed legislation...",
			Source:  "Example News",
		},
		{
			URL:     "https://social.example.com/post-123",
			Title:   "Public Outcry on Social Media Over Proposed Regulations",
			Snippet: "Hashtag #RegulationReform trends as users express strong opinions, with many citing concerns over personal freedoms.",
			Source:  "SocialStream",
		},
		{
			URL:     "https://industry-journal.example.com/analysis-1",
			Title:   "Industry Leaders Cautiously Optimistic About New Bill",
			Snippet: "An analysis from the National Trade Association suggests the bill could open new markets, but not without regulatory hurdles.",
			Source:  "Industry Journal",
		},
		{
			URL:     "https://factcheck.example.com/bill-claims",
			Title:   "Fact-Checking the Claims: What the New Bill Actually Does",
			Snippet: "We break down the key provisions of the bill to separate fact from fiction amidst a heated public debate.",
			Source:  "FactCheck.org",
		},
	}, nil
}

// searchTool declares the searchTheWeb tool over the given provider
func searchTool(provider SearchProvider) gateway.Tool {
	return gateway.Tool{
		Name:        "searchTheWeb",
		Description: "Searches the web for articles and discussions related to a given query. Returns a list of search results.",
		InputSchema: searchToolSchema(),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			query, _ := args["query"].(string)
			return provider.Search(ctx, query)
		},
	}
}
