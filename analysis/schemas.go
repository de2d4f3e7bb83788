package analysis

// Output schemas for each operation, as generic JSON-Schema maps. Each is
// passed to the provider as a structured-output constraint and validated
// locally by the gateway, so only the keyword subset both sides understand
// is used (type, properties, required, items, enum).

func extractClausesSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"clauses": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"clauseId":     map[string]interface{}{"type": "string"},
						"clauseNumber": map[string]interface{}{"type": "integer"},
						"text":         map[string]interface{}{"type": "string"},
						"summary":      map[string]interface{}{"type": "string"},
					},
					"required": []interface{}{"clauseId", "clauseNumber", "text", "summary"},
				},
			},
		},
		"required": []interface{}{"clauses"},
	}
}

func summarizeBillSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"summary": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"summary"},
	}
}

func explainClauseSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"explanation": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"explanation"},
	}
}

func compareBillsSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"comparisonSummary": map[string]interface{}{"type": "string"},
			"changedSections": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"sectionTitle": map[string]interface{}{"type": "string"},
						"originalText": map[string]interface{}{"type": "string"},
						"amendedText":  map[string]interface{}{"type": "string"},
						"implication":  map[string]interface{}{"type": "string"},
					},
					"required": []interface{}{"sectionTitle", "originalText", "amendedText", "implication"},
				},
			},
		},
		"required": []interface{}{"comparisonSummary", "changedSections"},
	}
}

func stakeholdersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"overallImpactSummary": map[string]interface{}{"type": "string"},
			"stakeholderImpacts": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"stakeholderGroup": map[string]interface{}{"type": "string"},
						"impactSummary":    map[string]interface{}{"type": "string"},
						"potentialEffects": map[string]interface{}{
							"type":  "array",
							"items": map[string]interface{}{"type": "string"},
						},
					},
					"required": []interface{}{"stakeholderGroup", "impactSummary", "potentialEffects"},
				},
			},
		},
		"required": []interface{}{"overallImpactSummary", "stakeholderImpacts"},
	}
}

func precedentSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"historicalContext": map[string]interface{}{"type": "string"},
			"precedents": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"precedentName": map[string]interface{}{"type": "string"},
						"description":   map[string]interface{}{"type": "string"},
					},
					"required": []interface{}{"precedentName", "description"},
				},
			},
		},
		"required": []interface{}{"historicalContext", "precedents"},
	}
}

func sentimentSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"overallSentiment": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"Positive", "Negative", "Mixed", "Neutral"},
			},
			"sentimentSummary": map[string]interface{}{"type": "string"},
			"keyArguments": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"side":    map[string]interface{}{"type": "string"},
						"summary": map[string]interface{}{"type": "string"},
					},
					"required": []interface{}{"side", "summary"},
				},
			},
			"keyTopics": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"required": []interface{}{"overallSentiment", "sentimentSummary", "keyArguments", "keyTopics"},
	}
}

func searchToolSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query, a few keywords related to the bill's topic.",
			},
		},
		"required": []interface{}{"query"},
	}
}
