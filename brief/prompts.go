package brief

import (
	"fmt"
	"strings"
)

// NotRelevant is the literal a chunk verdict must answer with when the chunk does not bear on the query.
const NotRelevant = "Not relevant"

// NotRelevantFallback is returned when no chunk of a document is judged relevant.
const NotRelevantFallback = "This case does not appear to be relevant to the user's query."

// Token and temperature budgets per call kind.
const (
	chunkSummaryMaxTokens  = 256
	synthesisMaxTokens     = 256
	verdictMaxTokens       = 128
	relevanceMaxTokens     = 128
	explanationMaxTokens   = 128
	keywordMaxTokens       = 64
	summaryTemperature     = 0.3
	verdictTemperature     = 0.4
	relevanceTemperature   = 0.3
	explanationTemperature = 0.3
	keywordTemperature     = 0.2
)

func chunkSummaryPrompt(chunk string) string {
	return "Summarize the following portion of a legal document in 2-3 sentences:\n\n" + chunk
}

func summarySynthesisPrompt(partials string) string {
	return strings.Join([]string{
		"You are a legal assistant. Below are section-wise summaries of one legal judgment, in document order.",
		"Write a clear, concise overall summary of 3-4 sentences in plain English that a non-lawyer can follow,",
		"covering the key outcome and why it matters. Do not restate this request, and do not repeat points",
		"that appear in more than one section summary.",
		"",
		"Section summaries:",
		partials,
	}, "\n")
}

func chunkVerdictPrompt(query, chunk string) string {
	return fmt.Sprintf(
		"User query: %s\n\nCase snippet: %s\n\n"+
			"In 1-2 sentences, explain if and why this snippet is relevant to the user query. "+
			"If it is not relevant, respond only with '%s'.",
		query, chunk, NotRelevant)
}

func relevanceSynthesisPrompt(reasons string) string {
	return strings.Join([]string{
		"Below are explanations of how parts of one legal case relate to a user's query, in document order.",
		"Write a short summary of 2-3 sentences explaining why the case is relevant overall.",
		"Do not repeat the query and do not open with introductory phrases.",
		"",
		"Explanations:",
		reasons,
	}, "\n")
}

func explanationPrompt(query, text string) string {
	return fmt.Sprintf(
		"User query: %s\n\nCase text: %s\n\n"+
			"Explain in 2-3 sentences why this case is relevant to the user's query.",
		query, text)
}

func keywordPrompt(query, schema string) string {
	return fmt.Sprintf(
		"Extract the main legal keywords from this query for a case-law search engine.\n"+
			"Respond with a single JSON object matching this JSON schema and nothing else:\n%s\n\nQuery: %s",
		schema, query)
}
