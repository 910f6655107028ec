package brief

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/theimaginaryfoundation/casebrief/brief/fileutils"
	"github.com/theimaginaryfoundation/casebrief/brief/provider"
)

type keywordResponse struct {
	Keywords []string `json:"keywords" jsonschema:"description=Search keywords taken from the query, most important first"`
}

var keywordSchema = provider.SchemaJSON[keywordResponse]()

// ExtractKeywords asks the model for the search keywords in a free-form query. Replies that are not
// the requested JSON object are read as a comma-separated list.
func ExtractKeywords(ctx context.Context, client Completer, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	reply, err := client.Complete(ctx, provider.Request{
		Prompt:      keywordPrompt(query, keywordSchema),
		MaxTokens:   keywordMaxTokens,
		Temperature: keywordTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}
	return parseKeywords(reply), nil
}

func parseKeywords(reply string) []string {
	var out keywordResponse
	if err := fileutils.DecodeModelJSON(reply, &out); err == nil && len(out.Keywords) > 0 {
		return dedupeStrings(out.Keywords)
	}
	return dedupeStrings(strings.Split(reply, ","))
}

// BuildSearchQuery joins keywords into a search string, falling back to the raw query when there are none,
// and appends a year filter when year > 0.
func BuildSearchQuery(keywords []string, fallback string, year int) string {
	q := strings.Join(dedupeStrings(keywords), " ")
	if q == "" {
		q = strings.TrimSpace(fallback)
	}
	if year > 0 {
		q = q + " year:" + strconv.Itoa(year)
	}
	return strings.TrimSpace(q)
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
