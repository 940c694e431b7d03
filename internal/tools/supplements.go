package tools

import (
	"context"
	"errors"

	"github.com/young1lin/supplementbot/internal/models"
	"github.com/young1lin/supplementbot/internal/search"
)

const (
	FetchSupplementInfo = "fetch_supplement_info"
	SearchReviews       = "search_reviews_duckduckgo"
)

// NewSupplementRegistry registers the shopping and review lookups
func NewSupplementRegistry(shopping search.ShoppingSearcher, reviews search.ReviewSearcher) *Registry {
	r := NewRegistry()
	r.Register(&shoppingTool{searcher: shopping})
	r.Register(&reviewTool{searcher: reviews})
	return r
}

type shoppingTool struct {
	searcher search.ShoppingSearcher
}

func (t *shoppingTool) Definition() models.FunctionDef {
	return models.FunctionDef{
		Name:        FetchSupplementInfo,
		Description: "Search for supplement price, brands when user is requesting current information about some of the supplements to buy",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Query term to search for supplements.",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *shoppingTool) Execute(ctx context.Context, args string) (interface{}, error) {
	var parsed models.ShoppingFunctionArgs
	if err := ParseArgs(args, &parsed); err != nil {
		return nil, err
	}
	if parsed.Query == "" {
		return nil, errors.New("query is required")
	}
	return t.searcher.FetchSupplementInfo(ctx, parsed.Query), nil
}

type reviewTool struct {
	searcher search.ReviewSearcher
}

func (t *reviewTool) Definition() models.FunctionDef {
	return models.FunctionDef{
		Name:        SearchReviews,
		Description: "Search for supplement's reviews when user is asking for reviews",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"supplement": map[string]interface{}{
					"type":        "string",
					"description": "Supplement to search reviews for.",
				},
			},
			"required": []string{"supplement"},
		},
	}
}

// Execute returns nil when no reviews were found, which encodes as null
func (t *reviewTool) Execute(ctx context.Context, args string) (interface{}, error) {
	var parsed models.ReviewFunctionArgs
	if err := ParseArgs(args, &parsed); err != nil {
		return nil, err
	}
	if parsed.Supplement == "" {
		return nil, errors.New("supplement is required")
	}

	text, found, err := t.searcher.SearchReviews(ctx, parsed.Supplement)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return text, nil
}
