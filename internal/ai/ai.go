package ai

import (
	"context"

	"github.com/freedom_case_2/servicedesk/internal/models"
)

type Result struct {
	IsNovel         bool
	MaxSimilarity   int
	Recommendations []models.Recommendation
}

type Recommender interface {
	Recommend(ctx context.Context, problem string, kb []models.KnowledgeEntry) (Result, error)
}
