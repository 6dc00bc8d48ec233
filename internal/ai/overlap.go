package ai

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/freedom_case_2/servicedesk/internal/models"
)

const (
	NoveltyThreshold         = 0.20
	MinRecommendationPercent = 5
	DefaultTopK              = 3
)

var stopWords = map[string]struct{}{
	"это": {}, "как": {}, "что": {}, "для": {}, "при": {}, "или": {}, "все": {},
	"его": {}, "она": {}, "они": {}, "так": {}, "уже": {}, "нет": {}, "еще": {},
	"ещё": {}, "был": {}, "была": {}, "если": {}, "где": {}, "когда": {}, "the": {},
	"and": {}, "not": {},
}

// OverlapRecommender ranks knowledge entries by cosine similarity of word
// counts. It stands in for the backend's TF-IDF model.
type OverlapRecommender struct {
	TopK int
}

func (r OverlapRecommender) Recommend(ctx context.Context, problem string, kb []models.KnowledgeEntry) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	topK := r.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	query := termCounts(problem)
	if len(kb) == 0 || len(query) == 0 {
		return Result{IsNovel: true}, nil
	}

	type scored struct {
		entry models.KnowledgeEntry
		score float64
	}
	var candidates []scored
	for _, k := range kb {
		doc := termCounts(k.Problem + " " + k.Solution)
		if len(doc) == 0 {
			continue
		}
		candidates = append(candidates, scored{entry: k, score: cosine(query, doc)})
	}
	if len(candidates) == 0 {
		return Result{IsNovel: true}, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	maxScore := candidates[0].score

	res := Result{
		IsNovel:       maxScore < NoveltyThreshold,
		MaxSimilarity: int(maxScore * 100),
	}
	rank := 1
	for i := 0; i < len(candidates) && i < topK; i++ {
		percent := int(candidates[i].score * 100)
		if percent < MinRecommendationPercent {
			continue
		}
		res.Recommendations = append(res.Recommendations, models.Recommendation{
			KBID:       candidates[i].entry.ID,
			Rank:       rank,
			Similarity: percent,
			Problem:    candidates[i].entry.Problem,
			Solution:   candidates[i].entry.Solution,
		})
		rank++
	}
	return res, nil
}

func termCounts(text string) map[string]int {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	counts := map[string]int{}
	for _, w := range strings.Fields(cleaned) {
		if len([]rune(w)) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		counts[w]++
	}
	return counts
}

func cosine(a, b map[string]int) float64 {
	var dot, na, nb float64
	for w, x := range a {
		na += float64(x * x)
		if y, ok := b[w]; ok {
			dot += float64(x * y)
		}
	}
	for _, y := range b {
		nb += float64(y * y)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
