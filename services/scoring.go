package services

import (
	"math"

	"call-review-api/models"
)

// ComputeOverallScore converts per-criterion raw scores into the single
// weighted recommendation score:
//
//	overall = Σ(normalized_i × weight_i) / Σ(weight_i)
//	normalized_i = (score_i / maxScore_i) × 10
//
// Only criteria with a recorded score participate. Returns 0.00 when no
// criteria are scored. The result is rounded to two decimal places for
// storage and display.
func ComputeOverallScore(criteria []models.Criterion, scores map[int]float64) float64 {
	var weightedSum, weightTotal float64

	for _, criterion := range criteria {
		score, ok := scores[criterion.CriterionID]
		if !ok {
			continue
		}
		if criterion.MaxScore <= 0 || criterion.Weight <= 0 {
			continue
		}
		normalized := (score / criterion.MaxScore) * 10
		weightedSum += normalized * criterion.Weight
		weightTotal += criterion.Weight
	}

	if weightTotal == 0 {
		return 0.00
	}

	return math.Round(weightedSum/weightTotal*100) / 100
}
