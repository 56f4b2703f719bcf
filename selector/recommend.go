package selector

import (
	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/quality"
)

// Recommendation texts.
const (
	RecommendMoreData        = "collect more data (at least 30 points recommended for full evaluation)"
	RecommendImproveQuality  = "improve data quality (fill gaps and remove anomalies)"
	RecommendCheckCollection = "check data collection process (series has zero variance)"
	RecommendSeasonalFactors = "consider external seasonal factors (no seasonality detected in load metric)"
)

// QualityThreshold is the score below which data quality is flagged.
const QualityThreshold = 0.7

// Recommend derives advice for the caller from the data quality assessment.
func Recommend(a quality.Assessment, mt forecast.MetricType) []string {
	out := []string{}
	if a.Points < FullEvaluationPoints {
		out = append(out, RecommendMoreData)
	}
	if a.Score < QualityThreshold {
		out = append(out, RecommendImproveQuality)
	}
	if a.Variance == 0 {
		out = append(out, RecommendCheckCollection)
	}
	if !a.SeasonalityDetected && mt == forecast.MetricLoad {
		out = append(out, RecommendSeasonalFactors)
	}
	return out
}
