// Package evaluate scores fitted models on a held-out, most recent slice of
// history and ranks them.
package evaluate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goforecast/forecast"
	"github.com/sartorproj/goforecast/timeseries"
)

// MinObservations is the shortest series that can be split for evaluation.
const MinObservations = 12

// DefaultTrainRatio keeps the oldest 80% of history for training.
const DefaultTrainRatio = 0.8

// ErrEvaluationSkipped reports that the series cannot be split. It is a
// precondition, not a failure.
var ErrEvaluationSkipped = errors.New("evaluation skipped")

// Split divides the series temporally: train is the oldest part and test the
// most recent round((1-ratio)*N) points.
func Split(series *timeseries.Series, ratio float64) (train, test *timeseries.Series, err error) {
	if ratio <= 0 || ratio >= 1 {
		ratio = DefaultTrainRatio
	}
	n := series.Len()
	if n < MinObservations {
		return nil, nil, fmt.Errorf("%w: %d observations, need %d", ErrEvaluationSkipped, n, MinObservations)
	}

	testSize := int(math.Round(float64(n) * (1 - ratio)))
	cut := n - testSize
	if testSize <= 0 || cut <= 0 {
		return nil, nil, fmt.Errorf("%w: split of %d observations leaves an empty side", ErrEvaluationSkipped, n)
	}
	return series.Slice(0, cut), series.Slice(cut, n), nil
}

// Metrics holds the accuracy of one model on one test split.
type Metrics struct {
	MAE   float64 `json:"mae"`
	RMSE  float64 `json:"rmse"`
	MAPE  float64 `json:"mape"`  // percent, zero actuals skipped
	R2    float64 `json:"r2"`    // coefficient of determination
	MASE  float64 `json:"mase"`  // scaled by the in-sample one-step naive MAE
	SMAPE float64 `json:"smape"` // percent
	AIC   float64 `json:"aic"`
}

// Evaluate forecasts len(test) steps from a model fitted on train and scores
// the forecast against test.
func Evaluate(fitted forecast.Fitted, train, test *timeseries.Series) (Metrics, error) {
	if test.Len() == 0 {
		return Metrics{}, ErrEvaluationSkipped
	}
	table, err := fitted.Forecast(test.Len())
	if err != nil {
		return Metrics{}, err
	}
	if !table.Finite() {
		return Metrics{}, forecast.NewFitError(fitted.Name(), forecast.ErrNonFinite)
	}
	m := Score(test.Values, table.Values(), train.Values)
	m.AIC = fitted.AIC()
	return m.Sanitize(), nil
}

// Score computes the error metrics of predicted against actual. history is
// the training data used to scale MASE.
func Score(actual, predicted, history []float64) Metrics {
	n := min(len(actual), len(predicted))
	if n == 0 {
		return Metrics{}
	}
	actual, predicted = actual[:n], predicted[:n]

	var m Metrics
	sumAbs, sumSq := 0.0, 0.0
	sumPct, nPct := 0.0, 0
	sumSym := 0.0
	for i := range actual {
		e := actual[i] - predicted[i]
		sumAbs += math.Abs(e)
		sumSq += e * e
		if actual[i] != 0 {
			sumPct += math.Abs(e / actual[i])
			nPct++
		}
		if denom := math.Abs(actual[i]) + math.Abs(predicted[i]); denom != 0 {
			sumSym += 2 * math.Abs(e) / denom
		}
	}

	m.MAE = sumAbs / float64(n)
	m.RMSE = math.Sqrt(sumSq / float64(n))
	if nPct > 0 {
		m.MAPE = 100 * sumPct / float64(nPct)
	}
	m.SMAPE = 100 * sumSym / float64(n)

	mean := stat.Mean(actual, nil)
	ssTot := 0.0
	for _, v := range actual {
		ssTot += (v - mean) * (v - mean)
	}
	switch {
	case ssTot > 0:
		m.R2 = 1 - sumSq/ssTot
	case sumSq == 0:
		m.R2 = 1
	}

	if scale := naiveMAE(history); scale > 0 {
		m.MASE = m.MAE / scale
	}
	return m
}

// naiveMAE is the mean absolute one-step change of the series.
func naiveMAE(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < len(values); i++ {
		sum += math.Abs(values[i] - values[i-1])
	}
	return sum / float64(len(values)-1)
}

// Sanitize replaces non-finite values, which JSON cannot carry, with zero.
func (m Metrics) Sanitize() Metrics {
	for _, p := range []*float64{&m.MAE, &m.RMSE, &m.MAPE, &m.R2, &m.MASE, &m.SMAPE, &m.AIC} {
		if math.IsNaN(*p) || math.IsInf(*p, 0) {
			*p = 0
		}
	}
	return m
}

// Ranked is one entry of a comparison, best first.
type Ranked struct {
	Model   string  `json:"model"`
	Metrics Metrics `json:"metrics"`
}

// Compare ranks models by MAE, then RMSE, then MAPE. Remaining ties are
// broken by model name so the order is deterministic.
func Compare(results map[string]Metrics) []Ranked {
	out := make([]Ranked, 0, len(results))
	for name, m := range results {
		out = append(out, Ranked{Model: name, Metrics: m})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Metrics, out[j].Metrics
		switch {
		case a.MAE != b.MAE:
			return a.MAE < b.MAE
		case a.RMSE != b.RMSE:
			return a.RMSE < b.RMSE
		case a.MAPE != b.MAPE:
			return a.MAPE < b.MAPE
		}
		return out[i].Model < out[j].Model
	})
	return out
}
