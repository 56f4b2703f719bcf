package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sartorproj/goforecast/timeseries"
)

// DefaultAlpha is the significance level used when none is given.
const DefaultAlpha = 0.05

// minTestObservations is the smallest series either unit-root test accepts.
const minTestObservations = 10

// ErrSingularRegression is returned when the test regression has no unique
// solution, which happens for constant or perfectly linear series.
var ErrSingularRegression = errors.New("singular test regression")

// ADFResult represents the result of an Augmented Dickey-Fuller test.
type ADFResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	NObs         int
	CriticalVals map[string]float64 // Critical values at 1%, 5%, 10%
	IsStationary bool
}

// ADF performs the Augmented Dickey-Fuller test for unit root.
// The null hypothesis is that the series has a unit root (is non-stationary).
// If p-value < 0.05, we reject the null and conclude the series is stationary.
func ADF(series *timeseries.Series, maxLag int) (*ADFResult, error) {
	n := series.Len()
	if n < minTestObservations {
		return nil, fmt.Errorf("adf needs at least %d observations, got %d", minTestObservations, n)
	}

	// Default lag selection: floor((n-1)^(1/3))
	if maxLag <= 0 {
		maxLag = int(math.Floor(math.Pow(float64(n-1), 1.0/3.0)))
	}
	if maxLag >= n-1 {
		maxLag = n - 2
	}

	diff := series.Diff()

	// delta_y_t = alpha + beta*y_{t-1} + sum(gamma_i * delta_y_{t-i}) + epsilon
	nObs := n - maxLag - 1
	if nObs < minTestObservations {
		return nil, fmt.Errorf("adf has %d usable observations after %d lags", nObs, maxLag)
	}

	k := 2 + maxLag
	y := make([]float64, nObs)
	x := mat.NewDense(nObs, k, nil)

	for i := 0; i < nObs; i++ {
		t := i + maxLag
		y[i] = diff.Values[t]

		x.Set(i, 0, 1)
		x.Set(i, 1, series.Values[t])
		for j := 1; j <= maxLag; j++ {
			x.Set(i, 1+j, diff.Values[t-j])
		}
	}

	coeffs, se, err := olsRegression(x, y)
	if err != nil {
		return nil, err
	}
	if se[1] == 0 {
		return nil, ErrSingularRegression
	}

	tStat := coeffs[1] / se[1]
	pValue := mackinnonPValue(tStat)

	return &ADFResult{
		Statistic: tStat,
		PValue:    pValue,
		Lags:      maxLag,
		NObs:      nObs,
		CriticalVals: map[string]float64{
			"1%":  -3.43,
			"5%":  -2.86,
			"10%": -2.57,
		},
		IsStationary: pValue < DefaultAlpha,
	}, nil
}

// KPSSResult represents the result of a KPSS test.
type KPSSResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	CriticalVals map[string]float64
	IsStationary bool
}

// KPSS performs the Kwiatkowski-Phillips-Schmidt-Shin test for stationarity.
// The null hypothesis is that the series is stationary around a level ("c")
// or a linear trend ("ct").
// If p-value < 0.05, we reject the null and conclude the series is non-stationary.
func KPSS(series *timeseries.Series, regression string, nlags int) (*KPSSResult, error) {
	n := series.Len()
	if n < minTestObservations {
		return nil, fmt.Errorf("kpss needs at least %d observations, got %d", minTestObservations, n)
	}

	if nlags <= 0 {
		nlags = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	if nlags >= n {
		nlags = n - 1
	}

	residuals := make([]float64, n)
	if regression == "ct" {
		sumT, sumY, sumTY, sumT2 := 0.0, 0.0, 0.0, 0.0
		for i, v := range series.Values {
			t := float64(i)
			sumT += t
			sumY += v
			sumTY += t * v
			sumT2 += t * t
		}
		nf := float64(n)
		b := (nf*sumTY - sumT*sumY) / (nf*sumT2 - sumT*sumT)
		a := (sumY - b*sumT) / nf

		for i, v := range series.Values {
			residuals[i] = v - a - b*float64(i)
		}
	} else {
		mean := series.Mean()
		for i, v := range series.Values {
			residuals[i] = v - mean
		}
	}

	// Newey-West long-run variance with Bartlett weights
	s2 := 0.0
	for _, r := range residuals {
		s2 += r * r
	}
	s2 /= float64(n)
	if s2 == 0 {
		return nil, errors.New("kpss undefined for a constant series")
	}

	for l := 1; l <= nlags; l++ {
		cov := 0.0
		for i := l; i < n; i++ {
			cov += residuals[i] * residuals[i-l]
		}
		cov /= float64(n)
		weight := 1.0 - float64(l)/float64(nlags+1)
		s2 += 2 * weight * cov
	}
	if s2 <= 0 {
		s2 = 1e-10
	}

	cumSum := 0.0
	etaSq := 0.0
	for _, r := range residuals {
		cumSum += r
		etaSq += cumSum * cumSum
	}
	kpssStat := etaSq / (float64(n) * float64(n) * s2)

	var criticalVals map[string]float64
	if regression == "ct" {
		criticalVals = map[string]float64{"10%": 0.119, "5%": 0.146, "1%": 0.216}
	} else {
		criticalVals = map[string]float64{"10%": 0.347, "5%": 0.463, "1%": 0.739}
	}

	pValue := kpssPValue(kpssStat, regression)

	return &KPSSResult{
		Statistic:    kpssStat,
		PValue:       pValue,
		Lags:         nlags,
		CriticalVals: criticalVals,
		IsStationary: pValue > DefaultAlpha,
	}, nil
}

// TestOutcome is the verdict of one test at the requested significance level.
type TestOutcome struct {
	Statistic    float64 `json:"statistic"`
	PValue       float64 `json:"p_value"`
	IsStationary bool    `json:"is_stationary"`
	Error        string  `json:"error,omitempty"`
}

// StationarityResult combines ADF and KPSS. Overall stationarity requires
// ADF to reject a unit root and KPSS to keep its stationary null.
type StationarityResult struct {
	ADF          TestOutcome `json:"adf"`
	KPSS         TestOutcome `json:"kpss"`
	IsStationary bool        `json:"is_stationary"`
}

// Err returns the first recorded test failure, if any.
func (r StationarityResult) Err() error {
	switch {
	case r.ADF.Error != "":
		return fmt.Errorf("adf: %s", r.ADF.Error)
	case r.KPSS.Error != "":
		return fmt.Errorf("kpss: %s", r.KPSS.Error)
	}
	return nil
}

// TestStationarity runs ADF and KPSS at significance level alpha. A test that
// cannot run is recorded in the result and counts as non-stationary.
func TestStationarity(series *timeseries.Series, alpha float64) StationarityResult {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	series = series.DropLeadingNaN()

	var res StationarityResult

	if adf, err := ADF(series, 0); err != nil {
		res.ADF.Error = err.Error()
	} else {
		res.ADF = TestOutcome{
			Statistic:    adf.Statistic,
			PValue:       adf.PValue,
			IsStationary: adf.PValue < alpha,
		}
	}

	if kpss, err := KPSS(series, "c", 0); err != nil {
		res.KPSS.Error = err.Error()
	} else {
		res.KPSS = TestOutcome{
			Statistic:    kpss.Statistic,
			PValue:       kpss.PValue,
			IsStationary: kpss.PValue > alpha,
		}
	}

	res.IsStationary = res.ADF.IsStationary && res.KPSS.IsStationary
	return res
}

// olsRegression performs ordinary least squares regression.
// Returns coefficients and their standard errors.
func olsRegression(x *mat.Dense, y []float64) (coeffs, stdErrors []float64, err error) {
	n, k := x.Dims()
	if n == 0 || len(y) != n {
		return nil, nil, errors.New("regression dimensions mismatch")
	}
	if n <= k {
		return nil, nil, fmt.Errorf("regression needs more than %d observations", k)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)

	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, nil, ErrSingularRegression
	}

	yVec := mat.NewVecDense(n, y)
	var xty, beta mat.VecDense
	xty.MulVec(x.T(), yVec)
	beta.MulVec(&xtxInv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	sse := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		sse += r * r
	}

	s2 := sse / float64(n-k)
	coeffs = make([]float64, k)
	stdErrors = make([]float64, k)
	for i := 0; i < k; i++ {
		coeffs[i] = beta.AtVec(i)
		stdErrors[i] = math.Sqrt(s2 * xtxInv.At(i, i))
	}

	return coeffs, stdErrors, nil
}

// adfQuantiles are asymptotic quantiles of the Dickey-Fuller statistic for
// the constant-only regression (MacKinnon 1994, Fuller 1976), by increasing
// statistic.
var adfQuantiles = []struct{ stat, p float64 }{
	{-3.96, 0.001},
	{-3.43, 0.01},
	{-3.12, 0.025},
	{-2.86, 0.05},
	{-2.57, 0.10},
	{-1.57, 0.50},
	{-0.44, 0.90},
	{-0.07, 0.95},
	{0.23, 0.975},
	{0.60, 0.99},
}

// mackinnonPValue approximates the ADF p-value for the constant-only
// regression by linear interpolation between adfQuantiles.
func mackinnonPValue(stat float64) float64 {
	first, last := adfQuantiles[0], adfQuantiles[len(adfQuantiles)-1]
	switch {
	case math.IsNaN(stat):
		return 1
	case stat <= first.stat:
		return first.p
	case stat >= last.stat:
		return last.p
	}
	for i := 1; i < len(adfQuantiles); i++ {
		hi := adfQuantiles[i]
		if stat > hi.stat {
			continue
		}
		lo := adfQuantiles[i-1]
		return lo.p + (stat-lo.stat)/(hi.stat-lo.stat)*(hi.p-lo.p)
	}
	return last.p
}

// kpssPValue approximates p-value for KPSS test.
func kpssPValue(stat float64, regression string) float64 {
	if regression == "ct" {
		switch {
		case stat > 0.216:
			return 0.01
		case stat > 0.146:
			return 0.05
		case stat > 0.119:
			return 0.10
		default:
			return 0.10 + (0.119-stat)*2
		}
	}

	switch {
	case stat > 0.739:
		return 0.01
	case stat > 0.463:
		return 0.05
	case stat > 0.347:
		return 0.10
	default:
		return 0.10 + (0.347-stat)*0.5
	}
}
