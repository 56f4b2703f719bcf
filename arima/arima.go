// Package arima implements ARIMA (AutoRegressive Integrated Moving Average) models.
package arima

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goforecast/stats"
	"github.com/sartorproj/goforecast/timeseries"
)

// MinVariance floors the innovation variance so that perfect fits keep a
// finite likelihood.
const MinVariance = 1e-10

// DiagnosticLags is the number of lags used by the residual Ljung-Box test.
const DiagnosticLags = 10

// coeffBound keeps every AR and MA coefficient inside (-coeffBound, coeffBound).
const coeffBound = 0.99

// infeasible is returned by the objective for explosive parameterisations.
const infeasible = 1e300

var (
	// ErrNotFitted is returned when a model is used before Fit.
	ErrNotFitted = errors.New("model must be fitted before prediction")
	// ErrInsufficientData is returned when the series is too short for the order.
	ErrInsufficientData = errors.New("insufficient data points for the specified order")
	// ErrNonFinite is returned when estimation produces NaN or Inf.
	ErrNonFinite = errors.New("estimation produced non-finite values")
)

// Order represents ARIMA model order (p, d, q).
type Order struct {
	P int // AR order (number of autoregressive terms)
	D int // Differencing order
	Q int // MA order (number of moving average terms)
}

func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// Model represents an ARIMA model.
type Model struct {
	Order     Order
	ARCoeffs  []float64 // AR coefficients (phi)
	MACoeffs  []float64 // MA coefficients (theta)
	Intercept float64
	Variance  float64 // Residual variance
	AIC       float64
	AICc      float64 // Corrected AIC for small sample sizes
	BIC       float64
	LogLik    float64

	fitted     bool
	data       *timeseries.Series
	diffData   *timeseries.Series
	lastLevels []float64 // last value of the series at each differencing level
	residuals  []float64
	fittedVals []float64
	nCond      int // residuals used by the conditional likelihood
}

// New creates a new ARIMA model with the specified order.
func New(p, d, q int) *Model {
	return &Model{
		Order:    Order{P: p, D: d, Q: q},
		ARCoeffs: make([]float64, p),
		MACoeffs: make([]float64, q),
	}
}

// MinObservations is the shortest series Fit accepts for the order.
func (o Order) MinObservations() int {
	return o.P + o.D + o.Q + 10
}

// Fit fits the ARIMA model to the given time series data.
func (m *Model) Fit(series *timeseries.Series) error {
	if m.Order.P < 0 || m.Order.D < 0 || m.Order.Q < 0 {
		return fmt.Errorf("invalid order %s", m.Order)
	}
	if series.Len() < m.Order.MinObservations() {
		return ErrInsufficientData
	}

	m.fitted = false
	m.data = series
	m.lastLevels = make([]float64, m.Order.D)

	diffSeries := series
	for i := 0; i < m.Order.D; i++ {
		m.lastLevels[i] = diffSeries.Last()
		diffSeries = diffSeries.Diff()
		if diffSeries.Len() == 0 {
			return errors.New("differencing resulted in empty series")
		}
	}
	m.diffData = diffSeries

	if err := m.fitCSS(); err != nil {
		return err
	}

	m.calculateIC()
	if math.IsNaN(m.AIC) || math.IsInf(m.AIC, 0) {
		return ErrNonFinite
	}

	m.fitted = true
	return nil
}

// fitCSS fits the model using Conditional Sum of Squares estimation.
// The intercept is the mean of the differenced series; AR and MA
// coefficients start from Yule-Walker estimates and are refined with
// Nelder-Mead.
func (m *Model) fitCSS() error {
	y := m.diffData.Values
	p := m.Order.P
	q := m.Order.Q

	m.Intercept = stat.Mean(y, nil)
	m.ARCoeffs = make([]float64, p)
	m.MACoeffs = make([]float64, q)

	if p > 0 {
		if acf := stats.ACF(m.diffData, p); acf != nil {
			if phi := yuleWalker(acf, p); phi != nil {
				copy(m.ARCoeffs, phi)
			}
		}
		if !arStationary(m.ARCoeffs) {
			m.ARCoeffs = make([]float64, p)
		}
	}
	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}

	if p+q > 0 {
		if err := m.optimizeCSS(y); err != nil {
			return err
		}
	}

	sse := m.computeResiduals(y)
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return ErrNonFinite
	}

	dof := m.nCond - p - q - 1
	if dof > 0 {
		m.Variance = sse / float64(dof)
	} else {
		m.Variance = sse / float64(m.nCond)
	}
	m.Variance = math.Max(m.Variance, MinVariance)
	return nil
}

// optimizeCSS minimises the conditional sum of squares over the AR and MA
// coefficients. Coefficients are searched through a tanh transform so every
// candidate stays inside the coefficient bounds.
func (m *Model) optimizeCSS(y []float64) error {
	p := m.Order.P

	x0 := make([]float64, 0, p+m.Order.Q)
	for _, c := range m.ARCoeffs {
		x0 = append(x0, toUnbounded(c))
	}
	for _, c := range m.MACoeffs {
		x0 = append(x0, toUnbounded(c))
	}

	ar := make([]float64, p)
	ma := make([]float64, m.Order.Q)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			for i := range ar {
				ar[i] = toBounded(x[i])
			}
			for i := range ma {
				ma[i] = toBounded(x[p+i])
			}
			if !arStationary(ar) {
				return infeasible
			}
			sse, _ := cssResiduals(y, m.Intercept, ar, ma, nil)
			if math.IsNaN(sse) || math.IsInf(sse, 0) {
				return infeasible
			}
			return sse
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: 2000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 50,
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return fmt.Errorf("css optimisation: %w", err)
	}
	if result.F >= infeasible || math.IsNaN(result.F) {
		return ErrNonFinite
	}

	for i := range m.ARCoeffs {
		m.ARCoeffs[i] = toBounded(result.X[i])
	}
	for i := range m.MACoeffs {
		m.MACoeffs[i] = toBounded(result.X[p+i])
	}
	return nil
}

// computeResiduals stores residuals and fitted values for the current
// coefficients and returns the conditional sum of squares.
func (m *Model) computeResiduals(y []float64) float64 {
	n := len(y)
	m.residuals = make([]float64, n)
	m.fittedVals = make([]float64, n)

	sse, start := cssResiduals(y, m.Intercept, m.ARCoeffs, m.MACoeffs, m.residuals)
	for t := 0; t < n; t++ {
		if t < start {
			m.residuals[t] = y[t] - m.Intercept
			m.fittedVals[t] = m.Intercept
			continue
		}
		m.fittedVals[t] = y[t] - m.residuals[t]
	}
	m.nCond = n - start
	return sse
}

// cssResiduals runs the ARMA recursion over y. Residuals before the first
// conditioned observation are zero. When out is non-nil it receives the
// residuals.
func cssResiduals(y []float64, mu float64, ar, ma, out []float64) (sse float64, start int) {
	n := len(y)
	residuals := out
	if residuals == nil {
		residuals = make([]float64, n)
	}
	start = max(len(ar), len(ma))

	for t := start; t < n; t++ {
		pred := mu
		for i, phi := range ar {
			pred += phi * (y[t-i-1] - mu)
		}
		for i, theta := range ma {
			pred += theta * residuals[t-i-1]
		}
		residuals[t] = y[t] - pred
		sse += residuals[t] * residuals[t]
	}
	return sse, start
}

func toBounded(x float64) float64 {
	return coeffBound * math.Tanh(x)
}

func toUnbounded(c float64) float64 {
	r := math.Max(-0.95, math.Min(0.95, c/coeffBound))
	return math.Atanh(r)
}

// arStationary reports whether every root of the AR polynomial lies outside
// the unit circle, using the eigenvalues of its companion matrix.
func arStationary(ar []float64) bool {
	p := len(ar)
	switch p {
	case 0:
		return true
	case 1:
		return math.Abs(ar[0]) < 1
	}

	companion := mat.NewDense(p, p, nil)
	for j, phi := range ar {
		companion.Set(0, j, phi)
	}
	for i := 1; i < p; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if !eig.Factorize(companion, mat.EigenNone) {
		return false
	}
	for _, v := range eig.Values(nil) {
		if cmplx.Abs(v) >= 1 {
			return false
		}
	}
	return true
}

// calculateIC calculates AIC, AICc, and BIC from the conditional likelihood.
func (m *Model) calculateIC() {
	k := m.Order.P + m.Order.Q + 1 // AR + MA + intercept

	sse := 0.0
	for _, r := range m.residuals[len(m.residuals)-m.nCond:] {
		sse += r * r
	}
	sigma2 := math.Max(sse/float64(m.nCond), MinVariance)
	ic := stats.CalculateIC(stats.GaussianLogLik(sse, sigma2, m.nCond), m.nCond, k)

	m.LogLik = ic.LogLik
	m.AIC = ic.AIC
	m.AICc = ic.AICc
	m.BIC = ic.BIC
}

// Predict generates forecasts for the specified number of steps ahead.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	p := m.Order.P
	q := m.Order.Q
	y := m.diffData.Values
	n := len(y)

	extY := make([]float64, n+steps)
	copy(extY, y)
	extResiduals := make([]float64, n+steps)
	copy(extResiduals, m.residuals)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := m.Intercept
		for i := 0; i < p && t-i-1 >= 0; i++ {
			pred += m.ARCoeffs[i] * (extY[t-i-1] - m.Intercept)
		}
		// Future innovations have expectation zero.
		for i := 0; i < q && t-i-1 >= 0 && t-i-1 < n; i++ {
			pred += m.MACoeffs[i] * extResiduals[t-i-1]
		}
		extY[t] = pred
	}

	return m.integrate(extY[n:]), nil
}

// PredictInterval returns point forecasts with symmetric bounds at z standard
// errors. Standard errors come from the psi-weights of the integrated model.
func (m *Model) PredictInterval(steps int, z float64) (point, lower, upper []float64, err error) {
	point, err = m.Predict(steps)
	if err != nil {
		return nil, nil, nil, err
	}

	psi := m.PsiWeights(steps)
	lower = make([]float64, steps)
	upper = make([]float64, steps)
	cum := 0.0
	for h := 0; h < steps; h++ {
		cum += psi[h] * psi[h]
		se := math.Sqrt(m.Variance * cum)
		lower[h] = point[h] - z*se
		upper[h] = point[h] + z*se
	}
	return point, lower, upper, nil
}

// PsiWeights returns the first n moving-average weights of the model written
// as an infinite MA in the original (undifferenced) series.
func (m *Model) PsiWeights(n int) []float64 {
	phi := m.integratedAR()
	psi := make([]float64, n)
	if n == 0 {
		return psi
	}
	psi[0] = 1
	for j := 1; j < n; j++ {
		v := 0.0
		if j <= len(m.MACoeffs) {
			v = m.MACoeffs[j-1]
		}
		for i := 1; i <= len(phi) && i <= j; i++ {
			v += phi[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

// integratedAR expands phi(B)(1-B)^d into the AR coefficients of the
// undifferenced model.
func (m *Model) integratedAR() []float64 {
	// poly holds 1 - a1 B - a2 B^2 ... as coefficients of B^0..B^k.
	poly := make([]float64, len(m.ARCoeffs)+1)
	poly[0] = 1
	for i, c := range m.ARCoeffs {
		poly[i+1] = -c
	}
	for i := 0; i < m.Order.D; i++ {
		next := make([]float64, len(poly)+1)
		for j, c := range poly {
			next[j] += c
			next[j+1] -= c
		}
		poly = next
	}

	phi := make([]float64, len(poly)-1)
	for i := range phi {
		phi[i] = -poly[i+1]
	}
	return phi
}

// integrate undoes differencing to return forecasts on original scale.
func (m *Model) integrate(forecasts []float64) []float64 {
	result := make([]float64, len(forecasts))
	copy(result, forecasts)

	for level := m.Order.D - 1; level >= 0; level-- {
		prev := m.lastLevels[level]
		for j := range result {
			result[j] += prev
			prev = result[j]
		}
	}
	return result
}

// Residuals returns the model residuals.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.residuals))
	copy(result, m.residuals)
	return result
}

// FittedValues returns the fitted values on the differenced scale.
func (m *Model) FittedValues() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.fittedVals))
	copy(result, m.fittedVals)
	return result
}

// Summary returns a summary of the fitted model.
type Summary struct {
	Order     Order
	ARCoeffs  []float64
	MACoeffs  []float64
	Intercept float64
	Variance  float64
	AIC       float64
	AICc      float64 // Corrected AIC
	BIC       float64
	LogLik    float64
	NObs      int
	LjungBox  *stats.LjungBoxResult // nil when the test could not run
	// ResidualsUncorrelated is true when Ljung-Box finds no remaining
	// autocorrelation at the 5% level.
	ResidualsUncorrelated bool
}

// Summary returns a summary of the fitted model.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}

	s := &Summary{
		Order:     m.Order,
		ARCoeffs:  append([]float64(nil), m.ARCoeffs...),
		MACoeffs:  append([]float64(nil), m.MACoeffs...),
		Intercept: m.Intercept,
		Variance:  m.Variance,
		AIC:       m.AIC,
		AICc:      m.AICc,
		BIC:       m.BIC,
		LogLik:    m.LogLik,
		NObs:      m.data.Len(),
	}

	residSeries := timeseries.New(m.residuals[len(m.residuals)-m.nCond:])
	if lb, err := stats.LjungBox(residSeries, DiagnosticLags, m.Order.P+m.Order.Q); err == nil {
		s.LjungBox = lb
		s.ResidualsUncorrelated = lb.NoAutocorrelation(stats.DefaultAlpha)
	} else {
		// Constant residuals carry no autocorrelation.
		s.ResidualsUncorrelated = residSeries.Len() >= 10 && residSeries.Variance() == 0
	}
	return s
}

// yuleWalker estimates AR coefficients using Yule-Walker equations,
// solved with the Levinson-Durbin recursion.
func yuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	phi := make([]float64, order)
	phi[0] = acf[1]
	if order == 1 {
		return phi
	}

	v := 1 - phi[0]*phi[0]
	for i := 1; i < order; i++ {
		if v <= 0 {
			break
		}
		lambda := acf[i+1]
		for j := 0; j < i; j++ {
			lambda -= phi[j] * acf[i-j]
		}
		lambda /= v

		newPhi := make([]float64, i+1)
		for j := 0; j < i; j++ {
			newPhi[j] = phi[j] - lambda*phi[i-1-j]
		}
		newPhi[i] = lambda
		copy(phi, newPhi)

		v *= 1 - lambda*lambda
	}

	return phi
}
