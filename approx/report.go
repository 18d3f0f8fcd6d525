package approx

import (
	"encoding/hex"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/tuneinsight/critpoint/basis"
	"github.com/tuneinsight/critpoint/utils"
)

// Report is the serializable summary of a [Polynomial].
type Report struct {
	SampleRange     [][2]float64  `json:"sample_range"`
	L2Norm          float64       `json:"L2_norm"`
	Dimension       int           `json:"dimension"`
	Degree          int           `json:"degree"`
	ConditionNumber float64       `json:"condition_number"`
	SamplesPerDim   int           `json:"samples_per_dim"`
	Basis           basis.Kind    `json:"basis"`
	Center          []float64     `json:"center"`
	ScaleFactor     ScaleFactor   `json:"scale_factor"`
	Precision       Precision     `json:"precision"`
	Samples         int           `json:"samples"`
	Terms           int           `json:"terms"`
	Status          Status        `json:"status"`
	Solver          string        `json:"solver"`
	Residuals       ResidualStats `json:"residuals"`
	Fingerprint     string        `json:"fingerprint"`
	Iterations      []Iteration   `json:"iterations"`
}

// ResidualStats summarizes the absolute pointwise residuals |p(x_i) - f(x_i)| of a fit.
type ResidualStats struct {
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	P95    float64 `json:"p95"`
}

// NewResidualStats computes the [ResidualStats] of the given residuals.
func NewResidualStats(residuals []float64) (rs ResidualStats) {

	if len(residuals) == 0 {
		return
	}

	data := make(stats.Float64Data, len(residuals))
	for i := range residuals {
		data[i] = math.Abs(residuals[i])
	}

	rs.Max, _ = stats.Max(data)
	rs.Mean, _ = stats.Mean(data)
	rs.Median, _ = stats.Median(data)
	rs.StdDev, _ = stats.StandardDeviation(data)
	rs.P95, _ = stats.Percentile(data, 95)

	return
}

// Report returns the serializable summary of the receiver.
func (p *Polynomial) Report() Report {

	fp := p.Fingerprint()

	sampleRange := make([][2]float64, len(p.sampleRange))
	copy(sampleRange, p.sampleRange)

	return Report{
		SampleRange:     sampleRange,
		L2Norm:          p.l2Norm,
		Dimension:       p.Dim(),
		Degree:          p.degree.Degree(),
		ConditionNumber: finite(p.cond),
		SamplesPerDim:   p.samplesPerDim,
		Basis:           p.basis,
		Center:          utils.CopySlice(p.center),
		ScaleFactor:     p.scale,
		Precision:       p.precision,
		Samples:         p.samples,
		Terms:           p.support.Len(),
		Status:          p.status,
		Solver:          p.method.String(),
		Residuals:       NewResidualStats(p.residuals),
		Fingerprint:     hex.EncodeToString(fp[:]),
		Iterations:      p.History(),
	}
}
