package dto

// Basis records where a metric value came from.
type Basis string

const (
	BasisMissing   Basis = ""
	BasisMeasured  Basis = "measured"
	BasisEstimated Basis = "estimated"
)

// Metric is a single financial figure tagged with its basis.
// The zero value is a missing metric.
type Metric struct {
	Value float64 `json:"value"`
	Basis Basis   `json:"basis,omitempty"`
}

func Measured(v float64) Metric {
	return Metric{Value: v, Basis: BasisMeasured}
}

func Estimated(v float64) Metric {
	return Metric{Value: v, Basis: BasisEstimated}
}

func (m Metric) Present() bool {
	return m.Basis != BasisMissing
}

func (m Metric) IsMeasured() bool {
	return m.Basis == BasisMeasured
}

func (m Metric) IsEstimated() bool {
	return m.Basis == BasisEstimated
}

// Ptr returns the value as a pointer, nil when missing.
func (m Metric) Ptr() *float64 {
	if !m.Present() {
		return nil
	}
	v := m.Value
	return &v
}

// Or returns m when present, otherwise fallback.
func (m Metric) Or(fallback Metric) Metric {
	if m.Present() {
		return m
	}
	return fallback
}
