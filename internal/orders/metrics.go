package orders

// Metrics receives domain counters. A nil Metrics is allowed everywhere.
type Metrics interface {
	OrderCreated(currency Currency)
	StatusChanged(from, to Status)
}

type noopMetrics struct{}

func (noopMetrics) OrderCreated(Currency)         {}
func (noopMetrics) StatusChanged(from, to Status) {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
