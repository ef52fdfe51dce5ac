package metrics

// metricsFake is a no-op implementation of Metrics
type metricsFake struct{}

// Ensure metricsFake implements Metrics
var _ Metrics = (*metricsFake)(nil)

// NewMetricsFake creates an instance of the no-op reporter
func NewMetricsFake() Metrics {
	return &metricsFake{}
}

// LogEvent is a no-op method for the fake reporter
func (metrics *metricsFake) LogEvent(_ string, _ map[string]string, _ map[string]interface{}) {
	// No operation, this is a fake reporter
}

// ForwardEvent is a no-op method for the fake reporter
func (metrics *metricsFake) ForwardEvent(_ string, _ int64, _ map[string]interface{}) {
	// No operation, this is a fake reporter
}

// Close is a no-op method for the fake reporter
func (metrics *metricsFake) Close() {
	// No operation, this is a fake reporter
}
