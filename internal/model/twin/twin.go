package twin

// Sides of the digital twin.
const (
	SidePhysical = "physical"
	SideDigital  = "digital"
)

// Severities reported by the backend, ascending. Casing is not guaranteed
// upstream, so comparisons must be case-insensitive.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Observation is one measurement event for a span/cycle on one side of the
// twin.
type Observation struct {
	SpanID      string             `json:"span_id"`
	Side        string             `json:"side"`
	CycleID     string             `json:"cycle_id"`
	Metrics     map[string]float64 `json:"metrics"`
	RecordedAt  string             `json:"recorded_at"`
	ExecutionID string             `json:"execution_id,omitempty"`
}

// Divergence is a backend-reported mismatch between the physical and
// digital observation of the same span/cycle/metric. It may reference spans
// that are absent from the currently loaded observation set.
type Divergence struct {
	SpanID        string  `json:"span_id"`
	CycleID       string  `json:"cycle_id"`
	Metric        string  `json:"metric"`
	Severity      string  `json:"severity"`
	AbsoluteDelta float64 `json:"absolute_delta"`
	PercentDelta  float64 `json:"percent_delta"`
	DetectedAt    string  `json:"detected_at"`
	PhysicalSpan  string  `json:"physical_span,omitempty"`
	DigitalSpan   string  `json:"digital_span,omitempty"`
	ExecutionID   string  `json:"execution_id,omitempty"`
}
