package session

// Confidence carries the backend's aggregate score for a run, on a 0-100
// scale.
type Confidence struct {
	Overall float64 `json:"overall"`
}

// ModelArtifact is one structural artifact produced by a simulation run.
type ModelArtifact struct {
	Name    string `json:"name"`
	Format  string `json:"format"`
	Content string `json:"content"`
}

// Finding is a single observation recorded in the manifesto. Evidence is
// optional.
type Finding struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Evidence    string `json:"evidence,omitempty"`
}

// Manifesto is the human-readable audit record of a completed run. It lives
// and dies with the Session that produced it.
type Manifesto struct {
	SessionID          string    `json:"sessionId"`
	Timestamp          string    `json:"timestamp"`
	Participants       []string  `json:"participants"`
	ScientificQuestion string    `json:"scientificQuestion"`
	Methodology        []string  `json:"methodology"`
	Findings           []Finding `json:"findings"`
	Conclusions        []string  `json:"conclusions"`
	DigitalSignature   string    `json:"digitalSignature"`
	AuditTrail         []string  `json:"auditTrail"`
}

// Session is the normalized client-side representation of one completed
// simulation run. A new response replaces the previous Session wholesale;
// nothing is ever merged in. Backend timestamps are kept verbatim.
type Session struct {
	SessionID            string          `json:"sessionId"`
	StartedAt            string          `json:"startedAt"`
	StructureHash        string          `json:"structureHash"`
	Confidence           Confidence      `json:"confidence"`
	PerResidueConfidence []float64       `json:"perResidueConfidence"`
	AuditTrail           []string        `json:"auditTrail"`
	Models               []ModelArtifact `json:"models"`
	Manifesto            *Manifesto      `json:"manifesto,omitempty"`
}
