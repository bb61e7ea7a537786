package session

import (
	"encoding/json"
	"fmt"

	"github.com/danvoulez/lablab/internal/api"
)

// simulateProteinResponse mirrors the Director API payload for
// POST /api/simulate_protein. Unknown extra fields are ignored.
type simulateProteinResponse struct {
	SessionID     string           `json:"session_id"`
	PDB           string           `json:"pdb"`
	PLDDT         []float64        `json:"plddt"`
	Confidence    Confidence       `json:"confidence"`
	StructureHash string           `json:"structure_hash"`
	AuditTrail    []string         `json:"audit_trail"`
	Manifest      *manifestPayload `json:"manifest"`
	StartedAt     string           `json:"started_at"`
}

type manifestPayload struct {
	SessionID          string           `json:"session_id"`
	Timestamp          string           `json:"timestamp"`
	Participants       []string         `json:"participants"`
	ScientificQuestion string           `json:"scientific_question"`
	Methodology        []string         `json:"methodology"`
	Findings           []findingPayload `json:"findings"`
	Conclusions        []string         `json:"conclusions"`
	DigitalSignature   string           `json:"digital_signature"`
	AuditTrail         []string         `json:"audit_trail"`
}

type findingPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
}

// Normalize converts a raw simulation response into a Session. It is pure
// and all-or-nothing: either every backend field lands in its one
// destination field, or the malformed kind is returned. A missing manifest
// is tolerated and surfaces as an absent Manifesto.
func Normalize(raw json.RawMessage) (Session, error) {
	var payload simulateProteinResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Session{}, &api.Error{Kind: api.KindMalformed, Message: "simulation response did not match the documented schema", Cause: err}
	}

	if payload.SessionID == "" {
		return Session{}, &api.Error{Kind: api.KindMalformed, Message: "simulation response is missing session_id"}
	}
	if payload.Confidence.Overall < 0 || payload.Confidence.Overall > 100 {
		return Session{}, &api.Error{Kind: api.KindMalformed, Message: fmt.Sprintf("overall confidence %v is outside [0,100]", payload.Confidence.Overall)}
	}

	result := Session{
		SessionID:            payload.SessionID,
		StartedAt:            payload.StartedAt,
		StructureHash:        payload.StructureHash,
		Confidence:           payload.Confidence,
		PerResidueConfidence: payload.PLDDT,
		AuditTrail:           payload.AuditTrail,
		Models: []ModelArtifact{
			{Name: "Model-1", Format: "pdb", Content: payload.PDB},
		},
	}

	if payload.Manifest != nil {
		manifesto := Manifesto{
			SessionID:          payload.Manifest.SessionID,
			Timestamp:          payload.Manifest.Timestamp,
			Participants:       payload.Manifest.Participants,
			ScientificQuestion: payload.Manifest.ScientificQuestion,
			Methodology:        payload.Manifest.Methodology,
			Findings:           make([]Finding, 0, len(payload.Manifest.Findings)),
			Conclusions:        payload.Manifest.Conclusions,
			DigitalSignature:   payload.Manifest.DigitalSignature,
			AuditTrail:         payload.Manifest.AuditTrail,
		}
		for _, finding := range payload.Manifest.Findings {
			manifesto.Findings = append(manifesto.Findings, Finding{
				Title:       finding.Title,
				Description: finding.Description,
				Evidence:    finding.Evidence,
			})
		}
		result.Manifesto = &manifesto
	}

	return result, nil
}
