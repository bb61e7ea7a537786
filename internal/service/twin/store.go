package twin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/danvoulez/lablab/internal/api"
	"github.com/danvoulez/lablab/internal/model/twin"
)

// Snapshot is a point-in-time copy of the store's observable state.
type Snapshot struct {
	Observations []twin.Observation `json:"observations"`
	Divergences  []twin.Divergence  `json:"divergences"`
	Loading      bool               `json:"loading"`
	Error        string             `json:"error,omitempty"`
}

// Store aggregates the physical/digital twin feeds. The two collections are
// only ever replaced together, so derived views never mix a fresh feed with
// a stale one.
type Store struct {
	client *api.Client
	logger *zap.Logger

	mu           sync.RWMutex
	observations []twin.Observation
	divergences  []twin.Divergence
	loading      bool
	lastError    string
}

// NewStore bootstraps an empty aggregation store.
func NewStore(client *api.Client, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Refresh re-pulls both collections as one unit. On any failure, both
// collections are left exactly as they were and the error cell carries a
// human-readable message.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.lastError = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	observations, divergences, err := s.fetchPair(ctx, "/twin-observations", "/twin-divergences")
	if err != nil {
		s.logger.Warn("twin refresh failed", zap.Error(err))
		s.mu.Lock()
		s.lastError = refreshErrorMessage(err)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.observations = observations
	s.divergences = divergences
	s.mu.Unlock()
	return nil
}

// ExecutionTwinData fetches both collections scoped to one historical
// execution. The global store is never mutated; failures follow the same
// all-or-nothing policy as Refresh.
func (s *Store) ExecutionTwinData(ctx context.Context, executionID string) ([]twin.Observation, []twin.Divergence, error) {
	escaped := url.PathEscape(executionID)
	return s.fetchPair(ctx,
		fmt.Sprintf("/executions/%s/twin-observations", escaped),
		fmt.Sprintf("/executions/%s/twin-divergences", escaped))
}

// Snapshot returns a copy of the observable state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := Snapshot{
		Observations: make([]twin.Observation, len(s.observations)),
		Divergences:  make([]twin.Divergence, len(s.divergences)),
		Loading:      s.loading,
		Error:        s.lastError,
	}
	copy(snapshot.Observations, s.observations)
	copy(snapshot.Divergences, s.divergences)
	return snapshot
}

// HasObservations reports whether any observation is loaded.
func (s *Store) HasObservations() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observations) > 0
}

// HasDivergences reports whether any divergence is loaded.
func (s *Store) HasDivergences() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.divergences) > 0
}

// CriticalDivergences returns the divergences with critical severity.
// Severity casing is not trusted upstream, so matching is case-insensitive.
func (s *Store) CriticalDivergences() []twin.Divergence {
	return s.filterBySeverity(twin.SeverityCritical)
}

// WarningDivergences returns the divergences with warning severity.
func (s *Store) WarningDivergences() []twin.Divergence {
	return s.filterBySeverity(twin.SeverityWarning)
}

func (s *Store) filterBySeverity(severity string) []twin.Divergence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]twin.Divergence, 0)
	for _, divergence := range s.divergences {
		if strings.EqualFold(divergence.Severity, severity) {
			matches = append(matches, divergence)
		}
	}
	return matches
}

// fetchPair issues the joined pair fetch and decodes both payloads before
// returning either, so callers can apply them atomically.
func (s *Store) fetchPair(ctx context.Context, obsPath, divPath string) ([]twin.Observation, []twin.Divergence, error) {
	rawObs, rawDiv, err := s.client.CallBoth(ctx, obsPath, divPath)
	if err != nil {
		return nil, nil, err
	}

	var observations []twin.Observation
	if err := json.Unmarshal(rawObs, &observations); err != nil {
		return nil, nil, &api.Error{Kind: api.KindMalformed, Message: "observation feed did not match the documented schema", Cause: err}
	}

	var divergences []twin.Divergence
	if err := json.Unmarshal(rawDiv, &divergences); err != nil {
		return nil, nil, &api.Error{Kind: api.KindMalformed, Message: "divergence feed did not match the documented schema", Cause: err}
	}

	return observations, divergences, nil
}

func refreshErrorMessage(err error) string {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return "Failed to load twin data."
	}

	switch apiErr.Kind {
	case api.KindTimeout:
		return "Loading twin data timed out. Try refreshing again."
	case api.KindNetwork:
		return "Could not reach the twin data service."
	case api.KindServer:
		return fmt.Sprintf("The twin data service rejected the request (HTTP %d).", apiErr.HTTPStatus)
	case api.KindMalformed:
		return "The twin data service answered with data the console could not read."
	}
	return "Failed to load twin data."
}
