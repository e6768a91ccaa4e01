// Package memory provides in-memory adapter implementations of the
// engine's ports, suitable for in-process hosting and tests. Persistence
// of records to durable storage is the host's concern.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/openprocure/evalmatrix/internal/domain"
	"github.com/openprocure/evalmatrix/internal/ports"
)

var validate = validator.New()

var _ ports.RubricStore = (*RubricStore)(nil)

// RubricStore is an in-memory, versioned rubric store with
// copy-on-change semantics: binding freezes a rubric against in-place
// structural edits, and a later Update of a bound rubric produces a new
// Draft version instead of mutating the bound one.
//
// The store is safe for concurrent use.
type RubricStore struct {
	mu      sync.RWMutex
	rubrics map[string]*storedRubric
	now     func() time.Time
}

type storedRubric struct {
	rubric domain.Rubric
	bound  bool
}

// StoreOption applies a configuration option to the RubricStore.
type StoreOption func(*RubricStore)

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *RubricStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRubricStore creates an empty RubricStore.
func NewRubricStore(opts ...StoreOption) *RubricStore {
	s := &RubricStore{
		rubrics: make(map[string]*storedRubric),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the spec and stores a new Draft rubric. Structural
// defects that can never become valid, such as negative weights or a
// mandatory criterion without a passing score, are rejected immediately;
// the weight-sum invariant is checked later, at activation, so drafts
// can be assembled incrementally.
func (s *RubricStore) Create(_ context.Context, spec ports.RubricSpec) (domain.Rubric, error) {
	if err := validate.Struct(spec); err != nil {
		verr := domain.NewValidationError("rubric")
		verr.AddError(err.Error())
		return domain.Rubric{}, verr
	}
	if err := validateSpecSemantics(spec); err != nil {
		return domain.Rubric{}, err
	}

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rubrics[id]; exists {
		return domain.Rubric{}, ports.NewStoreError(id, "create", domain.ErrRubricBound)
	}

	now := s.now()
	rubric := domain.Rubric{
		ID:               id,
		Name:             spec.Name,
		Version:          1,
		Criteria:         spec.Criteria,
		PassingThreshold: spec.PassingThreshold,
		PrimaryCriterion: spec.PrimaryCriterion,
		Status:           domain.RubricDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	// The stored copy must not alias the caller's criteria slice, or a
	// later edit to the spec would rewrite the rubric behind the
	// activation gate.
	s.rubrics[id] = &storedRubric{rubric: rubric.Clone()}
	return rubric.Clone(), nil
}

// Get returns the current version of the rubric.
func (s *RubricStore) Get(_ context.Context, id string) (domain.Rubric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.rubrics[id]
	if !ok {
		return domain.Rubric{}, ports.NewStoreError(id, "get", domain.ErrRubricNotFound)
	}
	return stored.rubric.Clone(), nil
}

// Update applies a structural edit. Unbound rubrics are edited in place;
// bound rubrics are copied into a new Draft version so existing matrix
// snapshots are untouched.
func (s *RubricStore) Update(_ context.Context, id string, spec ports.RubricSpec) (domain.Rubric, error) {
	if err := validate.Struct(spec); err != nil {
		verr := domain.NewValidationError("rubric")
		verr.AddError(err.Error())
		return domain.Rubric{}, verr
	}
	if err := validateSpecSemantics(spec); err != nil {
		return domain.Rubric{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rubrics[id]
	if !ok {
		return domain.Rubric{}, ports.NewStoreError(id, "update", domain.ErrRubricNotFound)
	}

	updated := stored.rubric.Clone()
	updated.Name = spec.Name
	updated.Criteria = spec.Criteria
	updated.PassingThreshold = spec.PassingThreshold
	updated.PrimaryCriterion = spec.PrimaryCriterion
	updated.UpdatedAt = s.now()
	// Sever the spec's criteria slice before the edit is kept.
	updated = updated.Clone()

	if stored.bound {
		// Copy-on-change: the bound version stays frozen, the edit lands
		// in a fresh Draft version.
		updated.Version = stored.rubric.Version + 1
		updated.Status = domain.RubricDraft
		s.rubrics[id] = &storedRubric{rubric: updated}
	} else {
		updated.Version = stored.rubric.Version
		updated.Status = domain.RubricDraft
		stored.rubric = updated
	}
	return updated.Clone(), nil
}

// Activate transitions Draft -> Active after verifying the weight-sum
// invariant at both nesting levels. Violations are returned as a
// ValidationError, never silently normalized.
func (s *RubricStore) Activate(_ context.Context, id string) (domain.Rubric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rubrics[id]
	if !ok {
		return domain.Rubric{}, ports.NewStoreError(id, "activate", domain.ErrRubricNotFound)
	}
	if err := stored.rubric.ValidateWeights(); err != nil {
		return domain.Rubric{}, err
	}
	stored.rubric.Status = domain.RubricActive
	stored.rubric.UpdatedAt = s.now()
	return stored.rubric.Clone(), nil
}

// Archive retires the rubric. Existing matrix bindings keep their
// snapshots; new Bind calls fail.
func (s *RubricStore) Archive(_ context.Context, id string) (domain.Rubric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rubrics[id]
	if !ok {
		return domain.Rubric{}, ports.NewStoreError(id, "archive", domain.ErrRubricNotFound)
	}
	stored.rubric.Status = domain.RubricArchived
	stored.rubric.UpdatedAt = s.now()
	return stored.rubric.Clone(), nil
}

// Bind returns an immutable value-copy of an Active rubric and freezes
// the stored rubric against in-place structural edits.
func (s *RubricStore) Bind(_ context.Context, id string) (domain.RubricSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rubrics[id]
	if !ok {
		return domain.RubricSnapshot{}, ports.NewStoreError(id, "bind", domain.ErrRubricNotFound)
	}
	if stored.rubric.Status != domain.RubricActive {
		return domain.RubricSnapshot{}, ports.NewStoreError(id, "bind", domain.ErrRubricNotActive)
	}
	stored.bound = true
	return domain.RubricSnapshot{
		Rubric:  stored.rubric.Clone(),
		BoundAt: s.now(),
	}, nil
}

// validateSpecSemantics rejects structural defects the validator tags
// cannot express: negative weights and mandatory criteria lacking a
// passing score.
func validateSpecSemantics(spec ports.RubricSpec) error {
	verr := domain.NewValidationError("rubric")
	for _, c := range spec.Criteria {
		if c.Weight < 0 {
			verr.Addf("criterion %s has negative weight %.2f", c.ID, c.Weight)
		}
		if c.Mandatory && c.PassingScore <= 0 {
			verr.Addf("criterion %s is mandatory but has no passing score", c.ID)
		}
		for _, sc := range c.SubCriteria {
			if sc.Weight < 0 {
				verr.Addf("sub-criterion %s of %s has negative weight %.2f", sc.ID, c.ID, sc.Weight)
			}
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}
