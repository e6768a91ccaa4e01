package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/openprocure/evalmatrix/internal/domain"
	"github.com/openprocure/evalmatrix/internal/engine"
	"github.com/openprocure/evalmatrix/internal/ports"
)

// ErrSubmissionThrottled is returned when a per-evaluator submission
// rate limit is configured and the evaluator has exceeded it. The caller
// may retry after backing off.
var ErrSubmissionThrottled = errors.New("submission rate limit exceeded")

// EvaluationMatrix orchestrates the lifecycle of one evaluation exercise:
// one tender, one bound rubric snapshot, one committee. It owns the
// VendorScore collection, recomputes the MatrixResults snapshot
// synchronously after every accepted submission and state transition,
// and appends an audit entry for every action.
//
// Concurrency model: a single mutex per matrix guards the critical
// section "mutate scores + recompute results". Submissions for the same
// (vendor, evaluator) key are additionally version-checked so a stale
// concurrent writer is rejected with a ConflictError instead of
// last-writer-wins. Readers of the published MatrixResults snapshot
// never block: the snapshot is swapped atomically after each recompute.
type EvaluationMatrix struct {
	id       string
	tenderID string
	rubric   domain.Rubric
	boundAt  time.Time

	committee map[string]struct{}
	vendors   map[string]struct{}

	periodStart time.Time
	periodEnd   time.Time

	aggregator *engine.ScoreAggregator
	compliance *engine.ComplianceEvaluator
	consensus  *engine.ConsensusAnalyzer
	ranking    *engine.RankingEngine

	// mu guards status, scores, firstSubmission, and audit, and
	// serializes recomputation against writes.
	mu              sync.Mutex
	status          domain.MatrixStatus
	scores          map[domain.ScoreKey]*domain.VendorScore
	firstSubmission map[string]time.Time
	audit           []domain.AuditEntry

	// results holds the last committed snapshot; read lock-free.
	results atomic.Pointer[domain.MatrixResults]

	sink     ports.EventSink
	observer ports.MatrixObserver
	metrics  ports.MetricsCollector
	now      func() time.Time

	// limiters throttle per-evaluator submission bursts when configured.
	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	rateLimit rate.Limit
	rateBurst int
}

// Option applies a configuration option to an EvaluationMatrix.
type Option func(*EvaluationMatrix)

// WithEventSink attaches a sink for submission, transition, and
// consensus notifications.
func WithEventSink(sink ports.EventSink) Option {
	return func(m *EvaluationMatrix) { m.sink = sink }
}

// WithObserver attaches a tracing/monitoring observer.
func WithObserver(obs ports.MatrixObserver) Option {
	return func(m *EvaluationMatrix) { m.observer = obs }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(mc ports.MetricsCollector) Option {
	return func(m *EvaluationMatrix) { m.metrics = mc }
}

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(m *EvaluationMatrix) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSubmissionRate enables a per-evaluator token-bucket limit on
// submissions. A zero limit leaves throttling disabled.
func WithSubmissionRate(limit rate.Limit, burst int) Option {
	return func(m *EvaluationMatrix) {
		if limit > 0 && burst > 0 {
			m.rateLimit = limit
			m.rateBurst = burst
		}
	}
}

// NewEvaluationMatrix creates a matrix in the Setup state, bound to the
// given rubric snapshot. The snapshot's weight invariants are
// re-verified so a matrix can never operate on a malformed rubric.
func NewEvaluationMatrix(cfg MatrixConfig, snap domain.RubricSnapshot, opts ...Option) (*EvaluationMatrix, error) {
	if err := validateConfig(cfg, snap); err != nil {
		return nil, err
	}

	compliance, err := engine.NewComplianceEvaluator(cfg.Compliance)
	if err != nil {
		return nil, err
	}
	consensus, err := engine.NewConsensusAnalyzer(cfg.Consensus)
	if err != nil {
		return nil, err
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}

	m := &EvaluationMatrix{
		id:              id,
		tenderID:        cfg.TenderID,
		rubric:          snap.Rubric.Clone(),
		boundAt:         snap.BoundAt,
		committee:       make(map[string]struct{}, len(cfg.Committee)),
		vendors:         make(map[string]struct{}, len(cfg.Vendors)),
		periodStart:     cfg.PeriodStart,
		periodEnd:       cfg.PeriodEnd,
		aggregator:      engine.NewScoreAggregator(),
		compliance:      compliance,
		consensus:       consensus,
		ranking:         engine.NewRankingEngine(),
		status:          domain.MatrixSetup,
		scores:          make(map[domain.ScoreKey]*domain.VendorScore),
		firstSubmission: make(map[string]time.Time),
		limiters:        make(map[string]*rate.Limiter),
		now:             time.Now,
	}
	for _, e := range cfg.Committee {
		m.committee[e] = struct{}{}
	}
	for _, v := range cfg.Vendors {
		m.vendors[v] = struct{}{}
	}
	for _, opt := range opts {
		opt(m)
	}

	initial := m.computeResultsLocked()
	m.results.Store(&initial)
	return m, nil
}

// ID returns the matrix identifier.
func (m *EvaluationMatrix) ID() string { return m.id }

// TenderID returns the tender under evaluation.
func (m *EvaluationMatrix) TenderID() string { return m.tenderID }

// Rubric returns a deep copy of the bound rubric snapshot.
func (m *EvaluationMatrix) Rubric() domain.Rubric { return m.rubric.Clone() }

// Status returns the current lifecycle state.
func (m *EvaluationMatrix) Status() domain.MatrixStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Results returns the last committed results snapshot. It never blocks
// on in-flight writes.
func (m *EvaluationMatrix) Results() domain.MatrixResults {
	return m.results.Load().Clone()
}

// ExportRows returns the tabular representation of the current rankings
// for CSV/JSON serialization by a presentation layer.
func (m *EvaluationMatrix) ExportRows() []domain.ExportRow {
	return m.results.Load().ExportRows()
}

// AuditLog returns a copy of the append-only audit trail in order.
func (m *EvaluationMatrix) AuditLog() []domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}

// Score returns the current record for one (vendor, evaluator) pair, so
// an evaluator can read the version token before resubmitting.
func (m *EvaluationMatrix) Score(key domain.ScoreKey) (domain.VendorScore, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs, ok := m.scores[key]
	if !ok {
		return domain.VendorScore{}, false
	}
	return vs.Clone(), true
}

// Submit validates and commits one evaluator's scores for one vendor,
// then synchronously recomputes the results snapshot.
//
// Rejections: a matrix outside Setup/InProgress returns a StateError; a
// non-roster evaluator or ineligible vendor, an unscored mandatory
// criterion, or an out-of-range score returns a ValidationError; a stale
// Version returns a ConflictError; writing over an Approved score
// without Override returns ErrScoreApproved. Every rejection appends a
// failed-attempt audit record and leaves the score collection untouched.
func (m *EvaluationMatrix) Submit(ctx context.Context, req SubmitRequest) (domain.VendorScore, error) {
	start := m.now()

	if err := m.allowSubmission(req.EvaluatorID); err != nil {
		return domain.VendorScore{}, err
	}

	m.mu.Lock()
	score, events, err := m.submitLocked(ctx, req)
	m.mu.Unlock()

	elapsed := m.now().Sub(start)
	m.observeSubmission(ctx, domain.ScoreKey{VendorID: req.VendorID, EvaluatorID: req.EvaluatorID}, elapsed, err)
	if err != nil {
		return domain.VendorScore{}, err
	}
	m.publish(ctx, events)
	return score, nil
}

// SubmitBatch submits independent requests concurrently and returns the
// first error encountered. Per-key serialization and version checking
// still apply; a batch containing two writes to the same key behaves
// exactly as two racing submissions would.
func (m *EvaluationMatrix) SubmitBatch(ctx context.Context, reqs []SubmitRequest) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, req := range reqs {
		g.Go(func() error {
			_, err := m.Submit(ctx, req)
			return err
		})
	}
	return g.Wait()
}

// submitLocked performs the validated mutation and recompute under the
// matrix lock. It returns the committed score and the events to publish
// after the lock is released.
func (m *EvaluationMatrix) submitLocked(ctx context.Context, req SubmitRequest) (domain.VendorScore, []domain.Event, error) {
	key := domain.ScoreKey{VendorID: req.VendorID, EvaluatorID: req.EvaluatorID}

	if m.status != domain.MatrixSetup && m.status != domain.MatrixInProgress {
		err := domain.NewStateError(m.id, m.status, "submit")
		m.auditRejectionLocked(req, err)
		return domain.VendorScore{}, nil, err
	}
	if err := m.validateSubmission(req); err != nil {
		m.auditRejectionLocked(req, err)
		return domain.VendorScore{}, nil, err
	}

	existing, exists := m.scores[key]
	if exists {
		if req.Version != existing.Version {
			err := domain.NewConflictError(key, req.Version, existing.Version)
			m.auditRejectionLocked(req, err)
			return domain.VendorScore{}, nil, err
		}
		if existing.ReviewStatus == domain.ReviewApproved && !req.Override {
			err := fmt.Errorf("%w: vendor=%s, evaluator=%s", domain.ErrScoreApproved, key.VendorID, key.EvaluatorID)
			m.auditRejectionLocked(req, err)
			return domain.VendorScore{}, nil, err
		}
	} else if req.Version != 0 {
		err := domain.NewConflictError(key, req.Version, 0)
		m.auditRejectionLocked(req, err)
		return domain.VendorScore{}, nil, err
	}

	weighted, err := m.aggregator.WeightedScore(m.rubric, req.RawScores)
	if err != nil {
		verr := domain.NewValidationError("submission")
		verr.AddError(err.Error())
		m.auditRejectionLocked(req, verr)
		return domain.VendorScore{}, nil, verr
	}
	compliant, issues, err := m.compliance.Check(m.rubric, req.RawScores)
	if err != nil {
		verr := domain.NewValidationError("submission")
		verr.AddError(err.Error())
		m.auditRejectionLocked(req, verr)
		return domain.VendorScore{}, nil, verr
	}

	now := m.now()
	score := domain.VendorScore{
		VendorID:            req.VendorID,
		EvaluatorID:         req.EvaluatorID,
		RawScores:           cloneScores(req.RawScores),
		Comments:            req.Comments,
		ReviewStatus:        domain.ReviewPending,
		Version:             1,
		SubmittedAt:         now,
		WeightedScore:       weighted,
		TechnicalCompliance: compliant,
		ComplianceIssues:    issues,
	}

	var events []domain.Event
	action := domain.AuditScoreSubmitted
	var before map[string]any
	if exists {
		action = domain.AuditScoreSuperseded
		score.Version = existing.Version + 1
		before = map[string]any{
			"weighted_score": existing.WeightedScore,
			"review_status":  string(existing.ReviewStatus),
			"version":        existing.Version,
		}
	}
	m.scores[key] = &score
	if _, seen := m.firstSubmission[key.VendorID]; !seen {
		m.firstSubmission[key.VendorID] = now
	}

	m.appendAuditLocked(domain.AuditEntry{
		Actor:       req.EvaluatorID,
		Role:        domain.RoleEvaluator,
		Action:      action,
		VendorID:    req.VendorID,
		EvaluatorID: req.EvaluatorID,
		Before:      before,
		After: map[string]any{
			"weighted_score":       score.WeightedScore,
			"technical_compliance": score.TechnicalCompliance,
			"version":              score.Version,
		},
		Overridden: req.Override && exists && existing.ReviewStatus == domain.ReviewApproved,
	})

	if m.status == domain.MatrixSetup {
		events = append(events, m.transitionLocked(ctx, domain.MatrixInProgress,
			Actor{ID: req.EvaluatorID, Role: domain.RoleEvaluator}, "first accepted submission")...)
	}

	prev := m.results.Load()
	m.recomputeLocked(ctx)
	next := m.results.Load()

	events = append(events, domain.Event{
		Kind:        domain.EventSubmissionAccepted,
		MatrixID:    m.id,
		VendorID:    req.VendorID,
		EvaluatorID: req.EvaluatorID,
		Timestamp:   now,
	})
	if !next.ConsensusReached && (prev == nil || prev.ConsensusReached) {
		events = append(events, domain.Event{
			Kind:      domain.EventConsensusNotReached,
			MatrixID:  m.id,
			Variance:  next.ScoreVariance,
			Timestamp: now,
		})
	}

	if m.status == domain.MatrixInProgress && m.rosterCompleteLocked() {
		events = append(events, m.transitionLocked(ctx, domain.MatrixEvaluationComplete,
			Actor{ID: req.EvaluatorID, Role: domain.RoleEvaluator}, "all roster submissions complete")...)
	}

	return score.Clone(), events, nil
}

// validateSubmission checks roster membership, vendor eligibility, and
// the mandatory-criterion requirement.
func (m *EvaluationMatrix) validateSubmission(req SubmitRequest) error {
	if _, ok := m.committee[req.EvaluatorID]; !ok {
		verr := domain.NewValidationError("submission")
		verr.Addf("%v: %s", domain.ErrUnknownEvaluator, req.EvaluatorID)
		return verr
	}
	if _, ok := m.vendors[req.VendorID]; !ok {
		verr := domain.NewValidationError("submission")
		verr.Addf("%v: %s", domain.ErrUnknownVendor, req.VendorID)
		return verr
	}
	if len(req.RawScores) == 0 {
		verr := domain.NewValidationError("submission")
		verr.AddError("no scores supplied")
		return verr
	}

	verr := domain.NewValidationError("submission")
	for _, c := range m.rubric.Criteria {
		if !c.Mandatory {
			continue
		}
		if !m.criterionScored(c, req.RawScores) {
			verr.Addf("criterion %s is mandatory and unscored", c.Name)
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// criterionScored reports whether a criterion has a direct score or at
// least one sub-criterion score.
func (m *EvaluationMatrix) criterionScored(c domain.Criterion, raw map[string]float64) bool {
	if _, ok := raw[c.ID]; ok {
		return true
	}
	for _, sc := range c.SubCriteria {
		if _, ok := raw[sc.ID]; ok {
			return true
		}
	}
	return false
}

// rosterCompleteLocked reports whether every (vendor, evaluator) pair
// required by the roster has a fully-scored submission.
func (m *EvaluationMatrix) rosterCompleteLocked() bool {
	for v := range m.vendors {
		for e := range m.committee {
			vs, ok := m.scores[domain.ScoreKey{VendorID: v, EvaluatorID: e}]
			if !ok || !m.aggregator.Complete(m.rubric, vs.RawScores) {
				return false
			}
		}
	}
	return true
}

// ReviewScore lets the chair move a submission through the review states.
// Approving a score freezes it against non-override resubmission.
func (m *EvaluationMatrix) ReviewScore(ctx context.Context, actor Actor, key domain.ScoreKey, status domain.ReviewStatus) error {
	if actor.Role != domain.RoleChair {
		return fmt.Errorf("%w: %s cannot review scores", domain.ErrRoleForbidden, actor.Role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.Terminal() {
		return domain.NewStateError(m.id, m.status, "review_score")
	}
	vs, ok := m.scores[key]
	if !ok {
		verr := domain.NewValidationError("review")
		verr.Addf("no submission for vendor %s by evaluator %s", key.VendorID, key.EvaluatorID)
		return verr
	}

	before := map[string]any{"review_status": string(vs.ReviewStatus)}
	vs.ReviewStatus = status
	vs.Version++
	m.appendAuditLocked(domain.AuditEntry{
		Actor:       actor.ID,
		Role:        actor.Role,
		Action:      domain.AuditScoreReviewed,
		VendorID:    key.VendorID,
		EvaluatorID: key.EvaluatorID,
		Before:      before,
		After:       map[string]any{"review_status": string(status)},
	})
	return nil
}

// CloseEvaluation is the chair's manual InProgress -> EvaluationComplete
// transition. Gaps are allowed: missing submissions are reported through
// TotalEvaluated falling short of ExpectedSubmissions, not by blocking.
func (m *EvaluationMatrix) CloseEvaluation(ctx context.Context, actor Actor) error {
	if actor.Role != domain.RoleChair {
		return fmt.Errorf("%w: %s cannot close evaluation", domain.ErrRoleForbidden, actor.Role)
	}
	return m.transition(ctx, domain.MatrixEvaluationComplete, actor, "evaluation closed by chair")
}

// BeginReview is the oversight reviewer's EvaluationComplete -> Review
// transition.
func (m *EvaluationMatrix) BeginReview(ctx context.Context, actor Actor) error {
	if actor.Role != domain.RoleReviewer {
		return fmt.Errorf("%w: %s cannot begin review", domain.ErrRoleForbidden, actor.Role)
	}
	return m.transition(ctx, domain.MatrixReview, actor, "oversight review started")
}

// Finalize is the reviewer's Review -> Final approval. All vendor scores
// become immutable and a sealed audit snapshot of the results is
// appended.
func (m *EvaluationMatrix) Finalize(ctx context.Context, actor Actor) error {
	if actor.Role != domain.RoleReviewer {
		return fmt.Errorf("%w: %s cannot finalize", domain.ErrRoleForbidden, actor.Role)
	}

	m.mu.Lock()
	if !m.status.CanTransition(domain.MatrixFinal) {
		status := m.status
		m.mu.Unlock()
		return domain.NewStateError(m.id, status, "finalize")
	}
	events := m.transitionLocked(ctx, domain.MatrixFinal, actor, "results approved")

	sealed := m.results.Load()
	m.appendAuditLocked(domain.AuditEntry{
		Actor:  actor.ID,
		Role:   actor.Role,
		Action: domain.AuditResultsSealed,
		After: map[string]any{
			"recommended_award":     sealed.RecommendedAward,
			"consensus_reached":     sealed.ConsensusReached,
			"average_score":         sealed.AverageScore,
			"score_variance":        sealed.ScoreVariance,
			"technically_compliant": sealed.TechnicallyCompliant,
			"total_evaluated":       sealed.TotalEvaluated,
		},
	})
	m.mu.Unlock()

	m.publish(ctx, events)
	return nil
}

// Cancel abandons the exercise from any non-terminal state. A reason is
// required and the transition is irreversible.
func (m *EvaluationMatrix) Cancel(ctx context.Context, actor Actor, reason string) error {
	if actor.Role != domain.RoleChair {
		return fmt.Errorf("%w: %s cannot cancel", domain.ErrRoleForbidden, actor.Role)
	}
	if reason == "" {
		return domain.ErrReasonRequired
	}
	return m.transition(ctx, domain.MatrixCancelled, actor, reason)
}

// transition performs a locked state transition and publishes the
// resulting events.
func (m *EvaluationMatrix) transition(ctx context.Context, to domain.MatrixStatus, actor Actor, reason string) error {
	m.mu.Lock()
	if !m.status.CanTransition(to) {
		status := m.status
		m.mu.Unlock()
		return domain.NewStateError(m.id, status, fmt.Sprintf("transition to %s", to))
	}
	events := m.transitionLocked(ctx, to, actor, reason)
	m.mu.Unlock()

	m.publish(ctx, events)
	return nil
}

// transitionLocked applies a pre-validated transition: audit entry,
// synchronous recompute, event emission, observer callback. Callers must
// hold the matrix lock and must have checked CanTransition.
func (m *EvaluationMatrix) transitionLocked(ctx context.Context, to domain.MatrixStatus, actor Actor, reason string) []domain.Event {
	from := m.status
	m.status = to

	m.appendAuditLocked(domain.AuditEntry{
		Actor:  actor.ID,
		Role:   actor.Role,
		Action: domain.AuditStateTransition,
		Before: map[string]any{"status": string(from)},
		After:  map[string]any{"status": string(to)},
		Reason: reason,
	})
	m.recomputeLocked(ctx)

	if m.observer != nil {
		m.observer.TransitionObserved(ctx, m.id, from, to)
	}
	if m.metrics != nil {
		m.metrics.RecordCounter("matrix_state_transitions_total", 1, map[string]string{
			"matrix_id": m.id, "from": string(from), "to": string(to),
		})
	}

	return []domain.Event{{
		Kind:      domain.EventStateChanged,
		MatrixID:  m.id,
		From:      from,
		To:        to,
		Timestamp: m.now(),
	}}
}

// recomputeLocked regenerates the MatrixResults snapshot from the full
// score collection and publishes it atomically. Callers must hold the
// matrix lock; the snapshot itself is immutable once published.
func (m *EvaluationMatrix) recomputeLocked(ctx context.Context) {
	start := m.now()
	snapshot := m.computeResultsLocked()
	m.results.Store(&snapshot)
	elapsed := m.now().Sub(start)

	if m.metrics != nil {
		m.metrics.RecordHistogram("matrix_recompute_duration_seconds", elapsed.Seconds(),
			map[string]string{"matrix_id": m.id})
		m.metrics.RecordGauge("matrix_consensus_reached", boolGauge(snapshot.ConsensusReached),
			map[string]string{"matrix_id": m.id})
		for _, r := range snapshot.Rankings {
			m.metrics.RecordGauge("matrix_vendor_score", r.WeightedScore,
				map[string]string{"matrix_id": m.id, "vendor_id": r.VendorID})
		}
	}
	if m.observer != nil {
		m.observer.RecomputeObserved(ctx, m.id, snapshot, elapsed)
	}
}

// computeResultsLocked is the pure derivation of MatrixResults from the
// current score collection. Recomputing without intervening submissions
// yields identical results.
func (m *EvaluationMatrix) computeResultsLocked() domain.MatrixResults {
	byVendor := make(map[string][]*domain.VendorScore)
	for _, vs := range m.scores {
		byVendor[vs.VendorID] = append(byVendor[vs.VendorID], vs)
	}

	aggregates := make([]engine.VendorAggregate, 0, len(byVendor))
	variances := make([]float64, 0, len(byVendor))
	var scoreSum float64
	compliantCount := 0

	for vendorID, scores := range byVendor {
		agg := m.vendorAggregate(vendorID, scores)
		aggregates = append(aggregates, agg)
		variances = append(variances, agg.Variance)
		scoreSum += agg.WeightedScore
		if agg.TechnicalCompliance {
			compliantCount++
		}
	}

	rankings := m.ranking.Rank(m.rubric, aggregates)
	meanVariance, consensusReached := m.consensus.MatrixConsensus(variances)

	average := 0.0
	if len(aggregates) > 0 {
		average = engine.Round2(scoreSum / float64(len(aggregates)))
	}

	return domain.MatrixResults{
		Rankings:             rankings,
		ConsensusReached:     consensusReached,
		AverageScore:         average,
		ScoreVariance:        engine.Round2(meanVariance),
		RecommendedAward:     m.ranking.RecommendedAward(rankings),
		TechnicallyCompliant: compliantCount,
		TotalEvaluated:       len(m.scores),
		ExpectedSubmissions:  len(m.vendors) * len(m.committee),
		ComputedAt:           m.now(),
	}
}

// vendorAggregate folds one vendor's submissions into the consensus view
// consumed by the ranking engine.
func (m *EvaluationMatrix) vendorAggregate(vendorID string, scores []*domain.VendorScore) engine.VendorAggregate {
	weighted := make([]float64, 0, len(scores))
	compliant := true
	var primarySum float64
	primaryCount := 0
	issueSeen := make(map[string]struct{})
	var issues []domain.ComplianceIssue

	for _, vs := range scores {
		weighted = append(weighted, vs.WeightedScore)
		if !vs.TechnicalCompliance {
			compliant = false
		}
		for _, issue := range vs.ComplianceIssues {
			dedupe := issue.CriterionID + "/" + string(issue.Severity)
			if _, seen := issueSeen[dedupe]; seen {
				continue
			}
			issueSeen[dedupe] = struct{}{}
			issues = append(issues, issue)
		}
		if m.rubric.PrimaryCriterion != "" {
			if normalized, err := m.aggregator.NormalizedScores(m.rubric, vs.RawScores); err == nil {
				if s, ok := normalized[m.rubric.PrimaryCriterion]; ok {
					primarySum += s
					primaryCount++
				}
			}
		}
	}

	var sum float64
	for _, w := range weighted {
		sum += w
	}
	mean := engine.Round2(sum / float64(len(weighted)))

	variance, reached, err := m.consensus.Consensus(weighted)
	if err != nil {
		// Unreachable for committed scores, which are always finite.
		variance, reached = 0, true
	}

	primary := 0.0
	if primaryCount > 0 {
		primary = primarySum / float64(primaryCount)
	}

	return engine.VendorAggregate{
		VendorID:            vendorID,
		WeightedScore:       mean,
		Variance:            engine.Round2(variance),
		ConsensusReached:    reached,
		TechnicalCompliance: compliant,
		ComplianceIssues:    issues,
		EvaluatorCount:      len(scores),
		PrimaryScore:        primary,
		FirstSubmission:     m.firstSubmission[vendorID],
	}
}

// appendAuditLocked stamps and appends one audit entry. The trail is
// append-only: entries are never mutated or removed.
func (m *EvaluationMatrix) appendAuditLocked(entry domain.AuditEntry) {
	entry.ID = uuid.NewString()
	entry.Timestamp = m.now()
	m.audit = append(m.audit, entry)
}

// auditRejectionLocked records a failed submission attempt without
// touching the score collection.
func (m *EvaluationMatrix) auditRejectionLocked(req SubmitRequest, cause error) {
	m.appendAuditLocked(domain.AuditEntry{
		Actor:       req.EvaluatorID,
		Role:        domain.RoleEvaluator,
		Action:      domain.AuditSubmissionRejected,
		VendorID:    req.VendorID,
		EvaluatorID: req.EvaluatorID,
		Reason:      cause.Error(),
	})
	if m.metrics != nil {
		m.metrics.RecordCounter("matrix_submissions_total", 1, map[string]string{
			"matrix_id": m.id, "result": "rejected",
		})
	}
}

// allowSubmission enforces the optional per-evaluator rate limit.
func (m *EvaluationMatrix) allowSubmission(evaluatorID string) error {
	if m.rateLimit <= 0 {
		return nil
	}
	m.limiterMu.Lock()
	limiter, ok := m.limiters[evaluatorID]
	if !ok {
		limiter = rate.NewLimiter(m.rateLimit, m.rateBurst)
		m.limiters[evaluatorID] = limiter
	}
	m.limiterMu.Unlock()

	if !limiter.Allow() {
		return fmt.Errorf("%w: evaluator %s", ErrSubmissionThrottled, evaluatorID)
	}
	return nil
}

// observeSubmission reports a submission outcome to the observer and
// metrics collector.
func (m *EvaluationMatrix) observeSubmission(ctx context.Context, key domain.ScoreKey, elapsed time.Duration, err error) {
	if m.observer != nil {
		m.observer.SubmissionObserved(ctx, m.id, key, elapsed, err)
	}
	if m.metrics != nil && err == nil {
		m.metrics.RecordCounter("matrix_submissions_total", 1, map[string]string{
			"matrix_id": m.id, "result": "accepted",
		})
		m.metrics.RecordLatency("matrix_submission", elapsed, map[string]string{"matrix_id": m.id})
	}
}

// publish delivers pending events to the sink, outside the matrix lock.
func (m *EvaluationMatrix) publish(ctx context.Context, events []domain.Event) {
	if m.sink == nil {
		return
	}
	for _, ev := range events {
		m.sink.Publish(ctx, ev)
	}
}

func cloneScores(raw map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
