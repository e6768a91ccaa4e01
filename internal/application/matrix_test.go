package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/openprocure/evalmatrix/internal/domain"
	"github.com/openprocure/evalmatrix/internal/engine"
	"github.com/openprocure/evalmatrix/internal/ports"
)

// recordingSink captures published events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (rs *recordingSink) Publish(_ context.Context, event domain.Event) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.events = append(rs.events, event)
}

func (rs *recordingSink) ofKind(kind domain.EventKind) []domain.Event {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var out []domain.Event
	for _, ev := range rs.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

var _ ports.EventSink = (*recordingSink)(nil)

func testRubricSnapshot() domain.RubricSnapshot {
	return domain.RubricSnapshot{
		Rubric: domain.Rubric{
			ID:      "rubric-it-services",
			Name:    "IT Services Evaluation",
			Version: 1,
			Criteria: []domain.Criterion{
				{ID: "technical", Name: "Technical Capability", Weight: 30, MaxScore: 100, Type: domain.CriterionNumeric, Mandatory: true, PassingScore: 70},
				{ID: "experience", Name: "Relevant Experience", Weight: 25, MaxScore: 100, Type: domain.CriterionNumeric},
				{ID: "methodology", Name: "Methodology", Weight: 25, MaxScore: 100, Type: domain.CriterionNumeric},
				{ID: "team", Name: "Team Qualifications", Weight: 20, MaxScore: 100, Type: domain.CriterionNumeric},
			},
			PassingThreshold: 70,
			PrimaryCriterion: "technical",
			Status:           domain.RubricActive,
		},
		BoundAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func testMatrixConfig() MatrixConfig {
	cfg := DefaultMatrixConfig()
	cfg.ID = "matrix-test"
	cfg.TenderID = "tender-2026-017"
	cfg.Committee = []string{"eval-1", "eval-2"}
	cfg.Vendors = []string{"falcon-solutions", "primecare-medical"}
	return cfg
}

func newTestMatrix(t *testing.T, opts ...Option) *EvaluationMatrix {
	t.Helper()
	m, err := NewEvaluationMatrix(testMatrixConfig(), testRubricSnapshot(), opts...)
	require.NoError(t, err)
	return m
}

func fullScores(technical, experience, methodology, team float64) map[string]float64 {
	return map[string]float64{
		"technical":   technical,
		"experience":  experience,
		"methodology": methodology,
		"team":        team,
	}
}

func TestNewEvaluationMatrix(t *testing.T) {
	t.Run("starts in setup", func(t *testing.T) {
		m := newTestMatrix(t)
		assert.Equal(t, "matrix-test", m.ID())
		assert.Equal(t, "tender-2026-017", m.TenderID())
		assert.Equal(t, domain.MatrixSetup, m.Status())

		results := m.Results()
		assert.Empty(t, results.Rankings)
		assert.Equal(t, 4, results.ExpectedSubmissions)
		assert.True(t, results.ConsensusReached)
	})

	t.Run("generates an id when none is configured", func(t *testing.T) {
		cfg := testMatrixConfig()
		cfg.ID = ""
		m, err := NewEvaluationMatrix(cfg, testRubricSnapshot())
		require.NoError(t, err)
		assert.NotEmpty(t, m.ID())
	})

	t.Run("rejects a config without a tender", func(t *testing.T) {
		cfg := testMatrixConfig()
		cfg.TenderID = ""
		_, err := NewEvaluationMatrix(cfg, testRubricSnapshot())
		require.Error(t, err)
	})

	t.Run("rejects an empty committee", func(t *testing.T) {
		cfg := testMatrixConfig()
		cfg.Committee = nil
		_, err := NewEvaluationMatrix(cfg, testRubricSnapshot())
		require.Error(t, err)
	})

	t.Run("re-verifies rubric weights at bind time", func(t *testing.T) {
		snap := testRubricSnapshot()
		snap.Rubric.Criteria[0].Weight = 50
		_, err := NewEvaluationMatrix(testMatrixConfig(), snap)
		require.Error(t, err)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("rejects a period ending before it starts", func(t *testing.T) {
		cfg := testMatrixConfig()
		cfg.PeriodStart = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		cfg.PeriodEnd = cfg.PeriodStart.Add(-time.Hour)
		_, err := NewEvaluationMatrix(cfg, testRubricSnapshot())
		require.Error(t, err)
	})
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted submission moves setup to in progress", func(t *testing.T) {
		m := newTestMatrix(t)

		score, err := m.Submit(ctx, SubmitRequest{
			VendorID:    "primecare-medical",
			EvaluatorID: "eval-1",
			RawScores:   fullScores(88, 85, 92, 90),
			Comments:    "strong technical response",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.MatrixInProgress, m.Status())
		assert.Equal(t, int64(1), score.Version)
		assert.InDelta(t, 88.65, score.WeightedScore, 1e-9)
		assert.True(t, score.TechnicalCompliance)
		assert.Equal(t, domain.ReviewPending, score.ReviewStatus)

		stored, ok := m.Score(domain.ScoreKey{VendorID: "primecare-medical", EvaluatorID: "eval-1"})
		require.True(t, ok)
		assert.Equal(t, score.WeightedScore, stored.WeightedScore)
	})

	t.Run("results recompute synchronously", func(t *testing.T) {
		m := newTestMatrix(t)

		_, err := m.Submit(ctx, SubmitRequest{
			VendorID: "primecare-medical", EvaluatorID: "eval-1",
			RawScores: fullScores(88, 85, 92, 90),
		})
		require.NoError(t, err)
		_, err = m.Submit(ctx, SubmitRequest{
			VendorID: "falcon-solutions", EvaluatorID: "eval-1",
			RawScores: fullScores(85, 83, 88, 85),
		})
		require.NoError(t, err)

		results := m.Results()
		require.Len(t, results.Rankings, 2)
		assert.Equal(t, "primecare-medical", results.Rankings[0].VendorID)
		assert.InDelta(t, 88.65, results.Rankings[0].WeightedScore, 1e-9)
		assert.Equal(t, domain.RecommendAward, results.Rankings[0].Recommendation)
		assert.Equal(t, "falcon-solutions", results.Rankings[1].VendorID)
		assert.InDelta(t, 85.25, results.Rankings[1].WeightedScore, 1e-9)
		assert.Equal(t, "primecare-medical", results.RecommendedAward)
		assert.Equal(t, 2, results.TotalEvaluated)
		assert.InDelta(t, 86.95, results.AverageScore, 1e-9)
	})

	t.Run("rejections leave state untouched", func(t *testing.T) {
		m := newTestMatrix(t)

		tests := []struct {
			name string
			req  SubmitRequest
			msg  string
		}{
			{
				name: "evaluator off roster",
				req:  SubmitRequest{VendorID: "primecare-medical", EvaluatorID: "intruder", RawScores: fullScores(80, 80, 80, 80)},
				msg:  "evaluator not on committee roster",
			},
			{
				name: "ineligible vendor",
				req:  SubmitRequest{VendorID: "ghost-corp", EvaluatorID: "eval-1", RawScores: fullScores(80, 80, 80, 80)},
				msg:  "vendor not eligible",
			},
			{
				name: "no scores",
				req:  SubmitRequest{VendorID: "primecare-medical", EvaluatorID: "eval-1"},
				msg:  "no scores supplied",
			},
			{
				name: "mandatory criterion unscored",
				req: SubmitRequest{VendorID: "primecare-medical", EvaluatorID: "eval-1", RawScores: map[string]float64{
					"experience": 85, "methodology": 92, "team": 90,
				}},
				msg: "mandatory and unscored",
			},
			{
				name: "score out of range",
				req:  SubmitRequest{VendorID: "primecare-medical", EvaluatorID: "eval-1", RawScores: fullScores(120, 85, 92, 90)},
				msg:  "invalid raw score",
			},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := m.Submit(ctx, tc.req)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.msg)

				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
			})
		}

		assert.Equal(t, domain.MatrixSetup, m.Status(), "rejected submissions must not start the evaluation")
		assert.Zero(t, m.Results().TotalEvaluated)

		// Every failed attempt is still audited.
		rejected := 0
		for _, entry := range m.AuditLog() {
			if entry.Action == domain.AuditSubmissionRejected {
				rejected++
			}
		}
		assert.Equal(t, len(tests), rejected)
	})

	t.Run("submissions are audited", func(t *testing.T) {
		m := newTestMatrix(t)
		_, err := m.Submit(ctx, SubmitRequest{
			VendorID: "primecare-medical", EvaluatorID: "eval-1",
			RawScores: fullScores(88, 85, 92, 90),
		})
		require.NoError(t, err)

		log := m.AuditLog()
		var actions []domain.AuditAction
		for _, entry := range log {
			assert.NotEmpty(t, entry.ID)
			assert.False(t, entry.Timestamp.IsZero())
			actions = append(actions, entry.Action)
		}
		assert.Contains(t, actions, domain.AuditScoreSubmitted)
		assert.Contains(t, actions, domain.AuditStateTransition)
	})
}

func TestSubmitConcurrencyControl(t *testing.T) {
	ctx := context.Background()
	key := domain.ScoreKey{VendorID: "primecare-medical", EvaluatorID: "eval-1"}

	t.Run("stale version is rejected", func(t *testing.T) {
		m := newTestMatrix(t)
		_, err := m.Submit(ctx, SubmitRequest{
			VendorID: key.VendorID, EvaluatorID: key.EvaluatorID,
			RawScores: fullScores(88, 85, 92, 90),
		})
		require.NoError(t, err)

		// A second write presenting the pre-creation version loses.
		_, err = m.Submit(ctx, SubmitRequest{
			VendorID: key.VendorID, EvaluatorID: key.EvaluatorID,
			RawScores: fullScores(70, 70, 70, 70),
		})
		require.Error(t, err)
		assert.True(t, domain.IsRetryable(err))

		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, int64(0), conflict.Expected)
		assert.Equal(t, int64(1), conflict.Current)

		stored, ok := m.Score(key)
		require.True(t, ok)
		assert.InDelta(t, 88.65, stored.WeightedScore, 1e-9, "losing write must not land")
	})

	t.Run("fresh version supersedes", func(t *testing.T) {
		m := newTestMatrix(t)
		first, err := m.Submit(ctx, SubmitRequest{
			VendorID: key.VendorID, EvaluatorID: key.EvaluatorID,
			RawScores: fullScores(88, 85, 92, 90),
		})
		require.NoError(t, err)

		second, err := m.Submit(ctx, SubmitRequest{
			VendorID: key.VendorID, EvaluatorID: key.EvaluatorID,
			RawScores: fullScores(90, 85, 92, 90),
			Version:   first.Version,
		})
		require.NoError(t, err)
		assert.Equal(t, first.Version+1, second.Version)

		var actions []domain.AuditAction
		for _, entry := range m.AuditLog() {
			actions = append(actions, entry.Action)
		}
		assert.Contains(t, actions, domain.AuditScoreSuperseded)
		assert.Equal(t, 1, m.Results().TotalEvaluated, "resubmission replaces, never duplicates")
	})

	t.Run("first submission with nonzero version is a conflict", func(t *testing.T) {
		m := newTestMatrix(t)
		_, err := m.Submit(ctx, SubmitRequest{
			VendorID: key.VendorID, EvaluatorID: key.EvaluatorID,
			RawScores: fullScores(88, 85, 92, 90),
			Version:   3,
		})
		require.Error(t, err)
		assert.True(t, domain.IsRetryable(err))
	})

	t.Run("racing writers on one key produce exactly one winner", func(t *testing.T) {
		m := newTestMatrix(t)

		const writers = 8
		errs := make([]error, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = m.Submit(ctx, SubmitRequest{
					VendorID: key.VendorID, EvaluatorID: key.EvaluatorID,
					RawScores: fullScores(88, 85, 92, 90),
				})
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.True(t, domain.IsRetryable(err), "losers must see a retryable conflict, got %v", err)
		}
		assert.Equal(t, 1, wins)

		stored, ok := m.Score(key)
		require.True(t, ok)
		assert.Equal(t, int64(1), stored.Version)
	})

	t.Run("batch submissions for distinct keys all land", func(t *testing.T) {
		m := newTestMatrix(t)
		reqs := []SubmitRequest{
			{VendorID: "primecare-medical", EvaluatorID: "eval-1", RawScores: fullScores(88, 85, 92, 90)},
			{VendorID: "primecare-medical", EvaluatorID: "eval-2", RawScores: fullScores(86, 84, 90, 88)},
			{VendorID: "falcon-solutions", EvaluatorID: "eval-1", RawScores: fullScores(85, 83, 88, 85)},
		}
		require.NoError(t, m.SubmitBatch(ctx, reqs))
		assert.Equal(t, 3, m.Results().TotalEvaluated)
	})
}

func TestReviewAndOverride(t *testing.T) {
	ctx := context.Background()
	chair := Actor{ID: "chair-1", Role: domain.RoleChair}
	key := domain.ScoreKey{VendorID: "primecare-medical", EvaluatorID: "eval-1"}

	t.Run("approved scores are immutable without override", func(t *testing.T) {
		m := newTestMatrix(t)
		_, err := m.Submit(ctx, SubmitRequest{
			VendorID: key.VendorID, EvaluatorID: key.EvaluatorID,
			RawScores: fullScores(88, 85, 92, 90),
		})
		require.NoError(t, err)

		require.NoError(t, m.ReviewScore(ctx, chair, key, domain.ReviewApproved))
		approved, ok := m.Score(key)
		require.True(t, ok)
		assert.Equal(t, domain.ReviewApproved, approved.ReviewStatus)

		_, err = m.Submit(ctx, SubmitRequest{
			VendorID: key.VendorID, EvaluatorID: key.EvaluatorID,
			RawScores: fullScores(90, 85, 92, 90),
			Version:   approved.Version,
		})
		require.ErrorIs(t, err, domain.ErrScoreApproved)

		_, err = m.Submit(ctx, SubmitRequest{
			VendorID: key.VendorID, EvaluatorID: key.EvaluatorID,
			RawScores: fullScores(90, 85, 92, 90),
			Version:   approved.Version,
			Override:  true,
		})
		require.NoError(t, err)

		overridden := false
		for _, entry := range m.AuditLog() {
			if entry.Overridden {
				overridden = true
			}
		}
		assert.True(t, overridden, "override writes must be flagged in the audit trail")
	})

	t.Run("only the chair reviews", func(t *testing.T) {
		m := newTestMatrix(t)
		_, err := m.Submit(ctx, SubmitRequest{
			VendorID: key.VendorID, EvaluatorID: key.EvaluatorID,
			RawScores: fullScores(88, 85, 92, 90),
		})
		require.NoError(t, err)

		err = m.ReviewScore(ctx, Actor{ID: "eval-2", Role: domain.RoleEvaluator}, key, domain.ReviewApproved)
		require.ErrorIs(t, err, domain.ErrRoleForbidden)
	})

	t.Run("reviewing a missing submission fails", func(t *testing.T) {
		m := newTestMatrix(t)
		err := m.ReviewScore(ctx, chair, key, domain.ReviewApproved)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	chair := Actor{ID: "chair-1", Role: domain.RoleChair}
	reviewer := Actor{ID: "reviewer-1", Role: domain.RoleReviewer}

	submitAll := func(t *testing.T, m *EvaluationMatrix) {
		t.Helper()
		for _, req := range []SubmitRequest{
			{VendorID: "primecare-medical", EvaluatorID: "eval-1", RawScores: fullScores(88, 85, 92, 90)},
			{VendorID: "primecare-medical", EvaluatorID: "eval-2", RawScores: fullScores(86, 84, 90, 88)},
			{VendorID: "falcon-solutions", EvaluatorID: "eval-1", RawScores: fullScores(85, 83, 88, 85)},
		} {
			_, err := m.Submit(ctx, req)
			require.NoError(t, err)
		}
	}

	t.Run("roster completion closes evaluation automatically", func(t *testing.T) {
		m := newTestMatrix(t)
		submitAll(t, m)
		assert.Equal(t, domain.MatrixInProgress, m.Status())

		_, err := m.Submit(ctx, SubmitRequest{
			VendorID: "falcon-solutions", EvaluatorID: "eval-2",
			RawScores: fullScores(84, 82, 87, 84),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.MatrixEvaluationComplete, m.Status())
	})

	t.Run("chair closes with gaps", func(t *testing.T) {
		m := newTestMatrix(t)
		submitAll(t, m)

		require.NoError(t, m.CloseEvaluation(ctx, chair))
		assert.Equal(t, domain.MatrixEvaluationComplete, m.Status())

		results := m.Results()
		assert.Equal(t, 3, results.TotalEvaluated)
		assert.Equal(t, 4, results.ExpectedSubmissions, "the gap stays visible in the snapshot")
	})

	t.Run("submissions rejected after close", func(t *testing.T) {
		m := newTestMatrix(t)
		submitAll(t, m)
		require.NoError(t, m.CloseEvaluation(ctx, chair))

		_, err := m.Submit(ctx, SubmitRequest{
			VendorID: "falcon-solutions", EvaluatorID: "eval-2",
			RawScores: fullScores(84, 82, 87, 84),
		})
		var serr *domain.StateError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, domain.MatrixEvaluationComplete, serr.Status)
	})

	t.Run("full path to final", func(t *testing.T) {
		m := newTestMatrix(t)
		submitAll(t, m)
		require.NoError(t, m.CloseEvaluation(ctx, chair))
		require.NoError(t, m.BeginReview(ctx, reviewer))
		assert.Equal(t, domain.MatrixReview, m.Status())
		require.NoError(t, m.Finalize(ctx, reviewer))
		assert.Equal(t, domain.MatrixFinal, m.Status())

		sealed := false
		for _, entry := range m.AuditLog() {
			if entry.Action == domain.AuditResultsSealed {
				sealed = true
				assert.Equal(t, "primecare-medical", entry.After["recommended_award"])
			}
		}
		assert.True(t, sealed)
	})

	t.Run("role gates on transitions", func(t *testing.T) {
		m := newTestMatrix(t)
		submitAll(t, m)

		require.ErrorIs(t, m.CloseEvaluation(ctx, reviewer), domain.ErrRoleForbidden)
		require.NoError(t, m.CloseEvaluation(ctx, chair))
		require.ErrorIs(t, m.BeginReview(ctx, chair), domain.ErrRoleForbidden)
		require.NoError(t, m.BeginReview(ctx, reviewer))
		require.ErrorIs(t, m.Finalize(ctx, chair), domain.ErrRoleForbidden)
	})

	t.Run("transitions cannot skip states", func(t *testing.T) {
		m := newTestMatrix(t)
		submitAll(t, m)

		var serr *domain.StateError
		require.ErrorAs(t, m.BeginReview(ctx, reviewer), &serr)
		require.ErrorAs(t, m.Finalize(ctx, reviewer), &serr)
	})

	t.Run("cancel requires a reason", func(t *testing.T) {
		m := newTestMatrix(t)
		submitAll(t, m)

		require.ErrorIs(t, m.Cancel(ctx, chair, ""), domain.ErrReasonRequired)
		require.ErrorIs(t, m.Cancel(ctx, reviewer, "budget withdrawn"), domain.ErrRoleForbidden)
		require.NoError(t, m.Cancel(ctx, chair, "budget withdrawn"))
		assert.Equal(t, domain.MatrixCancelled, m.Status())

		_, err := m.Submit(ctx, SubmitRequest{
			VendorID: "falcon-solutions", EvaluatorID: "eval-2",
			RawScores: fullScores(84, 82, 87, 84),
		})
		var serr *domain.StateError
		require.ErrorAs(t, err, &serr)
	})

	t.Run("terminal states stay terminal", func(t *testing.T) {
		m := newTestMatrix(t)
		submitAll(t, m)
		require.NoError(t, m.Cancel(ctx, chair, "budget withdrawn"))

		var serr *domain.StateError
		require.ErrorAs(t, m.CloseEvaluation(ctx, chair), &serr)
		require.ErrorAs(t, m.Cancel(ctx, chair, "again"), &serr)
	})
}

func TestConsensusEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("divergence emits one edge-triggered event", func(t *testing.T) {
		sink := &recordingSink{}
		m := newTestMatrix(t, WithEventSink(sink))

		_, err := m.Submit(ctx, SubmitRequest{
			VendorID: "primecare-medical", EvaluatorID: "eval-1",
			RawScores: fullScores(90, 90, 90, 90),
		})
		require.NoError(t, err)
		assert.Empty(t, sink.ofKind(domain.EventConsensusNotReached))

		_, err = m.Submit(ctx, SubmitRequest{
			VendorID: "primecare-medical", EvaluatorID: "eval-2",
			RawScores: fullScores(60, 60, 60, 60),
		})
		require.NoError(t, err)

		events := sink.ofKind(domain.EventConsensusNotReached)
		require.Len(t, events, 1)
		assert.InDelta(t, 15.0, events[0].Variance, 1e-9)
		assert.False(t, m.Results().ConsensusReached)

		// Another submission while consensus is already broken must not
		// re-emit the alert.
		_, err = m.Submit(ctx, SubmitRequest{
			VendorID: "falcon-solutions", EvaluatorID: "eval-1",
			RawScores: fullScores(85, 83, 88, 85),
		})
		require.NoError(t, err)
		assert.Len(t, sink.ofKind(domain.EventConsensusNotReached), 1)
	})

	t.Run("submissions and transitions are published", func(t *testing.T) {
		sink := &recordingSink{}
		m := newTestMatrix(t, WithEventSink(sink))

		_, err := m.Submit(ctx, SubmitRequest{
			VendorID: "primecare-medical", EvaluatorID: "eval-1",
			RawScores: fullScores(88, 85, 92, 90),
		})
		require.NoError(t, err)

		accepted := sink.ofKind(domain.EventSubmissionAccepted)
		require.Len(t, accepted, 1)
		assert.Equal(t, "primecare-medical", accepted[0].VendorID)

		changed := sink.ofKind(domain.EventStateChanged)
		require.Len(t, changed, 1)
		assert.Equal(t, domain.MatrixSetup, changed[0].From)
		assert.Equal(t, domain.MatrixInProgress, changed[0].To)
	})
}

func TestRecomputeDeterminism(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m := newTestMatrix(t, WithClock(func() time.Time { return fixed }))

	_, err := m.Submit(ctx, SubmitRequest{
		VendorID: "primecare-medical", EvaluatorID: "eval-1",
		RawScores: fullScores(88, 85, 92, 90),
	})
	require.NoError(t, err)
	_, err = m.Submit(ctx, SubmitRequest{
		VendorID: "falcon-solutions", EvaluatorID: "eval-1",
		RawScores: fullScores(85, 83, 88, 85),
	})
	require.NoError(t, err)

	first := m.Results()
	second := m.Results()
	assert.Equal(t, first, second, "reading the snapshot must be side-effect free")

	rows := m.ExportRows()
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "primecare-medical", rows[0].VendorID)
	assert.Equal(t, rows[0].TechnicalScore, rows[0].FinalScore)
}

func TestSubmissionThrottling(t *testing.T) {
	ctx := context.Background()
	m := newTestMatrix(t, WithSubmissionRate(rate.Limit(0.001), 1))

	_, err := m.Submit(ctx, SubmitRequest{
		VendorID: "primecare-medical", EvaluatorID: "eval-1",
		RawScores: fullScores(88, 85, 92, 90),
	})
	require.NoError(t, err)

	// The burst is spent; an immediate second submission is throttled.
	_, err = m.Submit(ctx, SubmitRequest{
		VendorID: "falcon-solutions", EvaluatorID: "eval-1",
		RawScores: fullScores(85, 83, 88, 85),
	})
	require.ErrorIs(t, err, ErrSubmissionThrottled)

	// Other evaluators have their own bucket.
	_, err = m.Submit(ctx, SubmitRequest{
		VendorID: "falcon-solutions", EvaluatorID: "eval-2",
		RawScores: fullScores(84, 82, 87, 84),
	})
	require.NoError(t, err)
}

func TestMetricsWiring(t *testing.T) {
	ctx := context.Background()

	counters := &countingMetrics{counts: make(map[string]float64)}
	m := newTestMatrix(t, WithMetrics(counters))

	_, err := m.Submit(ctx, SubmitRequest{
		VendorID: "primecare-medical", EvaluatorID: "eval-1",
		RawScores: fullScores(88, 85, 92, 90),
	})
	require.NoError(t, err)

	_, err = m.Submit(ctx, SubmitRequest{
		VendorID: "ghost-corp", EvaluatorID: "eval-1",
		RawScores: fullScores(80, 80, 80, 80),
	})
	require.Error(t, err)

	counters.mu.Lock()
	defer counters.mu.Unlock()
	assert.Equal(t, 1.0, counters.counts["matrix_submissions_total/accepted"])
	assert.Equal(t, 1.0, counters.counts["matrix_submissions_total/rejected"])
	assert.Equal(t, 1.0, counters.counts["matrix_state_transitions_total/setup/in_progress"])
	assert.Positive(t, counters.histograms)
}

// countingMetrics is a minimal in-memory MetricsCollector.
type countingMetrics struct {
	mu         sync.Mutex
	counts     map[string]float64
	histograms int
}

func (cm *countingMetrics) RecordLatency(string, time.Duration, map[string]string) {}

func (cm *countingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	switch metric {
	case "matrix_submissions_total":
		cm.counts[metric+"/"+labels["result"]] += value
	case "matrix_state_transitions_total":
		cm.counts[metric+"/"+labels["from"]+"/"+labels["to"]] += value
	default:
		cm.counts[metric] += value
	}
}

func (cm *countingMetrics) RecordGauge(string, float64, map[string]string) {}

func (cm *countingMetrics) RecordHistogram(string, float64, map[string]string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.histograms++
}

var _ ports.MetricsCollector = (*countingMetrics)(nil)

func TestVendorAggregateRollup(t *testing.T) {
	ctx := context.Background()
	m := newTestMatrix(t)

	// Two evaluators disagree on compliance for the same vendor.
	_, err := m.Submit(ctx, SubmitRequest{
		VendorID: "primecare-medical", EvaluatorID: "eval-1",
		RawScores: fullScores(88, 85, 92, 90),
	})
	require.NoError(t, err)
	_, err = m.Submit(ctx, SubmitRequest{
		VendorID: "primecare-medical", EvaluatorID: "eval-2",
		RawScores: fullScores(65, 85, 92, 90),
	})
	require.NoError(t, err)

	results := m.Results()
	require.Len(t, results.Rankings, 1)
	row := results.Rankings[0]

	assert.False(t, row.TechnicalCompliance, "one failing evaluator fails the vendor")
	assert.Equal(t, 2, row.EvaluatorCount)
	require.Len(t, row.ComplianceIssues, 1)
	assert.Equal(t, "technical", row.ComplianceIssues[0].CriterionID)
	assert.Equal(t, domain.SeverityCritical, row.ComplianceIssues[0].Severity)
	assert.Equal(t, domain.RecommendReject, row.Recommendation)
	assert.Zero(t, results.TechnicallyCompliant)

	// engine.Round2 keeps the mean stable: (88.65 + 81.75) / 2.
	expected := engine.Round2((88.65 + 81.75) / 2)
	assert.InDelta(t, expected, row.WeightedScore, 1e-9)
}

// traceKey marks test contexts so observer callbacks can prove they
// received the caller's context rather than a fresh one.
type traceKey struct{}

// ctxObserver records the trace marker seen by each observer callback.
type ctxObserver struct {
	mu         sync.Mutex
	submission []any
	recompute  []any
	transition []any
}

func (co *ctxObserver) SubmissionObserved(ctx context.Context, _ string, _ domain.ScoreKey, _ time.Duration, _ error) {
	co.record(&co.submission, ctx)
}

func (co *ctxObserver) RecomputeObserved(ctx context.Context, _ string, _ domain.MatrixResults, _ time.Duration) {
	co.record(&co.recompute, ctx)
}

func (co *ctxObserver) TransitionObserved(ctx context.Context, _ string, _, _ domain.MatrixStatus) {
	co.record(&co.transition, ctx)
}

func (co *ctxObserver) record(dst *[]any, ctx context.Context) {
	co.mu.Lock()
	defer co.mu.Unlock()
	*dst = append(*dst, ctx.Value(traceKey{}))
}

var _ ports.MatrixObserver = (*ctxObserver)(nil)

func TestObserverContextPropagation(t *testing.T) {
	obs := &ctxObserver{}
	m := newTestMatrix(t, WithObserver(obs))

	traced := context.WithValue(context.Background(), traceKey{}, "trace-1")
	_, err := m.Submit(traced, SubmitRequest{
		VendorID: "primecare-medical", EvaluatorID: "eval-1",
		RawScores: fullScores(88, 85, 92, 90),
	})
	require.NoError(t, err)

	chair := Actor{ID: "chair-1", Role: domain.RoleChair}
	require.NoError(t, m.CloseEvaluation(traced, chair))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.NotEmpty(t, obs.submission)
	require.NotEmpty(t, obs.recompute, "submit and transitions both recompute")
	require.NotEmpty(t, obs.transition, "auto InProgress plus chair close")
	for _, seen := range [][]any{obs.submission, obs.recompute, obs.transition} {
		for _, v := range seen {
			assert.Equal(t, "trace-1", v)
		}
	}
}
