package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
)

// strategyBySeverity is the resolution policy as a data fact. High and
// Medium deliberately map to the same strategy.
var strategyBySeverity = map[domain.ConflictSeverity]domain.ResolutionStrategy{
	domain.SeverityLow:      domain.StrategyAutoResolve,
	domain.SeverityMedium:   domain.StrategySuggestAlternative,
	domain.SeverityHigh:     domain.StrategySuggestAlternative,
	domain.SeverityCritical: domain.StrategyManualReview,
}

var messageByStrategy = map[domain.ResolutionStrategy]string{
	domain.StrategyReject:             "Appointment cannot be scheduled due to critical conflicts.",
	domain.StrategyManualReview:       "Appointment requires manual review due to complex conflicts.",
	domain.StrategySuggestAlternative: "Conflicts detected. Alternative times are suggested below.",
	domain.StrategyWaitlist:           "Time slot is unavailable. You can join the waitlist.",
	domain.StrategyAutoResolve:        "No conflicts detected. Appointment can be scheduled.",
}

// Resolver classifies a conflict set, picks a resolution strategy and
// searches the doctor's schedule for alternative slots.
type Resolver struct {
	detector *Detector
	policy   Policy
}

func NewResolver(detector *Detector, policy Policy) *Resolver {
	return &Resolver{detector: detector, policy: policy}
}

// Analyze reduces a conflict set to its overall severity. A set containing a
// Critical conflict is unresolvable; the current detector never emits
// Critical, the case is reserved.
func (r *Resolver) Analyze(conflicts []domain.Conflict) domain.ConflictAnalysis {
	if len(conflicts) == 0 {
		return domain.ConflictAnalysis{Severity: domain.SeverityLow, Resolvable: true}
	}
	severity := domain.MaxSeverity(conflicts)
	return domain.ConflictAnalysis{
		Severity:   severity,
		Resolvable: severity != domain.SeverityCritical,
	}
}

func (r *Resolver) Strategy(analysis domain.ConflictAnalysis, hasConflicts bool) domain.ResolutionStrategy {
	if !analysis.Resolvable {
		return domain.StrategyReject
	}
	if !hasConflicts {
		return domain.StrategyAutoResolve
	}
	return strategyBySeverity[analysis.Severity]
}

// SuggestAlternativeTimes generates candidate start times by alternating
// offsets before and after the preferred start, discards candidates that
// still conflict, and returns the top maxSuggestions scored by proximity to
// the preferred time.
func (r *Resolver) SuggestAlternativeTimes(ctx context.Context, doctorID uuid.UUID, preferred domain.TimeInterval, maxSuggestions int) ([]domain.Suggestion, error) {
	if maxSuggestions <= 0 {
		maxSuggestions = r.policy.MaxSuggestions
	}
	duration := preferred.Duration()

	suggestions := make([]domain.Suggestion, 0, maxSuggestions)
	for i := 0; i < maxSuggestions*r.policy.CandidateMultiple; i++ {
		offset := time.Duration(i+1) * r.policy.SuggestionStep
		var start time.Time
		if i%2 == 0 {
			start = preferred.Start.Add(-offset)
		} else {
			start = preferred.Start.Add(offset)
		}
		candidate := domain.TimeInterval{Start: start, End: start.Add(duration)}

		conflicts, err := r.detector.Detect(ctx, doctorID, candidate, DetectOptions{})
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			continue
		}

		suggestions = append(suggestions, domain.Suggestion{
			Kind:     domain.SuggestionAlternativeTime,
			Interval: candidate,
			Score:    r.score(offset),
			Reason:   fmt.Sprintf("alternative time slot %s from preferred", offsetLabel(offset, i%2 == 0)),
		})
	}

	sort.SliceStable(suggestions, func(a, b int) bool {
		if suggestions[a].Score != suggestions[b].Score {
			return suggestions[a].Score > suggestions[b].Score
		}
		return suggestions[a].Interval.Start.Before(suggestions[b].Interval.Start)
	})
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	return suggestions, nil
}

// score decays from the maximum by 10 points per hour of distance from the
// preferred start, floored at zero.
func (r *Resolver) score(offset time.Duration) float64 {
	s := r.policy.SuggestionMaxScore - offset.Hours()*10
	if s < 0 {
		return 0
	}
	return s
}

// Resolve combines the chosen strategy with alternative-time suggestions and
// a join-waitlist fallback.
func (r *Resolver) Resolve(ctx context.Context, conflicts []domain.Conflict, doctorID, patientID uuid.UUID, preferred domain.TimeInterval) (domain.ResolutionOutcome, error) {
	if len(conflicts) == 0 {
		return domain.ResolutionOutcome{
			Resolved: true,
			Strategy: domain.StrategyAutoResolve,
			Message:  messageByStrategy[domain.StrategyAutoResolve],
		}, nil
	}

	analysis := r.Analyze(conflicts)
	strategy := r.Strategy(analysis, true)

	suggestions, err := r.SuggestAlternativeTimes(ctx, doctorID, preferred, r.policy.MaxSuggestions)
	if err != nil {
		return domain.ResolutionOutcome{}, err
	}
	suggestions = append(suggestions, domain.Suggestion{
		Kind:   domain.SuggestionJoinWaitlist,
		Reason: "time slot is currently unavailable",
	})

	return domain.ResolutionOutcome{
		Resolved:    strategy == domain.StrategyAutoResolve,
		Strategy:    strategy,
		Conflicts:   conflicts,
		Suggestions: suggestions,
		Message:     messageByStrategy[strategy],
	}, nil
}

func offsetLabel(offset time.Duration, before bool) string {
	if before {
		return "-" + offset.String()
	}
	return "+" + offset.String()
}
