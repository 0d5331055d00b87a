package app

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"classroom-analytics/internal/domain"
)

// DefaultProcessingInterval is how often the processor re-evaluates alert
// rules when the config does not override it.
const DefaultProcessingInterval = 15 * time.Minute

// Processor is the recurring background task that recomputes inactivity,
// participation, and failure-rate metrics for every active session and asks
// the engine to emit qualifying alerts.
type Processor struct {
	service  *AnalyticsService
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewProcessor(service *AnalyticsService, interval time.Duration) *Processor {
	return NewProcessorWithClock(service, interval, time.Now)
}

// NewProcessorWithClock allows deterministic rule evaluation in tests.
func NewProcessorWithClock(service *AnalyticsService, interval time.Duration, now func() time.Time) *Processor {
	if interval <= 0 {
		interval = DefaultProcessingInterval
	}
	return &Processor{service: service, interval: interval, now: now}
}

// Start launches the periodic sweep. Calling Start on a running processor is
// a no-op.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)
}

// Stop cancels the periodic sweep and waits for the current one to finish.
// Idempotent, and safe to call on a processor that was never started.
func (p *Processor) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (p *Processor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.ProcessAll()
		case <-stop:
			return
		}
	}
}

// ProcessAll sweeps every active session once. Exposed so test triggers can
// force an evaluation between ticks.
func (p *Processor) ProcessAll() {
	for _, sessionID := range p.service.ActiveSessionIDs() {
		p.processSession(sessionID)
	}
}

// processSession evaluates the three rules independently; all of them may
// fire in the same sweep, each behind its own cooldown. A session cleaned up
// since the id list was taken is skipped.
func (p *Processor) processSession(sessionID int64) {
	snap, ok := p.service.Snapshot(sessionID)
	if !ok {
		return
	}
	p.checkStudentInactivity(sessionID, snap)
	p.checkLowParticipation(sessionID, snap)
	p.checkQuestionFailureRates(sessionID, snap)
}

func (p *Processor) checkStudentInactivity(sessionID int64, snap SessionSnapshot) {
	now := p.now()
	threshold := p.service.GetAlertThreshold(sessionID, domain.AlertStudentInactivity)

	inactiveCount := 0
	for _, lastActive := range snap.LastActivity {
		if elapsedMillis(now, lastActive) > threshold {
			inactiveCount++
		}
	}
	if inactiveCount == 0 {
		return
	}

	p.service.EmitOptionalAlert(
		sessionID,
		domain.AlertStudentInactivity,
		fmt.Sprintf("%d students have been inactive for more than %s minutes",
			inactiveCount, formatNumber(threshold/(60*1000))),
		map[string]any{"inactiveCount": inactiveCount},
	)
}

// checkLowParticipation reuses the inactivity threshold as the "recently
// active" cutoff. The coupling is documented behavior, not an accident.
func (p *Processor) checkLowParticipation(sessionID int64, snap SessionSnapshot) {
	totalStudents := len(snap.LastActivity)
	if totalStudents == 0 {
		return
	}

	now := p.now()
	inactivityThreshold := p.service.GetAlertThreshold(sessionID, domain.AlertStudentInactivity)
	activeCount := 0
	for _, lastActive := range snap.LastActivity {
		if elapsedMillis(now, lastActive) <= inactivityThreshold {
			activeCount++
		}
	}

	participationRate := float64(activeCount) / float64(totalStudents) * 100
	threshold := p.service.GetAlertThreshold(sessionID, domain.AlertLowParticipation)
	if participationRate >= threshold {
		return
	}

	p.service.EmitOptionalAlert(
		sessionID,
		domain.AlertLowParticipation,
		fmt.Sprintf("Participation rate (%.1f%%) is below threshold of %s%%",
			participationRate, formatNumber(threshold)),
		map[string]any{
			"participationRate": participationRate,
			"activeCount":       activeCount,
			"totalStudents":     totalStudents,
		},
	)
}

func (p *Processor) checkQuestionFailureRates(sessionID int64, snap SessionSnapshot) {
	threshold := p.service.GetAlertThreshold(sessionID, domain.AlertQuestionFailureRate)

	for questionID, stats := range snap.QuestionStats {
		if stats.Attempts < domain.MinAttemptsForFailureRate {
			continue
		}
		failureRate := float64(stats.Failures) / float64(stats.Attempts) * 100
		if failureRate <= threshold {
			continue
		}

		p.service.EmitOptionalAlert(
			sessionID,
			domain.AlertQuestionFailureRate,
			fmt.Sprintf("Question %d has a high failure rate of %.1f%%", questionID, failureRate),
			map[string]any{
				"questionId":  questionID,
				"failureRate": failureRate,
				"attempts":    stats.Attempts,
				"failures":    stats.Failures,
			},
		)
	}
}

func elapsedMillis(now, since time.Time) float64 {
	return float64(now.Sub(since).Milliseconds())
}

// formatNumber renders thresholds without trailing zeros (10, 30, 62.5).
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
