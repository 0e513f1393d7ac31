package risk

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/mbd888/fingate/internal/idgen"
	"github.com/mbd888/fingate/internal/metrics"
)

// Factor weights. Each factor contributes at most once; the sum is
// clamped to [0, 1].
const (
	weightUnusualAmount  = 0.30
	weightExceedsMax     = 0.20
	weightUnusualTime    = 0.20
	weightMerchant       = 0.25
	weightVelocity       = 0.15
	weightIntlChannel    = 0.10
	velocityWindow       = 10 * time.Minute
	velocityTrigger      = 3 // more than this many recent txns triggers
	baselineHistoryDepth = 100
)

// Baselines used when the user has no transaction history.
const (
	defaultAvgAmount = 1000
	defaultMaxAmount = 5000
)

// suspiciousKeywords flag high-risk merchants by name.
var suspiciousKeywords = []string{"INTL", "FOREIGN", "CRYPTO", "CASINO", "GAMBLING", "OFFSHORE"}

// Scorer evaluates transactions against a user's recent history.
type Scorer struct {
	store Store
	now   func() time.Time
	randF func() float64 // uniform [0,1), for confidence jitter
}

// NewScorer creates a fraud risk scorer backed by the given audit store.
// A nil store disables the audit trail.
func NewScorer(store Store) *Scorer {
	return &Scorer{
		store: store,
		now:   time.Now,
		randF: rand.Float64,
	}
}

// Score evaluates a candidate transaction against the user's history
// (newest first, only Amount and Date consulted). Adding a triggering
// condition never lowers the score.
func (s *Scorer) Score(ctx context.Context, userID string, tx *Transaction, history []*Transaction) (*Assessment, error) {
	if tx == nil || tx.Amount == 0 || tx.Merchant == "" {
		return nil, ErrInvalidTransaction
	}

	if len(history) > baselineHistoryDepth {
		history = history[:baselineHistoryDepth]
	}
	avg, max := baseline(history)

	var score float64
	var factors []Factor
	add := func(f Factor) {
		score += f.Score
		factors = append(factors, f)
	}

	amount := math.Abs(tx.Amount)
	switch {
	case amount > avg*3:
		add(Factor{
			Name:   "UNUSUAL_AMOUNT",
			Score:  weightUnusualAmount,
			Reason: fmt.Sprintf("Amount %.0f is 3x your average %.0f", amount, avg),
		})
	case amount > max:
		add(Factor{
			Name:   "EXCEEDS_MAX",
			Score:  weightExceedsMax,
			Reason: fmt.Sprintf("Exceeds your highest transaction of %.0f", max),
		})
	}

	when := tx.Date
	if when.IsZero() {
		when = s.now()
	}
	if hour := when.Hour(); hour <= 5 {
		add(Factor{
			Name:   "UNUSUAL_TIME",
			Score:  weightUnusualTime,
			Reason: fmt.Sprintf("Transaction at %02d:%02d (unusual hour)", hour, when.Minute()),
		})
	}

	merchant := strings.ToUpper(tx.Merchant)
	for _, kw := range suspiciousKeywords {
		if strings.Contains(merchant, kw) {
			add(Factor{
				Name:   "SUSPICIOUS_MERCHANT",
				Score:  weightMerchant,
				Reason: fmt.Sprintf("Merchant '%s' flagged as high-risk", merchant),
			})
			break
		}
	}

	if recent := s.countRecent(history); recent > velocityTrigger {
		add(Factor{
			Name:   "HIGH_VELOCITY",
			Score:  weightVelocity,
			Reason: fmt.Sprintf("%d transactions in last 10 minutes", recent),
		})
	}

	if tx.Mode == "INTERNATIONAL_CARD" || strings.Contains(strings.ToUpper(tx.Mode), "INTL") {
		add(Factor{
			Name:   "INTERNATIONAL_CHANNEL",
			Score:  weightIntlChannel,
			Reason: "International card usage detected",
		})
	}

	if score > 1.0 {
		score = 1.0
	}
	score = math.Round(score*1000) / 1000

	action, severity, recommendation := verdict(score)

	deviation := 0.0
	if avg > 0 {
		deviation = math.Round(amount/avg*100) / 100
	}

	assessment := &Assessment{
		ID:             idgen.WithPrefix("risk_"),
		TransactionID:  txID(tx),
		UserID:         userID,
		Score:          score,
		Severity:       severity,
		Action:         action,
		Factors:        factors,
		Recommendation: recommendation,
		Confidence:     s.confidence(),
		Pattern: PatternAnalysis{
			AvgTransaction: math.Round(avg*100) / 100,
			MaxTransaction: math.Round(max*100) / 100,
			DeviationScore: deviation,
		},
		AlertTriggered: action == ActionBlock,
		EvaluatedAt:    s.now(),
	}

	metrics.FraudDecisionsTotal.WithLabelValues(string(action)).Inc()

	// Best-effort audit trail; scoring never fails on a slow store.
	if s.store != nil {
		go func() {
			_ = s.store.Record(context.Background(), assessment)
		}()
	}

	return assessment, nil
}

// baseline computes the user's average and max absolute amounts.
func baseline(history []*Transaction) (avg, max float64) {
	if len(history) == 0 {
		return defaultAvgAmount, defaultMaxAmount
	}
	var sum float64
	for _, t := range history {
		a := math.Abs(t.Amount)
		sum += a
		if a > max {
			max = a
		}
	}
	return sum / float64(len(history)), max
}

// countRecent counts history entries inside the velocity window.
func (s *Scorer) countRecent(history []*Transaction) int {
	cutoff := s.now().Add(-velocityWindow)
	n := 0
	for _, t := range history {
		if t.Date.After(cutoff) {
			n++
		}
	}
	return n
}

func verdict(score float64) (Action, string, string) {
	switch {
	case score >= BlockThreshold:
		return ActionBlock, "HIGH", "Transaction blocked. Verify with customer immediately."
	case score >= ReviewThreshold:
		return ActionReview, "MEDIUM", "Flag for manual review. Send OTP for verification."
	default:
		return ActionAllow, "LOW", "Transaction appears normal. Process as usual."
	}
}

// confidence simulates model confidence: 0.85 baseline with small
// jitter, independent of the score.
func (s *Scorer) confidence() float64 {
	c := 0.85 + (s.randF()*0.15 - 0.05)
	return math.Round(c*100) / 100
}

func txID(tx *Transaction) string {
	if tx.ID != "" {
		return tx.ID
	}
	return "TXN_ANALYSIS"
}
