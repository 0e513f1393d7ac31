package risk

import (
	"context"
	"testing"
	"time"
)

func fixedScorer(now time.Time) *Scorer {
	s := NewScorer(nil)
	s.now = func() time.Time { return now }
	s.randF = func() float64 { return 1.0 / 3.0 } // confidence = 0.85
	return s
}

// History with a stable baseline: avg 1000, max 2000.
func quietHistory(now time.Time) []*Transaction {
	return []*Transaction{
		{Amount: -500, Date: now.Add(-48 * time.Hour)},
		{Amount: -1000, Date: now.Add(-36 * time.Hour)},
		{Amount: -500, Date: now.Add(-24 * time.Hour)},
		{Amount: -2000, Date: now.Add(-12 * time.Hour)},
	}
}

func TestScoreNormalTransaction(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	a, err := s.Score(context.Background(), "USR001", &Transaction{
		ID: "TXN100", Amount: -800, Merchant: "Swiggy", Date: now,
	}, quietHistory(now))
	if err != nil {
		t.Fatal(err)
	}
	if a.Score != 0 {
		t.Errorf("score = %v, want 0", a.Score)
	}
	if a.Action != ActionAllow {
		t.Errorf("action = %v, want ALLOW", a.Action)
	}
	if a.Severity != "LOW" {
		t.Errorf("severity = %v, want LOW", a.Severity)
	}
	if len(a.Factors) != 0 {
		t.Errorf("factors = %v, want none", a.Factors)
	}
	if a.AlertTriggered {
		t.Error("alert triggered on clean transaction")
	}
}

func TestScoreMissingFields(t *testing.T) {
	s := fixedScorer(time.Now())
	ctx := context.Background()

	if _, err := s.Score(ctx, "USR001", &Transaction{Merchant: "Shop"}, nil); err != ErrInvalidTransaction {
		t.Errorf("missing amount: err = %v, want ErrInvalidTransaction", err)
	}
	if _, err := s.Score(ctx, "USR001", &Transaction{Amount: 100}, nil); err != ErrInvalidTransaction {
		t.Errorf("missing merchant: err = %v, want ErrInvalidTransaction", err)
	}
	if _, err := s.Score(ctx, "USR001", nil, nil); err != ErrInvalidTransaction {
		t.Errorf("nil transaction: err = %v, want ErrInvalidTransaction", err)
	}
}

func TestScoreUnusualAmount(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	// avg 1000 → 3500 is over 3x.
	a, err := s.Score(context.Background(), "USR001", &Transaction{
		Amount: -3500, Merchant: "Electronics Store", Date: now,
	}, quietHistory(now))
	if err != nil {
		t.Fatal(err)
	}
	if a.Score != 0.3 {
		t.Errorf("score = %v, want 0.3", a.Score)
	}
	assertFactor(t, a, "UNUSUAL_AMOUNT")
}

func TestScoreExceedsMaxOnly(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	// avg 1000, max 2000 → 2500 exceeds max but not 3x avg.
	a, err := s.Score(context.Background(), "USR001", &Transaction{
		Amount: -2500, Merchant: "Electronics Store", Date: now,
	}, quietHistory(now))
	if err != nil {
		t.Fatal(err)
	}
	if a.Score != 0.2 {
		t.Errorf("score = %v, want 0.2", a.Score)
	}
	assertFactor(t, a, "EXCEEDS_MAX")
}

func TestScoreNightHour(t *testing.T) {
	night := time.Date(2026, 3, 1, 3, 30, 0, 0, time.UTC)
	s := fixedScorer(night)

	a, err := s.Score(context.Background(), "USR001", &Transaction{
		Amount: -800, Merchant: "Swiggy", Date: night,
	}, quietHistory(night))
	if err != nil {
		t.Fatal(err)
	}
	if a.Score != 0.2 {
		t.Errorf("score = %v, want 0.2", a.Score)
	}
	assertFactor(t, a, "UNUSUAL_TIME")
}

func TestScoreSuspiciousMerchant(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	for _, merchant := range []string{
		"Crypto Exchange Ltd", "INTL WIRE SVC", "Grand Casino", "offshore holdings",
	} {
		a, err := s.Score(context.Background(), "USR001", &Transaction{
			Amount: -800, Merchant: merchant, Date: now,
		}, quietHistory(now))
		if err != nil {
			t.Fatal(err)
		}
		if a.Score != 0.25 {
			t.Errorf("merchant %q: score = %v, want 0.25", merchant, a.Score)
		}
		assertFactor(t, a, "SUSPICIOUS_MERCHANT")
	}
}

func TestScoreVelocity(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	history := []*Transaction{
		{Amount: -1000, Date: now.Add(-1 * time.Minute)},
		{Amount: -1000, Date: now.Add(-3 * time.Minute)},
		{Amount: -1000, Date: now.Add(-5 * time.Minute)},
		{Amount: -1000, Date: now.Add(-8 * time.Minute)},
		{Amount: -1000, Date: now.Add(-2 * time.Hour)},
	}

	a, err := s.Score(context.Background(), "USR001", &Transaction{
		Amount: -800, Merchant: "Swiggy", Date: now,
	}, history)
	if err != nil {
		t.Fatal(err)
	}
	if a.Score != 0.15 {
		t.Errorf("score = %v, want 0.15", a.Score)
	}
	assertFactor(t, a, "HIGH_VELOCITY")
}

func TestScoreInternationalChannel(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	a, err := s.Score(context.Background(), "USR001", &Transaction{
		Amount: -800, Merchant: "Swiggy", Date: now, Mode: "INTERNATIONAL_CARD",
	}, quietHistory(now))
	if err != nil {
		t.Fatal(err)
	}
	if a.Score != 0.1 {
		t.Errorf("score = %v, want 0.1", a.Score)
	}
	assertFactor(t, a, "INTERNATIONAL_CHANNEL")
}

func TestScoreBlocksStackedFactors(t *testing.T) {
	night := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	s := fixedScorer(night)

	// Unusual amount (0.3) + night (0.2) + suspicious merchant (0.25) = 0.75.
	a, err := s.Score(context.Background(), "USR001", &Transaction{
		Amount: -50000, Merchant: "OFFSHORE CRYPTO LTD", Date: night,
	}, quietHistory(night))
	if err != nil {
		t.Fatal(err)
	}
	if a.Score != 0.75 {
		t.Errorf("score = %v, want 0.75", a.Score)
	}
	if a.Action != ActionBlock {
		t.Errorf("action = %v, want BLOCK", a.Action)
	}
	if a.Severity != "HIGH" {
		t.Errorf("severity = %v, want HIGH", a.Severity)
	}
	if !a.AlertTriggered {
		t.Error("expected alert on BLOCK")
	}
	if len(a.Factors) != 3 {
		t.Errorf("factors = %d, want 3", len(a.Factors))
	}
	for _, f := range a.Factors {
		if f.Reason == "" {
			t.Errorf("factor %s has empty reason", f.Name)
		}
	}
}

func TestScoreReviewBand(t *testing.T) {
	night := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	s := fixedScorer(night)

	// Night (0.2) + exceeds max (0.2) = 0.4 → REVIEW.
	a, err := s.Score(context.Background(), "USR001", &Transaction{
		Amount: -2500, Merchant: "Electronics Store", Date: night,
	}, quietHistory(night))
	if err != nil {
		t.Fatal(err)
	}
	if a.Score != 0.4 {
		t.Errorf("score = %v, want 0.4", a.Score)
	}
	if a.Action != ActionReview {
		t.Errorf("action = %v, want REVIEW", a.Action)
	}
}

func TestScoreClampedAtOne(t *testing.T) {
	night := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	s := fixedScorer(night)

	history := []*Transaction{
		{Amount: -100, Date: night.Add(-1 * time.Minute)},
		{Amount: -100, Date: night.Add(-2 * time.Minute)},
		{Amount: -100, Date: night.Add(-3 * time.Minute)},
		{Amount: -100, Date: night.Add(-4 * time.Minute)},
	}

	// All five factors: 0.3 + 0.2 + 0.25 + 0.15 + 0.1 = 1.0.
	a, err := s.Score(context.Background(), "USR001", &Transaction{
		Amount: -99999, Merchant: "INTL CASINO", Date: night, Mode: "INTERNATIONAL_CARD",
	}, history)
	if err != nil {
		t.Fatal(err)
	}
	if a.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", a.Score)
	}
	if a.Action != ActionBlock {
		t.Errorf("action = %v, want BLOCK", a.Action)
	}
}

// Adding a triggering condition must never lower the score.
func TestScoreMonotonic(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	s := fixedScorer(now)
	ctx := context.Background()
	history := quietHistory(now)

	base, err := s.Score(ctx, "USR001", &Transaction{
		Amount: -800, Merchant: "Swiggy", Date: now,
	}, history)
	if err != nil {
		t.Fatal(err)
	}

	steps := []*Transaction{
		{Amount: -800, Merchant: "Swiggy INTL", Date: now},
		{Amount: -800, Merchant: "Swiggy INTL", Date: now, Mode: "INTERNATIONAL_CARD"},
		{Amount: -50000, Merchant: "Swiggy INTL", Date: now, Mode: "INTERNATIONAL_CARD"},
	}
	prev := base.Score
	for i, tx := range steps {
		a, err := s.Score(ctx, "USR001", tx, history)
		if err != nil {
			t.Fatal(err)
		}
		if a.Score < prev {
			t.Errorf("step %d: score %v dropped below %v", i, a.Score, prev)
		}
		prev = a.Score
	}
}

func TestScoreNoHistoryUsesDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	// Defaults: avg 1000, max 5000. 3500 exceeds 3x avg.
	a, err := s.Score(context.Background(), "USR001", &Transaction{
		Amount: -3500, Merchant: "Shop", Date: now,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	assertFactor(t, a, "UNUSUAL_AMOUNT")
	if a.Pattern.AvgTransaction != defaultAvgAmount {
		t.Errorf("avg = %v, want default", a.Pattern.AvgTransaction)
	}
	if a.Pattern.MaxTransaction != defaultMaxAmount {
		t.Errorf("max = %v, want default", a.Pattern.MaxTransaction)
	}
}

func TestConfidenceIndependentOfScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	s := fixedScorer(now)
	ctx := context.Background()

	clean, err := s.Score(ctx, "USR001", &Transaction{
		Amount: -800, Merchant: "Swiggy", Date: now,
	}, quietHistory(now))
	if err != nil {
		t.Fatal(err)
	}
	risky, err := s.Score(ctx, "USR001", &Transaction{
		Amount: -50000, Merchant: "INTL CASINO", Date: now,
	}, quietHistory(now))
	if err != nil {
		t.Fatal(err)
	}

	if clean.Confidence != 0.85 || risky.Confidence != 0.85 {
		t.Errorf("confidence = %v / %v, want 0.85 with pinned jitter", clean.Confidence, risky.Confidence)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()

	for i := 0; i < 3; i++ {
		err := ms.Record(ctx, &Assessment{
			ID: idString(i), UserID: "USR001", Score: float64(i) / 10,
			Action: ActionAllow, EvaluatedAt: time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	list, err := ms.ListByUser(ctx, "USR001", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != "a2" {
		t.Errorf("newest first: got %s", list[0].ID)
	}

	none, err := ms.ListByUser(ctx, "USR999", 10)
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Errorf("expected nil for unknown user, got %v", none)
	}
}

func idString(i int) string {
	return "a" + string(rune('0'+i))
}

func assertFactor(t *testing.T, a *Assessment, name string) {
	t.Helper()
	for _, f := range a.Factors {
		if f.Name == name {
			return
		}
	}
	t.Errorf("factor %s not present in %v", name, a.Factors)
}
