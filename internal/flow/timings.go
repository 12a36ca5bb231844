package flow

import "time"

// timings collects every wait budget the flows use. Production runs use
// defaultTimings; tests shrink them so cascades against fake pages finish
// instantly.
type timings struct {
	// ProbeShort is the per-candidate budget for opportunistic checks.
	ProbeShort time.Duration
	// ProbeTiny is for cheap presence probes inside composite conditions.
	ProbeTiny time.Duration
	// ClickBudget is the per-candidate budget for click cascades.
	ClickBudget time.Duration
	// FillBudget is the per-candidate budget when filling required fields.
	FillBudget time.Duration
	// SettleShort follows a click that mutates the page in place.
	SettleShort time.Duration
	// SettleLong follows a click that triggers a view transition.
	SettleLong time.Duration
	// Poll is the generic re-check interval for bounded waits.
	Poll time.Duration
	// LoginStep bounds each login state transition.
	LoginStep time.Duration
	// FavoritesList bounds the favorites table load.
	FavoritesList time.Duration
	// PaymentSubmit bounds the wait for the payment submit control.
	PaymentSubmit time.Duration
	// OTPEvidence bounds the post-submit evidence wait per attempt.
	OTPEvidence time.Duration
	// OTPEvidencePoll is the evidence re-check interval.
	OTPEvidencePoll time.Duration
	// PaymentResult bounds the final processing wait.
	PaymentResult time.Duration
	// PaymentResultPoll is the processing re-check interval.
	PaymentResultPoll time.Duration
}

func defaultTimings() timings {
	return timings{
		ProbeShort:        1200 * time.Millisecond,
		ProbeTiny:         700 * time.Millisecond,
		ClickBudget:       2200 * time.Millisecond,
		FillBudget:        6 * time.Second,
		SettleShort:       400 * time.Millisecond,
		SettleLong:        700 * time.Millisecond,
		Poll:              250 * time.Millisecond,
		LoginStep:         30 * time.Second,
		FavoritesList:     20 * time.Second,
		PaymentSubmit:     8 * time.Second,
		OTPEvidence:       3500 * time.Millisecond,
		OTPEvidencePoll:   250 * time.Millisecond,
		PaymentResult:     90 * time.Second,
		PaymentResultPoll: 500 * time.Millisecond,
	}
}

// testTimings collapses every budget so polling loops run their final
// re-check immediately.
func testTimings() timings {
	t := timings{}
	t.ProbeShort = 0
	t.ProbeTiny = 0
	t.ClickBudget = 0
	t.FillBudget = 0
	t.SettleShort = 0
	t.SettleLong = 0
	t.Poll = time.Millisecond
	t.LoginStep = 50 * time.Millisecond
	t.FavoritesList = 50 * time.Millisecond
	t.PaymentSubmit = 20 * time.Millisecond
	t.OTPEvidence = 20 * time.Millisecond
	t.OTPEvidencePoll = time.Millisecond
	t.PaymentResult = 50 * time.Millisecond
	t.PaymentResultPoll = time.Millisecond
	return t
}
