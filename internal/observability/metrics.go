package observability

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values shared by the domain counters.
const (
	OutcomeOK        = "ok"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeResolved  = "already_resolved"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

var (
	// SubmissionsTotal counts request submissions by outcome.
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pukbot_submissions_total",
			Help: "Access-code request submissions by outcome.",
		},
		[]string{"outcome"},
	)

	// DecisionsTotal counts administrator decisions by action and outcome.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pukbot_decisions_total",
			Help: "Administrator decisions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	// CodesIssuedTotal counts codes written on approval.
	CodesIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pukbot_codes_issued_total",
			Help: "Access codes issued.",
		},
	)

	// LookupsTotal counts code lookups by outcome.
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pukbot_lookups_total",
			Help: "Code lookups by outcome.",
		},
		[]string{"outcome"},
	)

	// UpdatesTotal counts inbound chat events by kind.
	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pukbot_updates_total",
			Help: "Inbound chat events by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(SubmissionsTotal, DecisionsTotal, CodesIssuedTotal, LookupsTotal, UpdatesTotal)
}
