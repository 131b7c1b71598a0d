package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ListFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "returns_list_fetches_total",
		Help: "Total number of list fetches issued against the document store.",
	},
		[]string{"view"},
	)

	SuggestionQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "returns_suggestion_queries_total",
		Help: "Total number of typeahead suggestion queries issued.",
	},
		[]string{"view"},
	)

	StaleResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "returns_stale_responses_total",
		Help: "Total number of store responses discarded because a newer request was issued.",
	},
		[]string{"view", "kind"},
	)

	RowActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "returns_row_actions_total",
		Help: "Total number of row actions successfully executed.",
	},
		[]string{"action"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "returns_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "returns_active_sessions",
		Help: "Current number of dashboard sessions held in memory.",
	})

	OutboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "returns_outbox_published_total",
		Help: "Total number of outbox tasks published to Kafka.",
	})
)
