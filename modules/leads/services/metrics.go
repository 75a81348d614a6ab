package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveryResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leadflow",
		Name:      "delivery_results_total",
		Help:      "Outbound message attempts broken down by delivery status.",
	}, []string{"status"})

	handoffs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leadflow",
		Name:      "handoffs_total",
		Help:      "Conversation role switches broken down by source role, target role and reason.",
	}, []string{"from", "to", "reason"})

	actionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leadflow",
		Name:      "actions_total",
		Help:      "Requested side effects broken down by action type and result.",
	}, []string{"type", "result"})

	agentLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "leadflow",
		Name:      "agent_latency_seconds",
		Help:      "Latency distribution of conversational role calls.",
		Buckets: []float64{
			0.05, 0.1, 0.2, 0.5,
			1, 2, 5, 10, 20, 30,
		},
	}, []string{"role", "kind"})
)
