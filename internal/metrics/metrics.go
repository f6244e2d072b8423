// Package metrics содержит коллекторы Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal считает обработанные HTTP-запросы.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagemart_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration: распределение длительности HTTP-запросов.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engagemart_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"})

	// LedgerTransactions считает созданные и рассмотренные проводки.
	LedgerTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagemart_ledger_transactions_total",
		Help: "Ledger transactions by type and resulting status",
	}, []string{"type", "status"})

	// TaskSubmissions считает отправленные доказательства по результату проверки.
	TaskSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagemart_task_submissions_total",
		Help: "Task proof submissions by verification outcome",
	}, []string{"outcome"})

	// CampaignsCompleted считает кампании, исчерпавшие бюджет.
	CampaignsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engagemart_campaigns_completed_total",
		Help: "Campaigns whose budget can no longer pay a task",
	})

	// AIFailures считает сбои обращений к AI-сервису.
	AIFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagemart_ai_failures_total",
		Help: "Failed AI collaborator calls by endpoint",
	}, []string{"endpoint"})

	// ReconcileFindings: число расхождений, найденных последней сверкой.
	ReconcileFindings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engagemart_reconcile_findings",
		Help: "Consistency problems found by the last reconciliation run",
	})
)
