package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCalls - количество отправленных b-CAP запросов по функциям.
	RPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "denso_bcap_calls_total",
		Help: "The total number of b-CAP requests sent to the controller",
	}, []string{"function"})

	// RPCDuration - время от отправки запроса до окончательного ответа.
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "denso_bcap_call_duration_seconds",
		Help:    "Round-trip time of b-CAP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"function"})

	// Faults - классифицированные ошибки по виду и коду.
	Faults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "denso_faults_total",
		Help: "Faults routed through the classifier",
	}, []string{"kind", "code"})

	// Retries - автоматические повторы после распознанной ошибки.
	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "denso_fault_retries_total",
		Help: "Automatic retries issued after a recoverable remote fault",
	}, []string{"command"})

	Moves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "denso_moves_total",
		Help: "Relative moves queued on the arm",
	})

	ArchivedFiles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "denso_archived_files_total",
		Help: "Program files mirrored to local storage",
	})
)
