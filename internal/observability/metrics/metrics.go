package metrics

import (
	"database/sql"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "smartgarden_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	evaluationsTotal  *prometheus.CounterVec
	autoControlErrors prometheus.Counter

	dispatchTotal   *prometheus.CounterVec
	dispatchSkipped *prometheus.CounterVec
	commandRequests *prometheus.CounterVec
	commandResults  *prometheus.CounterVec

	mirrorWrites *prometheus.CounterVec
	mqttMessages *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and, when db is set, DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total reading ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		evaluationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "autowater_evaluations_total",
				Help: "Total threshold evaluations by decision",
			},
			[]string{"decision"},
		)
		autoControlErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "autowater_errors_total",
				Help: "Total evaluation or dispatch failures after a reading was stored",
			},
		)

		dispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pump_dispatch_total",
				Help: "Total pump decisions written by action and initiator",
			},
			[]string{"action", "initiated_by"},
		)
		dispatchSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pump_dispatch_skipped_total",
				Help: "Total pump decisions rejected by the store guard",
			},
			[]string{"guard"},
		)
		commandRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_requests_total",
				Help: "Total queued device commands by action",
			},
			[]string{"action"},
		)
		commandResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_results_total",
				Help: "Total command acknowledgments by status",
			},
			[]string{"status"},
		)

		mirrorWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_mirror_writes_total",
				Help: "Total reading mirror writes by result",
			},
			[]string{"result"},
		)
		mqttMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mqtt_messages_total",
				Help: "Total MQTT messages handled by direction and result",
			},
			[]string{"direction", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pump_log_export_total",
				Help: "Total pump log exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pump_log_export_latency_seconds",
				Help:    "Pump log export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			evaluationsTotal,
			autoControlErrors,
			dispatchTotal,
			dispatchSkipped,
			commandRequests,
			commandResults,
			mirrorWrites,
			mqttMessages,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncEvaluation counts one threshold evaluation.
func IncEvaluation(decision string) {
	if decision == "" {
		decision = "unknown"
	}
	if evaluationsTotal != nil {
		evaluationsTotal.WithLabelValues(strings.ToLower(decision)).Inc()
	}
}

// IncAutoControlError counts a control failure that did not fail ingestion.
func IncAutoControlError() {
	if autoControlErrors != nil {
		autoControlErrors.Inc()
	}
}

// IncDispatch counts a written pump decision.
func IncDispatch(action, initiatedBy string) {
	if dispatchTotal != nil {
		dispatchTotal.WithLabelValues(strings.ToLower(action), strings.ToLower(initiatedBy)).Inc()
	}
}

// IncDispatchSkipped counts a decision the store guard rejected.
func IncDispatchSkipped(guard string) {
	if dispatchSkipped != nil {
		dispatchSkipped.WithLabelValues(guard).Inc()
	}
}

// AddCommandsIssued increments queued command counter by count.
func AddCommandsIssued(action string, count int) {
	if count <= 0 {
		return
	}
	if commandRequests != nil {
		commandRequests.WithLabelValues(strings.ToLower(action)).Add(float64(count))
	}
}

// IncCommandResult increments command result counter.
func IncCommandResult(status string) {
	if status == "" {
		status = "unknown"
	}
	if commandResults != nil {
		commandResults.WithLabelValues(strings.ToLower(status)).Inc()
	}
}

// IncMirrorWrite counts a reading mirror write.
func IncMirrorWrite(result string) {
	if result == "" {
		result = resultSuccess
	}
	if mirrorWrites != nil {
		mirrorWrites.WithLabelValues(result).Inc()
	}
}

// IncMQTTMessage counts an inbound or outbound MQTT message.
func IncMQTTMessage(direction, result string) {
	if result == "" {
		result = resultSuccess
	}
	if mqttMessages != nil {
		mqttMessages.WithLabelValues(direction, result).Inc()
	}
}

// ObserveExport records pump log export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)
