package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebSocket Metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livepoll_ws_connections_active",
		Help: "The current number of open WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livepoll_ws_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livepoll_ws_messages_received_total",
		Help: "The total number of frames received from clients.",
	})
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livepoll_ws_messages_sent_total",
		Help: "The total number of frames written to clients.",
	})
	SlowConsumerDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livepoll_ws_slow_consumer_drops_total",
		Help: "Connections dropped because their send buffer was full.",
	})

	// Session Metrics
	ParticipantsConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "livepoll_participants_connected",
		Help: "Connected participants by role.",
	}, []string{"role"})
	PollsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livepoll_polls_created_total",
		Help: "The total number of polls started.",
	})
	PollsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livepoll_polls_closed_total",
		Help: "The total number of polls closed, by reason.",
	}, []string{"reason"})
	Answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livepoll_answers_total",
		Help: "Answer submissions by outcome kind.",
	}, []string{"result"})
	IntentRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livepoll_intent_rejections_total",
		Help: "Rejected intents by intent and error kind.",
	}, []string{"intent", "kind"})

	// Archive Metrics
	ArchiveWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livepoll_archive_writes_total",
		Help: "Archive writes by record type and outcome.",
	}, []string{"record", "outcome"})
	ArchiveRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livepoll_archive_retries_total",
		Help: "Retries while writing to the archive.",
	}, []string{"record"})
	ResultsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livepoll_results_published_total",
		Help: "Archived polls forwarded to the results publisher.",
	}, []string{"publisher", "outcome"})
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
