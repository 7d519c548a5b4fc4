package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cogniview"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})

	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_rooms",
		Help:      "Number of interview rooms currently open",
	})

	roomOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "room_outcomes_total",
		Help:      "Interview rooms closed, by outcome",
	}, []string{"outcome"})

	violations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proctoring_violations_total",
		Help:      "Proctoring violations that terminated a session, by reason",
	}, []string{"reason"})

	faceDetections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "face_detections_total",
		Help:      "Face detection calls, by result",
	}, []string{"result"})

	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_total",
		Help:      "Evaluation requests, by source of the result",
	}, []string{"source"})

	evaluationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "evaluation_scoring_seconds",
		Help:      "Duration of scoring calls in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	workerJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_jobs_total",
		Help:      "Evaluation worker pool jobs, by result",
	}, []string{"result"})

	sweptSessions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "abandoned_sessions_total",
		Help:      "Sessions marked abandoned by the sweeper",
	})
)

// Middleware records request count and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		httpLatency.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RoomOpened() { activeRooms.Inc() }

func RoomClosed(outcome string) {
	activeRooms.Dec()
	roomOutcomes.WithLabelValues(outcome).Inc()
}

func Violation(reason string) { violations.WithLabelValues(reason).Inc() }

func FaceDetection(ok bool) {
	if ok {
		faceDetections.WithLabelValues("ok").Inc()
		return
	}
	faceDetections.WithLabelValues("error").Inc()
}

// Evaluation counts a result served from "cache", "store", "scored", "flagged" or "failed".
func Evaluation(source string) { evaluations.WithLabelValues(source).Inc() }

func ObserveScoring(d time.Duration) { evaluationLatency.Observe(d.Seconds()) }

func WorkerJob(result string) { workerJobs.WithLabelValues(result).Inc() }

func SessionsSwept(n int) { sweptSessions.Add(float64(n)) }
