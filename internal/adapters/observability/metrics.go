package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spherelink", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spherelink", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spherelink", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del|incr
	)
	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spherelink", Name: "view_uploads_total", Help: "View uploads by outcome."},
		[]string{"outcome"},
	)
	UploadNodes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spherelink", Name: "view_upload_nodes",
			Help:    "Nodes per uploaded view.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"level"}, // panorama|marker|banner
	)
	Ratings = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spherelink", Name: "ratings_total", Help: "Rating submissions by outcome."},
		[]string{"outcome"},
	)
	MediaOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spherelink", Name: "media_operations_total", Help: "Media store operations."},
		[]string{"op", "outcome"},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spherelink", Name: "events_published_total", Help: "Domain events published."},
		[]string{"topic", "outcome"},
	)
)

// Serve exposes reg on addr in the background. An empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, CacheEvents, Uploads, UploadNodes, Ratings, MediaOps, EventsPublished)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) {
	CacheEvents.WithLabelValues(cache, event).Inc()
}

// ObserveUpload records one upload attempt; counts are only observed on success.
func ObserveUpload(outcome string, panoramas, markers, banners int) {
	Uploads.WithLabelValues(outcome).Inc()
	if outcome != "ok" {
		return
	}
	UploadNodes.WithLabelValues("panorama").Observe(float64(panoramas))
	UploadNodes.WithLabelValues("marker").Observe(float64(markers))
	UploadNodes.WithLabelValues("banner").Observe(float64(banners))
}

func ObserveRating(outcome string) { Ratings.WithLabelValues(outcome).Inc() }

func ObserveMedia(op, outcome string) { MediaOps.WithLabelValues(op, outcome).Inc() }

func ObserveEvent(topic, outcome string) { EventsPublished.WithLabelValues(topic, outcome).Inc() }
