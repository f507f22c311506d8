package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_webhooks_received_total",
		Help: "The total number of received webhooks by outcome",
	}, []string{"outcome"})

	SyncJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_jobs_total",
		Help: "The total number of conversation sync jobs by status",
	}, []string{"status"})

	SyncDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_job_duration_seconds",
		Help:    "Duration of a full conversation sync",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
	})

	SyncQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_queue_depth",
		Help: "Number of sync jobs waiting for a worker",
	})

	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_chatwoot_pages_fetched_total",
		Help: "The total number of message pages fetched from Chatwoot",
	})

	MessagesFetched = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_conversation_messages",
		Help:    "Number of messages fetched per conversation",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000},
	})

	MediaEnriched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_media_enriched_total",
		Help: "The total number of enriched media records by kind and status",
	}, []string{"kind", "status"})

	MediaDownloadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_media_download_bytes",
		Help:    "Size of downloaded media",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	TranscriptionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_transcription_duration_seconds",
		Help:    "Duration of audio transcription requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	CRMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_crm_requests_total",
		Help: "The total number of Pipedrive requests by operation and status",
	}, []string{"operation", "status"})

	TranscriptsRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_transcripts_rendered_total",
		Help: "The total number of transcripts by format",
	}, []string{"format"})

	TempFilesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_temp_files_swept_total",
		Help: "The total number of stale temp files removed by the janitor",
	})
)
