// Package metrics - Prometheus collectors for dataset building, detection, training and serving.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Image outcomes recorded by DatasetImagesTotal.
const (
	OutcomeAccepted = "accepted"
	OutcomeSkipped  = "skipped"
)

var (
	DatasetImagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pose_dataset_images_total",
		Help: "Images processed by the dataset builder by class and outcome",
	}, []string{"class", "outcome"})
	DatasetSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pose_dataset_skips_total",
		Help: "Images rejected by the dataset builder by reason",
	}, []string{"reason"})

	DetectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pose_detect_duration_seconds",
		Help:    "Duration of a full keypoint detection including every refinement pass",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	TrainEpochsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pose_train_epochs_total",
		Help: "Training epochs completed",
	})
	TrainLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pose_train_loss",
		Help: "Mean training loss of the last epoch",
	})
	TrainValAccuracy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pose_train_val_accuracy",
		Help: "Validation accuracy of the last epoch",
	})

	ServerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pose_server_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "status"})
	ServerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pose_server_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	StreamSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pose_stream_sessions",
		Help: "Open websocket streaming sessions",
	})
)

// WriteTextfile writes every registered metric to path in the node exporter textfile format.
// An empty path is a no-op so batch commands can call it unconditionally.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
