// Package cloudmetrics pushes coarse accounting metrics to an external
// Prometheus endpoint. It is separate from the request-level otel
// metrics served on /metrics: these are low-frequency business totals.
package cloudmetrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type CloudMetrics struct {
	registry *prometheus.Registry
	log      *zap.Logger

	memoryBytes    prometheus.Gauge
	usersTotal     prometheus.Gauge
	videosTotal    prometheus.Gauge
	creditsGranted prometheus.Gauge
	creditsSpent   prometheus.Gauge

	pusher Pusher
}

func New(registry *prometheus.Registry, pusher Pusher, instance, version string, log *zap.Logger) *CloudMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}

	constLabels := prometheus.Labels{
		"instance": instance,
		"version":  version,
	}

	c := &CloudMetrics{
		registry: registry,
		log:      log.Named("cloudmetrics"),
		pusher:   pusher,
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "roomvision_cloud_memory_bytes",
			Help:        "Memory obtained from the OS.",
			ConstLabels: constLabels,
		}),
		usersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "roomvision_cloud_users_total",
			Help:        "Registered user accounts.",
			ConstLabels: constLabels,
		}),
		videosTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "roomvision_cloud_videos_total",
			Help:        "Videos generated to date.",
			ConstLabels: constLabels,
		}),
		creditsGranted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "roomvision_cloud_credits_granted_total",
			Help:        "Credits granted through settled purchases.",
			ConstLabels: constLabels,
		}),
		creditsSpent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "roomvision_cloud_credits_spent_total",
			Help:        "Credits spent on generations.",
			ConstLabels: constLabels,
		}),
	}

	registry.MustRegister(c.memoryBytes, c.usersTotal, c.videosTotal, c.creditsGranted, c.creditsSpent)
	return c
}

func (c *CloudMetrics) SetMemoryUsage(bytes uint64) {
	if c == nil {
		return
	}
	c.memoryBytes.Set(float64(bytes))
}

func (c *CloudMetrics) SetUsersTotal(count int64) {
	if c == nil {
		return
	}
	c.usersTotal.Set(float64(count))
}

func (c *CloudMetrics) SetVideosTotal(count int64) {
	if c == nil {
		return
	}
	c.videosTotal.Set(float64(count))
}

func (c *CloudMetrics) SetCreditsGranted(total int64) {
	if c == nil {
		return
	}
	c.creditsGranted.Set(float64(total))
}

func (c *CloudMetrics) SetCreditsSpent(total int64) {
	if c == nil {
		return
	}
	c.creditsSpent.Set(float64(total))
}

// Push sends the current snapshot through the configured pusher.
func (c *CloudMetrics) Push(ctx context.Context) error {
	if c == nil || c.pusher == nil {
		return nil
	}
	return c.pusher.Push(ctx, c.registry)
}
