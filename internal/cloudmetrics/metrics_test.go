package cloudmetrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type capturePusher struct {
	pushed *prometheus.Registry
}

func (p *capturePusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	p.pushed = registry
	return nil
}

func TestNewRegistersGaugesOnInjectedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	pusher := &capturePusher{}
	c := New(registry, pusher, "test", "v0", zap.NewNop())

	c.SetUsersTotal(4)
	c.SetVideosTotal(9)
	c.SetCreditsGranted(40)
	c.SetCreditsSpent(9)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]bool{}
	for _, mf := range families {
		seen[mf.GetName()] = true
	}
	for _, name := range []string{
		"roomvision_cloud_users_total",
		"roomvision_cloud_videos_total",
		"roomvision_cloud_credits_granted_total",
		"roomvision_cloud_credits_spent_total",
	} {
		if !seen[name] {
			t.Fatalf("expected %s registered on the injected registry", name)
		}
	}

	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("push: %v", err)
	}
	if pusher.pushed != registry {
		t.Fatalf("expected push to send the injected registry")
	}
}
