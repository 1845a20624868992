package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/skein-dev/skein/internal/agent"
	"github.com/skein-dev/skein/internal/api"
	"github.com/skein-dev/skein/internal/config"
	"github.com/skein-dev/skein/internal/fleet"
	"github.com/skein-dev/skein/internal/manifest"
	"github.com/skein-dev/skein/internal/memory"
	"github.com/skein-dev/skein/internal/router"
)

// loadConfig loads from --config when given, XDG paths otherwise.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// buildFleet assembles a fleet from config and manifest: router, API
// client, one delegate-backed agent per manifest entry, and snapshot
// persistence when configured.
func buildFleet(cfg *config.Config, m *manifest.Manifest) (*fleet.Fleet, *api.Client, error) {
	var rtrOpts []router.Option
	if cfg.Routing.DefaultModel != "" {
		rtrOpts = append(rtrOpts, router.WithDefaultModel(anthropic.Model(cfg.Routing.DefaultModel)))
	}
	rtr := router.NewCostTracker(cfg.Routing.Enabled, rtrOpts...)

	client, err := api.NewClient(api.ClientConfig{
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
		Router:        rtr,
	})
	if err != nil {
		return nil, nil, err
	}

	fleetOpts := []fleet.Option{
		fleet.WithRouter(rtr),
		fleet.WithExecutorPolicy(cfg.Executor.Policy()),
	}
	if cfg.Memory.SnapshotPath != "" {
		snapshots, err := memory.OpenSnapshotStore(cfg.Memory.SnapshotPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot store: %w", err)
		}
		fleetOpts = append(fleetOpts, fleet.WithSnapshotStore(snapshots))
	}

	f := fleet.New(fleetOpts...)

	if err := registerManifestAgents(f, client, cfg, m); err != nil {
		return nil, nil, err
	}
	return f, client, nil
}

// registerManifestAgents builds and registers one agent per manifest
// entry. Re-running it after a manifest reload replaces existing agents
// in place.
func registerManifestAgents(f *fleet.Fleet, client *api.Client, cfg *config.Config, m *manifest.Manifest) error {
	for _, spec := range m.Agents {
		delegate, err := api.NewDelegate(api.DelegateConfig{
			Client:        client,
			Tier:          tierFor(spec.Tier),
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
		})
		if err != nil {
			return fmt.Errorf("agent %s: %w", spec.ID, err)
		}

		a, err := agent.NewBase(agent.Config{
			ID:             spec.ID,
			Summary:        spec.Summary,
			Skills:         spec.Skills,
			Delegate:       delegate,
			Memory:         f.Memory(),
			EnableLearning: spec.Learning || cfg.Learning.Enabled,
			Namespace:      m.Namespace,
		})
		if err != nil {
			return fmt.Errorf("agent %s: %w", spec.ID, err)
		}
		f.RegisterAgent(a)
	}
	return nil
}

// tierFor maps a manifest tier name to a router tier.
func tierFor(name string) router.Tier {
	switch name {
	case "fast":
		return router.TierFast
	case "deep":
		return router.TierDeep
	default:
		return router.TierBalanced
	}
}
