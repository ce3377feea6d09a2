package commands

import (
	"context"
	"fmt"

	"github.com/wonny/putscan/internal/gateway"
	"github.com/wonny/putscan/internal/scanconfig"
	"github.com/wonny/putscan/pkg/metrics"
	"github.com/wonny/putscan/pkg/redis"
)

// deps are the long-lived collaborators shared by scan and scheduler
type deps struct {
	scan    *scanconfig.Config
	redis   *redis.Client
	metrics *metrics.Registry // nil when METRICS_ENABLED=false
}

// initDeps loads the scan config and connects optional infrastructure
func initDeps(ctx context.Context, scanConfigPath string) (*deps, error) {
	if scanConfigPath == "" {
		scanConfigPath = appConfig.ScanConfigPath
	}

	scanCfg, err := scanconfig.Load(scanConfigPath)
	if err != nil {
		return nil, fmt.Errorf("scan config: %w", err)
	}

	rc, err := redis.New(ctx, appConfig)
	if err != nil {
		return nil, err
	}

	d := &deps{scan: scanCfg, redis: rc}
	if appConfig.MetricsEnabled {
		d.metrics = metrics.New()
	}

	hash, _ := scanconfig.Hash(scanCfg)
	appLogger.WithFields(map[string]interface{}{
		"scan_config": scanConfigPath,
		"scan_id":     scanCfg.Meta.ScanID,
		"hash":        hash,
		"redis":       rc.Enabled(),
	}).Debug("Dependencies initialized")

	return d, nil
}

// newGateway builds a fresh gateway client (one per scan)
func (d *deps) newGateway() *gateway.Client {
	return gateway.New(appConfig, d.redis, d.metrics, appLogger)
}

func (d *deps) Close() {
	if err := d.redis.Close(); err != nil {
		appLogger.WithError(err).Warn("Failed to close Redis")
	}
}
