package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/putscan/pkg/logger"
)

// Tickler keeps a gateway session alive
type Tickler interface {
	Tickle(ctx context.Context) (string, error)
}

// KeepaliveJob tickles the gateway between scans; an idle Client Portal
// session is logged out after a few minutes
type KeepaliveJob struct {
	gateway Tickler
	logger  *logger.Logger
}

// NewKeepaliveJob creates a new keepalive job
func NewKeepaliveJob(gateway Tickler, log *logger.Logger) *KeepaliveJob {
	return &KeepaliveJob{
		gateway: gateway,
		logger:  log,
	}
}

// Name returns the job name
func (j *KeepaliveJob) Name() string {
	return "gateway_keepalive"
}

// Schedule returns the cron schedule (every minute)
func (j *KeepaliveJob) Schedule() string {
	return "30 * * * * *"
}

// Run executes one tickle
func (j *KeepaliveJob) Run(ctx context.Context) error {
	if _, err := j.gateway.Tickle(ctx); err != nil {
		return fmt.Errorf("gateway keepalive: %w", err)
	}

	j.logger.Debug("Gateway session kept alive")
	return nil
}
