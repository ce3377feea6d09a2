package s1_chain

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/scanconfig"
	"github.com/wonny/putscan/pkg/logger"
)

// Plan is what S1 decided to price for one underlying
type Plan struct {
	Symbol      string                        `json:"symbol"`
	Price       float64                       `json:"price"`
	Chains      []contracts.ChainDescriptor   `json:"chains"`
	Expirations []string                      `json:"expirations"`
	Band        StrikeBand                    `json:"band"`
	Candidates  []contracts.ContractCandidate `json:"candidates"`
}

// Builder turns chain parameters into candidate puts
type Builder struct {
	chains contracts.ChainSource
	config *scanconfig.Config
	logger *logger.Logger
}

// NewBuilder creates a new chain Builder
func NewBuilder(chains contracts.ChainSource, cfg *scanconfig.Config, log *logger.Logger) *Builder {
	return &Builder{
		chains: chains,
		config: cfg,
		logger: log,
	}
}

// Build fetches the underlying's chains and derives the candidate puts
// ⭐ SSOT: S1 → S2 후보 계약
func (b *Builder) Build(ctx context.Context, inst contracts.Instrument, price float64, today time.Time) (*Plan, error) {
	all, err := b.chains.ChainParams(ctx, inst)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrNoChains, err)
	}

	chains := SelectChains(all, b.config.Chains.Exchange, b.config.Chains.Multiplier)
	if len(chains) == 0 {
		return nil, contracts.ErrNoChains
	}

	plan := &Plan{
		Symbol: inst.Symbol,
		Price:  price,
		Chains: chains,
		Band:   NewStrikeBand(price, b.config.Strikes.MinOTMPct, b.config.Strikes.MaxOTMPct),
	}
	plan.Expirations = SelectExpirations(today, b.config.Expirations.TargetDays, UnionExpirations(chains))
	plan.Candidates = BuildCandidates(inst.Symbol, plan.Expirations, chains, plan.Band)

	b.logger.WithFields(map[string]interface{}{
		"symbol":      inst.Symbol,
		"stage":       contracts.StageChain.String(),
		"chains":      len(chains),
		"expirations": plan.Expirations,
		"band":        plan.Band.String(),
		"candidates":  len(plan.Candidates),
	}).Debug("Chain plan built")

	if len(plan.Candidates) == 0 {
		return plan, contracts.ErrNoCandidates
	}
	return plan, nil
}
