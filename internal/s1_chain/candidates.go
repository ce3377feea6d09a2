package s1_chain

import "github.com/wonny/putscan/internal/contracts"

// SelectChains keeps the chains listed on exchange with the given multiplier.
// When none match, any chain with the multiplier is accepted.
func SelectChains(chains []contracts.ChainDescriptor, exchange, multiplier string) []contracts.ChainDescriptor {
	var exact, byMultiplier []contracts.ChainDescriptor
	for _, c := range chains {
		if c.Multiplier != multiplier {
			continue
		}
		byMultiplier = append(byMultiplier, c)
		if c.Exchange == exchange {
			exact = append(exact, c)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return byMultiplier
}

// BuildCandidates emits one put per (expiration, chain, strike) where the chain
// lists the expiration and its own strikes pass the band. Strikes are filtered
// per chain because trading classes have different grids. Output is
// deduplicated by the candidate key, in first-seen order.
// ⭐ SSOT: 후보 계약 생성 (qualify 전 중복 제거)
func BuildCandidates(symbol string, expirations []string, chains []contracts.ChainDescriptor, band StrikeBand) []contracts.ContractCandidate {
	filtered := make([][]float64, len(chains))
	for i, c := range chains {
		filtered[i] = band.Filter(c.Strikes)
	}

	seen := make(map[contracts.CandidateKey]bool)
	var out []contracts.ContractCandidate

	for _, exp := range expirations {
		for i, chain := range chains {
			if !chain.HasExpiration(exp) {
				continue
			}
			for _, strike := range filtered[i] {
				c := contracts.ContractCandidate{
					Symbol:       symbol,
					Expiration:   exp,
					Strike:       strike,
					Right:        contracts.RightPut,
					Exchange:     contracts.SmartRouting,
					TradingClass: chain.TradingClass,
				}
				key := c.Key()
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, c)
			}
		}
	}

	return out
}
