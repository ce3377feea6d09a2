package gateway

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/wonny/putscan/internal/contracts"
)

// ChainParams lists the underlying's put chains, one descriptor per trading
// class. For every option month the put strike grid is fetched and one info
// probe at the median strike reveals the month's expirations per class.
func (c *Client) ChainParams(ctx context.Context, underlying contracts.Instrument) ([]contracts.ChainDescriptor, error) {
	months, ok := c.optionMonths(underlying.ConID)
	if !ok {
		if _, err := c.QualifyInstrument(ctx, contracts.Instrument{
			Symbol:   underlying.Symbol,
			Exchange: underlying.Exchange,
			Currency: underlying.Currency,
		}); err != nil {
			return nil, err
		}
		months, _ = c.optionMonths(underlying.ConID)
	}
	if len(months) == 0 {
		return nil, nil
	}

	type acc struct {
		desc        contracts.ChainDescriptor
		expirations map[string]bool
		strikes     map[float64]bool
	}
	byClass := make(map[string]*acc)
	var order []string

	for _, month := range months {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		strikes, err := c.putStrikes(ctx, underlying.ConID, month)
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"symbol": underlying.Symbol,
				"month":  month,
			}).Debug("Strike lookup failed, month skipped")
			continue
		}
		if len(strikes) == 0 {
			continue
		}

		probe := strikes[len(strikes)/2]
		infos, err := c.contractInfo(ctx, underlying.ConID, month, probe, contracts.RightPut)
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"symbol": underlying.Symbol,
				"month":  month,
			}).Debug("Contract probe failed, month skipped")
			continue
		}

		for _, info := range infos {
			if info.TradingClass == "" || info.MaturityDate == "" {
				continue
			}
			a, ok := byClass[info.TradingClass]
			if !ok {
				a = &acc{
					desc: contracts.ChainDescriptor{
						Exchange:     contracts.SmartRouting,
						TradingClass: info.TradingClass,
						Multiplier:   info.Multiplier,
					},
					expirations: make(map[string]bool),
					strikes:     make(map[float64]bool),
				}
				byClass[info.TradingClass] = a
				order = append(order, info.TradingClass)
			}
			a.expirations[info.MaturityDate] = true
			for _, k := range strikes {
				a.strikes[k] = true
			}
		}
	}

	chains := make([]contracts.ChainDescriptor, 0, len(order))
	for _, class := range order {
		a := byClass[class]
		for exp := range a.expirations {
			a.desc.Expirations = append(a.desc.Expirations, exp)
		}
		sort.Strings(a.desc.Expirations)
		for k := range a.strikes {
			a.desc.Strikes = append(a.desc.Strikes, k)
		}
		sort.Float64s(a.desc.Strikes)
		chains = append(chains, a.desc)
	}

	return chains, nil
}

func (c *Client) putStrikes(ctx context.Context, underlying int64, month string) ([]float64, error) {
	query := url.Values{
		"conid":    {strconv.FormatInt(underlying, 10)},
		"sectype":  {"OPT"},
		"month":    {month},
		"exchange": {contracts.SmartRouting},
	}

	var resp strikesResponse
	if err := c.get(ctx, "strikes", pathStrikes, query, &resp); err != nil {
		return nil, fmt.Errorf("strikes %s: %w", month, err)
	}
	sort.Float64s(resp.Put)
	return resp.Put, nil
}
