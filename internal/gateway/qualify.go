package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/putscan/internal/contracts"
)

// QualifyInstrument resolves the underlying's conid via secdef search.
// The option months come back with it and are kept on the client only, so a
// month listed since the previous scan is seen by the next one.
func (c *Client) QualifyInstrument(ctx context.Context, inst contracts.Instrument) (contracts.Instrument, error) {
	var results []searchResult
	query := url.Values{"symbol": {inst.Symbol}}
	if err := c.get(ctx, "search", pathSearch, query, &results); err != nil {
		return inst, fmt.Errorf("%w: %v", contracts.ErrNotQualified, err)
	}

	match, ok := pickUnderlying(results, inst)
	if !ok {
		return inst, fmt.Errorf("%w: no STK listing for %s", contracts.ErrNotQualified, inst.Symbol)
	}

	months := parseMonths(match)
	c.rememberMonths(int64(match.ConID), months)

	inst.ConID = int64(match.ConID)
	return inst, nil
}

// pickUnderlying takes the first result for the symbol with a stock section.
// A non-SMART routing hint must also match the listing description.
func pickUnderlying(results []searchResult, inst contracts.Instrument) (searchResult, bool) {
	for _, r := range results {
		if r.ConID <= 0 || !strings.EqualFold(r.Symbol, inst.Symbol) {
			continue
		}
		if _, ok := r.section("STK"); !ok {
			continue
		}
		if inst.Exchange != "" && inst.Exchange != contracts.SmartRouting && !strings.EqualFold(r.Description, inst.Exchange) {
			continue
		}
		return r, true
	}
	return searchResult{}, false
}

func parseMonths(r searchResult) []string {
	opt, ok := r.section("OPT")
	if !ok {
		return nil
	}
	var months []string
	for _, m := range strings.Split(opt.Months, ";") {
		if m = strings.TrimSpace(m); m != "" {
			months = append(months, m)
		}
	}
	return months
}

func (c *Client) rememberMonths(conID int64, months []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.months[conID] = months
}

func (c *Client) optionMonths(conID int64) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.months[conID]
	return m, ok
}

// MonthCode converts a YYYYMMDD expiration to the gateway month code (JAN24)
func MonthCode(expiration string) (string, error) {
	t, err := time.Parse(contracts.ExpirationLayout, expiration)
	if err != nil {
		return "", fmt.Errorf("expiration %q: %w", expiration, err)
	}
	return strings.ToUpper(t.Format("Jan06")), nil
}

type infoKey struct {
	month  string
	strike float64
}

// QualifyContracts resolves each put to its conid via secdef info, matched on
// maturity date and trading class. Info lookups are shared per (month, strike)
// within the batch. Failures are returned per item.
func (c *Client) QualifyContracts(ctx context.Context, underlying contracts.Instrument, candidates []contracts.ContractCandidate) ([]contracts.ContractCandidate, []error) {
	memo := make(map[infoKey][]contractInfo)
	qualified := make([]contracts.ContractCandidate, 0, len(candidates))
	var errs []error

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		month, err := MonthCode(cand.Expiration)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", contracts.ErrNotQualified, err))
			continue
		}

		key := infoKey{month: month, strike: cand.Strike}
		infos, ok := memo[key]
		if !ok {
			infos, err = c.contractInfo(ctx, underlying.ConID, month, cand.Strike, cand.Right)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s %s %s: %w: %v", cand.Symbol, cand.Expiration, formatStrike(cand.Strike), contracts.ErrNotQualified, err))
				continue
			}
			memo[key] = infos
		}

		conID, found := matchContract(infos, cand)
		if !found {
			errs = append(errs, fmt.Errorf("%s %s %s %s: %w", cand.Symbol, cand.Expiration, formatStrike(cand.Strike), cand.TradingClass, contracts.ErrNotQualified))
			continue
		}

		cand.ConID = conID
		qualified = append(qualified, cand)
	}

	return qualified, errs
}

func matchContract(infos []contractInfo, cand contracts.ContractCandidate) (int64, bool) {
	for _, info := range infos {
		if info.MaturityDate != cand.Expiration {
			continue
		}
		if cand.TradingClass != "" && info.TradingClass != cand.TradingClass {
			continue
		}
		if info.Right != "" && info.Right != string(cand.Right) {
			continue
		}
		return int64(info.ConID), true
	}
	return 0, false
}

func (c *Client) contractInfo(ctx context.Context, underlying int64, month string, strike float64, right contracts.Right) ([]contractInfo, error) {
	query := url.Values{
		"conid":    {strconv.FormatInt(underlying, 10)},
		"sectype":  {"OPT"},
		"month":    {month},
		"exchange": {contracts.SmartRouting},
		"strike":   {formatStrike(strike)},
		"right":    {string(right)},
	}

	var infos []contractInfo
	if err := c.get(ctx, "info", pathInfo, query, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func formatStrike(k float64) string {
	return strconv.FormatFloat(k, 'f', -1, 64)
}
