package s1_chain

import (
	"sort"
	"time"

	"github.com/wonny/putscan/internal/contracts"
)

// UnionExpirations merges every chain's expirations, sorted and unique.
// Chains overlap, so expiration discovery uses the union.
func UnionExpirations(chains []contracts.ChainDescriptor) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range chains {
		for _, exp := range c.Expirations {
			if !seen[exp] {
				seen[exp] = true
				out = append(out, exp)
			}
		}
	}
	sort.Strings(out)
	return out
}

// SelectExpirations picks, for each target offset, the available expiration
// nearest to today+offset. Only dates on or after today are candidates; ties go
// to the earliest date. A date picked by more than one offset appears once, in
// first-pick order. Offsets with no candidate are skipped.
// ⭐ SSOT: 만기 선택 로직
func SelectExpirations(today time.Time, targets []int, available []string) []string {
	type candidate struct {
		exp  string
		date time.Time
	}

	loc := today.Location()
	var candidates []candidate
	for _, exp := range available {
		date, err := contracts.ParseExpiration(exp, loc)
		if err != nil {
			continue
		}
		if contracts.DaysBetween(today, date) < 0 {
			continue
		}
		candidates = append(candidates, candidate{exp: exp, date: date})
	}
	// YYYYMMDD 문자열 정렬 = 날짜 정렬
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].exp < candidates[j].exp
	})

	if len(candidates) == 0 {
		return nil
	}

	selected := make([]string, 0, len(targets))
	picked := make(map[string]bool)

	for _, offset := range targets {
		target := today.AddDate(0, 0, offset)

		best := 0
		bestDiff := absDays(contracts.DaysBetween(target, candidates[0].date))
		for i := 1; i < len(candidates); i++ {
			if diff := absDays(contracts.DaysBetween(target, candidates[i].date)); diff < bestDiff {
				best, bestDiff = i, diff
			}
		}

		exp := candidates[best].exp
		if !picked[exp] {
			picked[exp] = true
			selected = append(selected, exp)
		}
	}

	return selected
}

func absDays(d int) int {
	if d < 0 {
		return -d
	}
	return d
}
