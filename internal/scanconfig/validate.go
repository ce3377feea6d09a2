package scanconfig

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.ScanID == "" {
		return ValidationError{"meta.scan_id", "required"}
	}
	if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil || cfg.Meta.Timezone == "" {
		return ValidationError{"meta.timezone", fmt.Sprintf("unknown timezone %q", cfg.Meta.Timezone)}
	}

	// === Universe ===
	if len(cfg.Universe.Symbols) == 0 {
		return ValidationError{"universe.symbols", "at least one symbol required"}
	}
	seen := make(map[string]bool, len(cfg.Universe.Symbols))
	for i, s := range cfg.Universe.Symbols {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" {
			return ValidationError{fmt.Sprintf("universe.symbols[%d]", i), "empty symbol"}
		}
		if seen[sym] {
			return ValidationError{fmt.Sprintf("universe.symbols[%d]", i), fmt.Sprintf("duplicate symbol %s", sym)}
		}
		seen[sym] = true
	}
	if cfg.Universe.Exchange == "" {
		return ValidationError{"universe.exchange", "required"}
	}
	if cfg.Universe.Currency == "" {
		return ValidationError{"universe.currency", "required"}
	}

	// === Expirations ===
	if len(cfg.Expirations.TargetDays) == 0 {
		return ValidationError{"expirations.target_days", "at least one target required"}
	}
	for i, d := range cfg.Expirations.TargetDays {
		if d < 0 {
			return ValidationError{fmt.Sprintf("expirations.target_days[%d]", i), "must be >= 0"}
		}
	}

	// === Strikes ===
	// 풋 전용: 0 <= min < max < 1
	s := cfg.Strikes
	if s.MinOTMPct < 0 || s.MinOTMPct >= 1 {
		return ValidationError{"strikes.min_otm_pct", "must be in [0, 1)"}
	}
	if s.MaxOTMPct <= 0 || s.MaxOTMPct >= 1 {
		return ValidationError{"strikes.max_otm_pct", "must be in (0, 1)"}
	}
	if s.MinOTMPct >= s.MaxOTMPct {
		return ValidationError{"strikes", "min_otm_pct must be < max_otm_pct"}
	}

	// === Chains ===
	if cfg.Chains.Exchange == "" {
		return ValidationError{"chains.exchange", "required"}
	}
	if cfg.Chains.Multiplier == "" {
		return ValidationError{"chains.multiplier", "required"}
	}

	// === Timing ===
	t := cfg.Timing
	if t.PricePollInterval <= 0 {
		return ValidationError{"timing.price_poll_interval", "must be > 0"}
	}
	if t.PricePollAttempts < 1 {
		return ValidationError{"timing.price_poll_attempts", "must be >= 1"}
	}
	if t.QuotePollInterval <= 0 {
		return ValidationError{"timing.quote_poll_interval", "must be > 0"}
	}
	if t.QuoteTimeout < t.QuotePollInterval {
		return ValidationError{"timing.quote_timeout", "must be >= quote_poll_interval"}
	}
	if t.HistoryTimeout <= 0 {
		return ValidationError{"timing.history_timeout", "must be > 0"}
	}

	// === Schedule ===
	if len(strings.Fields(cfg.Schedule.Cron)) != 6 {
		return ValidationError{"schedule.cron", "must have 6 fields (with seconds)"}
	}

	return nil
}

// NormalizedSymbols returns the universe symbols upper-cased and trimmed
func (c *Config) NormalizedSymbols() []string {
	out := make([]string, 0, len(c.Universe.Symbols))
	for _, s := range c.Universe.Symbols {
		out = append(out, strings.ToUpper(strings.TrimSpace(s)))
	}
	return out
}
