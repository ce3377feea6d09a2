package scanconfig

import "time"

// Config는 풋 스캐너 한 번 실행의 전체 설정
// 시작 시 한 번 생성, 각 단계에 포인터로 전달 (전역 상태 없음)
type Config struct {
	Meta        Meta        `yaml:"meta" json:"meta"`
	Universe    Universe    `yaml:"universe" json:"universe"`
	Expirations Expirations `yaml:"expirations" json:"expirations"`
	Strikes     Strikes     `yaml:"strikes" json:"strikes"`
	Chains      Chains      `yaml:"chains" json:"chains"`
	Timing      Timing      `yaml:"timing" json:"timing"`
	Pricing     Pricing     `yaml:"pricing" json:"pricing"`
	Schedule    Schedule    `yaml:"schedule" json:"schedule"`
}

// Meta 메타 정보
type Meta struct {
	ScanID   string `yaml:"scan_id" json:"scan_id"`
	Timezone string `yaml:"timezone" json:"timezone"` // "today" 기준 시간대
}

// Universe 스캔 대상 종목
type Universe struct {
	Symbols  []string `yaml:"symbols" json:"symbols"`
	Exchange string   `yaml:"exchange" json:"exchange"` // routing hint
	Currency string   `yaml:"currency" json:"currency"`
}

// Expirations S1: 목표 만기 (오늘 + N일)
type Expirations struct {
	TargetDays []int `yaml:"target_days" json:"target_days"`
}

// Strikes S1: 행사가 밴드 (현재가 대비 OTM 비율)
type Strikes struct {
	MinOTMPct float64 `yaml:"min_otm_pct" json:"min_otm_pct"`
	MaxOTMPct float64 `yaml:"max_otm_pct" json:"max_otm_pct"`
}

// Chains S1: 사용할 옵션 체인 선택
type Chains struct {
	Exchange   string `yaml:"exchange" json:"exchange"`
	Multiplier string `yaml:"multiplier" json:"multiplier"`
}

// Timing S0/S2: 폴링 간격과 대기 한도
type Timing struct {
	PricePollInterval time.Duration `yaml:"price_poll_interval" json:"price_poll_interval"`
	PricePollAttempts int           `yaml:"price_poll_attempts" json:"price_poll_attempts"`
	QuotePollInterval time.Duration `yaml:"quote_poll_interval" json:"quote_poll_interval"`
	QuoteTimeout      time.Duration `yaml:"quote_timeout" json:"quote_timeout"`
	HistoryTimeout    time.Duration `yaml:"history_timeout" json:"history_timeout"`
}

// Pricing 가격 관련 상수
type Pricing struct {
	RiskFreeRate float64 `yaml:"risk_free_rate" json:"risk_free_rate"` // 현재 계산에 사용하지 않음
}

// Schedule 데몬 모드 스케줄
type Schedule struct {
	Cron string `yaml:"cron" json:"cron"` // 6-field (seconds) cron
}

// Default returns the built-in scan configuration
func Default() *Config {
	return &Config{
		Meta: Meta{
			ScanID:   "default",
			Timezone: "America/New_York",
		},
		Universe: Universe{
			Symbols:  []string{"NVDA", "AAPL", "TSLA", "AMD", "MSFT"},
			Exchange: "SMART",
			Currency: "USD",
		},
		Expirations: Expirations{
			TargetDays: []int{30, 45, 60, 90},
		},
		Strikes: Strikes{
			MinOTMPct: 0.05,
			MaxOTMPct: 0.20,
		},
		Chains: Chains{
			Exchange:   "SMART",
			Multiplier: "100",
		},
		Timing: Timing{
			PricePollInterval: 100 * time.Millisecond,
			PricePollAttempts: 50,
			QuotePollInterval: 100 * time.Millisecond,
			QuoteTimeout:      10 * time.Second,
			HistoryTimeout:    15 * time.Second,
		},
		Pricing: Pricing{
			RiskFreeRate: 0.04,
		},
		Schedule: Schedule{
			Cron: "0 45 9 * * MON-FRI",
		},
	}
}

// Location returns the configured timezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Meta.Timezone)
}

// Today returns midnight of now's calendar date in the configured timezone
func (c *Config) Today(now time.Time) (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc), nil
}
