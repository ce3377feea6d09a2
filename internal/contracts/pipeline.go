package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 메트릭 라벨, StageError 에서 이 상수를 사용해야 함
//
// 종목별 파이프라인 흐름:
//   QUALIFY → S0 → S1 → S2 → S3
//   Qualify  Price  Chain  Quotes  Yield
// 전체 종목 처리 후 한 번: S4 Rank → Export

// Stage represents a pipeline stage
type Stage string

const (
	// StageSession: 데이터 피드 세션 연결 (실패 시 전체 스캔 중단)
	StageSession Stage = "SESSION"

	// StageQualify: 기초자산 식별 (conid 해석)
	StageQualify Stage = "QUALIFY"

	// StagePrice S0: 현재가 결정 (live → close → 일봉)
	// 위치: internal/s0_price/
	StagePrice Stage = "S0_PRICE"

	// StageChain S1: 만기 선택, 행사가 밴드, 후보 계약 생성
	// 위치: internal/s1_chain/
	StageChain Stage = "S1_CHAIN"

	// StageQuotes S2: 옵션 시세 수집 (live + 일봉 fallback)
	// 위치: internal/s2_quotes/
	StageQuotes Stage = "S2_QUOTES"

	// StageYield S3: 프리미엄/수익률 계산
	// 위치: internal/s3_yield/
	StageYield Stage = "S3_YIELD"

	// StageRank S4: 연환산 수익률 정렬
	// 위치: internal/selection/
	StageRank Stage = "S4_RANK"

	// StageExport: 테이블 출력 + CSV 저장
	// 위치: internal/export/
	StageExport Stage = "EXPORT"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// Label returns the lowercase metric label for the stage
func (s Stage) Label() string {
	switch s {
	case StageSession:
		return "session"
	case StageQualify:
		return "qualify"
	case StagePrice:
		return "price"
	case StageChain:
		return "chain"
	case StageQuotes:
		return "quotes"
	case StageYield:
		return "yield"
	case StageRank:
		return "rank"
	case StageExport:
		return "export"
	default:
		return "unknown"
	}
}

// Description returns Korean description of the stage
func (s Stage) Description() string {
	switch s {
	case StageSession:
		return "세션 연결"
	case StageQualify:
		return "기초자산 식별"
	case StagePrice:
		return "현재가 결정"
	case StageChain:
		return "만기/행사가 선택"
	case StageQuotes:
		return "옵션 시세 수집"
	case StageYield:
		return "수익률 계산"
	case StageRank:
		return "연환산 수익률 정렬"
	case StageExport:
		return "결과 출력/저장"
	default:
		return "알 수 없음"
	}
}

// InstrumentStages returns the per-instrument stages in order
func InstrumentStages() []Stage {
	return []Stage{
		StageQualify,
		StagePrice,
		StageChain,
		StageQuotes,
		StageYield,
	}
}

// StageResult summarises one stage for one instrument
type StageResult struct {
	Stage       Stage  `json:"stage"`
	Symbol      string `json:"symbol"`
	Success     bool   `json:"success"`
	OutputCount int    `json:"output_count"`
	Duration    int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}
