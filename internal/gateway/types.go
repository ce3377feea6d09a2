package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Client Portal endpoints (relative to the base path)
const (
	pathAuthStatus = "/iserver/auth/status"
	pathTickle     = "/tickle"
	pathSearch     = "/iserver/secdef/search"
	pathStrikes    = "/iserver/secdef/strikes"
	pathInfo       = "/iserver/secdef/info"
	pathSnapshot   = "/iserver/marketdata/snapshot"
	pathHistory    = "/iserver/marketdata/history"
	pathHMDS       = "/hmds/history"
)

// ConID accepts the numeric id as either a JSON number or a string;
// the gateway uses both depending on the endpoint and version.
type ConID int64

func (c *ConID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("conid %s: %w", s, err)
	}
	*c = ConID(v)
	return nil
}

// AuthStatus is the brokerage session state
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Connected     bool   `json:"connected"`
	Competing     bool   `json:"competing"`
	Message       string `json:"message"`
	ServerInfo    struct {
		ServerName    string `json:"serverName"`
		ServerVersion string `json:"serverVersion"`
	} `json:"serverInfo"`
}

// Ready reports whether market data requests can be served
func (s AuthStatus) Ready() bool {
	return s.Authenticated && s.Connected && !s.Competing
}

type tickleResponse struct {
	Session string `json:"session"`
	IServer struct {
		AuthStatus AuthStatus `json:"authStatus"`
	} `json:"iserver"`
}

type searchResult struct {
	ConID       ConID     `json:"conid"`
	Symbol      string    `json:"symbol"`
	CompanyName string    `json:"companyName"`
	Description string    `json:"description"` // primary listing, e.g. NASDAQ
	Sections    []section `json:"sections"`
}

type section struct {
	SecType  string `json:"secType"`
	Months   string `json:"months"` // "JAN24;FEB24;..."
	Exchange string `json:"exchange"`
}

func (r searchResult) section(secType string) (section, bool) {
	for _, s := range r.Sections {
		if s.SecType == secType {
			return s, true
		}
	}
	return section{}, false
}

type strikesResponse struct {
	Call []float64 `json:"call"`
	Put  []float64 `json:"put"`
}

type contractInfo struct {
	ConID        ConID   `json:"conid"`
	Symbol       string  `json:"symbol"`
	Strike       float64 `json:"strike"`
	Right        string  `json:"right"`
	MaturityDate string  `json:"maturityDate"` // YYYYMMDD
	Multiplier   string  `json:"multiplier"`
	TradingClass string  `json:"tradingClass"`
	Exchange     string  `json:"exchange"`
}

type historyResponse struct {
	Symbol string       `json:"symbol"`
	Data   []historyBar `json:"data"`
}

type historyBar struct {
	Open   float64 `json:"o"`
	Close  float64 `json:"c"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Volume float64 `json:"v"`
	Time   int64   `json:"t"` // epoch millis
}

var _ json.Unmarshaler = (*ConID)(nil)
