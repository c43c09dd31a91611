package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

const (
	ProviderGoldAPI   = "goldapi"
	ProviderMetalsAPI = "metalsapi"

	responseBodyReadLimit int64 = 1024
	defaultHTTPTimeout          = 10 * time.Second
)

var symbols = map[enums.Commodity]string{
	enums.CommodityGold:   "XAU",
	enums.CommoditySilver: "XAG",
}

// HTTPConfig configures a REST price provider.
type HTTPConfig struct {
	Name     string
	BaseURL  string
	APIKey   string
	Currency string
	Unit     Unit
}

// HTTPOption configures optional provider behavior.
type HTTPOption func(*httpProvider)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *httpProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

type httpProvider struct {
	cfg        HTTPConfig
	httpClient *http.Client
	build      func(cfg HTTPConfig, symbol string) (*http.Request, error)
	decode     func(cfg HTTPConfig, symbol string, body io.Reader) (decimal.Decimal, error)
}

// NewHTTPProvider returns a provider for one of the supported REST APIs.
func NewHTTPProvider(cfg HTTPConfig, opts ...HTTPOption) (Provider, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %q base url is required", cfg.Name)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider %q api key is required", cfg.Name)
	}
	if cfg.Currency == "" {
		return nil, fmt.Errorf("provider %q currency is required", cfg.Name)
	}
	cfg.Currency = strings.ToUpper(cfg.Currency)
	if cfg.Unit == "" {
		cfg.Unit = UnitTroyOunce
	}

	p := &httpProvider{cfg: cfg, httpClient: &http.Client{Timeout: defaultHTTPTimeout}}
	switch cfg.Name {
	case ProviderGoldAPI:
		p.build, p.decode = buildGoldAPIRequest, decodeGoldAPI
	case ProviderMetalsAPI:
		p.build, p.decode = buildMetalsAPIRequest, decodeMetalsAPI
	default:
		return nil, fmt.Errorf("unknown price provider %q", cfg.Name)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *httpProvider) Name() string {
	return p.cfg.Name
}

func (p *httpProvider) Quote(ctx context.Context, commodity enums.Commodity) (Quote, error) {
	symbol, ok := symbols[commodity]
	if !ok {
		return Quote{}, fmt.Errorf("%s: no symbol for commodity %q", p.cfg.Name, commodity)
	}

	req, err := p.build(p.cfg, symbol)
	if err != nil {
		return Quote{}, fmt.Errorf("%s: build request: %w", p.cfg.Name, err)
	}
	resp, err := p.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return Quote{}, fmt.Errorf("%s: execute request: %w", p.cfg.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return Quote{}, fmt.Errorf("%s: status %d: %s", p.cfg.Name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	price, err := p.decode(p.cfg, symbol, resp.Body)
	if err != nil {
		return Quote{}, fmt.Errorf("%s: %w", p.cfg.Name, err)
	}
	return Quote{Price: price, Unit: p.cfg.Unit}, nil
}

// goldapi.io: GET /{symbol}/{currency} with x-access-token, {"price": <per ounce>}.
func buildGoldAPIRequest(cfg HTTPConfig, symbol string) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", cfg.BaseURL, url.PathEscape(symbol), url.PathEscape(cfg.Currency))
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-access-token", cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func decodeGoldAPI(cfg HTTPConfig, _ string, body io.Reader) (decimal.Decimal, error) {
	var payload struct {
		Price     decimal.Decimal `json:"price"`
		PriceGram decimal.Decimal `json:"price_gram_24k"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("decode response: %w", err)
	}
	price := payload.Price
	if cfg.Unit == UnitGram {
		price = payload.PriceGram
	}
	return price, nil
}

// metals-api.com: GET /latest?access_key=&base=&symbols=. Rates are units of metal per
// one unit of currency unless the "<CUR><SYM>" direct rate is present.
func buildMetalsAPIRequest(cfg HTTPConfig, symbol string) (*http.Request, error) {
	q := url.Values{}
	q.Set("access_key", cfg.APIKey)
	q.Set("base", cfg.Currency)
	q.Set("symbols", symbol)
	req, err := http.NewRequest(http.MethodGet, cfg.BaseURL+"/latest?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func decodeMetalsAPI(cfg HTTPConfig, symbol string, body io.Reader) (decimal.Decimal, error) {
	var payload struct {
		Success bool                       `json:"success"`
		Rates   map[string]decimal.Decimal `json:"rates"`
		Error   *struct {
			Info string `json:"info"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("decode response: %w", err)
	}
	if !payload.Success {
		if payload.Error != nil && payload.Error.Info != "" {
			return decimal.Zero, errors.New(payload.Error.Info)
		}
		return decimal.Zero, errors.New("provider reported failure")
	}
	if direct, ok := payload.Rates[cfg.Currency+symbol]; ok && direct.IsPositive() {
		return direct, nil
	}
	rate, ok := payload.Rates[symbol]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("rate for %s missing", symbol)
	}
	return decimal.NewFromInt(1).Div(rate), nil
}
