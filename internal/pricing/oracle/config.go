package oracle

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/bullion-backend/pkg/config"
)

// ProvidersFromConfig builds the ordered provider list. Providers without an API key
// are skipped so a deployment can run on a single upstream.
func ProvidersFromConfig(cfg config.PricingConfig, client *http.Client) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, raw := range cfg.Providers {
		name := strings.ToLower(strings.TrimSpace(raw))
		var httpCfg HTTPConfig
		switch name {
		case "":
			continue
		case ProviderMetalsAPI:
			httpCfg = HTTPConfig{Name: name, BaseURL: cfg.MetalsAPIURL, APIKey: cfg.MetalsAPIKey, Unit: ParseUnit(cfg.MetalsAPIUnit)}
		case ProviderGoldAPI:
			httpCfg = HTTPConfig{Name: name, BaseURL: cfg.GoldAPIURL, APIKey: cfg.GoldAPIKey, Unit: ParseUnit(cfg.GoldAPIUnit)}
		default:
			return nil, fmt.Errorf("unknown price provider %q", raw)
		}
		if strings.TrimSpace(httpCfg.APIKey) == "" {
			continue
		}
		httpCfg.Currency = cfg.Currency
		provider, err := NewHTTPProvider(httpCfg, WithHTTPClient(client))
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no price provider configured with an api key")
	}
	return providers, nil
}
