package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bullion-backend/pkg/config"
)

func TestProvidersFromConfigKeepsOrderAndSkipsKeyless(t *testing.T) {
	cfg := config.PricingConfig{
		Currency:     "INR",
		Providers:    []string{"goldapi", " MetalsAPI "},
		MetalsAPIURL: "https://metals.example",
		MetalsAPIKey: "m-key",
		GoldAPIURL:   "https://gold.example",
		GoldAPIKey:   "g-key",
		GoldAPIUnit:  "gram",
	}
	providers, err := ProvidersFromConfig(cfg, nil)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, ProviderGoldAPI, providers[0].Name())
	assert.Equal(t, ProviderMetalsAPI, providers[1].Name())

	cfg.GoldAPIKey = ""
	providers, err = ProvidersFromConfig(cfg, nil)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, ProviderMetalsAPI, providers[0].Name())
}

func TestProvidersFromConfigErrors(t *testing.T) {
	_, err := ProvidersFromConfig(config.PricingConfig{Currency: "INR", Providers: []string{"kitco"}}, nil)
	assert.Error(t, err)

	_, err = ProvidersFromConfig(config.PricingConfig{Currency: "INR", Providers: []string{"metalsapi"}, MetalsAPIURL: "https://m"}, nil)
	assert.Error(t, err)
}
