package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/costbasis/config"
)

func TestValidators(t *testing.T) {
	assert.NoError(t, validateAddress("0x1111111111111111111111111111111111111111"))
	assert.Error(t, validateAddress("1111111111111111111111111111111111111111"))
	assert.Error(t, validateAddress("0x11"))

	assert.NoError(t, validateChainID("8453"))
	assert.Error(t, validateChainID("1.5"))
	assert.Error(t, validateChainID("0"))

	assert.NoError(t, validatePositive("2400"))
	assert.Error(t, validatePositive("0"))
	assert.Error(t, validatePositive("abc"))

	assert.NoError(t, validatePair("eth_usdt"))
	assert.Error(t, validatePair(""))
	assert.Error(t, validatePair("ETHUSDT"))
}

func TestSaveProducesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.gen.yaml")
	envPath := filepath.Join(dir, ".env")

	require.NoError(t, os.WriteFile(envPath, []byte("REDIS_PASSWORD=secret\n"), 0o600))

	a := defaultAnswers()
	a.Wallet = "0x1111111111111111111111111111111111111111"
	a.Token = "0x2222222222222222222222222222222222222222"
	a.PriceProvider = config.ProviderBybit
	a.PriceSymbol = "ETH_USDC"
	a.CacheBackend = config.CacheMemory
	a.EtherscanAPIKey = "etherscan-key"

	require.NoError(t, Save(a, cfgPath, envPath))

	cfg, err := config.Load([]string{"--config", cfgPath, "--env", filepath.Join(dir, "none.env")})
	require.NoError(t, err)
	assert.Equal(t, config.ProviderBybit, cfg.PriceProvider)
	assert.Equal(t, "ETH_USDC", cfg.PriceSymbol.String())
	assert.Equal(t, config.CacheMemory, cfg.CacheBackend)
	assert.Equal(t, "2400", cfg.FallbackPrice.String())

	env, err := godotenv.Read(envPath)
	require.NoError(t, err)
	assert.Equal(t, "etherscan-key", env["ETHERSCAN_API_KEY"])
	assert.Equal(t, "secret", env["REDIS_PASSWORD"])
}

func TestToConfigTmpRejectsBadChainID(t *testing.T) {
	a := defaultAnswers()
	a.ChainID = "mainnet"
	_, err := a.ToConfigTmp()
	require.Error(t, err)
}

func TestSummaryShowsSource(t *testing.T) {
	a := defaultAnswers()
	assert.Contains(t, a.Summary(), "coingecko (ethereum)")

	a.PriceProvider = config.ProviderBinance
	assert.Contains(t, a.Summary(), "binance (ETH_USDT)")
}
