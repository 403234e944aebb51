package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/costbasis/internal/domain"
)

const (
	ProviderCoinGecko = "coingecko"
	ProviderBinance   = "binance"
	ProviderBybit     = "bybit"

	CacheWAL    = "wal"
	CacheRedis  = "redis"
	CacheMemory = "memory"

	OutputText = "text"
	OutputJSON = "json"

	defaultEtherscanURL = "https://api.etherscan.io/v2/api"
	defaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
	defaultCoinID       = "ethereum"
	defaultPriceSymbol  = "ETH_USDT"
	defaultCacheDir     = "./wal/prices"
	defaultFallback     = "2400"
	defaultRequestDelay = 1500 * time.Millisecond
)

var defaultBackoff = []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}

type Config struct {
	// Wallet and Token are zero in serve mode, where each request names them.
	Wallet common.Address
	Token  common.Address

	ChainID         int64
	EtherscanURL    string
	EtherscanAPIKey string
	RPCURL          string

	PriceProvider   string
	CoinGeckoURL    string
	CoinGeckoAPIKey string
	// Exchange keys are optional, kline endpoints are public.
	BinanceAPIKey    string
	BinanceSecretKey string
	BybitAPIKey      string
	BybitSecretKey   string
	CoinID           string
	PriceSymbol      domain.Pair
	FallbackPrice    decimal.Decimal
	RequestDelay     time.Duration
	RateLimitBackoff []time.Duration

	CacheBackend  string
	CacheDir      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ServeAddr string
	// CurrentPrice of the token, zero when unknown.
	CurrentPrice decimal.Decimal
	Output       string
	Setup        bool
}

// ConfigTmp is the YAML representation of Config.
type ConfigTmp struct {
	Wallet           string          `yaml:"wallet,omitempty"`
	Token            string          `yaml:"token,omitempty"`
	ChainID          int64           `yaml:"chain_id,omitempty"`
	EtherscanURL     string          `yaml:"etherscan_url,omitempty"`
	RPCURL           string          `yaml:"rpc_url,omitempty"`
	PriceProvider    string          `yaml:"price_provider,omitempty"`
	CoinGeckoURL     string          `yaml:"coingecko_url,omitempty"`
	CoinID           string          `yaml:"coin_id,omitempty"`
	PriceSymbol      string          `yaml:"price_symbol,omitempty"`
	FallbackPriceStr string          `yaml:"fallback_price,omitempty"`
	RequestDelay     *time.Duration  `yaml:"request_delay,omitempty"`
	RateLimitBackoff []time.Duration `yaml:"rate_limit_backoff,omitempty"`
	CacheBackend     string          `yaml:"cache_backend,omitempty"`
	CacheDir         string          `yaml:"cache_dir,omitempty"`
	RedisAddr        string          `yaml:"redis_addr,omitempty"`
	RedisDB          int             `yaml:"redis_db,omitempty"`
	ServeAddr        string          `yaml:"serve_addr,omitempty"`
	CurrentPriceStr  string          `yaml:"current_price,omitempty"`
	Output           string          `yaml:"output,omitempty"`
}

// Get reads the configuration from the command line. With --config the YAML
// file is used; otherwise individual flags are. Secrets come from the
// environment, optionally loaded from a .env file.
func Get() (Config, error) {
	return Load(os.Args[1:])
}

// Load is Get with explicit arguments.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("costbasis", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to yaml config")
	envFile := fs.String("env", ".env", "path to .env file with API keys")
	setup := fs.Bool("setup", false, "run the interactive configuration wizard")
	wallet := fs.String("wallet", "", "wallet address (0x...)")
	token := fs.String("token", "", "token contract address (0x...)")
	chainID := fs.Int64("chainid", 1, "chain id for the Etherscan V2 API")
	etherscanURL := fs.String("etherscanurl", defaultEtherscanURL, "Etherscan API endpoint")
	rpcURL := fs.String("rpcurl", "", "JSON-RPC node for transaction and receipt lookups, Etherscan proxy when empty")
	provider := fs.String("priceprovider", ProviderCoinGecko, "historical price source: coingecko, binance or bybit")
	coingeckoURL := fs.String("coingeckourl", defaultCoinGeckoURL, "CoinGecko API endpoint")
	coinID := fs.String("coinid", defaultCoinID, "CoinGecko id of the native asset")
	symbol := fs.String("pricesymbol", defaultPriceSymbol, "exchange pair of the native asset, example: ETH_USDT")
	fallback := fs.String("fallbackprice", defaultFallback, "native USD price used when no source has one")
	delay := fs.Duration("requestdelay", defaultRequestDelay, "pause between remote price lookups, 0 disables pacing")
	backoff := fs.String("backoff", "2s,4s,6s", "comma separated delays before retries of a rate limited price lookup")
	cacheBackend := fs.String("cache", CacheWAL, "price cache: wal, redis or memory")
	cacheDir := fs.String("cachedir", defaultCacheDir, "directory of the wal price cache")
	redisAddr := fs.String("redisaddr", "", "redis address for the redis price cache")
	redisDB := fs.Int("redisdb", 0, "redis database")
	serve := fs.String("serve", "", "serve the HTTP API on this address instead of computing once")
	currentPrice := fs.String("currentprice", "", "current token price in USD for unrealized P/L")
	output := fs.String("output", OutputText, "report format: text or json")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load %s: %w", *envFile, err)
	}

	var (
		cfg Config
		err error
	)
	if *configPath != "" {
		cfg, err = getYaml(*configPath)
	} else {
		cfg, err = fromTmp(ConfigTmp{
			Wallet:           *wallet,
			Token:            *token,
			ChainID:          *chainID,
			EtherscanURL:     *etherscanURL,
			RPCURL:           *rpcURL,
			PriceProvider:    *provider,
			CoinGeckoURL:     *coingeckoURL,
			CoinID:           *coinID,
			PriceSymbol:      *symbol,
			FallbackPriceStr: *fallback,
			RequestDelay:     delay,
			CacheBackend:     *cacheBackend,
			CacheDir:         *cacheDir,
			RedisAddr:        *redisAddr,
			RedisDB:          *redisDB,
			ServeAddr:        *serve,
			CurrentPriceStr:  *currentPrice,
			Output:           *output,
		})
		if err == nil {
			cfg.RateLimitBackoff, err = parseDurations(*backoff)
		}
	}
	if err != nil {
		return Config{}, err
	}

	cfg.Setup = *setup
	cfg.EtherscanAPIKey = os.Getenv("ETHERSCAN_API_KEY")
	cfg.CoinGeckoAPIKey = os.Getenv("COINGECKO_API_KEY")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.BinanceAPIKey = os.Getenv("BINANCE_API_KEY")
	cfg.BinanceSecretKey = os.Getenv("BINANCE_API_SECRET")
	cfg.BybitAPIKey = os.Getenv("BYBIT_API_KEY")
	cfg.BybitSecretKey = os.Getenv("BYBIT_API_SECRET")

	if cfg.Setup {
		return cfg, nil
	}

	return cfg, cfg.Validate()
}

// Validate checks the settings that need to be present before any lookup.
func (c Config) Validate() error {
	if c.ServeAddr == "" && (c.Wallet == (common.Address{}) || c.Token == (common.Address{})) {
		return fmt.Errorf("--wallet and --token are required unless --serve is set")
	}
	switch c.PriceProvider {
	case ProviderCoinGecko, ProviderBinance, ProviderBybit:
	default:
		return fmt.Errorf("unsupported price provider: %s", c.PriceProvider)
	}
	switch c.CacheBackend {
	case CacheWAL, CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis cache requires redis_addr")
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.CacheBackend)
	}
	switch c.Output {
	case OutputText, OutputJSON:
	default:
		return fmt.Errorf("unsupported output: %s", c.Output)
	}
	return nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, fmt.Errorf("incorrect yaml config %s: %w", path, err)
	}

	return fromTmp(tmp)
}

// fromTmp parses string fields and fills defaults for the missing ones.
func fromTmp(c ConfigTmp) (Config, error) {
	cfg := Config{
		ChainID:          c.ChainID,
		EtherscanURL:     c.EtherscanURL,
		RPCURL:           c.RPCURL,
		PriceProvider:    strings.ToLower(c.PriceProvider),
		CoinGeckoURL:     c.CoinGeckoURL,
		CoinID:           c.CoinID,
		RequestDelay:     defaultRequestDelay,
		RateLimitBackoff: c.RateLimitBackoff,
		CacheBackend:     strings.ToLower(c.CacheBackend),
		CacheDir:         c.CacheDir,
		RedisAddr:        c.RedisAddr,
		RedisDB:          c.RedisDB,
		ServeAddr:        c.ServeAddr,
		Output:           strings.ToLower(c.Output),
	}

	if c.Wallet != "" {
		if !domain.IsAddress(c.Wallet) {
			return Config{}, fmt.Errorf("incorrect 'wallet' param: %s", c.Wallet)
		}
		cfg.Wallet = common.HexToAddress(c.Wallet)
	}
	if c.Token != "" {
		if !domain.IsAddress(c.Token) {
			return Config{}, fmt.Errorf("incorrect 'token' param: %s", c.Token)
		}
		cfg.Token = common.HexToAddress(c.Token)
	}

	if cfg.ChainID == 0 {
		cfg.ChainID = 1
	}
	if cfg.EtherscanURL == "" {
		cfg.EtherscanURL = defaultEtherscanURL
	}
	if cfg.PriceProvider == "" {
		cfg.PriceProvider = ProviderCoinGecko
	}
	if cfg.CoinGeckoURL == "" {
		cfg.CoinGeckoURL = defaultCoinGeckoURL
	}
	if cfg.CoinID == "" {
		cfg.CoinID = defaultCoinID
	}
	if c.RequestDelay != nil {
		if *c.RequestDelay < 0 {
			return Config{}, fmt.Errorf("incorrect 'request_delay' param: %s", *c.RequestDelay)
		}
		cfg.RequestDelay = *c.RequestDelay
	}
	if len(cfg.RateLimitBackoff) == 0 {
		cfg.RateLimitBackoff = append([]time.Duration(nil), defaultBackoff...)
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = CacheWAL
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultCacheDir
	}
	if cfg.Output == "" {
		cfg.Output = OutputText
	}

	symbol := c.PriceSymbol
	if symbol == "" {
		symbol = defaultPriceSymbol
	}
	pair, err := domain.ParsePair(symbol)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'price_symbol' param: %s, error: %w", symbol, err)
	}
	cfg.PriceSymbol = pair

	fallback := c.FallbackPriceStr
	if fallback == "" {
		fallback = defaultFallback
	}
	cfg.FallbackPrice, err = decimal.NewFromString(fallback)
	if err != nil || !cfg.FallbackPrice.IsPositive() {
		return Config{}, fmt.Errorf("incorrect 'fallback_price' param: %s (must be a positive decimal)", fallback)
	}

	cfg.CurrentPrice = decimal.Zero
	if c.CurrentPriceStr != "" {
		cfg.CurrentPrice, err = decimal.NewFromString(c.CurrentPriceStr)
		if err != nil || cfg.CurrentPrice.IsNegative() {
			return Config{}, fmt.Errorf("incorrect 'current_price' param: %s", c.CurrentPriceStr)
		}
	}

	return cfg, nil
}

func parseDurations(s string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("invalid --backoff provided, --backoff=%s", s)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return append([]time.Duration(nil), defaultBackoff...), nil
	}
	return out, nil
}

// ToTmp converts the config back into its YAML form.
func (c Config) ToTmp() ConfigTmp {
	tmp := ConfigTmp{
		ChainID:          c.ChainID,
		EtherscanURL:     c.EtherscanURL,
		RPCURL:           c.RPCURL,
		PriceProvider:    c.PriceProvider,
		CoinGeckoURL:     c.CoinGeckoURL,
		CoinID:           c.CoinID,
		PriceSymbol:      c.PriceSymbol.String(),
		FallbackPriceStr: c.FallbackPrice.String(),
		RequestDelay:     &c.RequestDelay,
		RateLimitBackoff: c.RateLimitBackoff,
		CacheBackend:     c.CacheBackend,
		CacheDir:         c.CacheDir,
		RedisAddr:        c.RedisAddr,
		RedisDB:          c.RedisDB,
		ServeAddr:        c.ServeAddr,
		Output:           c.Output,
	}
	if c.Wallet != (common.Address{}) {
		tmp.Wallet = c.Wallet.Hex()
	}
	if c.Token != (common.Address{}) {
		tmp.Token = c.Token.Hex()
	}
	if c.CurrentPrice.IsPositive() {
		tmp.CurrentPriceStr = c.CurrentPrice.String()
	}
	return tmp
}

func (c Config) String() string {
	return fmt.Sprintf("wallet=%s token=%s chain=%d provider=%s cache=%s",
		c.Wallet.Hex(), c.Token.Hex(), c.ChainID, c.PriceProvider, c.CacheBackend)
}
