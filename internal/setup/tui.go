// Package setup contains the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/costbasis/config"
	"github.com/vadiminshakov/costbasis/internal/domain"
)

const (
	ConfigFile = "config.gen.yaml"
	EnvFile    = ".env"
	title      = "COSTBASIS CONFIG WIZARD"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers collects everything the wizard asks for.
type Answers struct {
	Wallet          string
	Token           string
	ChainID         string
	PriceProvider   string
	CoinID          string
	PriceSymbol     string
	FallbackPrice   string
	CacheBackend    string
	RedisAddr       string
	EtherscanAPIKey string
	CoinGeckoAPIKey string
}

func defaultAnswers() Answers {
	return Answers{
		ChainID:       "1",
		PriceProvider: config.ProviderCoinGecko,
		CoinID:        "ethereum",
		PriceSymbol:   "ETH_USDT",
		FallbackPrice: "2400",
		CacheBackend:  config.CacheWAL,
	}
}

func step(name string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(stepStyle.Render(name))
}

// RunTUI launches the terminal configuration wizard and returns the path of
// the written YAML config.
func RunTUI() (string, error) {
	a := defaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Average cost and P/L of a token position, straight from the chain.\n"))

	fmt.Println(stepStyle.Render("STEP 1: POSITION"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Wallet address").
				Description("0x-prefixed, 40 hex characters").
				Value(&a.Wallet).
				Validate(validateAddress),
			huh.NewInput().
				Title("Token contract").
				Description("ERC-20 contract of the tracked token").
				Value(&a.Token).
				Validate(validateAddress),
			huh.NewInput().
				Title("Chain ID").
				Value(&a.ChainID).
				Validate(validateChainID),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 2: PRICES")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Historical price source").
				Options(
					huh.NewOption("CoinGecko", config.ProviderCoinGecko),
					huh.NewOption("Binance klines", config.ProviderBinance),
					huh.NewOption("Bybit klines", config.ProviderBybit),
				).
				Value(&a.PriceProvider),
			huh.NewInput().
				Title("Fallback native price, USD").
				Description("Used when no historical price is available").
				Value(&a.FallbackPrice).
				Validate(validatePositive),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 3: PRICE SOURCE")
	var sourceFields []huh.Field
	if a.PriceProvider == config.ProviderCoinGecko {
		sourceFields = append(sourceFields,
			huh.NewInput().
				Title("CoinGecko coin id").
				Value(&a.CoinID),
			huh.NewInput().
				Title("CoinGecko API key").
				Description("Optional, stored in .env").
				Value(&a.CoinGeckoAPIKey).
				EchoMode(huh.EchoModePassword),
		)
	} else {
		sourceFields = append(sourceFields,
			huh.NewInput().
				Title("Exchange pair").
				Description("BASE_QUOTE (e.g. ETH_USDT)").
				Value(&a.PriceSymbol).
				Validate(validatePair),
		)
	}
	sourceFields = append(sourceFields,
		huh.NewInput().
			Title("Etherscan API key").
			Description("Stored in .env").
			Value(&a.EtherscanAPIKey).
			EchoMode(huh.EchoModePassword),
	)
	if err = huh.NewForm(huh.NewGroup(sourceFields...)).Run(); err != nil {
		return "", err
	}

	step("STEP 4: PRICE CACHE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where to keep resolved daily prices").
				Options(
					huh.NewOption("Write-ahead log on disk", config.CacheWAL),
					huh.NewOption("Redis", config.CacheRedis),
					huh.NewOption("Memory only", config.CacheMemory),
				).
				Value(&a.CacheBackend),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if a.CacheBackend == config.CacheRedis {
		a.RedisAddr = "localhost:6379"
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Redis address").
					Value(&a.RedisAddr),
			),
		).Run()
		if err != nil {
			return "", err
		}
	}

	step("FINAL CONFIRMATION")
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(a.Summary()))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and compute").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	if err := Save(a, ConfigFile, EnvFile); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nComputing...", ConfigFile)))
	time.Sleep(1500 * time.Millisecond)
	return ConfigFile, nil
}

// Summary renders the answers for the confirmation step.
func (a Answers) Summary() string {
	source := a.CoinID
	if a.PriceProvider != config.ProviderCoinGecko {
		source = a.PriceSymbol
	}
	return fmt.Sprintf(
		"Wallet: %s\nToken: %s\nChain: %s\nPrices: %s (%s)\nFallback: $%s\nCache: %s\n",
		a.Wallet, a.Token, a.ChainID, a.PriceProvider, source, a.FallbackPrice, a.CacheBackend,
	)
}

// ToConfigTmp converts the answers into the YAML config representation.
func (a Answers) ToConfigTmp() (config.ConfigTmp, error) {
	chainID, err := decimal.NewFromString(a.ChainID)
	if err != nil || !chainID.IsInteger() || !chainID.IsPositive() {
		return config.ConfigTmp{}, fmt.Errorf("invalid chain id: %s", a.ChainID)
	}

	tmp := config.ConfigTmp{
		Wallet:           a.Wallet,
		Token:            a.Token,
		ChainID:          chainID.IntPart(),
		PriceProvider:    a.PriceProvider,
		FallbackPriceStr: a.FallbackPrice,
		CacheBackend:     a.CacheBackend,
		RedisAddr:        a.RedisAddr,
	}
	if a.PriceProvider == config.ProviderCoinGecko {
		tmp.CoinID = a.CoinID
	} else {
		tmp.PriceSymbol = a.PriceSymbol
	}
	return tmp, nil
}

// Save writes the YAML config and the API keys to envPath.
func Save(a Answers, configPath, envPath string) error {
	tmp, err := a.ToConfigTmp()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	secrets := map[string]string{}
	if a.EtherscanAPIKey != "" {
		secrets["ETHERSCAN_API_KEY"] = a.EtherscanAPIKey
	}
	if a.CoinGeckoAPIKey != "" {
		secrets["COINGECKO_API_KEY"] = a.CoinGeckoAPIKey
	}
	if len(secrets) == 0 {
		return nil
	}

	if existing, err := godotenv.Read(envPath); err == nil {
		for k, v := range existing {
			if _, ok := secrets[k]; !ok {
				secrets[k] = v
			}
		}
	}

	if err := godotenv.Write(secrets, envPath); err != nil {
		return fmt.Errorf("failed to save %s: %w", envPath, err)
	}
	return nil
}

func validateAddress(s string) error {
	if !domain.IsAddress(s) {
		return fmt.Errorf("must be a 0x-prefixed 20-byte hex address")
	}
	return nil
}

func validateChainID(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() || !d.IsPositive() {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

func validatePair(s string) error {
	if s == "" {
		return fmt.Errorf("pair cannot be empty")
	}
	if _, err := domain.ParsePair(s); err != nil {
		return fmt.Errorf("invalid format: must be BASE_QUOTE (e.g. ETH_USDT)")
	}
	return nil
}
