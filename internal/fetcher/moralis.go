package fetcher

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

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// moralisChainSlugs maps chain identifiers to the provider's chain parameter.
// A chain absent from this map is unsupported regardless of configuration.
var moralisChainSlugs = map[string]string{
	"ethereum": "eth",
	"polygon":  "polygon",
}

// MoralisOptions parameterise the Moralis price fetcher.
type MoralisOptions struct {
	BaseURL        string
	APIKey         string
	TokenAddresses map[string]string
	Timeout        time.Duration
	UserAgent      string
}

// Moralis fetches ERC-20 token prices from the Moralis deep-index API.
type Moralis struct {
	opts    MoralisOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewMoralis constructs a Moralis price fetcher.
func NewMoralis(opts MoralisOptions, logger zerolog.Logger) *Moralis {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://deep-index.moralis.io/api/v2.2"
	}

	return &Moralis{
		opts:    opts,
		logger:  logger.With().Str("component", "moralis_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPrice retrieves the current USD price of the chain's wrapped native token.
func (m *Moralis) FetchPrice(ctx context.Context, chain string) (decimal.Decimal, error) {
	slug, ok := moralisChainSlugs[chain]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}

	address, ok := m.opts.TokenAddresses[chain]
	if !ok || address == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: no token address configured for %s", ErrUnsupportedChain, chain)
	}
	if !common.IsHexAddress(address) {
		return decimal.Decimal{}, fmt.Errorf("invalid token address for %s: %s", chain, address)
	}

	if m.opts.APIKey == "" {
		return decimal.Decimal{}, errors.New("moralis api key not configured")
	}

	token := common.HexToAddress(address)
	endpoint := fmt.Sprintf("%s/erc20/%s/price?chain=%s", m.baseURL, token.Hex(), url.QueryEscape(slug))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", m.opts.APIKey)
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, parseHTTPError(resp.StatusCode, payload)
	}

	var priceRes priceResponse
	if err := json.Unmarshal(payload, &priceRes); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: decode response: %v", ErrQuoteUnavailable, err)
	}

	price, err := priceRes.usdPrice()
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: non-positive price %s", ErrQuoteUnavailable, price.String())
	}

	m.logger.Debug().Str("chain", chain).Str("price_usd", price.String()).Msg("price fetched")
	return price, nil
}

type priceResponse struct {
	USDPrice          json.Number `json:"usdPrice"`
	USDPriceFormatted string      `json:"usdPriceFormatted"`
	TokenSymbol       string      `json:"tokenSymbol"`
}

// usdPrice prefers the formatted string representation when present to avoid
// float round-tripping.
func (r priceResponse) usdPrice() (decimal.Decimal, error) {
	if r.USDPriceFormatted != "" {
		return decimal.NewFromString(r.USDPriceFormatted)
	}
	if r.USDPrice != "" {
		return decimal.NewFromString(r.USDPrice.String())
	}
	return decimal.Decimal{}, errors.New("response contained no usd price")
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("%w: moralis api error (%d): %s", ErrQuoteUnavailable, status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("%w: moralis api error (%d): %s", ErrQuoteUnavailable, status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("%w: moralis api error (%d): %s", ErrQuoteUnavailable, status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("%w: moralis api error (%d)", ErrQuoteUnavailable, status)
}

var _ PriceFetcher = (*Moralis)(nil)
