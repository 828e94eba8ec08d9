package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/astrobalance/vaultgate/internal/pkg/logger"
	"github.com/astrobalance/vaultgate/internal/pkg/numeric"
)

// How old a streamed rate may be before we refuse to quote from it.
const rateStaleAfter = 30 * time.Second

// Client is the HTTP implementation of the Quoter port. Simulation goes
// through the venue's quote API; when that is unreachable and the rate book
// holds a fresh streamed rate for the pair, the rate is used instead.
type Client struct {
	quoteURL   string
	routerAddr string
	http       *http.Client
	rates      *RateBook // may be nil
}

func NewClient(quoteURL, routerAddr string, timeout time.Duration, rates *RateBook) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		quoteURL:   quoteURL,
		routerAddr: routerAddr,
		http:       &http.Client{Timeout: timeout},
		rates:      rates,
	}
}

func (c *Client) Simulate(ctx context.Context, offerDenom, askDenom string, amount uint64) (uint64, error) {
	out, err := c.simulateHTTP(ctx, offerDenom, askDenom, amount)
	if err == nil {
		return out, nil
	}

	// Quote API down: fall back to the streamed rate if fresh enough.
	if c.rates != nil {
		if rate, ok := c.rates.Get(offerDenom, askDenom); ok && time.Since(rate.LastUpdated) < rateStaleAfter {
			logger.Warn("venue quote API unavailable, using streamed rate",
				"offer", offerDenom, "ask", askDenom, "error", err)
			return numeric.MulFrac(amount, rate.Price), nil
		}
	}
	return 0, err
}

func (c *Client) simulateHTTP(ctx context.Context, offerDenom, askDenom string, amount uint64) (uint64, error) {
	if c.quoteURL == "" {
		return 0, apperrors.New(apperrors.ErrConversion, "venue quote url not configured", nil)
	}

	q := url.Values{}
	q.Set("offer", offerDenom)
	q.Set("ask", askDenom)
	q.Set("amount", strconv.FormatUint(amount, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quoteURL+"/simulate?"+q.Encode(), nil)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrConversion, "build quote request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrConversion, "venue quote failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, apperrors.New(apperrors.ErrConversion,
			fmt.Sprintf("venue quote returned %d: %s", resp.StatusCode, string(raw)), nil)
	}

	var body struct {
		Amount uint64 `json:"amount,string"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, apperrors.New(apperrors.ErrConversion, "decode quote response", err)
	}
	return body.Amount, nil
}

func (c *Client) BuildSwap(offerDenom, askDenom string, amount, minimumReceive uint64) (model.Instruction, error) {
	msg := map[string]any{
		"execute_swap_operations": map[string]any{
			"operations": []map[string]any{
				{
					"swap": map[string]any{
						"offer_denom": offerDenom,
						"ask_denom":   askDenom,
					},
				},
			},
			"minimum_receive": strconv.FormatUint(minimumReceive, 10),
		},
	}
	instr, err := model.NewInvoke(c.routerAddr, msg, model.Coin{Denom: offerDenom, Amount: amount})
	if err != nil {
		return model.Instruction{}, apperrors.New(apperrors.ErrConversion, "build swap instruction", err)
	}
	return instr, nil
}
