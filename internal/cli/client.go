package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL      string
	ServiceToken string
	AdminToken   string
	HTTP         *http.Client
}

func NewClient(baseURL, serviceToken, adminToken string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ServiceToken: serviceToken,
		AdminToken:   adminToken,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) CreateCountry(ctx context.Context, countryID int64, name string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/countries", map[string]any{
		"country_id": countryID,
		"name":       name,
	}, &out, false)
	return out, err
}

func (c *Client) Country(ctx context.Context, countryID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/countries/%d", countryID), nil, &out, false)
	return out, err
}

func (c *Client) TreasuryHistory(ctx context.Context, countryID int64, limit int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/countries/%d/treasury/history?limit=%d", countryID, limit), nil, &out, false)
	return out, err
}

func (c *Client) SetMarketTax(ctx context.Context, countryID int64, taxBp int32) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPut, fmt.Sprintf("/v1/countries/%d/policy/tax", countryID), map[string]any{
		"tax_bp": taxBp,
	}, &out, true)
	return out, err
}

func (c *Client) AssignLand(ctx context.Context, countryID, channelID int64, tier int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/countries/%d/lands", countryID), map[string]any{
		"channel_id": channelID,
		"tier":       tier,
	}, &out, false)
	return out, err
}

func (c *Client) Lands(ctx context.Context, countryID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/countries/%d/lands", countryID), nil, &out, false)
	return out, err
}

func (c *Client) Land(ctx context.Context, countryID, channelID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/countries/%d/lands/%d", countryID, channelID), nil, &out, false)
	return out, err
}

func (c *Client) Claim(ctx context.Context, countryID, userID, channelID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/countries/%d/claims", countryID), map[string]any{
		"user_id":    userID,
		"channel_id": channelID,
	}, &out, false)
	return out, err
}

func (c *Client) Craft(ctx context.Context, countryID, userID int64, productID string, batches int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/countries/%d/crafts", countryID), map[string]any{
		"user_id":    userID,
		"product_id": productID,
		"batches":    batches,
	}, &out, false)
	return out, err
}

func (c *Client) SellToNPC(ctx context.Context, countryID, userID int64, itemID string, qty int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/countries/%d/npc/sales", countryID), map[string]any{
		"user_id": userID,
		"item_id": itemID,
		"qty":     qty,
	}, &out, false)
	return out, err
}

func (c *Client) Inventory(ctx context.Context, countryID, userID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/countries/%d/inventory/%d", countryID, userID), nil, &out, false)
	return out, err
}

func (c *Client) RegisterListing(ctx context.Context, countryID, sellerID int64, itemID string, qty, unitPrice int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/countries/%d/listings", countryID), map[string]any{
		"seller_id":  sellerID,
		"item_id":    itemID,
		"qty":        qty,
		"unit_price": unitPrice,
	}, &out, false)
	return out, err
}

func (c *Client) OpenListings(ctx context.Context, countryID int64, itemID string, limit int) (map[string]any, error) {
	var out map[string]any
	path := fmt.Sprintf("/v1/countries/%d/listings?item_id=%s&limit=%d", countryID, url.QueryEscape(itemID), limit)
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, false)
	return out, err
}

func (c *Client) CancelListing(ctx context.Context, countryID, listingID, userID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/countries/%d/listings/%d/cancel", countryID, listingID), map[string]any{
		"user_id": userID,
	}, &out, false)
	return out, err
}

func (c *Client) QuoteBuy(ctx context.Context, countryID, buyerID, listingID, qty int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/countries/%d/buys/quote", countryID), map[string]any{
		"buyer_id":   buyerID,
		"listing_id": listingID,
		"qty":        qty,
	}, &out, false)
	return out, err
}

func (c *Client) ConfirmBuy(ctx context.Context, countryID, buyerID int64, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/countries/%d/buys/confirm", countryID), map[string]any{
		"buyer_id": buyerID,
		"token":    token,
	}, &out, false)
	return out, err
}

func (c *Client) CancelQuote(ctx context.Context, countryID, buyerID int64, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/countries/%d/buys/cancel", countryID), map[string]any{
		"buyer_id": buyerID,
		"token":    token,
	}, &out, false)
	return out, err
}

func (c *Client) Prices(ctx context.Context, countryID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/countries/%d/prices", countryID), nil, &out, false)
	return out, err
}

func (c *Client) Price(ctx context.Context, countryID int64, itemID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/countries/%d/prices/%s", countryID, url.PathEscape(itemID)), nil, &out, false)
	return out, err
}

func (c *Client) Items(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/items", nil, &out, false)
	return out, err
}

func (c *Client) Recipes(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/recipes", nil, &out, false)
	return out, err
}

func (c *Client) Recipe(ctx context.Context, productID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/recipes/"+url.PathEscape(productID), nil, &out, false)
	return out, err
}

func (c *Client) TopTreasuries(ctx context.Context, limit int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/rankings/treasuries?limit=%d", limit), nil, &out, false)
	return out, err
}

func (c *Client) TopBalances(ctx context.Context, countryID int64, limit int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/countries/%d/rankings/balances?limit=%d", countryID, limit), nil, &out, false)
	return out, err
}

func (c *Client) TopBalancesGlobal(ctx context.Context, limit int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/rankings/balances?limit=%d", limit), nil, &out, false)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, admin bool) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.ServiceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.ServiceToken)
	}
	if admin && c.AdminToken != "" {
		req.Header.Set("X-Admin-Token", c.AdminToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
