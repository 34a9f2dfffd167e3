package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/reelbux/reelbux/config"
	"github.com/shopspring/decimal"
)

// PaypalCreateInput describes the order sent to PayPal in phase one of
// the redirect flow.
type PaypalCreateInput struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	InvoiceID   string // Our correlation token, echoed back on return
}

// PaypalCreateResult carries the gateway payment id and the approval
// redirect the payer must visit.
type PaypalCreateResult struct {
	PaymentID   string
	Token       string
	ApprovalURL string
}

// PaypalExecutionResult is the typed outcome of executing an approved
// payment. Gross/Fee/Net come from the sale's transaction fee record;
// when PayPal omits the fee, Fee is zero and Net equals Gross.
type PaypalExecutionResult struct {
	SaleID string
	State  string
	Gross  decimal.Decimal
	Fee    decimal.Decimal
	Net    decimal.Decimal
}

// PaypalGateway is the surface the payment flows depend on.
type PaypalGateway interface {
	Name() string
	CreatePayment(ctx context.Context, in PaypalCreateInput) (*PaypalCreateResult, error)
	ExecutePayment(ctx context.Context, paymentID, payerID string) (*PaypalExecutionResult, error)
}

// PaypalClient talks to the PayPal REST API with client-credentials
// OAuth. Tokens are cached until shortly before expiry.
type PaypalClient struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	ReturnURL    string
	CancelURL    string
	HTTPClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPaypalClient creates a new PayPal REST client
func NewPaypalClient(cfg config.PaypalConfig) *PaypalClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &PaypalClient{
		BaseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		ReturnURL:    cfg.ReturnURL,
		CancelURL:    cfg.CancelURL,
		HTTPClient:   &http.Client{Timeout: timeout},
	}
}

func (c *PaypalClient) Name() string { return "paypal" }

type paypalTokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// getAccessToken returns a cached OAuth token or fetches a fresh one.
func (c *PaypalClient) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal: token status %d", resp.StatusCode)
	}

	var tok paypalTokenResp
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	c.accessToken = tok.AccessToken
	// Refresh a minute early to avoid using a token at its expiry edge
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)

	return c.accessToken, nil
}

type paypalAmount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type paypalTransaction struct {
	Amount      paypalAmount `json:"amount"`
	Description string       `json:"description,omitempty"`
	InvoiceNum  string       `json:"invoice_number,omitempty"`
}

type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type paypalCreateReq struct {
	Intent       string              `json:"intent"`
	Payer        map[string]string   `json:"payer"`
	Transactions []paypalTransaction `json:"transactions"`
	RedirectURLs map[string]string   `json:"redirect_urls"`
}

type paypalSale struct {
	ID             string `json:"id"`
	State          string `json:"state"`
	Amount         paypalAmount
	TransactionFee *struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"transaction_fee,omitempty"`
}

type paypalPaymentResp struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	Links        []paypalLink
	Transactions []struct {
		Amount           paypalAmount `json:"amount"`
		RelatedResources []struct {
			Sale *paypalSale `json:"sale,omitempty"`
		} `json:"related_resources"`
	} `json:"transactions"`
}

// CreatePayment creates a redirect payment and extracts the approval URL
// and its token query parameter.
func (c *PaypalClient) CreatePayment(ctx context.Context, in PaypalCreateInput) (*PaypalCreateResult, error) {
	payload := paypalCreateReq{
		Intent: "sale",
		Payer:  map[string]string{"payment_method": "paypal"},
		Transactions: []paypalTransaction{{
			Amount: paypalAmount{
				Total:    in.Amount.StringFixed(2),
				Currency: in.Currency,
			},
			Description: in.Description,
			InvoiceNum:  in.InvoiceID,
		}},
		RedirectURLs: map[string]string{
			"return_url": c.ReturnURL,
			"cancel_url": c.CancelURL,
		},
	}

	var out paypalPaymentResp
	if err := c.postJSON(ctx, "/v1/payments/payment", payload, &out); err != nil {
		return nil, err
	}

	result := &PaypalCreateResult{PaymentID: out.ID}
	for _, link := range out.Links {
		if link.Rel == "approval_url" {
			result.ApprovalURL = link.Href
			if u, err := url.Parse(link.Href); err == nil {
				result.Token = u.Query().Get("token")
			}
			break
		}
	}
	if result.ApprovalURL == "" {
		return nil, fmt.Errorf("paypal: payment %s has no approval_url", out.ID)
	}
	return result, nil
}

// ExecutePayment finalizes an approved payment and reads the fee
// breakdown from the sale record.
func (c *PaypalClient) ExecutePayment(ctx context.Context, paymentID, payerID string) (*PaypalExecutionResult, error) {
	payload := map[string]string{"payer_id": payerID}

	var out paypalPaymentResp
	path := fmt.Sprintf("/v1/payments/payment/%s/execute", paymentID)
	if err := c.postJSON(ctx, path, payload, &out); err != nil {
		return nil, err
	}
	if out.State != "approved" {
		return nil, fmt.Errorf("paypal: payment %s state %q after execute", paymentID, out.State)
	}

	result := &PaypalExecutionResult{State: out.State}
	for _, tx := range out.Transactions {
		gross, err := decimal.NewFromString(tx.Amount.Total)
		if err != nil {
			return nil, fmt.Errorf("paypal: bad amount %q: %w", tx.Amount.Total, err)
		}
		result.Gross = gross
		result.Net = gross

		for _, res := range tx.RelatedResources {
			if res.Sale == nil {
				continue
			}
			result.SaleID = res.Sale.ID
			if res.Sale.TransactionFee != nil {
				fee, err := decimal.NewFromString(res.Sale.TransactionFee.Value)
				if err == nil {
					result.Fee = fee
					result.Net = gross.Sub(fee)
				}
			}
		}
	}
	if result.SaleID == "" {
		return nil, fmt.Errorf("paypal: payment %s has no sale resource", paymentID)
	}
	return result, nil
}

func (c *PaypalClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}

	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(string(b)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("paypal: status %d for %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
