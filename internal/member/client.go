package member

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/commerce-system/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с удалённым сервисом участников.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент сервиса участников по указанному адресу.
// Сетевые ошибки и ответы 5xx повторяются ограниченное число раз.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = 5 * time.Second

	return &Client{
		baseURL:    normalizeBaseURL(baseURL),
		httpClient: rc.StandardClient(),
	}
}

func normalizeBaseURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base
}

type memberResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	CashpointBalance int64  `json:"cashpoint_balance"`
	Status           string `json:"status"`
}

type balanceRequest struct {
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Lookup запрашивает участника у удалённого сервиса.
func (c *Client) Lookup(ctx context.Context, memberID int64) (*model.Member, error) {
	url := fmt.Sprintf("%s/api/members/%d", c.baseURL, memberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, memberID)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body memberResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &model.Member{
		ID:               body.ID,
		Name:             body.Name,
		CashpointBalance: body.CashpointBalance,
		Status:           model.MemberStatus(body.Status),
	}, nil
}

// DeductBalance списывает кэшпоинты через удалённый сервис участников.
func (c *Client) DeductBalance(ctx context.Context, memberID, amount int64, idempotencyKey string) error {
	return c.postBalance(ctx, memberID, "deduct", amount, idempotencyKey)
}

// RefundBalance возвращает кэшпоинты через удалённый сервис участников.
func (c *Client) RefundBalance(ctx context.Context, memberID, amount int64, idempotencyKey string) error {
	return c.postBalance(ctx, memberID, "refund", amount, idempotencyKey)
}

func (c *Client) postBalance(ctx context.Context, memberID int64, op string, amount int64, idempotencyKey string) error {
	url := fmt.Sprintf("%s/api/members/%d/cashpoint/%s", c.baseURL, memberID, op)

	payload, err := json.Marshal(balanceRequest{Amount: amount, IdempotencyKey: idempotencyKey})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: id %d", ErrNotFound, memberID)
	case http.StatusConflict, http.StatusPaymentRequired:
		return fmt.Errorf("%w: member %d, amount %d", ErrInsufficientBalance, memberID, amount)
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}
}
