package product

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/commerce-system/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с удалённым сервисом товаров.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент сервиса товаров по указанному адресу.
// Сетевые ошибки и ответы 5xx повторяются ограниченное число раз.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = 5 * time.Second

	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL:    base,
		httpClient: rc.StandardClient(),
	}
}

type productResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	StockQuantity int64  `json:"stock_quantity"`
	Status        string `json:"status"`
}

type stockRequest struct {
	Quantity       int64  `json:"quantity"`
	IdempotencyKey string `json:"idempotency_key"`
}

type stockResponse struct {
	StockQuantity int64 `json:"stock_quantity"`
}

// LookupBatch запрашивает товары по списку идентификаторов одним запросом.
func (c *Client) LookupBatch(ctx context.Context, ids []int64) ([]model.Product, error) {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.FormatInt(id, 10)
	}
	url := fmt.Sprintf("%s/api/products?ids=%s", c.baseURL, strings.Join(strIDs, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body []productResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	products := make([]model.Product, 0, len(body))
	for _, p := range body {
		products = append(products, model.Product{
			ID:            p.ID,
			Name:          p.Name,
			Price:         p.Price,
			StockQuantity: p.StockQuantity,
			Status:        model.ProductStatus(p.Status),
		})
	}
	return products, nil
}

// CheckStock проверяет наличие остатка через удалённый сервис товаров.
func (c *Client) CheckStock(ctx context.Context, productID, quantity int64) (bool, error) {
	url := fmt.Sprintf("%s/api/products/%d/stock/check?quantity=%d", c.baseURL, productID, quantity)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, fmt.Errorf("%w: id %d", ErrNotFound, productID)
	default:
		return false, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return body.Available, nil
}

// DeductStock списывает остаток через удалённый сервис товаров.
func (c *Client) DeductStock(ctx context.Context, productID, quantity int64, idempotencyKey string) (int64, error) {
	return c.postStock(ctx, productID, "deduct", quantity, idempotencyKey)
}

// RestoreStock восстанавливает остаток через удалённый сервис товаров.
func (c *Client) RestoreStock(ctx context.Context, productID, quantity int64, idempotencyKey string) (int64, error) {
	return c.postStock(ctx, productID, "restore", quantity, idempotencyKey)
}

func (c *Client) postStock(ctx context.Context, productID int64, op string, quantity int64, idempotencyKey string) (int64, error) {
	url := fmt.Sprintf("%s/api/products/%d/stock/%s", c.baseURL, productID, op)

	payload, err := json.Marshal(stockRequest{Quantity: quantity, IdempotencyKey: idempotencyKey})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return 0, fmt.Errorf("%w: id %d", ErrNotFound, productID)
	case http.StatusConflict:
		return 0, fmt.Errorf("%w: product %d, quantity %d", ErrInsufficientStock, productID, quantity)
	default:
		return 0, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body stockResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return body.StockQuantity, nil
}
