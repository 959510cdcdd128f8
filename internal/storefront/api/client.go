// Package api is the storefront's client for the backend REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL is used to resolve relative image URLs.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := c.doJSON(ctx, http.MethodGet, "/api/products", nil, &products)
	return products, err
}

func (c *Client) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := c.doJSON(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProductForm is the admin create form. All fields are required.
type ProductForm struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageName   string
	Image       io.Reader
}

func (c *Client) CreateProduct(ctx context.Context, form ProductForm) (*models.Product, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fields := [][2]string{
		{"name", form.Name},
		{"description", form.Description},
		{"price", form.Price.String()},
		{"stock", strconv.Itoa(form.Stock)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if form.Image != nil {
		part, err := mw.CreateFormFile("image", form.ImageName)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, form.Image); err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/products", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var p models.Product
	if err := c.do(req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	var p models.Product
	if err := c.doJSON(ctx, http.MethodPatch, "/api/products/"+url.PathEscape(id), update, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/products/"+url.PathEscape(id), nil, nil)
}

func (c *Client) CreateOrder(ctx context.Context, order models.OrderCreate) (*models.Order, error) {
	var o models.Order
	if err := c.doJSON(ctx, http.MethodPost, "/api/orders", order, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := c.doJSON(ctx, http.MethodGet, "/api/orders", nil, &orders)
	return orders, err
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	var o models.Order
	body := models.OrderStatusUpdate{Status: status}
	if err := c.doJSON(ctx, http.MethodPatch, "/api/orders/"+url.PathEscape(id)+"/status", body, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) Register(ctx context.Context, email, password string, role models.Role) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	body := models.UserCreate{Email: email, Password: password, Role: role}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	body := models.UserLogin{Email: email, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: ErrServer, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Status: resp.StatusCode, Kind: ErrServer, Message: err.Error()}
	}

	if resp.StatusCode >= 400 {
		var body struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(data, &body)
		msg := body.Error
		if msg == "" {
			msg = body.Detail
		}
		return &Error{Status: resp.StatusCode, Kind: kindFor(resp.StatusCode), Message: msg}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Status: resp.StatusCode, Kind: ErrServer, Message: "malformed response: " + err.Error()}
	}
	return nil
}
