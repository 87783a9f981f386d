package doerlysdk

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

// Client is a minimal Doerly HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// User represents the API user model.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	Role          string `json:"role"`
	WalletBalance string `json:"wallet_balance"`
	CreatedAt     string `json:"created_at"`
}

// Task represents the API task model.
type Task struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Type          string   `json:"task_type"`
	Status        string   `json:"status"`
	CreatedBy     string   `json:"created_by"`
	AssignedTo    *string  `json:"assigned_to,omitempty"`
	Urgency       string   `json:"urgency"`
	EstimatedCost string   `json:"estimated_cost"`
	ProofURLs     []string `json:"proof_urls,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

// Transaction is one ledger entry.
type Transaction struct {
	ID        string  `json:"id"`
	TaskID    string  `json:"task_id"`
	FromUser  string  `json:"from_user"`
	ToUser    *string `json:"to_user,omitempty"`
	Amount    string  `json:"amount"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

// Notification is an in-app message for a user.
type Notification struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	TaskID    *string `json:"task_id,omitempty"`
	Message   string  `json:"message"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at"`
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Register creates an account and stores the returned bearer token on the
// client.
func (c *Client) Register(ctx context.Context, email, password, fullName, role string) (User, error) {
	body := map[string]any{
		"email":     email,
		"password":  password,
		"full_name": fullName,
		"role":      role,
	}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "api/auth/register", body, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Login authenticates and stores the returned bearer token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	body := map[string]any{"email": email, "password": password}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "api/auth/login", body, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Profile returns the authenticated user.
func (c *Client) Profile(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "api/users/profile", nil, &resp)
	return resp, err
}

// CreateTask posts a new task.
func (c *Client) CreateTask(ctx context.Context, title, description, taskType string) (Task, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
		"task_type":   taskType,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "api/tasks", body, &resp)
	return resp, err
}

// Tasks lists the caller's tasks.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "api/tasks", nil, &resp)
	return resp, err
}

// OpenTasks lists pending tasks available to helpers.
func (c *Client) OpenTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "api/tasks?open=true", nil, &resp)
	return resp, err
}

// AcceptTask claims a pending task for the authenticated helper.
func (c *Client) AcceptTask(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "api/helpers/accept-task", map[string]any{"task_id": taskID}, &resp)
	return resp, err
}

// AddFunds credits the wallet; amount is a decimal string like "25.00".
func (c *Client) AddFunds(ctx context.Context, amount string) (string, error) {
	var resp struct {
		Balance string `json:"balance"`
	}
	err := c.do(ctx, http.MethodPost, "api/payments/add-funds", map[string]any{"amount": amount}, &resp)
	return resp.Balance, err
}

// SendMoney transfers funds to the user owning recipientEmail.
func (c *Client) SendMoney(ctx context.Context, recipientEmail, amount string) (Transaction, error) {
	body := map[string]any{"amount": amount, "recipient_email": recipientEmail}
	var resp Transaction
	err := c.do(ctx, http.MethodPost, "api/payments/send", body, &resp)
	return resp, err
}

// Transactions lists the caller's ledger entries.
func (c *Client) Transactions(ctx context.Context) ([]Transaction, error) {
	var resp []Transaction
	err := c.do(ctx, http.MethodGet, "api/payments/transactions", nil, &resp)
	return resp, err
}

// Notifications lists the caller's notifications.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var resp []Notification
	err := c.do(ctx, http.MethodGet, "api/notifications", nil, &resp)
	return resp, err
}

// MarkNotificationRead marks one of the caller's notifications as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("api/notifications/%s/read", url.PathEscape(id))
	return c.do(ctx, http.MethodPatch, endpoint, nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
