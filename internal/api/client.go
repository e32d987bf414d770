// Package api — REST-клиент сервиса: список диалогов, история, профили,
// список игроков. Авторизация — сессионной кукой, выданной оболочкой.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/playerchat/internal/model"
)

// ErrAuthRequired — сервер ответил 401; клиент не ретраит, оболочка
// перенаправляет на вход.
var ErrAuthRequired = errors.New("authentication required")

// StatusError — не-2xx ответ (кроме 401).
type StatusError struct {
	Code     int
	Endpoint string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s: status %d", e.Endpoint, e.Code)
}

// Client вызывает REST API сервиса.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cookie     *http.Cookie
}

// NewClient создаёт клиент. cookieValue пустой — запросы без авторизации
// (сервер ответит 401).
func NewClient(baseURL, cookieName, cookieValue string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	if cookieValue != "" {
		c.cookie = &http.Cookie{Name: cookieName, Value: cookieValue}
	}
	return c
}

// AuthInfo — ответ /api/check-auth.
type AuthInfo struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	UserID        int64  `json:"user_id,omitempty"`
}

// CheckAuth возвращает текущую учётку сессии (в т.ч. собственный user_id).
func (c *Client) CheckAuth(ctx context.Context) (AuthInfo, error) {
	var info AuthInfo
	if err := c.getJSON(ctx, "/api/check-auth", &info); err != nil {
		return AuthInfo{}, err
	}
	return info, nil
}

// Conversations возвращает список диалогов в порядке, отданном сервером
// (по убыванию времени последнего сообщения).
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	if err := c.getJSON(ctx, "/api/conversations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// User возвращает профиль пользователя.
func (c *Client) User(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	if err := c.getJSON(ctx, "/api/user/"+strconv.FormatInt(id, 10), &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Messages возвращает историю переписки с userID, от старых к новым.
// Сервер при этом помечает входящие прочитанными.
func (c *Client) Messages(ctx context.Context, userID int64) ([]model.Message, error) {
	var out []model.Message
	path := "/api/messages?user_id=" + strconv.FormatInt(userID, 10)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Players возвращает список игроков (все, кроме текущего пользователя).
func (c *Client) Players(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := c.getJSON(ctx, "/api/players", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("api: %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("api: %s: %w", path, ErrAuthRequired)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Code: resp.StatusCode, Endpoint: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: %s: decode: %w", path, err)
	}
	return nil
}
