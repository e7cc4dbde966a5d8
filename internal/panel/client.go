// Package panel — клиент одной апстрим-панели управления прокси.
// Поколения панелей различаются формой логина, префиксами API и обёртками
// ответов, поэтому клиент пробует известные варианты по порядку и
// запоминает первый сработавший.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

var (
	ErrPanelAuth      = errors.New("panel: authentication failed")
	ErrPanelProvision = errors.New("panel: provisioning failed")
)

// Client держит сессию одной панели на время своей жизни
type Client struct {
	baseURL  string
	username string
	password string
	domain   string

	http      *http.Client
	token     string // bearer-токен, если панель отдаёт токен вместо cookie
	apiPrefix string // префикс API, выбранный при первом успешном запросе
	loggedIn  bool
}

// Префиксы API, наблюдавшиеся у разных поколений панелей
var apiPrefixes = []string{"/panel/api/inbounds", "/xui/API/inbounds"}

func NewClient(baseURL, username, password, domain string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		domain:   domain,
		http: &http.Client{
			Timeout: 20 * time.Second,
			Jar:     jar,
		},
	}
}

// Domain — домен панели для подстановки в ссылки
func (c *Client) Domain() string {
	return c.domain
}

// loginVariant — одна известная форма логина; перебираются по порядку
// до первого успеха
type loginVariant struct {
	name    string
	attempt func(ctx context.Context, c *Client) error
}

var loginVariants = []loginVariant{
	// Классика: form-encoded POST /login, сессия в cookie
	{"form-cookie", func(ctx context.Context, c *Client) error {
		form := url.Values{}
		form.Set("username", c.username)
		form.Set("password", c.password)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("login status %d", resp.StatusCode)
		}
		// Часть панелей отвечает 200 с {"success":false} при неверном пароле
		var res struct {
			Success *bool `json:"success"`
		}
		if err := json.Unmarshal(body, &res); err == nil && res.Success != nil && !*res.Success {
			return errors.New("login rejected")
		}
		return nil
	}},
	// Новее: JSON POST /api/v1/login, токен в obj/token или data/token
	{"json-token", func(ctx context.Context, c *Client) error {
		payload, _ := json.Marshal(map[string]string{"username": c.username, "password": c.password})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/login", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("login status %d", resp.StatusCode)
		}
		var res struct {
			Token string `json:"token"`
			Obj   struct {
				Token string `json:"token"`
			} `json:"obj"`
			Data struct {
				Token string `json:"token"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return err
		}
		token := res.Token
		if token == "" {
			token = res.Obj.Token
		}
		if token == "" {
			token = res.Data.Token
		}
		if token == "" {
			return errors.New("no token in login response")
		}
		c.token = token
		return nil
	}},
}

// Login проходит рукопожатие с панелью, пробуя известные варианты по
// порядку. Сессия кэшируется на время жизни клиента.
func (c *Client) Login(ctx context.Context) error {
	if c.loggedIn {
		return nil
	}
	var lastErr error
	for _, variant := range loginVariants {
		if err := variant.attempt(ctx, c); err != nil {
			lastErr = fmt.Errorf("%s: %w", variant.name, err)
			continue
		}
		c.loggedIn = true
		return nil
	}
	return fmt.Errorf("%w: %v", ErrPanelAuth, lastErr)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// ListInbounds возвращает нормализованный список inbound'ов, пробуя
// известные префиксы API. Первый успешный префикс запоминается для
// последующих вызовов.
func (c *Client) ListInbounds(ctx context.Context) ([]Inbound, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	prefixes := apiPrefixes
	if c.apiPrefix != "" {
		prefixes = []string{c.apiPrefix}
	}
	var lastErr error
	for _, prefix := range prefixes {
		status, body, err := c.do(ctx, http.MethodGet, prefix+"/list", nil)
		if err != nil {
			lastErr = err
			continue
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("list status %d", status)
			continue
		}
		inbounds, err := parseInbounds(body)
		if err != nil {
			lastErr = err
			continue
		}
		c.apiPrefix = prefix
		return inbounds, nil
	}
	return nil, fmt.Errorf("panel: list inbounds failed: %w", lastErr)
}

// clientPayload собирает JSON клиента в формате панели. Идентичность
// кладётся в id либо в password в зависимости от протокола inbound'а.
func clientPayload(inb Inbound, identity, email string, expiry time.Time, trafficLimitGB int) ([]byte, error) {
	entry := map[string]interface{}{
		"email":      email,
		"enable":     true,
		"expiryTime": expiry.UnixMilli(),
		"totalGB":    int64(trafficLimitGB) * 1024 * 1024 * 1024,
	}
	if inb.Protocol == ProtocolTrojan {
		entry["password"] = identity
	} else {
		entry["id"] = identity
	}
	if inb.Stream.Flow != "" && inb.Protocol == ProtocolVLESS {
		entry["flow"] = inb.Stream.Flow
	}
	settings, err := json.Marshal(map[string]interface{}{"clients": []interface{}{entry}})
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{
		"id":       inb.ID,
		"settings": string(settings),
	})
}

// EnsureClient — идемпотентный upsert клиента на inbound'е: сначала
// создание, при конфликте — обновление. Успех любого из двух шагов
// считается успехом.
func (c *Client) EnsureClient(ctx context.Context, inb Inbound, identity, email string, expiry time.Time, trafficLimitGB int) error {
	if err := c.Login(ctx); err != nil {
		return err
	}
	payload, err := clientPayload(inb, identity, email, expiry, trafficLimitGB)
	if err != nil {
		return err
	}
	prefix := c.apiPrefix
	if prefix == "" {
		prefix = apiPrefixes[0]
	}
	status, body, err := c.do(ctx, http.MethodPost, prefix+"/addClient", payload)
	if err == nil && requestSucceeded(status, body) {
		return nil
	}
	// Клиент уже существует или панель ответила ошибкой — пробуем обновить
	status, body, err = c.do(ctx, http.MethodPost, prefix+"/updateClient/"+url.PathEscape(identity), payload)
	if err == nil && requestSucceeded(status, body) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPanelProvision, err)
	}
	return fmt.Errorf("%w: status %d", ErrPanelProvision, status)
}

// requestSucceeded: 2xx и, если тело в стандартной обёртке, success != false
func requestSucceeded(status int, body []byte) bool {
	if status < 200 || status >= 300 {
		return false
	}
	var res struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(body, &res); err == nil && res.Success != nil {
		return *res.Success
	}
	return true
}

// Close освобождает соединения, удерживаемые клиентом
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
