package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// CryptoBot — провайдер пополнения через Crypto Pay API (@CryptoBot)
type CryptoBot struct {
	token     string
	returnURL string
	baseURL   string
	http      *http.Client
}

func NewCryptoBot(token, returnURL string) *CryptoBot {
	return &CryptoBot{
		token:     token,
		returnURL: returnURL,
		baseURL:   "https://pay.crypt.bot/api",
		http:      &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *CryptoBot) Name() string { return "cryptobot" }

func (c *CryptoBot) post(ctx context.Context, method string, payload interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Crypto-Pay-API-Token", c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cryptobot: %s status %d", method, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *CryptoBot) Start(ctx context.Context, userID int64, amount int64, currency string) (string, string, error) {
	var res struct {
		Result struct {
			InvoiceID int64  `json:"invoice_id"`
			PayURL    string `json:"pay_url"`
		} `json:"result"`
	}
	err := c.post(ctx, "createInvoice", map[string]interface{}{
		"asset":         currency,
		"amount":        fmt.Sprintf("%d.%02d", amount/100, amount%100),
		"description":   "Пополнение баланса",
		"payload":       strconv.FormatInt(userID, 10),
		"paid_btn_name": "callback",
		"paid_btn_url":  c.returnURL,
	}, &res)
	if err != nil {
		return "", "", err
	}
	return res.Result.PayURL, strconv.FormatInt(res.Result.InvoiceID, 10), nil
}

func (c *CryptoBot) Check(ctx context.Context, externalID string) (bool, error) {
	var res struct {
		Result struct {
			Items []struct {
				Status string `json:"status"`
			} `json:"items"`
		} `json:"result"`
	}
	err := c.post(ctx, "getInvoices", map[string]interface{}{
		"invoice_ids": externalID,
	}, &res)
	if err != nil {
		return false, err
	}
	if len(res.Result.Items) == 0 {
		return false, nil
	}
	return res.Result.Items[0].Status == "paid", nil
}
