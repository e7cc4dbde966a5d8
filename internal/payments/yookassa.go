package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// YooKassa — провайдер пополнения через API ЮKassa
type YooKassa struct {
	shopID    string
	secretKey string
	returnURL string
	baseURL   string
	http      *http.Client
}

func NewYooKassa(shopID, secretKey, returnURL string) *YooKassa {
	return &YooKassa{
		shopID:    shopID,
		secretKey: secretKey,
		returnURL: returnURL,
		baseURL:   "https://api.yookassa.ru/v3",
		http:      &http.Client{Timeout: 20 * time.Second},
	}
}

func (y *YooKassa) Name() string { return "yookassa" }

type yooKassaPayment struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

func (y *YooKassa) Start(ctx context.Context, userID int64, amount int64, currency string) (string, string, error) {
	body := map[string]interface{}{
		"amount":       map[string]interface{}{"value": fmt.Sprintf("%d.%02d", amount/100, amount%100), "currency": currency},
		"confirmation": map[string]string{"type": "redirect", "return_url": y.returnURL},
		"capture":      true,
		"description":  fmt.Sprintf("Пополнение баланса, пользователь %d", userID),
		"metadata":     map[string]interface{}{"user_id": userID},
	}
	jsonBody, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.baseURL+"/payments", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	// Idempotence-Key обязателен для YooKassa: повтор запроса не создаёт
	// второй платёж
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(y.shopID, y.secretKey)
	resp, err := y.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", errors.New("YooKassa error")
	}
	var pr yooKassaPayment
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", "", err
	}
	return pr.Confirmation.ConfirmationURL, pr.ID, nil
}

func (y *YooKassa) Check(ctx context.Context, externalID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/payments/"+externalID, nil)
	if err != nil {
		return false, err
	}
	req.SetBasicAuth(y.shopID, y.secretKey)
	resp, err := y.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, errors.New("YooKassa error")
	}
	var pr yooKassaPayment
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return false, err
	}
	return pr.Status == "succeeded", nil
}
