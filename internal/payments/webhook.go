package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vpn-reseller-bot/config"
	"vpn-reseller-bot/internal/db"
	"vpn-reseller-bot/internal/logger"
)

// Проверка HMAC подписи webhook YooKassa (Authorization или Content-Yoomoney-Signature)
func checkYooKassaSignature(secret string, body []byte, authHeader, yoomoneyHeader string) bool {
	var signatures []string
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "HMAC ") || strings.HasPrefix(authHeader, "HMAC-SHA256 ") {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 {
				signatures = append(signatures, parts[1])
			}
		}
	}
	if yoomoneyHeader != "" {
		signatures = append(signatures, yoomoneyHeader)
	}
	if len(signatures) == 0 {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	calc := hex.EncodeToString(h.Sum(nil))
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(calc)) {
			return true
		}
	}
	return false
}

// YooKassaWebhookHandler обрабатывает уведомления от YooKassa:
// подтверждённый платёж зачисляет баланс и уведомляет пользователя
func YooKassaWebhookHandler(bot *tgbotapi.BotAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer logger.NotifyOnPanic("YooKassaWebhookHandler")
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.Body.Close()
		authHeader := r.Header.Get("Authorization")
		yoomoneyHeader := r.Header.Get("Content-Yoomoney-Signature")
		if !checkYooKassaSignature(config.AppCfg.YooKassaSecret, body, authHeader, yoomoneyHeader) {
			logger.NotifyAdmin("Недействительная подпись webhook YooKassa")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("invalid signature"))
			return
		}
		var event struct {
			Object struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"object"`
		}
		if err := json.Unmarshal(body, &event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch event.Object.Status {
		case "succeeded":
			pay, credited, err := ConfirmPaid("yookassa", event.Object.ID)
			if err != nil {
				if !errors.Is(err, ErrPaymentNotFound) {
					logger.NotifyAdmin("Ошибка зачисления платежа: " + err.Error())
				}
				w.WriteHeader(http.StatusOK)
				return
			}
			// Повторный webhook того же платежа — молча подтверждаем
			if !credited {
				w.WriteHeader(http.StatusOK)
				return
			}
			var user db.User
			if err := db.DB.First(&user, pay.UserID).Error; err == nil {
				msg := tgbotapi.NewMessage(user.TgID,
					fmt.Sprintf("Баланс пополнен на %d.%02d %s", pay.Amount/100, pay.Amount%100, pay.Currency))
				bot.Send(msg)
			}
		case "canceled":
			CancelPayment("yookassa", event.Object.ID)
		}
		w.WriteHeader(http.StatusOK)
	}
}
