// Package sublink отдаёт подписанный агрегированный документ подписки
// для клиентских VPN-приложений.
package sublink

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"vpn-reseller-bot/internal/db"
	"vpn-reseller-bot/internal/logger"
	"vpn-reseller-bot/internal/provision"
	"vpn-reseller-bot/internal/subscription"
)

// Тексты-заглушки: клиентские приложения должны получать корректный
// пустой документ, а не ошибку
const (
	placeholderNoSub   = "No active subscription"
	placeholderNoNodes = "No nodes available yet"
)

type Service struct {
	secret []byte

	findUser  func(tgID int64) (db.User, error)
	activeSub func(userID uint) (db.Subscription, bool, error)
	provision func(ctx context.Context, userScope string, expiry time.Time) ([]provision.Node, error)
}

func NewService(secret string, orch *provision.Orchestrator) *Service {
	return &Service{
		secret:    []byte(secret),
		findUser:  db.FindUserByTgID,
		activeSub: subscription.ActiveForUser,
		provision: orch.ProvisionUserUntil,
	}
}

// SignToken — детерминированный токен: HMAC-SHA256 от области пользователя
// на серверном секрете, в hex. Ссылка подписки постоянная, клиентские
// приложения перечитывают её многократно.
func (s *Service) SignToken(userScope string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(userScope))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyToken сравнивает предъявленный токен с ожидаемым за константное
// время: это секьюрити-токен, утечка по таймингу недопустима
func (s *Service) VerifyToken(userScope, presented string) bool {
	expected := s.SignToken(userScope)
	return hmac.Equal([]byte(expected), []byte(presented))
}

// SubscriptionURL — постоянная ссылка подписки пользователя
func (s *Service) SubscriptionURL(basePublicURL, userScope string) string {
	return basePublicURL + "/subscription/" + userScope + "?token=" + s.SignToken(userScope)
}

// base64Clients — сигнатуры клиентских приложений, ожидающих документ,
// завёрнутый в base64. Остальные получают сырые строки.
var base64Clients = []string{"v2rayn", "v2rayng", "shadowrocket", "nekobox", "nekoray", "happ"}

// WantsBase64 — чистая функция согласования формата по user-agent
func WantsBase64(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, sig := range base64Clients {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}

// FetchResult — готовый HTTP-ответ без привязки к транспорту
type FetchResult struct {
	Status int
	Body   string
}

// Fetch собирает документ подписки: проверка токена, поиск пользователя,
// проверка действующей подписки и живая раскатка по текущим активным
// панелям. Ничего не кэшируется — выключенная панель пропадает из
// подписки при следующем запросе.
func (s *Service) Fetch(ctx context.Context, userScope, presentedToken, userAgent string, rawOverride bool) FetchResult {
	if !s.VerifyToken(userScope, presentedToken) {
		return FetchResult{Status: 403, Body: "forbidden"}
	}
	tgID, err := strconv.ParseInt(userScope, 10, 64)
	if err != nil {
		return FetchResult{Status: 404, Body: "not found"}
	}
	user, err := s.findUser(tgID)
	if err != nil {
		return FetchResult{Status: 404, Body: "not found"}
	}
	sub, active, err := s.activeSub(user.ID)
	if err != nil || !active {
		// Истёкшая подписка — корректный пустой документ, не ошибка
		return FetchResult{Status: 200, Body: placeholderNoSub}
	}
	nodes, err := s.provision(ctx, userScope, sub.ExpiresAt)
	if err != nil {
		logger.Error("subscription provisioning failed", zap.String("user_scope", userScope), zap.Error(err))
		return FetchResult{Status: 200, Body: placeholderNoNodes}
	}
	if len(nodes) == 0 {
		return FetchResult{Status: 200, Body: placeholderNoNodes}
	}
	uris := make([]string, 0, len(nodes))
	for _, n := range nodes {
		uris = append(uris, n.URI)
	}
	body := strings.Join(uris, "\n")
	if WantsBase64(userAgent) && !rawOverride {
		body = base64.StdEncoding.EncodeToString([]byte(body))
	}
	return FetchResult{Status: 200, Body: body}
}

// DebugInfo — диагностика вместо сырого документа
type DebugInfo struct {
	UID       string `json:"uid"`
	TokenOK   bool   `json:"token_ok"`
	UserFound bool   `json:"user_found"`
	ActiveSub bool   `json:"active_sub"`
	Links     int    `json:"links"`
}

// Debug повторяет шаги Fetch, но возвращает структурные признаки
func (s *Service) Debug(ctx context.Context, userScope, presentedToken string) DebugInfo {
	info := DebugInfo{UID: userScope}
	info.TokenOK = s.VerifyToken(userScope, presentedToken)
	if !info.TokenOK {
		return info
	}
	tgID, err := strconv.ParseInt(userScope, 10, 64)
	if err != nil {
		return info
	}
	user, err := s.findUser(tgID)
	if err != nil {
		return info
	}
	info.UserFound = true
	sub, active, err := s.activeSub(user.ID)
	if err != nil || !active {
		return info
	}
	info.ActiveSub = true
	nodes, err := s.provision(ctx, userScope, sub.ExpiresAt)
	if err != nil {
		return info
	}
	info.Links = len(nodes)
	return info
}
