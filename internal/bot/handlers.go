package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"vpn-reseller-bot/config"
	"vpn-reseller-bot/internal/admin"
	"vpn-reseller-bot/internal/db"
	"vpn-reseller-bot/internal/ledger"
	"vpn-reseller-bot/internal/logger"
	"vpn-reseller-bot/internal/payments"
	"vpn-reseller-bot/internal/provision"
	"vpn-reseller-bot/internal/sublink"
)

var rateLimiter = NewRateLimiter()

// Зависимости хендлеров; выставляются из main при старте
var (
	orch      *provision.Orchestrator
	linkSvc   *sublink.Service
	providers map[string]payments.Provider
)

// Init подключает сервисы к обработчикам бота
func Init(o *provision.Orchestrator, s *sublink.Service, p map[string]payments.Provider) {
	orch = o
	linkSvc = s
	providers = p
}

func HandleUpdate(botapi *tgbotapi.BotAPI, update tgbotapi.Update) {
	defer logger.NotifyOnPanic("HandleUpdate")
	if update.Message != nil && update.Message.From != nil {
		handleMessage(botapi, &update)
		return
	}
	if update.CallbackQuery != nil {
		handleCallback(botapi, &update)
	}
}

func handleMessage(botapi *tgbotapi.BotAPI, update *tgbotapi.Update) {
	from := update.Message.From
	chatID := update.Message.Chat.ID
	user, err := db.GetOrCreateUser(from.ID, from.UserName)
	if err != nil {
		logger.Error("get or create user failed", zap.Int64("tg_id", from.ID), zap.Error(err))
		return
	}

	// Продолжение админского диалога имеет приоритет над командами
	if !update.Message.IsCommand() && admin.HandleAdminText(botapi, update) {
		return
	}

	cmd := "/" + update.Message.Command()
	if rateLimiter.IsLimited(from.ID, cmd) {
		return
	}

	if strings.HasPrefix(update.Message.Command(), "admin_") || update.Message.Command() == "cancel" {
		admin.HandleAdminCommand(botapi, update)
		return
	}

	switch update.Message.Command() {
	case "start":
		handleStart(botapi, update, user)
	case "balance":
		text := fmt.Sprintf("Баланс: %s %s", formatMoney(user.Balance), config.AppCfg.Currency)
		send(botapi, chatID, text)
	case "buy":
		if !gateOK(botapi, update, user) {
			return
		}
		handleBuyMenu(botapi, chatID)
	case "topup":
		msg := tgbotapi.NewMessage(chatID, "Выберите способ и сумму пополнения:")
		msg.ReplyMarkup = topupKeyboard()
		botapi.Send(msg)
	case "mylink":
		if !gateOK(botapi, update, user) {
			return
		}
		handleMyLink(botapi, chatID, user)
	case "help", "":
		msg := tgbotapi.NewMessage(chatID, "Команды: /buy — купить подписку, /mylink — ссылка подписки, /balance, /topup")
		msg.ReplyMarkup = GetReplyKeyboard(from.ID)
		botapi.Send(msg)
	}
}

// gateOK — гейты доступа: подписка на канал и принятие соглашения
func gateOK(botapi *tgbotapi.BotAPI, update *tgbotapi.Update, user db.User) bool {
	from := update.Message.From
	chatID := update.Message.Chat.ID
	if config.AppCfg.RequiredChannel != "" && !isChannelMember(botapi, from.ID) {
		send(botapi, chatID, "Для доступа подпишитесь на канал "+config.AppCfg.RequiredChannel+" и повторите команду")
		return false
	}
	if user.TosAcceptedAt == nil {
		msg := tgbotapi.NewMessage(chatID, "Перед началом примите пользовательское соглашение")
		msg.ReplyMarkup = tosKeyboard()
		botapi.Send(msg)
		return false
	}
	return true
}

func isChannelMember(botapi *tgbotapi.BotAPI, userID int64) bool {
	member, err := botapi.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: config.AppCfg.RequiredChannel,
			UserID:             userID,
		},
	})
	if err != nil {
		return false
	}
	switch member.Status {
	case "member", "creator", "administrator":
		return true
	}
	return false
}

func handleStart(botapi *tgbotapi.BotAPI, update *tgbotapi.Update, user db.User) {
	chatID := update.Message.Chat.ID
	if !gateOK(botapi, update, user) {
		return
	}
	msg := tgbotapi.NewMessage(chatID, "Главное меню")
	msg.ReplyMarkup = GetReplyKeyboard(update.Message.From.ID)
	botapi.Send(msg)
}

func handleBuyMenu(botapi *tgbotapi.BotAPI, chatID int64) {
	tariffs, err := db.ActiveTariffs()
	if err != nil || len(tariffs) == 0 {
		send(botapi, chatID, "Тарифы временно недоступны")
		return
	}
	for i := range tariffs {
		tariffs[i].Title = fmt.Sprintf("%s — %d %s", tariffs[i].Title, tariffs[i].Price, config.AppCfg.Currency)
	}
	msg := tgbotapi.NewMessage(chatID, "Выберите тариф:")
	msg.ReplyMarkup = tariffKeyboard(tariffs)
	botapi.Send(msg)
}

func handleMyLink(botapi *tgbotapi.BotAPI, chatID int64, user db.User) {
	scope := strconv.FormatInt(user.TgID, 10)
	url := linkSvc.SubscriptionURL(config.AppCfg.BasePublicURL, scope)
	send(botapi, chatID, "Импортируйте ссылку в V2RayN/V2RayNG/Shadowrocket/NekoBox:\n"+url)
}

func handleCallback(botapi *tgbotapi.BotAPI, update *tgbotapi.Update) {
	data := update.CallbackQuery.Data
	from := update.CallbackQuery.From
	chatID := update.CallbackQuery.Message.Chat.ID

	switch {
	case data == "tos_accept":
		user, err := db.GetOrCreateUser(from.ID, from.UserName)
		if err == nil {
			db.SetTosAccepted(user.ID)
		}
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Соглашение принято"))
		msg := tgbotapi.NewMessage(chatID, "Главное меню")
		msg.ReplyMarkup = GetReplyKeyboard(from.ID)
		botapi.Send(msg)

	case strings.HasPrefix(data, "buy_tariff_"):
		id, err := strconv.ParseUint(strings.TrimPrefix(data, "buy_tariff_"), 10, 32)
		if err != nil {
			botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Ошибка выбора тарифа"))
			return
		}
		handlePurchase(botapi, update, from.ID, chatID, uint(id))

	case strings.HasPrefix(data, "topup_"):
		handleTopup(botapi, update, from, chatID, data)

	case strings.HasPrefix(data, "check_"):
		handleCheckPayment(botapi, update, chatID, data)
	}
}

func handlePurchase(botapi *tgbotapi.BotAPI, update *tgbotapi.Update, tgID, chatID int64, tariffID uint) {
	result, err := ledger.Purchase(context.Background(), tgID, tariffID, orch)
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, ""))
		msg := tgbotapi.NewMessage(chatID, "Недостаточно средств. Пополните баланс:")
		msg.ReplyMarkup = topupKeyboard()
		botapi.Send(msg)
		return
	case errors.Is(err, ledger.ErrTariffUnavailable):
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Тариф недоступен"))
		return
	case err != nil:
		logger.Error("purchase failed", zap.Int64("tg_id", tgID), zap.Error(err))
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Ошибка покупки, попробуйте позже"))
		return
	}
	botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Оплачено"))

	scope := strconv.FormatInt(tgID, 10)
	url := linkSvc.SubscriptionURL(config.AppCfg.BasePublicURL, scope)
	text := fmt.Sprintf(
		"✅ Подписка оплачена: -%s %s\nДействует до: %s\nУзлов доступно: %d\n\nСсылка подписки:\n%s",
		formatMoney(result.Debited), config.AppCfg.Currency,
		result.Subscription.ExpiresAt.Format("02.01.2006 15:04"),
		len(result.Nodes), url)
	send(botapi, chatID, text)
}

func handleTopup(botapi *tgbotapi.BotAPI, update *tgbotapi.Update, from *tgbotapi.User, chatID int64, data string) {
	// topup_<provider>_<amountMinor>
	parts := strings.Split(data, "_")
	if len(parts) != 3 {
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Ошибка"))
		return
	}
	provider, ok := providers[parts[1]]
	if !ok {
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Способ оплаты недоступен"))
		return
	}
	amount, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || amount <= 0 {
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Ошибка суммы"))
		return
	}
	user, err := db.GetOrCreateUser(from.ID, from.UserName)
	if err != nil {
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Ошибка"))
		return
	}
	currency := config.AppCfg.Currency
	if provider.Name() == "cryptobot" {
		currency = "USDT"
	}
	url, externalID, err := payments.StartTopup(context.Background(), provider, user, amount, currency)
	if err != nil {
		logger.Error("topup start failed", zap.String("provider", provider.Name()), zap.Error(err))
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Не удалось создать счёт"))
		return
	}
	botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, ""))
	msg := tgbotapi.NewMessage(chatID, "Оплатите по ссылке:\n"+url)
	msg.ReplyMarkup = checkPayKeyboard(provider.Name(), externalID)
	botapi.Send(msg)
}

func handleCheckPayment(botapi *tgbotapi.BotAPI, update *tgbotapi.Update, chatID int64, data string) {
	// check_<provider>_<externalID>; внешний id может содержать "_",
	// поэтому режем только два раза
	parts := strings.SplitN(data, "_", 3)
	if len(parts) != 3 {
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Ошибка"))
		return
	}
	provider, ok := providers[parts[1]]
	if !ok {
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Способ оплаты недоступен"))
		return
	}
	credited, err := payments.CheckAndConfirm(context.Background(), provider, parts[2])
	if err != nil {
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Платёж не найден"))
		return
	}
	if !credited {
		botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Оплата ещё не поступила"))
		return
	}
	botapi.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "Баланс пополнен"))
	send(botapi, chatID, "Баланс пополнен. Теперь можно купить подписку: /buy")
}

func send(botapi *tgbotapi.BotAPI, chatID int64, text string) {
	botapi.Send(tgbotapi.NewMessage(chatID, text))
}

func formatMoney(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

func uitoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}
