package admin

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"vpn-reseller-bot/config"
	"vpn-reseller-bot/internal/db"
	"vpn-reseller-bot/internal/ledger"
	"vpn-reseller-bot/internal/logger"
	"vpn-reseller-bot/internal/services"
)

// Диалоги админа живут полчаса, потом сбрасываются
var Sessions = NewSessionStore(30 * time.Minute)

func IsAdmin(userID int64) bool {
	return config.IsAdmin(userID)
}

// HandleAdminCommand — маршрутизатор админских команд
func HandleAdminCommand(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	if update.Message == nil || !IsAdmin(update.Message.From.ID) {
		return
	}
	adminID := update.Message.From.ID
	cmd := update.Message.Command()
	switch cmd {
	case "admin_stats":
		handleStats(bot, update)
	case "admin_panels":
		handlePanels(bot, update)
	case "admin_addpanel":
		Sessions.Set(adminID, &Session{State: StateAwaitingPanelTitle})
		reply(bot, update, "Добавление панели. Введите название:")
	case "admin_panel_on":
		handlePanelActive(bot, update, true)
	case "admin_panel_off":
		handlePanelActive(bot, update, false)
	case "admin_panel_del":
		handlePanelDelete(bot, update)
	case "admin_tariffs":
		handleTariffs(bot, update)
	case "admin_tariff_price":
		handleTariffPrice(bot, update)
	case "admin_broadcast":
		Sessions.Set(adminID, &Session{State: StateAwaitingBroadcastText})
		reply(bot, update, "Введите текст рассылки:")
	case "admin_topup":
		Sessions.Set(adminID, &Session{State: StateAwaitingTopupTgID})
		reply(bot, update, "Введите Telegram ID пользователя:")
	case "admin_payments":
		handlePayments(bot, update)
	case "admin_backup":
		handleBackup(bot, update)
	case "cancel":
		Sessions.Clear(adminID)
		reply(bot, update, "Действие отменено")
	}
	logger.LogAdminAction(adminID, cmd, update.Message.Text)
}

// HandleAdminText продолжает начатый диалог (FSM). Возвращает true,
// если сообщение было шагом диалога.
func HandleAdminText(bot *tgbotapi.BotAPI, update *tgbotapi.Update) bool {
	if update.Message == nil || !IsAdmin(update.Message.From.ID) {
		return false
	}
	adminID := update.Message.From.ID
	sess := Sessions.Get(adminID)
	if sess == nil || sess.State == StateNone {
		return false
	}
	text := strings.TrimSpace(update.Message.Text)
	switch sess.State {
	case StateAwaitingPanelTitle:
		sess.PanelDraft.Title = text
		sess.State = StateAwaitingPanelBaseURL
		Sessions.Set(adminID, sess)
		reply(bot, update, "Базовый адрес панели (https://host:port/path):")
	case StateAwaitingPanelBaseURL:
		sess.PanelDraft.BaseURL = strings.TrimRight(text, "/")
		sess.State = StateAwaitingPanelUsername
		Sessions.Set(adminID, sess)
		reply(bot, update, "Логин панели:")
	case StateAwaitingPanelUsername:
		sess.PanelDraft.Username = text
		sess.State = StateAwaitingPanelPassword
		Sessions.Set(adminID, sess)
		reply(bot, update, "Пароль панели:")
	case StateAwaitingPanelPassword:
		sess.PanelDraft.Password = text
		sess.State = StateAwaitingPanelDomain
		Sessions.Set(adminID, sess)
		reply(bot, update, "Домен для ссылок:")
	case StateAwaitingPanelDomain:
		sess.PanelDraft.Domain = text
		sess.PanelDraft.Active = true
		sess.PanelDraft.CreatedAt = time.Now()
		if err := db.DB.Create(&sess.PanelDraft).Error; err != nil {
			reply(bot, update, "Ошибка сохранения панели: "+err.Error())
		} else {
			reply(bot, update, fmt.Sprintf("Панель «%s» добавлена (id=%d)", sess.PanelDraft.Title, sess.PanelDraft.ID))
		}
		Sessions.Clear(adminID)
	case StateAwaitingBroadcastText:
		go runBroadcast(bot, text)
		Sessions.Clear(adminID)
		reply(bot, update, "Рассылка запущена")
	case StateAwaitingTopupTgID:
		tgID, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			reply(bot, update, "Нужен числовой Telegram ID. Повторите или /cancel")
			return true
		}
		sess.TopupTgID = tgID
		sess.State = StateAwaitingTopupAmount
		Sessions.Set(adminID, sess)
		reply(bot, update, "Сумма пополнения в копейках:")
	case StateAwaitingTopupAmount:
		amount, err := strconv.ParseInt(text, 10, 64)
		if err != nil || amount <= 0 {
			reply(bot, update, "Нужна положительная сумма. Повторите или /cancel")
			return true
		}
		if err := ledger.Credit(sess.TopupTgID, amount); err != nil {
			reply(bot, update, "Ошибка зачисления: "+err.Error())
		} else {
			reply(bot, update, fmt.Sprintf("Зачислено %d.%02d пользователю %d", amount/100, amount%100, sess.TopupTgID))
		}
		Sessions.Clear(adminID)
	}
	return true
}

func reply(bot *tgbotapi.BotAPI, update *tgbotapi.Update, text string) {
	bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, text))
}

func handleStats(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	users := db.CountUsers()
	activeSubs := db.CountActiveSubscriptions()
	today := db.SumPayments(time.Now().Truncate(24*time.Hour), time.Now())
	month := db.SumPayments(time.Now().AddDate(0, 0, -30), time.Now())
	total := db.SumPayments(time.Time{}, time.Now())
	msg := fmt.Sprintf(
		"Пользователей: %d\nАктивных подписок: %d\nПлатежи: сегодня %d.%02d, месяц %d.%02d, всего %d.%02d",
		users, activeSubs, today/100, today%100, month/100, month%100, total/100, total%100)
	reply(bot, update, msg)
}

func handlePanels(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	panels, err := db.AllPanels()
	if err != nil {
		reply(bot, update, "Ошибка загрузки панелей: "+err.Error())
		return
	}
	if len(panels) == 0 {
		reply(bot, update, "Панелей нет. /admin_addpanel чтобы добавить")
		return
	}
	statuses := services.GetPanelStatuses()
	var sb strings.Builder
	sb.WriteString("Панели:\n")
	for _, p := range panels {
		state := "выключена"
		if p.Active {
			state = "активна"
		}
		line := fmt.Sprintf("id=%d %s (%s) — %s", p.ID, p.Title, p.Domain, state)
		if st, ok := statuses[p.ID]; ok {
			line += ", " + st.Status
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n/admin_panel_off <id>, /admin_panel_on <id>, /admin_panel_del <id>")
	reply(bot, update, sb.String())
}

func panelIDArg(update *tgbotapi.Update) (uint, error) {
	arg := strings.TrimSpace(update.Message.CommandArguments())
	id, err := strconv.ParseUint(arg, 10, 32)
	return uint(id), err
}

func handlePanelActive(bot *tgbotapi.BotAPI, update *tgbotapi.Update, active bool) {
	id, err := panelIDArg(update)
	if err != nil {
		reply(bot, update, "Использование: /admin_panel_on <id> или /admin_panel_off <id>")
		return
	}
	if err := db.SetPanelActive(id, active); err != nil {
		reply(bot, update, "Ошибка: "+err.Error())
		return
	}
	if active {
		reply(bot, update, "Панель включена. Узлы появятся в подписках при следующем запросе")
	} else {
		// Пересборка документа живая, отдельной инвалидации не нужно
		reply(bot, update, "Панель выключена. Её узлы пропадут из подписок при следующем запросе")
	}
}

func handlePanelDelete(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	id, err := panelIDArg(update)
	if err != nil {
		reply(bot, update, "Использование: /admin_panel_del <id>")
		return
	}
	if err := db.DeletePanel(id); err != nil {
		reply(bot, update, "Ошибка: "+err.Error())
		return
	}
	reply(bot, update, "Панель удалена")
}

func handleTariffs(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	var tariffs []db.Tariff
	db.DB.Order("id asc").Find(&tariffs)
	var sb strings.Builder
	sb.WriteString("Тарифы:\n")
	for _, t := range tariffs {
		state := "скрыт"
		if t.Active {
			state = "активен"
		}
		sb.WriteString(fmt.Sprintf("id=%d %s — %d дней, %d %s, %s\n", t.ID, t.Title, t.Days, t.Price, config.AppCfg.Currency, state))
	}
	sb.WriteString("\n/admin_tariff_price <id> <цена>")
	reply(bot, update, sb.String())
}

// handleTariffPrice меняет цену тарифа. Действует только на будущие
// покупки: прошедшие списания не трогаем.
func handleTariffPrice(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	args := strings.Fields(update.Message.CommandArguments())
	if len(args) != 2 {
		reply(bot, update, "Использование: /admin_tariff_price <id> <цена>")
		return
	}
	id, err1 := strconv.ParseUint(args[0], 10, 32)
	price, err2 := strconv.ParseInt(args[1], 10, 64)
	if err1 != nil || err2 != nil || price < 0 {
		reply(bot, update, "Неверные аргументы")
		return
	}
	res := db.DB.Model(&db.Tariff{}).Where("id = ?", id).Update("price", price)
	if res.Error != nil || res.RowsAffected == 0 {
		reply(bot, update, "Тариф не найден")
		return
	}
	reply(bot, update, "Цена обновлена")
}

func handlePayments(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	args := strings.Fields(update.Message.CommandArguments())
	var from, to time.Time
	var err error
	if len(args) == 2 {
		from, err = time.Parse("2006-01-02", args[0])
		if err != nil {
			reply(bot, update, "Неверный формат даты (from)")
			return
		}
		to, err = time.Parse("2006-01-02", args[1])
		if err != nil {
			reply(bot, update, "Неверный формат даты (to)")
			return
		}
	} else {
		from = time.Now().AddDate(0, 0, -30)
		to = time.Now()
	}
	pays := db.GetPayments(from, to)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Платежи %s — %s:\n", from.Format("2006-01-02"), to.Format("2006-01-02")))
	for _, p := range pays {
		sb.WriteString(fmt.Sprintf("#%d %s %s %d.%02d %s [%s]\n",
			p.ID, p.CreatedAt.Format("02.01 15:04"), p.Provider, p.Amount/100, p.Amount%100, p.Currency, p.Status))
	}
	if len(pays) == 0 {
		sb.WriteString("пусто")
	}
	reply(bot, update, sb.String())
}

func handleBackup(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	go AutoBackupDatabase(bot, update.Message.From.ID, config.AppCfg.DatabaseURL)
	reply(bot, update, "Бэкап запущен")
}

// runBroadcast рассылает текст всем пользователям и сохраняет запись
func runBroadcast(bot *tgbotapi.BotAPI, text string) {
	db.DB.Create(&db.Broadcast{Text: text, CreatedAt: time.Now()})
	var users []db.User
	db.DB.Where("is_active = true").Find(&users)
	sent := 0
	for _, u := range users {
		if _, err := bot.Send(tgbotapi.NewMessage(u.TgID, text)); err == nil {
			sent++
		}
	}
	logger.Info("broadcast finished", zap.Int("sent", sent), zap.Int("total", len(users)))
	logger.NotifyAdmin(fmt.Sprintf("Рассылка завершена: доставлено %d из %d", sent, len(users)))
}
