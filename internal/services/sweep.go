package services

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vpn-reseller-bot/internal/db"
	"vpn-reseller-bot/internal/logger"
)

// SweepExpiredSubscriptions гасит просроченные подписки и уведомляет
// пользователей. Переход только active → expired; обратной дороги нет,
// новая покупка создаёт/продлевает запись заново.
func SweepExpiredSubscriptions(bot *tgbotapi.BotAPI) {
	now := time.Now()
	var subs []db.Subscription
	db.DB.Where("status = ? AND expires_at < ?", db.SubStatusActive, now).Find(&subs)
	for _, sub := range subs {
		if err := db.DB.Model(&db.Subscription{}).Where("id = ?", sub.ID).
			Update("status", db.SubStatusExpired).Error; err != nil {
			logger.NotifyAdmin(fmt.Sprintf("Ошибка гашения подписки id=%d: %v", sub.ID, err))
			continue
		}
		var user db.User
		if err := db.DB.First(&user, sub.UserID).Error; err != nil {
			continue
		}
		msg := tgbotapi.NewMessage(user.TgID, "Ваша подписка завершена, для продления воспользуйтесь ботом")
		_, _ = bot.Send(msg)
	}
}

// NotifyExpiringSubscriptions предупреждает о скором окончании подписки,
// по одному разу на период действия
func NotifyExpiringSubscriptions(bot *tgbotapi.BotAPI, daysBefore int) {
	now := time.Now()
	soon := now.AddDate(0, 0, daysBefore)
	var subs []db.Subscription
	db.DB.Where("status = ? AND expires_at > ? AND expires_at <= ? AND notified_expiring = false",
		db.SubStatusActive, now, soon).Find(&subs)
	for _, sub := range subs {
		var user db.User
		if err := db.DB.First(&user, sub.UserID).Error; err != nil {
			logger.NotifyAdmin(fmt.Sprintf("Не найден пользователь для уведомления: subID=%d", sub.ID))
			continue
		}
		text := fmt.Sprintf("Ваша подписка истекает %s. Продлить: /buy", sub.ExpiresAt.Format("02.01.2006"))
		if _, err := bot.Send(tgbotapi.NewMessage(user.TgID, text)); err != nil {
			continue
		}
		db.DB.Model(&db.Subscription{}).Where("id = ?", sub.ID).Update("notified_expiring", true)
	}
}
