// Package subscription — состояние оплаченного периода пользователя.
// Инвариант: не больше одной активной подписки на пользователя.
package subscription

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"vpn-reseller-bot/internal/db"
)

// NextExpiry считает новый срок окончания: активная подписка с будущим
// сроком продлевается (дни складываются), иначе отсчёт от текущего момента
func NextExpiry(current time.Time, hasActive bool, now time.Time, days int) time.Time {
	start := now
	if hasActive && current.After(now) {
		start = current
	}
	return start.AddDate(0, 0, days)
}

// CreateOrExtend продлевает активную подписку либо создаёт новую,
// предварительно погасив все прежние активные записи. Выполняется в
// переданной транзакции: вызывающий (леджер) коммитит её вместе со
// списанием баланса.
func CreateOrExtend(tx *gorm.DB, userID uint, days int) (db.Subscription, error) {
	now := time.Now()
	var sub db.Subscription
	err := tx.Where("user_id = ? AND status = ?", userID, db.SubStatusActive).
		Order("id desc").First(&sub).Error
	if err == nil && sub.ExpiresAt.After(now) {
		// Продление накапливается: now+10d + тариф 30d = now+40d
		newExpiry := NextExpiry(sub.ExpiresAt, true, now, days)
		if err := tx.Model(&sub).Updates(map[string]interface{}{
			"expires_at":        newExpiry,
			"notified_expiring": false,
		}).Error; err != nil {
			return sub, err
		}
		sub.ExpiresAt = newExpiry
		return sub, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return sub, err
	}
	// Гасим любые прежние active-записи перед созданием новой
	if err := tx.Model(&db.Subscription{}).
		Where("user_id = ? AND status = ?", userID, db.SubStatusActive).
		Update("status", db.SubStatusExpired).Error; err != nil {
		return sub, err
	}
	sub = db.Subscription{
		UserID:    userID,
		Status:    db.SubStatusActive,
		ExpiresAt: NextExpiry(time.Time{}, false, now, days),
		CreatedAt: now,
	}
	if err := tx.Create(&sub).Error; err != nil {
		return sub, err
	}
	return sub, nil
}

// ActiveForUser возвращает действующую подписку пользователя, если она есть
func ActiveForUser(userID uint) (db.Subscription, bool, error) {
	var sub db.Subscription
	err := db.DB.Where("user_id = ? AND status = ?", userID, db.SubStatusActive).
		Order("id desc").First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sub, false, nil
	}
	if err != nil {
		return sub, false, err
	}
	return sub, sub.ExpiresAt.After(time.Now()), nil
}
