// Package ledger — атомарное списание баланса с продлением подписки.
// Списание и продление коммитятся одной транзакцией ДО раскатки по
// панелям: оплаченное время не теряется из-за падения панели, а
// недоехавшие ссылки доезжают при следующем запросе подписки.
package ledger

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vpn-reseller-bot/internal/db"
	"vpn-reseller-bot/internal/logger"
	"vpn-reseller-bot/internal/provision"
	"vpn-reseller-bot/internal/subscription"
)

var (
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrTariffUnavailable = errors.New("ledger: tariff unavailable")
	ErrUserNotFound      = errors.New("ledger: user not found")
)

// DebitAmount переводит цену тарифа в минорные единицы баланса
func DebitAmount(t db.Tariff) int64 {
	return t.Price * 100
}

// PurchaseResult — итог покупки: подписка и ссылки, собранные сразу,
// чтобы покупатель увидел узлы немедленно
type PurchaseResult struct {
	Subscription db.Subscription
	Nodes        []provision.Node
	Debited      int64
}

// Purchase списывает цену тарифа и продлевает подписку одной транзакцией,
// затем запускает раскатку по панелям. Недостаток средств и неактивный
// тариф откатывают всё; отказ панелей после коммита не откатывает ничего.
func Purchase(ctx context.Context, tgID int64, tariffID uint, orch *provision.Orchestrator) (PurchaseResult, error) {
	var result PurchaseResult
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		var tariff db.Tariff
		if err := tx.First(&tariff, tariffID).Error; err != nil || !tariff.Active {
			return ErrTariffUnavailable
		}
		var user db.User
		// Блокируем строку пользователя: параллельные покупки не должны
		// увести баланс в минус
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tg_id = ?", tgID).First(&user).Error; err != nil {
			return ErrUserNotFound
		}
		price := DebitAmount(tariff)
		if user.Balance < price {
			// Отказ, а не обрезание до нуля
			return ErrInsufficientFunds
		}
		if err := tx.Model(&user).Update("balance", user.Balance-price).Error; err != nil {
			return err
		}
		sub, err := subscription.CreateOrExtend(tx, user.ID, tariff.Days)
		if err != nil {
			return err
		}
		result.Subscription = sub
		result.Debited = price
		return nil
	})
	if err != nil {
		return result, err
	}

	// Раскатка после коммита: время уже оплачено, панели догонят
	nodes, err := orch.ProvisionUserUntil(ctx, strconv.FormatInt(tgID, 10), result.Subscription.ExpiresAt)
	if err != nil {
		logger.Error("post-purchase provisioning failed", zap.Int64("tg_id", tgID), zap.Error(err))
		return result, nil
	}
	result.Nodes = nodes
	return result, nil
}

// Credit пополняет баланс пользователя (после подтверждённого платежа
// или вручную админом)
func Credit(tgID int64, amount int64) error {
	res := db.DB.Model(&db.User{}).Where("tg_id = ?", tgID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
