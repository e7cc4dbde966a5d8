package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"vpn-reseller-bot/internal/db"
)

var ErrPaymentNotFound = errors.New("payments: payment not found")

// StartTopup создаёт счёт у провайдера и pending-запись Payment,
// возвращает ссылку на оплату и внешний id счёта
func StartTopup(ctx context.Context, p Provider, user db.User, amount int64, currency string) (string, string, error) {
	url, externalID, err := p.Start(ctx, user.TgID, amount, currency)
	if err != nil {
		return "", "", err
	}
	pay := db.Payment{
		UserID:     user.ID,
		Provider:   p.Name(),
		ExternalID: externalID,
		Amount:     amount,
		Currency:   currency,
		Status:     db.PayStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := db.DB.Create(&pay).Error; err != nil {
		return "", "", err
	}
	return url, externalID, nil
}

// ConfirmPaid переводит pending-платёж в paid и зачисляет баланс.
// credited=true только при переходе pending → paid: повторный webhook
// и отменённый счёт, который провайдер потом пометил оплаченным,
// баланс не трогают.
func ConfirmPaid(provider, externalID string) (db.Payment, bool, error) {
	var pay db.Payment
	credited := false
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("provider = ? AND external_id = ?", provider, externalID).
			First(&pay).Error; err != nil {
			return ErrPaymentNotFound
		}
		if pay.Status != db.PayStatusPending {
			return nil
		}
		if err := tx.Model(&pay).Update("status", db.PayStatusPaid).Error; err != nil {
			return err
		}
		pay.Status = db.PayStatusPaid
		var user db.User
		if err := tx.First(&user, pay.UserID).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update("balance", gorm.Expr("balance + ?", pay.Amount)).Error; err != nil {
			return err
		}
		credited = true
		return nil
	})
	return pay, credited, err
}

// CheckAndConfirm опрашивает провайдера и, если счёт оплачен,
// зачисляет баланс. Возвращает true при зачислении.
func CheckAndConfirm(ctx context.Context, p Provider, externalID string) (bool, error) {
	var pay db.Payment
	if err := db.DB.Where("provider = ? AND external_id = ?", p.Name(), externalID).
		First(&pay).Error; err != nil {
		return false, ErrPaymentNotFound
	}
	if pay.Status == db.PayStatusPaid {
		return false, nil
	}
	paid, err := p.Check(ctx, externalID)
	if err != nil {
		return false, err
	}
	if !paid {
		return false, nil
	}
	_, credited, err := ConfirmPaid(p.Name(), externalID)
	if err != nil {
		return false, err
	}
	return credited, nil
}

// CancelPayment помечает pending-платёж отменённым
func CancelPayment(provider, externalID string) error {
	return db.DB.Model(&db.Payment{}).
		Where("provider = ? AND external_id = ? AND status = ?", provider, externalID, db.PayStatusPending).
		Update("status", db.PayStatusCanceled).Error
}
