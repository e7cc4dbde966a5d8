package db

import "time"

// Статусы подписок и платежей
const (
	SubStatusActive  = "active"
	SubStatusExpired = "expired"

	PayStatusPending  = "pending"
	PayStatusPaid     = "paid"
	PayStatusCanceled = "canceled"
)

type User struct {
	ID            uint   `gorm:"primaryKey"`
	TgID          int64  `gorm:"uniqueIndex"`
	Username      string `gorm:"size:64"`
	IsActive      bool   `gorm:"default:true"`
	TosAcceptedAt *time.Time
	// Баланс в минорных единицах (копейках)
	Balance   int64 `gorm:"default:0"`
	CreatedAt time.Time
}

// Panel — апстрим-панель управления прокси (3x-ui и совместимые)
type Panel struct {
	ID       uint   `gorm:"primaryKey"`
	Title    string `gorm:"size:100"`
	BaseURL  string `gorm:"size:255"`
	Username string `gorm:"size:128"`
	Password string `gorm:"size:128"`
	// Домен, подставляемый в сгенерированные ссылки
	Domain    string `gorm:"size:255"`
	Active    bool   `gorm:"default:true"`
	CreatedAt time.Time
}

type Tariff struct {
	ID    uint   `gorm:"primaryKey"`
	Title string `gorm:"size:64"`
	Days  int
	// Цена в целых единицах валюты
	Price     int64
	Active    bool `gorm:"default:true"`
	CreatedAt time.Time
}

type Subscription struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index"`
	Status    string    `gorm:"size:32;default:active"`
	ExpiresAt time.Time
	CreatedAt time.Time
	// Уведомление о скором окончании уже отправлено
	NotifiedExpiring bool `gorm:"default:false"`
}

type Payment struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"index"`
	Provider   string `gorm:"size:32"`
	ExternalID string `gorm:"size:100;index"`
	// Сумма в минорных единицах
	Amount    int64
	Currency  string `gorm:"size:10"`
	Status    string `gorm:"size:32;default:pending"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Broadcast struct {
	ID        uint   `gorm:"primaryKey"`
	Text      string `gorm:"type:text"`
	CreatedAt time.Time
}
