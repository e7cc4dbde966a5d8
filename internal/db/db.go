package db

import (
	"errors"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB(dsn string) {
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}
	database, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	DB = database
	DB.AutoMigrate(&User{}, &Panel{}, &Tariff{}, &Subscription{}, &Payment{}, &Broadcast{})
	seedTariffs()
}

// seedTariffs создаёт стартовые тарифы, если таблица пуста
func seedTariffs() {
	var count int64
	DB.Model(&Tariff{}).Count(&count)
	if count > 0 {
		return
	}
	DB.Create(&[]Tariff{
		{Title: "30 дней", Days: 30, Price: 399, Active: true},
		{Title: "90 дней", Days: 90, Price: 999, Active: true},
	})
}

// GetOrCreateUser находит пользователя по Telegram ID или создаёт нового
func GetOrCreateUser(tgID int64, username string) (User, error) {
	var user User
	err := DB.Where("tg_id = ?", tgID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{TgID: tgID, Username: username, IsActive: true, CreatedAt: time.Now()}
		if err := DB.Create(&user).Error; err != nil {
			return user, err
		}
		return user, nil
	}
	if err != nil {
		return user, err
	}
	if username != "" && user.Username != username {
		DB.Model(&user).Update("username", username)
		user.Username = username
	}
	return user, nil
}

func FindUserByTgID(tgID int64) (User, error) {
	var user User
	err := DB.Where("tg_id = ?", tgID).First(&user).Error
	return user, err
}

// SetTosAccepted фиксирует момент принятия пользовательского соглашения
func SetTosAccepted(userID uint) error {
	now := time.Now()
	return DB.Model(&User{}).Where("id = ?", userID).Update("tos_accepted_at", &now).Error
}

// ActivePanels возвращает активные панели в стабильном порядке по id
func ActivePanels() ([]Panel, error) {
	var panels []Panel
	err := DB.Where("active = true").Order("id asc").Find(&panels).Error
	return panels, err
}

func AllPanels() ([]Panel, error) {
	var panels []Panel
	err := DB.Order("id asc").Find(&panels).Error
	return panels, err
}

func SetPanelActive(panelID uint, active bool) error {
	return DB.Model(&Panel{}).Where("id = ?", panelID).Update("active", active).Error
}

func DeletePanel(panelID uint) error {
	return DB.Delete(&Panel{}, panelID).Error
}

func ActiveTariffs() ([]Tariff, error) {
	var tariffs []Tariff
	err := DB.Where("active = true").Order("id asc").Find(&tariffs).Error
	return tariffs, err
}

// --- Админские методы для статистики ---

func CountUsers() int {
	var count int64
	DB.Model(&User{}).Count(&count)
	return int(count)
}

func CountActiveSubscriptions() int {
	var count int64
	DB.Model(&Subscription{}).Where("status = ? AND expires_at > ?", SubStatusActive, time.Now()).Count(&count)
	return int(count)
}

func SumPayments(from, to time.Time) int64 {
	var sum int64
	DB.Model(&Payment{}).Where("status = ? AND created_at >= ? AND created_at <= ?", PayStatusPaid, from, to).
		Select("coalesce(sum(amount), 0)").Scan(&sum)
	return sum
}

func GetPayments(from, to time.Time) []Payment {
	var pays []Payment
	DB.Where("created_at >= ? AND created_at <= ?", from, to).Find(&pays)
	return pays
}
