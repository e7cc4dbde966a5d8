package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	BotToken        string
	AdminIDs        []int64
	RequiredChannel string
	TosURL          string
	DatabaseURL     string
	BasePublicURL   string
	SubSignSecret   string
	YooKassaShopID  string
	YooKassaSecret  string
	CryptoBotToken  string
	Currency        string
	ListenAddr      string
}

var AppCfg AppConfig

func LoadConfig() {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, relying on environment variables")
	}

	AppCfg.BotToken = os.Getenv("BOT_TOKEN")
	AppCfg.AdminIDs = parseAdminIDs(os.Getenv("ADMIN_IDS"))
	AppCfg.RequiredChannel = os.Getenv("REQUIRED_CHANNEL")
	AppCfg.TosURL = os.Getenv("TOS_URL")
	AppCfg.DatabaseURL = os.Getenv("DATABASE_URL")
	AppCfg.BasePublicURL = strings.TrimRight(os.Getenv("BASE_PUBLIC_URL"), "/")
	AppCfg.SubSignSecret = os.Getenv("SUBSCRIPTION_SIGN_SECRET")
	AppCfg.YooKassaShopID = os.Getenv("YOOKASSA_SHOP_ID")
	AppCfg.YooKassaSecret = os.Getenv("YOOKASSA_SECRET_KEY")
	AppCfg.CryptoBotToken = os.Getenv("CRYPTOBOT_TOKEN")
	AppCfg.Currency = os.Getenv("CURRENCY")
	if AppCfg.Currency == "" {
		AppCfg.Currency = "RUB"
	}
	AppCfg.ListenAddr = os.Getenv("LISTEN_ADDR")
	if AppCfg.ListenAddr == "" {
		AppCfg.ListenAddr = ":8080"
	}

	if AppCfg.BotToken == "" || len(AppCfg.AdminIDs) == 0 || AppCfg.DatabaseURL == "" ||
		AppCfg.BasePublicURL == "" || AppCfg.SubSignSecret == "" {
		log.Fatal("Critical environment variables are missing. Bot will exit.")
	}
}

// parseAdminIDs разбирает ADMIN_IDS вида "123,456" в список идентификаторов
func parseAdminIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Fatalf("ADMIN_IDS contains invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids
}

// IsAdmin проверяет, входит ли пользователь в список администраторов
func IsAdmin(userID int64) bool {
	for _, id := range AppCfg.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
