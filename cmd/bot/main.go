package main

import (
	"io"
	"log"
	"net/http"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"

	"vpn-reseller-bot/config"
	"vpn-reseller-bot/internal/admin"
	"vpn-reseller-bot/internal/bot"
	"vpn-reseller-bot/internal/db"
	"vpn-reseller-bot/internal/logger"
	"vpn-reseller-bot/internal/payments"
	"vpn-reseller-bot/internal/provision"
	"vpn-reseller-bot/internal/services"
	"vpn-reseller-bot/internal/sublink"
)

func main() {
	config.LoadConfig()
	db.InitDB(config.AppCfg.DatabaseURL)

	botapi, err := tgbotapi.NewBotAPI(config.AppCfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	logger.InitNotifier(botapi, config.AppCfg.AdminIDs[0])

	// --- Логирование в файл и консоль ---
	logFile, err := os.OpenFile("bot.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatalf("Не удалось открыть файл логов: %v", err)
	}
	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	// Сервисы ядра
	orch := provision.NewOrchestrator()
	linkSvc := sublink.NewService(config.AppCfg.SubSignSecret, orch)
	providerMap := map[string]payments.Provider{}
	if config.AppCfg.YooKassaShopID != "" {
		providerMap["yookassa"] = payments.NewYooKassa(
			config.AppCfg.YooKassaShopID, config.AppCfg.YooKassaSecret, config.AppCfg.BasePublicURL)
	}
	if config.AppCfg.CryptoBotToken != "" {
		providerMap["cryptobot"] = payments.NewCryptoBot(config.AppCfg.CryptoBotToken, config.AppCfg.BasePublicURL)
	}
	bot.Init(orch, linkSvc, providerMap)

	// Фоновые задачи
	c := cron.New()
	c.AddFunc("@every 1m", services.UpdateAllPanelStatuses)
	// Гашение просроченных подписок (каждый день в 03:30)
	c.AddFunc("30 3 * * *", func() {
		services.SweepExpiredSubscriptions(botapi)
	})
	// Уведомления о скором окончании подписки (раз в сутки в 10:00)
	c.AddFunc("0 10 * * *", func() {
		services.NotifyExpiringSubscriptions(botapi, 3)
	})
	// Автоматический бэкап БД раз в сутки
	c.AddFunc("0 3 * * *", func() {
		admin.AutoBackupDatabase(botapi, config.AppCfg.AdminIDs[0], config.AppCfg.DatabaseURL)
	})
	c.Start()

	// HTTP-сервер: документ подписки, webhook YooKassa, health
	go func() {
		mux := http.NewServeMux()
		linkSvc.RegisterHandlers(mux)
		mux.HandleFunc("/yookassa/webhook", payments.YooKassaWebhookHandler(botapi))
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		log.Println("Запуск HTTP-сервера на " + config.AppCfg.ListenAddr)
		if err := http.ListenAndServe(config.AppCfg.ListenAddr, mux); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Запуск Telegram-бота (polling)
	bot.StartBotWithInstance(botapi)
}
