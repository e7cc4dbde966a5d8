package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vpn-reseller-bot/config"
	"vpn-reseller-bot/internal/db"
)

func GetReplyKeyboard(userID int64) tgbotapi.ReplyKeyboardMarkup {
	if config.IsAdmin(userID) {
		return tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_stats"),
				tgbotapi.NewKeyboardButton("/admin_panels"),
				tgbotapi.NewKeyboardButton("/admin_tariffs"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_payments"),
				tgbotapi.NewKeyboardButton("/admin_broadcast"),
				tgbotapi.NewKeyboardButton("/admin_backup"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_addpanel"),
				tgbotapi.NewKeyboardButton("/admin_topup"),
			),
		)
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/buy"),
			tgbotapi.NewKeyboardButton("/mylink"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/balance"),
			tgbotapi.NewKeyboardButton("/topup"),
		),
	)
}

// tosKeyboard — кнопка принятия соглашения со ссылкой на текст
func tosKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonURL("Текст соглашения", config.AppCfg.TosURL)},
		{tgbotapi.NewInlineKeyboardButtonData("✅ Принимаю", "tos_accept")},
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// tariffKeyboard — кнопки покупки по активным тарифам
func tariffKeyboard(tariffs []db.Tariff) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range tariffs {
		label := t.Title
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "buy_tariff_"+uitoa(t.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// topupKeyboard — выбор способа и суммы пополнения
func topupKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, amount := range []int64{19900, 39900, 99900} {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				formatMoney(amount)+" картой", "topup_yookassa_"+itoa64(amount)),
			tgbotapi.NewInlineKeyboardButtonData(
				formatMoney(amount)+" крипто", "topup_cryptobot_"+itoa64(amount)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// checkPayKeyboard — кнопка проверки оплаты выставленного счёта
func checkPayKeyboard(provider, externalID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Я оплатил", "check_"+provider+"_"+externalID),
		),
	)
}
