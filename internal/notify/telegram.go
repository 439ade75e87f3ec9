package notify

import (
	"context"
	"fmt"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// TelegramNotifier pings the platform admin about purchases and draw
// results. The admin chat is captured from a /start command, so the bot
// works without pre-configured chat ids. The chat id is written by the
// update goroutine and read from request goroutines, hence atomic.
type TelegramNotifier struct {
	bot         *tgbotapi.BotAPI
	adminChatID atomic.Int64
}

func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	log.WithField("account", bot.Self.UserName).Info("telegram bot authorized")

	t := &TelegramNotifier{bot: bot}
	go t.listenForCommands()
	return t, nil
}

func (t *TelegramNotifier) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	for update := range t.bot.GetUpdatesChan(u) {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}
		if update.Message.Command() == "start" {
			chatID := update.Message.Chat.ID
			t.adminChatID.Store(chatID)
			msg := tgbotapi.NewMessage(chatID,
				fmt.Sprintf("Admin registrado: %d. Você receberá notificações aqui.", chatID))
			if _, err := t.bot.Send(msg); err != nil {
				log.WithError(err).WithField("chat_id", chatID).Warn("telegram registration reply failed")
			}
			log.WithField("chat_id", chatID).Info("telegram admin chat registered")
		}
	}
}

func (t *TelegramNotifier) notifyAdmin(text string) error {
	chatID := t.adminChatID.Load()
	if chatID == 0 {
		return nil // admin never ran /start
	}
	_, err := t.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (t *TelegramNotifier) PurchaseCreated(_ context.Context, d PurchaseData) error {
	return t.notifyAdmin(fmt.Sprintf("🎟️ Nova compra: %s\nCliente: %s\nNúmeros: %s\nValor: %s (aguardando PIX)",
		d.RaffleName, d.CustomerName, formatNumbers(d.TicketNumbers), formatBRL(d.Amount)))
}

func (t *TelegramNotifier) PaymentConfirmed(_ context.Context, d PaymentData) error {
	return t.notifyAdmin(fmt.Sprintf("✅ Pagamento confirmado: %s\nCliente: %s\nNúmeros: %s\nValor: %s",
		d.RaffleName, d.CustomerName, formatNumbers(d.TicketNumbers), formatBRL(d.Amount)))
}

func (t *TelegramNotifier) PaymentExpired(_ context.Context, d PaymentData) error {
	return t.notifyAdmin(fmt.Sprintf("⌛ Pagamento expirado: %s\nCliente: %s\nNúmeros: %s",
		d.RaffleName, d.CustomerName, formatNumbers(d.TicketNumbers)))
}

func (t *TelegramNotifier) DrawReminder(_ context.Context, d DrawData) error {
	return t.notifyAdmin(fmt.Sprintf("⏰ Sorteio em breve: %s (%d participantes)", d.RaffleName, len(d.Recipients)))
}

func (t *TelegramNotifier) DrawResult(_ context.Context, d DrawData) error {
	return t.notifyAdmin(fmt.Sprintf("🏆 Sorteio realizado: %s\nNúmero: %s\nGanhador: %s",
		d.RaffleName, d.WinningNumber, d.WinnerName))
}

func (t *TelegramNotifier) WinnerNotification(_ context.Context, _ DrawData) error {
	return nil // winner contact goes by email, admin already got the result
}
