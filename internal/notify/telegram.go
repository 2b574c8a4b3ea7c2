// Package notify tells administrators about booking activity over Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rentacar/internal/config"
	"rentacar/internal/domain"
	"rentacar/internal/events"
	"rentacar/internal/models"
	"rentacar/internal/pricing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// NewBotSender connects to the Bot API with the configured token.
func NewBotSender(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

// TelegramNotifier sends one message per booking event to every admin chat.
type TelegramNotifier struct {
	sender  domain.TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(sender domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatIDs: chatIDs, logger: logger}
}

// Notify delivers the event to all chats. Chats that failed are reported
// together; the rest still receive the message.
func (n *TelegramNotifier) Notify(ctx context.Context, eventType string, p events.BookingEventPayload) error {
	text := FormatBookingEvent(eventType, p)
	var errs []error
	for _, chatID := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.sender.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		n.logger.Debug().Int64("chat_id", chatID).Str("event", eventType).Int64("booking_id", p.BookingID).Msg("notification sent")
	}
	return errors.Join(errs...)
}

var eventTitles = map[string]string{
	models.EventBookingCreated:   "New booking",
	models.EventBookingConfirmed: "Booking confirmed",
	models.EventBookingCompleted: "Booking completed",
	models.EventBookingCancelled: "Booking cancelled",
	models.EventBookingPaid:      "Booking paid",
	models.EventBookingDeleted:   "Booking deleted",
}

// FormatBookingEvent renders the plain text message for an event.
func FormatBookingEvent(eventType string, p events.BookingEventPayload) string {
	title, ok := eventTitles[eventType]
	if !ok {
		title = eventType
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d\n", title, p.BookingID)
	car := p.CarName
	if car == "" {
		car = fmt.Sprintf("car #%d", p.CarID)
	}
	fmt.Fprintf(&b, "Car: %s\n", car)
	customer := p.UserName
	if customer == "" {
		customer = fmt.Sprintf("user #%d", p.UserID)
	}
	fmt.Fprintf(&b, "Customer: %s\n", customer)
	fmt.Fprintf(&b, "Dates: %s to %s\n", p.StartDate.Format(models.DateLayout), p.EndDate.Format(models.DateLayout))
	if p.WithDriver {
		b.WriteString("With driver\n")
	}
	fmt.Fprintf(&b, "Total: %s\n", pricing.FormatRupiah(p.TotalPrice))
	fmt.Fprintf(&b, "Status: %s, payment: %s", p.Status, p.PaymentStatus)
	if p.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", p.Notes)
	}
	if p.ChangedBy != "" {
		fmt.Fprintf(&b, "\nBy: %s", p.ChangedBy)
	}
	return b.String()
}
