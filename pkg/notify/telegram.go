package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/charmbracelet/log"
	"github.com/mklimuk/board-pilot/pkg/state"
)

// Telegram announces sync events to a single chat and, in watch mode, answers
// the /status command with the latest run summary.
type Telegram struct {
	API    *tgbotapi.BotAPI
	ChatID int64

	stopCh chan struct{}
}

// NewTelegram creates a Telegram announcer
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("error creating Telegram bot: %w", err)
	}
	return &Telegram{API: api, ChatID: chatID}, nil
}

func (t *Telegram) Announce(evt state.Event) {
	msg := tgbotapi.NewMessage(t.ChatID, FormatEvent(evt))
	go func() {
		if _, err := t.API.Send(msg); err != nil {
			log.Warnf("telegram announce failed: %v", err)
		}
	}()
}

// StartStatusPoll begins polling for updates in a goroutine; /status messages
// are answered with the report callback's text. Stop ends the poll.
func (t *Telegram) StartStatusPoll(report func() string) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := t.API.GetUpdatesChan(u)
	t.stopCh = make(chan struct{})

	go func() {
		for {
			select {
			case <-t.stopCh:
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil || update.Message.Text != "/status" {
					continue
				}
				reply := tgbotapi.NewMessage(update.Message.Chat.ID, report())
				if _, err := t.API.Send(reply); err != nil {
					log.Warnf("telegram status reply failed: %v", err)
				}
			}
		}
	}()
}

// Stop ends the status poll, if one was started.
func (t *Telegram) Stop() {
	if t.stopCh == nil {
		return
	}
	close(t.stopCh)
	t.stopCh = nil
	t.API.StopReceivingUpdates()
}
