package bot

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/net/proxy"

	"botcursor/internal/logging"
)

// pollTimeout is the long-poll duration in seconds.
const pollTimeout = 60

// NewTelegramAPI connects to the Bot API, optionally through an HTTP(S) or
// SOCKS5 proxy.
func NewTelegramAPI(token, proxyURL string) (*tgbotapi.BotAPI, error) {
	client, err := newHTTPClient(proxyURL)
	if err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	logging.Bot("Authorized as @%s", api.Self.UserName)
	return api, nil
}

// newHTTPClient builds the client used for the Bot API.
func newHTTPClient(proxyURL string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL == "" {
		return &http.Client{Transport: transport}, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q (use http, https or socks5)", u.Scheme)
	}

	logging.Bot("Using proxy %s://%s", u.Scheme, u.Host)
	return &http.Client{Transport: transport}, nil
}

// TelegramTransport sends messages through the Bot API.
type TelegramTransport struct {
	api *tgbotapi.BotAPI
}

// NewTelegramTransport wraps api.
func NewTelegramTransport(api *tgbotapi.BotAPI) *TelegramTransport {
	return &TelegramTransport{api: api}
}

// Send implements Transport.
func (t *TelegramTransport) Send(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// Edit implements Transport.
func (t *TelegramTransport) Edit(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.DisableWebPagePreview = true
	_, err := t.api.Request(edit)
	return err
}

// SetCommands publishes the command menu shown by Telegram clients.
func (t *TelegramTransport) SetCommands(withPIN bool) error {
	var cmds []tgbotapi.BotCommand
	for _, c := range Commands(withPIN) {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	_, err := t.api.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}

// TelegramSource long-polls the Bot API for messages.
type TelegramSource struct {
	api *tgbotapi.BotAPI
}

// NewTelegramSource wraps api.
func NewTelegramSource(api *tgbotapi.BotAPI) *TelegramSource {
	return &TelegramSource{api: api}
}

// Updates implements UpdateSource.
func (s *TelegramSource) Updates(ctx context.Context) <-chan Message {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	in := s.api.GetUpdatesChan(cfg)

	out := make(chan Message)
	go func() {
		defer close(out)
		for upd := range in {
			m, ok := fromUpdate(upd)
			if !ok {
				continue
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Stop implements UpdateSource.
func (s *TelegramSource) Stop() {
	s.api.StopReceivingUpdates()
}

// fromUpdate keeps text messages with a known sender.
func fromUpdate(upd tgbotapi.Update) (Message, bool) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return Message{}, false
	}
	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	return Message{
		ChatID:     msg.Chat.ID,
		SenderID:   msg.From.ID,
		SenderName: name,
		Username:   msg.From.UserName,
		Text:       msg.Text,
	}, true
}
