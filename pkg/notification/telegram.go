// Package notification delivers new predictions to Telegram and mail.
package notification

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/metric"
	"github.com/raykavin/signalsense/pkg/upstream"
	log "github.com/sirupsen/logrus"
	tb "gopkg.in/tucnak/telebot.v2"
)

var signalRegexp = regexp.MustCompile(`^/signal(?:@\w+)?\s+(?P<ticker>[A-Za-z0-9.^=\-]+)\s*$`)

const historyLimit = 10

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// Notifier receives every successful prediction.
type Notifier interface {
	OnPrediction(entry core.HistoryEntry)
	OnError(err error)
}

// Board is the part of the dashboard the bot commands drive.
type Board interface {
	Submit(ctx context.Context, symbol string) error
	History() []core.HistoryEntry
}

// TelegramSettings holds the bot token and the users allowed to talk to it.
type TelegramSettings struct {
	Token   string
	Users   []int
	Timeout time.Duration
}

// Telegram announces predictions to its users and accepts /signal requests.
type Telegram struct {
	settings    TelegramSettings
	board       Board
	defaultMenu *tb.ReplyMarkup
	client      *tb.Bot
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram creates the bot and registers its commands.
func NewTelegram(board Board, settings TelegramSettings) (*Telegram, error) {
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}

	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: 10 * time.Second}

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    createAuthMiddleware(poller, settings.Users),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	setupKeyboard(menu)
	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &Telegram{
		settings:    settings,
		board:       board,
		defaultMenu: menu,
		client:      client,
	}

	client.Handle("/help", bot.HelpHandle)
	client.Handle("/signal", bot.SignalHandle)
	client.Handle("/history", bot.HistoryHandle)
	client.Handle("/summary", bot.SummaryHandle)

	return bot, nil
}

func createAuthMiddleware(poller *tb.LongPoller, users []int) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("message or sender is nil ", u)
			return false
		}

		if slices.Contains(users, int(u.Message.Sender.ID)) {
			return true
		}

		log.Error("unauthorized user ", u.Message.Sender.ID)
		return false
	})
}

func setupKeyboard(menu *tb.ReplyMarkup) {
	menu.Reply(
		menu.Row(menu.Text("/history"), menu.Text("/summary"), menu.Text("/help")),
	)
}

func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/signal", Description: "Predict a ticker, e.g. /signal AAPL"},
		{Text: "/history", Description: "Latest predictions of this session"},
		{Text: "/summary", Description: "Confidence statistics of this session"},
	})
}

// Start polls for commands and greets every user.
func (t *Telegram) Start() {
	go t.client.Start()
	t.sendMessageWithOptions("SignalSense bot initialized.", t.defaultMenu)
}

// Stop ends polling.
func (t *Telegram) Stop() {
	t.client.Stop()
}

// Notify sends text to every authorized user.
func (t *Telegram) Notify(text string) {
	t.sendMessageWithOptions(text)
}

func (t *Telegram) sendMessageWithOptions(text string, options ...any) {
	for _, user := range t.settings.Users {
		if _, err := t.client.Send(&tb.User{ID: int64(user)}, text, options...); err != nil {
			log.WithError(err).Error("failed to send notification")
		}
	}
}

func (t *Telegram) sendMessage(to *tb.User, text string, options ...any) {
	if _, err := t.client.Send(to, text, options...); err != nil {
		log.WithError(err).Error("failed to send message")
	}
}

func (t *Telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		log.WithError(err).Error("failed to get commands")
		t.OnError(err)
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", strings.TrimPrefix(command.Text, "/"), command.Description))
	}

	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

// SignalHandle runs a prediction on the shared dashboard. The result reaches
// every user through OnPrediction, so only failures are answered here.
func (t *Telegram) SignalHandle(m *tb.Message) {
	ticker, ok := ParseSignalCommand(m.Text)
	if !ok {
		t.sendMessage(m.Sender, "Invalid command.\nExample of usage:\n`/signal AAPL`")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.settings.Timeout)
	defer cancel()

	if err := t.board.Submit(ctx, ticker); err != nil {
		log.WithError(err).WithField("ticker", ticker).Warn("[TELEGRAM]: prediction failed")
		t.sendMessage(m.Sender, "🛑 "+markdownEscaper.Replace(upstream.MessageOf(err)))
	}
}

func (t *Telegram) HistoryHandle(m *tb.Message) {
	t.sendMessage(m.Sender, FormatHistory(t.board.History(), historyLimit))
}

func (t *Telegram) SummaryHandle(m *tb.Message) {
	t.sendMessage(m.Sender, FormatSummary(metric.Summarize(t.board.History())))
}

// OnPrediction announces a successful prediction.
func (t *Telegram) OnPrediction(entry core.HistoryEntry) {
	t.Notify(FormatPrediction(entry))
}

// OnError notifies users about errors
func (t *Telegram) OnError(err error) {
	t.Notify(fmt.Sprintf("🛑 ERROR\n-----\n%s", markdownEscaper.Replace(err.Error())))
}

// ParseSignalCommand extracts the ticker of a "/signal TICKER" message.
func ParseSignalCommand(text string) (string, bool) {
	match := signalRegexp.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return "", false
	}
	return strings.ToUpper(match[signalRegexp.SubexpIndex("ticker")]), true
}

func toneIcon(tone core.Tone) string {
	switch tone {
	case core.Bullish:
		return "🟢"
	case core.Bearish:
		return "🔴"
	}
	return "⚪"
}

// FormatPrediction renders entry as a Markdown message.
func FormatPrediction(entry core.HistoryEntry) string {
	var sb strings.Builder

	tone := entry.Signal.Tone(entry.Confidence)
	fmt.Fprintf(&sb, "%s *%s* %s\n", toneIcon(tone), markdownEscaper.Replace(entry.Ticker), markdownEscaper.Replace(string(entry.Signal)))
	fmt.Fprintf(&sb, "Confidence: `%s%%`\n", core.FormatPercent(entry.Confidence))
	if hint := entry.Signal.Hint(); hint != "" {
		sb.WriteString(markdownEscaper.Replace(hint))
		sb.WriteString("\n")
	}
	if entry.Explanation != "" {
		sb.WriteString("-----\n")
		sb.WriteString(markdownEscaper.Replace(entry.Explanation))
	}

	return strings.TrimRight(sb.String(), "\n")
}

// FormatHistory lists up to limit entries, newest first.
func FormatHistory(entries []core.HistoryEntry, limit int) string {
	if len(entries) == 0 {
		return "No predictions yet."
	}

	lines := []string{"*HISTORY*"}
	for i := len(entries) - 1; i >= 0 && len(lines) <= limit; i-- {
		e := entries[i]
		lines = append(lines, fmt.Sprintf("%s %s `%s`", toneIcon(e.Signal.Tone(e.Confidence)), markdownEscaper.Replace(e.Label()), e.At.UTC().Format("2006-01-02 15:04")))
	}
	return strings.Join(lines, "\n")
}

// FormatSummary renders the confidence statistics of a session.
func FormatSummary(s metric.Summary) string {
	if s.Count == 0 {
		return "No predictions yet."
	}

	var sb strings.Builder
	sb.WriteString("*SUMMARY*\n")
	fmt.Fprintf(&sb, "Predictions: `%d`\n", s.Count)
	fmt.Fprintf(&sb, "Mean confidence: `%.1f%%`\n", s.MeanConfidence)
	fmt.Fprintf(&sb, "Median confidence: `%.1f%%`\n", s.MedianConfidence)
	fmt.Fprintf(&sb, "Std dev: `%.1f`\n", s.StdDevConfidence)

	signals := make([]string, 0, len(s.BySignal))
	for signal := range s.BySignal {
		signals = append(signals, string(signal))
	}
	slices.Sort(signals)
	sb.WriteString("-----\n")
	for _, signal := range signals {
		fmt.Fprintf(&sb, "%s: `%d`\n", markdownEscaper.Replace(signal), s.BySignal[core.Signal(signal)])
	}

	return strings.TrimRight(sb.String(), "\n")
}
