package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/xaenox/topic-reader/internal/models"
	"github.com/xaenox/topic-reader/internal/pipeline"
	"github.com/xaenox/topic-reader/internal/threadurl"
	"go.uber.org/zap"
)

const (
	callbackGenerate = "gen:"
	callbackCancel   = "cancel:"

	recentLimit    = 5
	maxSummaryText = 3000
)

// Sender is the part of *tgbotapi.BotAPI the bot writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Summarizer interface {
	SummarizeURL(ctx context.Context, raw string, confirm pipeline.ConfirmFunc) (*pipeline.Result, error)
	GetSummaryByThread(ctx context.Context, threadID string) (*models.Summary, error)
}

type SummaryLister interface {
	ListSummaries(ctx context.Context) ([]*models.Summary, error)
	SearchSummaries(ctx context.Context, query string) ([]*models.Summary, error)
}

type Bot struct {
	botAPI         *tgbotapi.BotAPI
	api            Sender
	pipeline       Summarizer
	summaries      SummaryLister
	confirmTimeout time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	pending map[string]chan bool
}

func New(token string, p Summarizer, summaries SummaryLister, confirmTimeout time.Duration, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, p, summaries, confirmTimeout, logger)
	b.botAPI = api
	return b, nil
}

func newBot(api Sender, p Summarizer, summaries SummaryLister, confirmTimeout time.Duration, logger *zap.Logger) *Bot {
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}
	return &Bot{
		api:            api,
		pipeline:       p,
		summaries:      summaries,
		confirmTimeout: confirmTimeout,
		logger:         logger,
		pending:        make(map[string]chan bool),
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.botAPI.GetUpdatesChan(u)
	b.logger.Info("Telegram bot started", zap.String("username", b.botAPI.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.botAPI.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		go b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	text := strings.TrimSpace(message.Text)
	if threadurl.IsLink(text) {
		b.summarize(ctx, message, text)
		return
	}
	b.sendMessage(message.Chat.ID, "Send me a Discord thread link, or use /help to see what I can do.")
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "summarize":
		link := strings.TrimSpace(message.CommandArguments())
		if link == "" {
			b.sendMessage(message.Chat.ID, "Usage: /summarize <discord thread link>")
			return
		}
		b.summarize(ctx, message, link)
	case "summary":
		b.handleSummary(ctx, message)
	case "recent":
		b.handleRecent(ctx, message)
	case "search":
		b.handleSearch(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to Topic Reader! 🧵
I turn Discord threads into short structured summaries.

Send me a thread link (right click the thread, then "Copy Link") and I'll read it, ask you to confirm, and save the summary.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/summarize <link> - Summarize a Discord thread
/summary <threadID> - Show the saved summary of a thread
/recent - Show the latest summaries
/search <text> - Search saved summaries

You can also just paste a Discord thread link.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) summarize(ctx context.Context, message *tgbotapi.Message, link string) {
	chatID := message.Chat.ID
	b.sendMessage(chatID, "⏳ Reading the thread...")

	result, err := b.pipeline.SummarizeURL(ctx, link, b.confirmFunc(chatID))
	if errors.Is(err, pipeline.ErrDeclined) {
		b.sendMessage(chatID, "Okay, no summary was generated.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to summarize thread",
			zap.Error(err),
			zap.String("link", link),
			zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, err.Error())
		return
	}

	b.sendSummary(chatID, message.MessageID, result)
}

// confirmFunc asks the chat for consent with an inline keyboard and waits for
// the answer, the timeout, or ctx.
func (b *Bot) confirmFunc(chatID int64) pipeline.ConfirmFunc {
	return func(ctx context.Context, preview pipeline.Preview) (bool, error) {
		token := uuid.NewString()
		decision := make(chan bool, 1)

		b.mu.Lock()
		b.pending[token] = decision
		b.mu.Unlock()
		defer func() {
			b.mu.Lock()
			delete(b.pending, token)
			b.mu.Unlock()
		}()

		msg := tgbotapi.NewMessage(chatID, previewText(preview))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Generate", callbackGenerate+token),
				tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", callbackCancel+token),
			),
		)
		sent, err := b.api.Send(msg)
		if err != nil {
			return false, fmt.Errorf("error sending confirmation: %w", err)
		}

		timer := time.NewTimer(b.confirmTimeout)
		defer timer.Stop()

		select {
		case ok := <-decision:
			if ok {
				b.editMessage(chatID, sent.MessageID, "✅ Generating summary...")
			} else {
				b.editMessage(chatID, sent.MessageID, "✖️ Cancelled.")
			}
			return ok, nil
		case <-timer.C:
			b.editMessage(chatID, sent.MessageID, "⌛ No answer, the summary was not generated.")
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	var generate bool
	var token string
	switch {
	case strings.HasPrefix(query.Data, callbackGenerate):
		generate, token = true, strings.TrimPrefix(query.Data, callbackGenerate)
	case strings.HasPrefix(query.Data, callbackCancel):
		token = strings.TrimPrefix(query.Data, callbackCancel)
	default:
		b.answerCallback(query.ID, "")
		return
	}

	b.mu.Lock()
	decision, ok := b.pending[token]
	delete(b.pending, token)
	b.mu.Unlock()

	if !ok {
		b.answerCallback(query.ID, "This request has expired.")
		return
	}

	decision <- generate
	if generate {
		b.answerCallback(query.ID, "Generating...")
	} else {
		b.answerCallback(query.ID, "Cancelled")
	}
}

func (b *Bot) handleSummary(ctx context.Context, message *tgbotapi.Message) {
	threadID := strings.TrimSpace(message.CommandArguments())
	if target, ok := threadurl.Extract(threadID); ok {
		threadID = target.ThreadID
	}
	if threadID == "" {
		b.sendMessage(message.Chat.ID, "Usage: /summary <threadID or link>")
		return
	}

	summary, err := b.pipeline.GetSummaryByThread(ctx, threadID)
	if err != nil {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("No saved summary for thread %s yet. Send me its link to create one.", threadID))
		return
	}
	b.sendMarkdown(message.Chat.ID, message.MessageID, formatSummary(summary))
}

func (b *Bot) handleRecent(ctx context.Context, message *tgbotapi.Message) {
	summaries, err := b.summaries.ListSummaries(ctx)
	if err != nil {
		b.logger.Error("Failed to list summaries",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the saved summaries.")
		return
	}
	if len(summaries) == 0 {
		b.sendMessage(message.Chat.ID, "There are no saved summaries yet.")
		return
	}
	if len(summaries) > recentLimit {
		summaries = summaries[:recentLimit]
	}
	b.sendMarkdown(message.Chat.ID, 0, formatList("*Recent summaries:*", summaries))
}

func (b *Bot) handleSearch(ctx context.Context, message *tgbotapi.Message) {
	query := strings.TrimSpace(message.CommandArguments())
	if query == "" {
		b.sendMessage(message.Chat.ID, "Usage: /search <text>")
		return
	}

	summaries, err := b.summaries.SearchSummaries(ctx, query)
	if err != nil {
		b.logger.Error("Failed to search summaries",
			zap.Error(err),
			zap.String("query", query))
		b.sendErrorMessage(message.Chat.ID, "Sorry, the search failed.")
		return
	}
	if len(summaries) == 0 {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Nothing matches %q.", query))
		return
	}
	b.sendMarkdown(message.Chat.ID, 0, formatList("*Results for* "+escapeMarkdown(query)+"*:*", summaries))
}

func (b *Bot) sendSummary(chatID int64, replyToID int, result *pipeline.Result) {
	text := formatSummary(result.Summary)
	if result.Existing {
		text = escapeMarkdown("📌 This thread was already summarized:") + "\n\n" + text
	} else if !result.Save.BackendSaved && result.Save.Error != "" {
		text += "\n\n" + escapeMarkdown("⚠️ Saved locally only: "+result.Save.Error)
	}
	b.sendMarkdown(chatID, replyToID, text)
}

func previewText(p pipeline.Preview) string {
	thread := p.ThreadName
	if thread == "" {
		thread = p.ThreadID
	}
	channel := ""
	if p.ChannelName != "" {
		channel = " in #" + p.ChannelName
	}
	return fmt.Sprintf("Thread \"%s\"%s has %d messages.\nSend them to OpenAI and generate a summary?", thread, channel, p.MessageCount)
}

func formatSummary(s *models.Summary) string {
	var sb strings.Builder
	sb.WriteString("*" + escapeMarkdown(s.Title) + "*\n")
	sb.WriteString("*Category:* " + escapeMarkdown(hashtag(s.Category)) + "\n")
	if len(s.Keywords) > 0 {
		tags := make([]string, len(s.Keywords))
		for i, kw := range s.Keywords {
			tags[i] = escapeMarkdown(hashtag(kw))
		}
		sb.WriteString("*Tags:* " + strings.Join(tags, " ") + "\n")
	}
	sb.WriteString("\n" + escapeMarkdown(truncate(s.Summary, maxSummaryText)) + "\n")
	if len(s.Attachments) > 0 {
		sb.WriteString(escapeMarkdown(fmt.Sprintf("\n📎 %d attachment(s)", len(s.Attachments))) + "\n")
	}

	source := s.ThreadName
	if s.ChannelName != "" {
		source = "#" + s.ChannelName + " / " + source
	}
	if source != "" {
		sb.WriteString("\n_" + escapeMarkdown(source) + "_\n")
	}
	sb.WriteString(escapeMarkdown("ID: "+s.ID))
	return sb.String()
}

func formatList(header string, summaries []*models.Summary) string {
	var sb strings.Builder
	sb.WriteString(header + "\n\n")
	for _, s := range summaries {
		sb.WriteString(fmt.Sprintf("• *%s* %s\n", escapeMarkdown(s.Title), escapeMarkdown(hashtag(s.Category))))
		sb.WriteString(escapeMarkdown(fmt.Sprintf("  /summary %s", s.ThreadID)) + "\n")
	}
	return sb.String()
}

func hashtag(s string) string {
	return "#" + strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMarkdown(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyToMessageID = replyToID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	if !strings.HasPrefix(text, "❌") {
		text = "⚠️ " + text
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) editMessage(chatID int64, messageID int, text string) {
	if _, err := b.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.logger.Warn("Failed to edit message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID))
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Warn("Failed to answer callback", zap.Error(err))
	}
}
