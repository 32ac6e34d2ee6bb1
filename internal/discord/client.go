// Package discord reads channels, threads and message history from Discord.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/xaenox/topic-reader/internal/apperrors"
	"github.com/xaenox/topic-reader/internal/models"
	"go.uber.org/zap"
)

// restAPI is the subset of *discordgo.Session the client uses.
type restAPI interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	UserGuilds(limit int, beforeID, afterID string, withCounts bool, options ...discordgo.RequestOption) ([]*discordgo.UserGuild, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildThreadsActive(guildID string, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	ThreadsArchived(channelID string, before *time.Time, limit int, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
}

// maxKnownThreads bounds the set of thread IDs already confirmed by GetThread.
const maxKnownThreads = 1024

// Client talks to the Discord REST API with a bot token. The session is
// created on first use and reused afterwards.
type Client struct {
	token  string
	logger *zap.Logger

	mu           sync.Mutex
	api          restAPI
	knownThreads map[string]struct{}
}

func NewClient(token string, logger *zap.Logger) *Client {
	return &Client{token: token, logger: logger}
}

func (c *Client) session() (restAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api != nil {
		return c.api, nil
	}
	if c.token == "" {
		return nil, apperrors.New(apperrors.KindConfiguration, tokenMissingMessage)
	}

	session, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration, err, invalidTokenMessage)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	c.api = session
	return c.api, nil
}

// ListChannels returns the text channels of guildID, or of every guild the
// bot is in when guildID is empty.
func (c *Client) ListChannels(ctx context.Context, guildID string) ([]models.Channel, error) {
	api, err := c.session()
	if err != nil {
		return nil, err
	}

	guildIDs := []string{guildID}
	if guildID == "" {
		guilds, err := api.UserGuilds(200, "", "", false, discordgo.WithContext(ctx))
		if err != nil {
			return nil, classifyError(err, "")
		}
		guildIDs = guildIDs[:0]
		for _, g := range guilds {
			guildIDs = append(guildIDs, g.ID)
		}
	}

	channels := make([]models.Channel, 0)
	for _, id := range guildIDs {
		guildChannels, err := api.GuildChannels(id, discordgo.WithContext(ctx))
		if err != nil {
			return nil, classifyError(err, "")
		}
		for _, ch := range guildChannels {
			if !isTextContainer(ch) {
				continue
			}
			channels = append(channels, models.Channel{
				ID:      ch.ID,
				Name:    ch.Name,
				Type:    int(ch.Type),
				GuildID: id,
			})
		}
	}
	return channels, nil
}

// ListThreads returns the active and then the archived threads of a channel.
func (c *Client) ListThreads(ctx context.Context, channelID string) ([]models.Thread, error) {
	api, err := c.session()
	if err != nil {
		return nil, err
	}

	channel, err := api.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classifyError(err, "")
	}
	if !isTextContainer(channel) {
		return nil, apperrors.New(apperrors.KindInvalidInput,
			fmt.Sprintf("Channel %s was not found or is not a text channel.", channelID))
	}

	threads := make([]models.Thread, 0)

	active, err := api.GuildThreadsActive(channel.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classifyError(err, "")
	}
	for _, th := range active.Threads {
		if th.ParentID == channelID {
			threads = append(threads, toThread(th))
		}
	}

	archived, err := api.ThreadsArchived(channelID, nil, 100, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classifyError(err, "")
	}
	for _, th := range archived.Threads {
		threads = append(threads, toThread(th))
	}

	return threads, nil
}

// GetThread looks up a thread. A channel that is not a thread is reported as
// ThreadNotFound.
func (c *Client) GetThread(ctx context.Context, threadID string) (*models.Thread, error) {
	api, err := c.session()
	if err != nil {
		return nil, err
	}

	ch, err := api.Channel(threadID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classifyError(err, threadID)
	}
	if !ch.IsThread() {
		return nil, threadNotFound(threadID, nil)
	}
	c.rememberThread(threadID)
	thread := toThread(ch)
	return &thread, nil
}

func (c *Client) rememberThread(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.knownThreads == nil || len(c.knownThreads) >= maxKnownThreads {
		c.knownThreads = make(map[string]struct{})
	}
	c.knownThreads[id] = struct{}{}
}

func (c *Client) isKnownThread(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.knownThreads[id]
	return ok
}

func (c *Client) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	api, err := c.session()
	if err != nil {
		return nil, err
	}

	ch, err := api.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classifyError(err, "")
	}
	return &models.Channel{ID: ch.ID, Name: ch.Name, Type: int(ch.Type), GuildID: ch.GuildID}, nil
}

// FetchPage implements PageSource. The first page of a thread also checks
// that threadID names a thread, unless GetThread already confirmed it.
func (c *Client) FetchPage(ctx context.Context, threadID, before string, limit int) ([]models.Message, error) {
	api, err := c.session()
	if err != nil {
		return nil, err
	}

	if before == "" && !c.isKnownThread(threadID) {
		if _, err := c.GetThread(ctx, threadID); err != nil {
			return nil, err
		}
	}

	msgs, err := api.ChannelMessages(threadID, limit, before, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, classifyError(err, threadID)
	}

	page := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		page = append(page, toMessage(m, threadID))
	}
	return page, nil
}

func isTextContainer(ch *discordgo.Channel) bool {
	if ch == nil || ch.IsThread() {
		return false
	}
	switch ch.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews, discordgo.ChannelTypeGuildForum:
		return true
	}
	return false
}

func toThread(ch *discordgo.Channel) models.Thread {
	thread := models.Thread{
		ID:           ch.ID,
		Name:         ch.Name,
		MessageCount: ch.MessageCount,
		ChannelID:    ch.ParentID,
	}
	if ch.LastMessageID != "" {
		if ts, err := discordgo.SnowflakeTimestamp(ch.LastMessageID); err == nil {
			thread.LastActivity = &ts
		}
	}
	return thread
}

func toMessage(m *discordgo.Message, threadID string) models.Message {
	msg := models.Message{
		ID:          m.ID,
		Content:     m.Content,
		Timestamp:   m.Timestamp,
		ThreadID:    threadID,
		Attachments: make([]models.Attachment, 0, len(m.Attachments)),
	}
	if m.Author != nil {
		msg.Author = models.Author{
			ID:            m.Author.ID,
			Username:      m.Author.Username,
			Discriminator: m.Author.Discriminator,
		}
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return msg
}
