package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/topic-reader/internal/apperrors"
	"go.uber.org/zap"
)

type fakeAPI struct {
	channels map[string]*discordgo.Channel
	guilds   []*discordgo.UserGuild
	byGuild  map[string][]*discordgo.Channel
	active   []*discordgo.Channel
	archived []*discordgo.Channel
	messages []*discordgo.Message
	msgErr   error

	lastBefore   string
	lastLimit    int
	channelCalls int
}

func (f *fakeAPI) Channel(id string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.channelCalls++
	if ch, ok := f.channels[id]; ok {
		return ch, nil
	}
	return nil, restError(http.StatusNotFound, discordgo.ErrCodeUnknownChannel)
}

func (f *fakeAPI) ChannelMessages(_ string, limit int, before, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.lastBefore, f.lastLimit = before, limit
	return f.messages, f.msgErr
}

func (f *fakeAPI) UserGuilds(int, string, string, bool, ...discordgo.RequestOption) ([]*discordgo.UserGuild, error) {
	return f.guilds, nil
}

func (f *fakeAPI) GuildChannels(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	return f.byGuild[guildID], nil
}

func (f *fakeAPI) GuildThreadsActive(string, ...discordgo.RequestOption) (*discordgo.ThreadsList, error) {
	return &discordgo.ThreadsList{Threads: f.active}, nil
}

func (f *fakeAPI) ThreadsArchived(string, *time.Time, int, ...discordgo.RequestOption) (*discordgo.ThreadsList, error) {
	return &discordgo.ThreadsList{Threads: f.archived}, nil
}

func restError(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: http.StatusText(status)},
	}
}

func newTestClient(api restAPI) *Client {
	return &Client{api: api, logger: zap.NewNop()}
}

func TestFetchPageConvertsMessages(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		channels: map[string]*discordgo.Channel{
			"t1": {ID: "t1", Type: discordgo.ChannelTypeGuildPublicThread, ParentID: "c1"},
		},
		messages: []*discordgo.Message{{
			ID:        "m1",
			Content:   "hello",
			Timestamp: ts,
			Author:    &discordgo.User{ID: "u1", Username: "alice", Discriminator: "0001"},
			Attachments: []*discordgo.MessageAttachment{
				{ID: "a1", Filename: "log.txt", URL: "https://cdn/log.txt", ContentType: "text/plain", Size: 42},
			},
		}, {
			ID:      "m0",
			Content: "system message",
		}},
	}

	page, err := newTestClient(api).FetchPage(context.Background(), "t1", "", 100)
	require.NoError(t, err)
	require.Len(t, page, 2)

	assert.Equal(t, "m1", page[0].ID)
	assert.Equal(t, "alice", page[0].Author.Username)
	assert.Equal(t, "t1", page[0].ThreadID)
	assert.Equal(t, ts, page[0].Timestamp)
	require.Len(t, page[0].Attachments, 1)
	assert.Equal(t, "log.txt", page[0].Attachments[0].Filename)
	assert.Equal(t, 42, page[0].Attachments[0].Size)
	assert.Empty(t, page[1].Author.Username)
	assert.NotNil(t, page[1].Attachments)
	assert.Equal(t, 100, api.lastLimit)
}

func TestFetchPageRejectsNonThread(t *testing.T) {
	api := &fakeAPI{channels: map[string]*discordgo.Channel{
		"c1": {ID: "c1", Type: discordgo.ChannelTypeGuildText},
	}}

	_, err := newTestClient(api).FetchPage(context.Background(), "c1", "", 100)
	assert.True(t, apperrors.Is(err, apperrors.KindThreadNotFound))

	_, err = newTestClient(api).FetchPage(context.Background(), "missing", "", 100)
	assert.True(t, apperrors.Is(err, apperrors.KindThreadNotFound))
}

func TestFetchPageReusesThreadLookup(t *testing.T) {
	api := &fakeAPI{
		channels: map[string]*discordgo.Channel{
			"t1": {ID: "t1", Name: "crash", ParentID: "c1", Type: discordgo.ChannelTypeGuildPublicThread},
		},
		messages: []*discordgo.Message{},
	}
	client := newTestClient(api)

	_, err := client.GetThread(context.Background(), "t1")
	require.NoError(t, err)
	_, err = client.FetchPage(context.Background(), "t1", "", 100)
	require.NoError(t, err)
	assert.Equal(t, 1, api.channelCalls)
}

func TestFetchPageWithCursorSkipsThreadCheck(t *testing.T) {
	api := &fakeAPI{messages: []*discordgo.Message{}}

	page, err := newTestClient(api).FetchPage(context.Background(), "t1", "m5", 100)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, "m5", api.lastBefore)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		id   string
		want apperrors.Kind
	}{
		{"unknown channel", restError(http.StatusNotFound, discordgo.ErrCodeUnknownChannel), "t1", apperrors.KindThreadNotFound},
		{"missing access", restError(http.StatusForbidden, discordgo.ErrCodeMissingAccess), "t1", apperrors.KindAccessDenied},
		{"missing permissions", restError(http.StatusForbidden, discordgo.ErrCodeMissingPermissions), "t1", apperrors.KindAccessDenied},
		{"bad token", restError(http.StatusUnauthorized, 0), "t1", apperrors.KindConfiguration},
		{"server error", restError(http.StatusBadGateway, 0), "t1", apperrors.KindNetwork},
		{"transport", errors.New("dial tcp: connection refused"), "t1", apperrors.KindNetwork},
		{"channel not found", restError(http.StatusNotFound, discordgo.ErrCodeUnknownChannel), "", apperrors.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyError(tt.err, tt.id)
			assert.Equal(t, tt.want, apperrors.KindOf(err))
			assert.NotEmpty(t, err.Error())
		})
	}
}

func TestListChannelsAcrossGuilds(t *testing.T) {
	api := &fakeAPI{
		guilds: []*discordgo.UserGuild{{ID: "g1"}, {ID: "g2"}},
		byGuild: map[string][]*discordgo.Channel{
			"g1": {
				{ID: "c1", Name: "general", Type: discordgo.ChannelTypeGuildText},
				{ID: "v1", Name: "voice", Type: discordgo.ChannelTypeGuildVoice},
			},
			"g2": {
				{ID: "f1", Name: "help", Type: discordgo.ChannelTypeGuildForum},
				{ID: "t9", Name: "a thread", Type: discordgo.ChannelTypeGuildPublicThread},
			},
		},
	}

	channels, err := newTestClient(api).ListChannels(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "general", channels[0].Name)
	assert.Equal(t, "g1", channels[0].GuildID)
	assert.Equal(t, "f1", channels[1].ID)

	channels, err = newTestClient(api).ListChannels(context.Background(), "g2")
	require.NoError(t, err)
	require.Len(t, channels, 1)
}

func TestListThreadsActiveThenArchived(t *testing.T) {
	api := &fakeAPI{
		channels: map[string]*discordgo.Channel{
			"c1": {ID: "c1", GuildID: "g1", Type: discordgo.ChannelTypeGuildText},
		},
		active: []*discordgo.Channel{
			{ID: "t1", Name: "open", ParentID: "c1", Type: discordgo.ChannelTypeGuildPublicThread, MessageCount: 3},
			{ID: "t2", Name: "elsewhere", ParentID: "c2", Type: discordgo.ChannelTypeGuildPublicThread},
		},
		archived: []*discordgo.Channel{
			{ID: "t3", Name: "closed", ParentID: "c1", Type: discordgo.ChannelTypeGuildPublicThread},
		},
	}

	threads, err := newTestClient(api).ListThreads(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "t1", threads[0].ID)
	assert.Equal(t, 3, threads[0].MessageCount)
	assert.Equal(t, "c1", threads[0].ChannelID)
	assert.Equal(t, "t3", threads[1].ID)
}

func TestListThreadsUnknownChannel(t *testing.T) {
	_, err := newTestClient(&fakeAPI{}).ListThreads(context.Background(), "c404")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))
	assert.Contains(t, err.Error(), "channel was not found")
}

func TestSessionRequiresToken(t *testing.T) {
	_, err := NewClient("", zap.NewNop()).ListChannels(context.Background(), "")
	assert.True(t, apperrors.Is(err, apperrors.KindConfiguration))
}
