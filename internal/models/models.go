package models

import "time"

// Attachment is a file attached to a chat message
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
	Size        int    `json:"size,omitempty"`
}

type Author struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
}

// Message represents a single chat message fetched from a thread
type Message struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Author      Author       `json:"author"`
	Attachments []Attachment `json:"attachments"`
	Timestamp   time.Time    `json:"timestamp"`
	ThreadID    string       `json:"threadId"`
}

// Channel is a text channel that can hold threads
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    int    `json:"type"`
	GuildID string `json:"guildId"`
}

// Thread represents a chat thread inside a channel
type Thread struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	MessageCount int        `json:"messageCount"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	ChannelID    string     `json:"channelId"`
}

// Summary is the generated digest of a thread
type Summary struct {
	ID          string       `json:"id,omitempty"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	Keywords    []string     `json:"keywords"`
	Category    string       `json:"category"`
	ThreadID    string       `json:"threadId"`
	ChannelID   string       `json:"channelId"`
	ChannelName string       `json:"channelName,omitempty"`
	ThreadName  string       `json:"threadName,omitempty"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Prompt is a stored prompt template
type Prompt struct {
	ID        string    `json:"id,omitempty"`
	Key       string    `json:"key"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const DefaultPromptKey = "default"
