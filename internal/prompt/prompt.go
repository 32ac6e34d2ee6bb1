// Package prompt renders summary prompt templates.
//
// Templates use three literal placeholders, {{channelName}}, {{threadName}}
// and {{messagesText}}. There is no escaping: a placeholder that appears in
// a substituted value is left for the later substitutions to see.
package prompt

import (
	"fmt"
	"strings"

	"github.com/xaenox/topic-reader/internal/models"
)

const (
	ChannelNameToken  = "{{channelName}}"
	ThreadNameToken   = "{{threadName}}"
	MessagesTextToken = "{{messagesText}}"

	// UnknownName replaces a missing channel or thread name.
	UnknownName = "Unknown"
)

const DefaultTemplate = `Analyze the following Discord thread conversation and create a comprehensive summary.

Thread Context:
- Channel: {{channelName}}
- Thread: {{threadName}}

Conversation:
{{messagesText}}

Please provide a JSON response with the following structure:
{
  "title": "A concise, descriptive title for this discussion",
  "summary": "A detailed summary of what was discussed, including key points and decisions",
  "keywords": ["keyword1", "keyword2", "keyword3"],
  "category": "One of: Technical, Discussion, Question, Announcement, Planning, Bug Report, Feature Request, Other"
}

Include references to any attachments or files mentioned in the conversation.`

// Render fills template with the thread context and the serialized messages.
func Render(template, channelName, threadName string, messages []models.Message) string {
	if channelName == "" {
		channelName = UnknownName
	}
	if threadName == "" {
		threadName = UnknownName
	}

	out := strings.ReplaceAll(template, ChannelNameToken, channelName)
	out = strings.ReplaceAll(out, ThreadNameToken, threadName)
	out = strings.ReplaceAll(out, MessagesTextToken, FormatMessages(messages))
	return out
}

// FormatMessages serializes messages one per block, separated by a blank line.
func FormatMessages(messages []models.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, formatMessage(msg))
	}
	return strings.Join(lines, "\n\n")
}

func formatMessage(msg models.Message) string {
	line := fmt.Sprintf("[%s]: %s", msg.Author.Username, msg.Content)
	if len(msg.Attachments) == 0 {
		return line
	}

	names := make([]string, len(msg.Attachments))
	for i, att := range msg.Attachments {
		names[i] = att.Filename
	}
	return line + "\n[Attachments: " + strings.Join(names, ", ") + "]"
}
