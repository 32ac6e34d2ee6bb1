package models

const (
	CategoryTechnical      = "Technical"
	CategoryDiscussion     = "Discussion"
	CategoryQuestion       = "Question"
	CategoryAnnouncement   = "Announcement"
	CategoryPlanning       = "Planning"
	CategoryBugReport      = "Bug Report"
	CategoryFeatureRequest = "Feature Request"
	CategoryOther          = "Other"
)

// Categories lists the categories the model is asked to choose from.
var Categories = []string{
	CategoryTechnical,
	CategoryDiscussion,
	CategoryQuestion,
	CategoryAnnouncement,
	CategoryPlanning,
	CategoryBugReport,
	CategoryFeatureRequest,
	CategoryOther,
}

func IsKnownCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// AllAttachments flattens the attachments of messages, keeping message order.
func AllAttachments(messages []Message) []Attachment {
	attachments := make([]Attachment, 0)
	for _, msg := range messages {
		attachments = append(attachments, msg.Attachments...)
	}
	return attachments
}
