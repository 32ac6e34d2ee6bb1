package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/xaenox/topic-reader/internal/apperrors"
)

const tokenMissingMessage = "❌ Discord Bot Token Not Configured!\n\n" +
	"Set DISCORD_BOT_TOKEN in your .env file or discord.token in config.yaml."

const invalidTokenMessage = "❌ Invalid Discord Bot Token!\n\n" +
	"The Discord bot token provided is invalid or has expired.\n" +
	"Please check your DISCORD_BOT_TOKEN and ensure:\n" +
	"  • The token is correct and complete\n" +
	"  • The token hasn't been regenerated in Discord Developer Portal\n" +
	"  • There are no extra spaces or quotes around the token\n\n" +
	"To get a new token:\n" +
	"  1. Go to https://discord.com/developers/applications\n" +
	"  2. Select your application\n" +
	"  3. Go to \"Bot\" section\n" +
	"  4. Click \"Reset Token\" or copy the existing token\n" +
	"  5. Update your .env file with the new token"

const accessDeniedMessage = "❌ Missing Access!\n\n" +
	"The bot cannot read this thread. Make sure the bot is a member of the server,\n" +
	"can view the channel, and has MESSAGE CONTENT INTENT enabled in the\n" +
	"Discord Developer Portal (Bot → Privileged Gateway Intents)."

const networkMessage = "❌ Connection Error!\n\n" +
	"Unable to reach Discord servers.\n" +
	"Please check your internet connection and try again."

func threadNotFound(threadID string, err error) error {
	return apperrors.Wrap(apperrors.KindThreadNotFound, err,
		fmt.Sprintf("Thread %s was not found. Check that the link points at a thread the bot can see.", threadID))
}

// classifyError maps a discordgo REST failure to an apperrors kind. id is the
// requested thread, if any, for the not-found message.
func classifyError(err error, id string) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return apperrors.Wrap(apperrors.KindNetwork, err, networkMessage+"\n\nError: "+err.Error())
	}

	code := 0
	if restErr.Message != nil {
		code = restErr.Message.Code
	}
	status := 0
	if restErr.Response != nil {
		status = restErr.Response.StatusCode
	}

	switch {
	case code == discordgo.ErrCodeUnknownChannel || status == http.StatusNotFound:
		if id == "" {
			return apperrors.Wrap(apperrors.KindInvalidInput, err, "The requested Discord channel was not found.")
		}
		return threadNotFound(id, err)
	case code == discordgo.ErrCodeMissingAccess || code == discordgo.ErrCodeMissingPermissions || status == http.StatusForbidden:
		return apperrors.Wrap(apperrors.KindAccessDenied, err, accessDeniedMessage)
	case status == http.StatusUnauthorized:
		return apperrors.Wrap(apperrors.KindConfiguration, err, invalidTokenMessage)
	default:
		return apperrors.Wrap(apperrors.KindNetwork, err,
			fmt.Sprintf("❌ Discord request failed (HTTP %d): %s", status, restErrorText(restErr)))
	}
}

func restErrorText(restErr *discordgo.RESTError) string {
	if restErr.Message != nil && restErr.Message.Message != "" {
		return restErr.Message.Message
	}
	return string(restErr.ResponseBody)
}
