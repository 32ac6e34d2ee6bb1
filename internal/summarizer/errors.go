package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/topic-reader/internal/apperrors"
)

const apiKeyMissingMessage = "❌ OpenAI API Key Missing!\n\n" +
	"Set OPENAI_API_KEY (or openai.api_key in config.yaml) to a key from https://platform.openai.com/api-keys."

const apiKeyFormatMessage = "❌ Invalid OpenAI API Key Format!\n\n" +
	"The configured key looks incomplete. OpenAI keys start with 'sk-' (or 'sk-proj-'), " +
	"are usually 40 or more characters long and contain no spaces or quotes.\n" +
	"Copy the complete key again and update OPENAI_API_KEY."

const invalidKeyMessage = "❌ Invalid OpenAI API Key!\n\n" +
	"The key was rejected. It may be mistyped, deleted or regenerated.\n\n" +
	"Create a new key at https://platform.openai.com/api-keys and update OPENAI_API_KEY."

const quotaMessage = "❌ API Quota Exceeded!\n\n" +
	"Your OpenAI account is out of credits or over its rate limit.\n" +
	"Check https://platform.openai.com/usage and try again later."

const modelHint = "\n\nThe configured model is not available for this account. " +
	"Try gpt-4o, gpt-4o-mini or gpt-3.5-turbo via openai.model."

// classifyAPIError maps a go-openai error onto the error kinds shown to users.
func classifyAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindNetwork, err, "❌ Summary generation was cancelled or timed out.")
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := fmt.Sprint(apiErr.Code)
		msg := apiErr.Message
		switch {
		case code == "invalid_api_key" || apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return apperrors.Wrap(apperrors.KindUpstreamAuthInvalid, err, invalidKeyMessage)
		case code == "insufficient_quota" || code == "rate_limit_exceeded" || apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return apperrors.Wrap(apperrors.KindUpstreamRateLimited, err, quotaMessage)
		case code == "model_not_found" || strings.Contains(msg, "does not exist") || strings.Contains(msg, "you do not have access"):
			return apperrors.Wrap(apperrors.KindUpstreamModelUnavailable, err, "❌ Model Access Error!\n\n"+msg+modelHint)
		case msg != "":
			return apperrors.Wrap(apperrors.KindUpstream, err, "❌ OpenAI API Error: "+msg)
		default:
			if apiErr.Code == nil {
				code = "Unknown error"
			}
			return apperrors.Wrap(apperrors.KindUpstream, err,
				fmt.Sprintf("❌ OpenAI API Error (%d): %s", apiErr.HTTPStatusCode, code))
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return apperrors.Wrap(apperrors.KindUpstreamAuthInvalid, err, invalidKeyMessage)
		case http.StatusTooManyRequests:
			return apperrors.Wrap(apperrors.KindUpstreamRateLimited, err, quotaMessage)
		}
		return apperrors.Wrap(apperrors.KindUpstream, err,
			fmt.Sprintf("❌ API Request Failed (%d): %s", reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode)))
	}

	return apperrors.Wrap(apperrors.KindNetwork, err,
		fmt.Sprintf("❌ Could not reach the OpenAI API: %v\n\nCheck your network connection and try again.", err))
}
