package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/stupiduntilnot/meditalk/internal/model"
)

// classify maps a go-openai failure onto the model error sentinels.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &model.BackendError{Message: "backend request timed out", Err: model.ErrTimeout}
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(reqErr.HTTPStatusCode, "", err)
	}

	// Non-JSON error bodies surface as plain errors carrying the status text.
	if status := statusFromText(err.Error()); status > 0 {
		return statusError(status, "", err)
	}

	return &model.BackendError{Message: truncate(err.Error(), 400), Err: err}
}

func statusFromText(msg string) int {
	_, rest, ok := strings.Cut(msg, "status code: ")
	if !ok {
		return 0
	}
	digits, _, _ := strings.Cut(rest, ",")
	status, err := strconv.Atoi(strings.TrimSpace(digits))
	if err != nil || status < 100 || status > 599 {
		return 0
	}
	return status
}

func statusError(status int, message string, err error) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("backend returned %d %s", status, http.StatusText(status))
	}
	if status == http.StatusUnauthorized {
		return &model.BackendError{Status: status, Message: message, Err: model.ErrUnauthorized}
	}
	return &model.BackendError{Status: status, Message: truncate(message, 400), Err: err}
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
