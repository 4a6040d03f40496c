package friendlyerr_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/technosupport/physical-mcp/internal/friendlyerr"
)

func TestCameraPermissionDenied(t *testing.T) {
	fe := friendlyerr.Camera(errors.New("permission denied: camera not authorized"))
	assert.Contains(t, fe.Title, "permission")
	if runtime.GOOS == "darwin" {
		assert.Contains(t, fe.Fix, "System Settings")
	}
}

func TestCameraRTSPCheckedBeforeCannotOpen(t *testing.T) {
	fe := friendlyerr.Camera(errors.New("cannot open rtsp stream: connection refused"))
	assert.Equal(t, "Camera stream not responding", fe.Title)
}

func TestCameraNotFound(t *testing.T) {
	fe := friendlyerr.Camera(errors.New("cannot open device: no camera detected"))
	assert.Equal(t, "Camera not found", fe.Title)
}

func TestCameraTimeout(t *testing.T) {
	fe := friendlyerr.Camera(errors.New("read timed out after 5s"))
	assert.Equal(t, "Camera timed out", fe.Title)
}

func TestCameraGenericFallback(t *testing.T) {
	fe := friendlyerr.Camera(errors.New("unexpected frame decode error"))
	assert.Equal(t, "Camera error", fe.Title)
	assert.Contains(t, fe.Message, "unexpected frame decode error")
}

func TestProviderAuthError(t *testing.T) {
	fe := friendlyerr.Provider(errors.New("401 unauthorized: invalid api key"))
	assert.Equal(t, "Vision provider key invalid", fe.Title)
}

func TestProviderRateLimit(t *testing.T) {
	fe := friendlyerr.Provider(errors.New("429 too many requests, quota exceeded"))
	assert.Equal(t, "AI provider rate limit", fe.Title)
}

func TestProviderNotConfigured(t *testing.T) {
	fe := friendlyerr.Provider(errors.New("no vision provider configured"))
	assert.Equal(t, "No AI vision provider set up", fe.Title)
}

func TestConfigYAMLError(t *testing.T) {
	fe := friendlyerr.Config(errors.New("yaml: invalid mapping"))
	assert.Equal(t, "Configuration file error", fe.Title)
}

func TestConfigGenericFallback(t *testing.T) {
	fe := friendlyerr.Config(errors.New("missing data_dir"))
	assert.Equal(t, "Configuration error", fe.Title)
}

func TestNotificationTelegramTokenInvalid(t *testing.T) {
	fe := friendlyerr.Notification(errors.New("401 unauthorized"), "telegram")
	assert.Equal(t, "Telegram bot token invalid", fe.Title)
}

func TestNotificationTelegramChatNotFound(t *testing.T) {
	fe := friendlyerr.Notification(errors.New("chat not found"), "telegram")
	assert.Equal(t, "Telegram chat not found", fe.Title)
}

func TestNotificationDiscord(t *testing.T) {
	fe := friendlyerr.Notification(errors.New("webhook rejected"), "discord")
	assert.Equal(t, "Discord webhook error", fe.Title)
}

func TestNotificationNtfy(t *testing.T) {
	fe := friendlyerr.Notification(errors.New("topic unreachable"), "ntfy")
	assert.Equal(t, "Push notification error", fe.Title)
}

func TestNotificationGenericFallback(t *testing.T) {
	fe := friendlyerr.Notification(errors.New("smtp connection refused"), "")
	assert.Equal(t, "Notification error", fe.Title)
}

func TestFormatIncludesFixLines(t *testing.T) {
	out := friendlyerr.Format(friendlyerr.FriendlyError{
		Title:   "Camera not found",
		Message: "No camera detected.",
		Fix:     "Step one\nStep two",
	})
	assert.Contains(t, out, "Camera not found")
	assert.Contains(t, out, "Step one")
	assert.Contains(t, out, "Step two")
}

func TestFormatIncludesDocsURLWhenSet(t *testing.T) {
	out := friendlyerr.Format(friendlyerr.FriendlyError{
		Title:   "X",
		Message: "Y",
		Fix:     "Z",
		DocsURL: "https://example.com/docs",
	})
	assert.Contains(t, out, "https://example.com/docs")
}
