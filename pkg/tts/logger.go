package tts

import (
	"echopaths/pkg/logging"
)

// Log records a TTS request on the request log.
// This is a shared helper for all TTS providers to ensure consistent debugging visibility.
func Log(provider, prompt string, status int, err error) {
	if err != nil {
		logging.RequestLogger.Warn("TTS request", "provider", provider, "status", status, "error", err, "prompt", prompt)
		return
	}
	logging.RequestLogger.Info("TTS request", "provider", provider, "status", status, "prompt", prompt)
}
