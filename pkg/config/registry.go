package config

// Persistent state keys (Registry)
const (
	KeyVolume       = "volume"
	KeyDefaultStyle = "default_style"
	KeyDefaultVoice = "default_voice"
	KeyLookahead    = "lookahead"
)
