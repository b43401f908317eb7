package bot

import (
	"time"

	"github.com/example/wordmate/internal/importer"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// ChatID pins the bot to one learner; zero accepts the first chat that writes
	ChatID int64
	// ImportDelay spaces out AI lookups during a bulk import
	ImportDelay time.Duration
	// MaxUploadBytes caps the size of an uploaded document
	MaxUploadBytes int
	// PreviewCandidates is how many extracted words are listed before import
	PreviewCandidates int
	// WordListLimit caps the /words listing
	WordListLimit int
	// PollTimeout is the long-polling timeout in seconds
	PollTimeout int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		ImportDelay:       importer.DefaultCallDelay,
		MaxUploadBytes:    10 << 20,
		PreviewCandidates: 30,
		WordListLimit:     50,
		PollTimeout:       60,
	}
}
