package cache

import "fmt"

// Key patterns
const (
	KeyTranscript = "transcript:%s" // transcript:{videoID}
)

// KeyBuilder prefixes keys so several libraries can share one Redis
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a key builder; an empty namespace becomes "ytlib"
func NewKeyBuilder(namespace string) *KeyBuilder {
	if namespace == "" {
		namespace = "ytlib"
	}
	return &KeyBuilder{prefix: namespace}
}

// BuildKey constructs a key with the namespace prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the namespace prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

func (kb *KeyBuilder) KeyTranscript(videoID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyTranscript, videoID))
}
