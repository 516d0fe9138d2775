package ports

// Environment resolves configuration values exposed to scripts.
// Lookups return false when the key is unknown or not allowed.
type Environment interface {
	// Getenv returns the value of an environment variable.
	Getenv(key string) (string, bool)

	// Secret returns the current value of a secret.
	Secret(key string) (string, bool)

	// SecretEffectiveAt returns the value of a secret that was effective at the given slot.
	// The slot is typically a unix timestamp; the latest slot not after it wins.
	SecretEffectiveAt(key string, slot uint64) (string, bool)
}
