package signer

// Config represents ECDSA signer configuration. Exactly one of
// KeystorePath or PrivateKey must be set.
type Config struct {
	// KeystorePath is the path to the keystore file
	KeystorePath string
	// Password is the password to decrypt the keystore
	Password string
	// PrivateKey is a hex encoded key, used when no keystore is given
	PrivateKey string
}

// IsValid checks if the config is valid
func (c *Config) IsValid() bool {
	if c.KeystorePath != "" {
		return c.PrivateKey == ""
	}
	return c.PrivateKey != ""
}

// BLSConfig points at an eigensdk BLS keystore.
type BLSConfig struct {
	KeystorePath string
	Password     string
}
