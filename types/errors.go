package types

import "errors"

var (
	// ErrNotFound is returned when a document does not exist in the store
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the resource conflicts (e.g. update of old revision)
	ErrConflict = errors.New("conflict")

	// ErrBadRequest is returned on malformed inputs
	ErrBadRequest = errors.New("bad request")

	// ErrInternal (for unhandled exceptions)
	ErrInternal = errors.New("internal error")

	// ErrVaultKeysExpired is returned when vault keys fail to unwrap under the
	// current device key (device key rotated, keys deleted)
	ErrVaultKeysExpired = errors.New("vault keys expired")

	// ErrInvalidMnemonic is returned when a seed cannot be restored from words
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	// ErrInvalidSchemaVersion is returned when a backup declares a schema newer
	// than this build understands
	ErrInvalidSchemaVersion = errors.New("invalid schema version")

	// ErrInvalidKdfSpec is returned when a KDF spec names an unsupported algorithm
	ErrInvalidKdfSpec = errors.New("invalid kdf spec")

	// ErrDecryptionFailed is returned when an authenticated decryption fails
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrSignatureInvalid is returned when a signed envelope fails verification
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrRequestExpired is returned when a browser request is past its expiry
	ErrRequestExpired = errors.New("request expired")
)
