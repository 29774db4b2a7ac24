package port

// BlobStorage stores attachment payloads under generated keys. Keys are
// opaque to callers; the display file name never reaches the filesystem.
type BlobStorage interface {
	// Save writes content and returns the generated storage key
	Save(content []byte, displayName string) (string, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(key string) error

	// Path resolves the key to a local filesystem path for serving
	Path(key string) (string, error)
}
