package ports

// FileSystem abstracts file system operations for components that read or
// write whole files (remuxing, inspection). The recording path itself
// holds its own file handle and does not go through this interface.
type FileSystem interface {
	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating parent directories and the
	// file itself if necessary.
	WriteFile(path string, data []byte) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory.
	Remove(path string) error
}
