package fsops

import "os"

// OSDeleter implements Deleter using real os package calls
type OSDeleter struct{}

// Remove unlinks a single file; it never recurses
func (OSDeleter) Remove(path string) error {
	return os.Remove(path)
}
