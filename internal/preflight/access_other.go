//go:build !unix

package preflight

import "os"

// checkAccess probes writability by creating and removing a file.
func checkAccess(path string) error {
	f, err := os.CreateTemp(path, ".natronfarm-access-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
