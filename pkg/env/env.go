package env

import "os"

// Get returns the value of the given environment variable or a fallback.
// Used before config parsing runs, e.g. when the logger bootstraps.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
