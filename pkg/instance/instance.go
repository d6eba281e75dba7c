package instance

import "os"

// GetID names the running process for log fields. DYNO wins over WORKER_ID.
func GetID() string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
