package backend

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/loykin/sidekick/internal/logger"
)

func testLogConfig(dir string) logger.Config {
	return logger.Config{Dir: dir}
}

// waitForFileContent polls until path contains want or the deadline passes.
// Child output lands asynchronously to process exit.
func waitForFileContent(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b, err := os.ReadFile(path)
		if err == nil && strings.Contains(string(b), want) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	b, _ := os.ReadFile(path)
	t.Fatalf("file %s never contained %q (got %q)", path, want, string(b))
}
