// Package guard switches the process into test mode when imported, so
// binaries exercised from tests skip their runtime startup.
package guard

import (
	"os"
	"sync"
)

// TestModeEnv is the variable read by app.InTestMode.
const TestModeEnv = "APP_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(TestModeEnv) == "" {
			_ = os.Setenv(TestModeEnv, "1")
		}
	})
}
