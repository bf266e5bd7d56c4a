package cmd

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	_ = os.Setenv(skipDaemonEnv, "1")
	os.Exit(m.Run())
}
