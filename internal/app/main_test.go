package service

import (
	"io"
	"os"
	"testing"

	"github.com/okian/stripe-connect/pkg/logger"
)

// TestMain initializes the global logger, which worker.NewPool requires.
func TestMain(m *testing.M) {
	if err := logger.InitWithWriter("text", io.Discard); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}
