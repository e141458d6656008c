package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m3rciful/smpbot/core/bootstrap"
	coreconfig "github.com/m3rciful/smpbot/core/config"
)

func TestRunReportsConfigError(t *testing.T) {
	t.Setenv("SMPBOT_TEST_CONFIG", "/etc/smpbot.yaml")
	var gotPath string
	err := Run(Options{
		ConfigEnvVar: "SMPBOT_TEST_CONFIG",
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			gotPath = path
			return nil, coreconfig.ErrMissingToken
		},
	})
	if !errors.Is(err, coreconfig.ErrMissingToken) {
		t.Fatalf("err = %v, want ErrMissingToken", err)
	}
	if gotPath != "/etc/smpbot.yaml" {
		t.Fatalf("config path = %q", gotPath)
	}
}

func TestRunReportsBootstrapError(t *testing.T) {
	cfg := testConfig(t, nil)
	flushed := 0
	err := Run(Options{
		LoadConfig: func(string) (*coreconfig.Config, error) { return cfg, nil },
		Bootstrap: func(context.Context, *coreconfig.Config) (*bootstrap.Result, error) {
			return nil, errors.New("migrations: dirty version 3")
		},
		ShutdownLogger: func() error {
			flushed++
			return nil
		},
	})
	if err == nil || !strings.Contains(err.Error(), "bootstrap failed: migrations: dirty version 3") {
		t.Fatalf("err = %v", err)
	}
	if flushed != 1 {
		t.Fatalf("logger flushed %d times, want 1", flushed)
	}
}
