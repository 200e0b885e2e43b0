package log

import (
	"path/filepath"
	"testing"

	"github.com/514-labs/cla-bot-sub001/pkg/config"
)

func permissive(cfg *config.Config) *config.Config {
	if cfg != nil {
		cfg.AuthMode = config.AuthorizationPermissive
	}
	return cfg
}

func TestGoodNewLogger(t *testing.T) {
	for _, c := range []*config.Config{
		permissive(config.DefaultConfig()),
		{},
		{Log: config.LogConfig{Path: filepath.Join(t.TempDir(), "logfile.txt")}},
	} {
		_, f, err := NewLogger(c)
		if err != nil {
			t.Errorf("NewLogger(%v) => _, _, %v, want _, _, nil", c, err)
		}
		if f != nil {
			f.Close()
		}
	}
}

func TestBadNewLogger(t *testing.T) {
	for _, c := range []*config.Config{
		nil,
		{Log: config.LogConfig{Path: "\x00"}},
	} {
		_, f, err := NewLogger(c)
		if err == nil {
			t.Errorf("NewLogger(%v) => _, _, nil, want error", c)
		}
		if f != nil {
			f.Close()
		}
	}
}
