package shared

import "testing"

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "~/.local/share/mtap/mtap.db" {
			t.Errorf("expected database path ~/.local/share/mtap/mtap.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8787 {
			t.Errorf("expected server port 8787, got %d", config.Server.Port)
		}

		if config.MediaLibrary.Backend != "plex" {
			t.Errorf("expected media_library backend plex, got %s", config.MediaLibrary.Backend)
		}

		if config.TransferDaemon.PollIntervalMS != 2000 {
			t.Errorf("expected transfer_daemon poll_interval_ms 2000, got %d", config.TransferDaemon.PollIntervalMS)
		}

		if !config.Fingerprint.Enabled {
			t.Error("expected fingerprint verification enabled by default")
		}

		if config.Pipeline.AcceptThreshold != 0.85 {
			t.Errorf("expected pipeline accept_threshold 0.85, got %v", config.Pipeline.AcceptThreshold)
		}
	})
}
