package main

import "testing"

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig on empty dir: %v", err)
	}
	if cfg.Auth.Token != "" {
		t.Fatalf("expected zero config, got %+v", cfg)
	}

	cfg.Auth.Token = "tok-123"
	cfg.Auth.UserID = "user-1"
	cfg.Default.BaseURL = "https://api.example.com"
	if err := saveConfig(cfg); err != nil {
		t.Fatalf("saveConfig: %v", err)
	}

	got, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig after save: %v", err)
	}
	if got.Auth.Token != "tok-123" || got.Auth.UserID != "user-1" || got.Default.BaseURL != "https://api.example.com" {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestSetConfigValue(t *testing.T) {
	t.Run("valid keys", func(t *testing.T) {
		cfg := &Config{}
		for key, want := range map[string]string{
			"default.base_url": "https://api.example.com",
			"default.project":  "proj-1",
			"auth.token":       "tok",
			"auth.user_id":     "user-1",
		} {
			if err := setConfigValue(cfg, key, want); err != nil {
				t.Fatalf("setConfigValue(%s): %v", key, err)
			}
		}
		if cfg.Default.Project != "proj-1" || cfg.Auth.UserID != "user-1" {
			t.Fatalf("values not applied: %+v", cfg)
		}
	})

	t.Run("rejects bad keys", func(t *testing.T) {
		cfg := &Config{}
		for _, key := range []string{"token", "auth.nope", "other.token"} {
			if err := setConfigValue(cfg, key, "v"); err == nil {
				t.Fatalf("expected error for %q", key)
			}
		}
	})
}
