package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testYAML = `environment: test
server:
  port: 8081
protocol:
  admin: "4f3a9c1d5e7b20618a44c2f0d9b3e6a78c15d40b92e7f3a6c08b5d217e94f1c3"
  min_window_slots: 10
  max_window_slots: 1000
  max_attestation_age_slots: 150
  min_source_count: 3
  min_confidence: 20
redis:
  enabled: false
  ttl: 90s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8081 {
		t.Fatalf("port = %d", c.Server.Port)
	}
	if c.Protocol.MaxWindowSlots != 1000 || c.Protocol.MinConfidence != 20 {
		t.Fatalf("protocol: %+v", c.Protocol)
	}
	if c.Redis.TTL.Seconds() != 90 {
		t.Fatalf("redis ttl = %v", c.Redis.TTL)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing environment", `protocol: {admin: "4f3a9c1d5e7b20618a44c2f0d9b3e6a78c15d40b92e7f3a6c08b5d217e94f1c3", max_window_slots: 100}`},
		{"missing admin", `environment: test
protocol: {max_window_slots: 100}`},
		{"short admin", `environment: test
protocol: {admin: "abcd", max_window_slots: 100}`},
		{"missing max window", `environment: test
protocol: {admin: "4f3a9c1d5e7b20618a44c2f0d9b3e6a78c15d40b92e7f3a6c08b5d217e94f1c3"}`},
		{"window inversion", `environment: test
protocol: {admin: "4f3a9c1d5e7b20618a44c2f0d9b3e6a78c15d40b92e7f3a6c08b5d217e94f1c3", min_window_slots: 200, max_window_slots: 100}`},
		{"kafka enabled without brokers", `environment: test
protocol: {admin: "4f3a9c1d5e7b20618a44c2f0d9b3e6a78c15d40b92e7f3a6c08b5d217e94f1c3", max_window_slots: 100}
kafka: {enabled: true}`},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.body)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SSO_ADMIN_KEY", "aaaa9c1d5e7b20618a44c2f0d9b3e6a78c15d40b92e7f3a6c08b5d217e94f1c3")
	t.Setenv("REDIS_HOST", "redis.internal")

	c, err := LoadWithEnv(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Protocol.Admin[:4] != "aaaa" {
		t.Fatalf("admin override missed: %s", c.Protocol.Admin)
	}
	if c.Redis.Host != "redis.internal" {
		t.Fatalf("redis host = %s", c.Redis.Host)
	}
}
