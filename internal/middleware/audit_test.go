package middleware

import (
	"encoding/json"
	"testing"
)

func TestRedactAuditBodyAdmin(t *testing.T) {
	body := []byte(`{"name":"helix","signature":"0xdead","nested":{"private_key":"k","admin_key":"a"}}`)
	out := redactAuditBody("/v1/admin/protocols", body)

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if data["signature"] == "0xdead" {
		t.Fatalf("signature not redacted")
	}
	if nested, ok := data["nested"].(map[string]interface{}); ok {
		if nested["private_key"] == "k" || nested["admin_key"] == "a" {
			t.Fatalf("nested keys not redacted")
		}
	}
	if data["name"] != "helix" {
		t.Fatalf("non-sensitive field was modified")
	}
}

func TestRedactAuditBodyNonSensitivePath(t *testing.T) {
	body := []byte(`{"ok":true}`)
	out := redactAuditBody("/health", body)
	if out != string(body) {
		t.Fatalf("unexpected redaction on non-sensitive path")
	}
}

func TestRedactAuditBodyInvalidJSON(t *testing.T) {
	body := []byte("not-json")
	out := redactAuditBody("/v1/vault/deposit", body)
	if out != "[redacted]" {
		t.Fatalf("expected redacted placeholder for invalid json")
	}
}
