package llm

import (
	"os"
	"testing"
)

func TestNewClientWithAPIKey(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key-123"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.Tracker() == nil {
		t.Error("Tracker should not be nil")
	}
}

func TestNewClientWithEnvVar(t *testing.T) {
	original := os.Getenv("ANTHROPIC_API_KEY")
	defer os.Setenv("ANTHROPIC_API_KEY", original)
	os.Setenv("ANTHROPIC_API_KEY", "env-test-key")

	if _, err := NewClient(ClientConfig{}); err != nil {
		t.Fatalf("NewClient: %v", err)
	}
}

func TestNewClientNoAPIKey(t *testing.T) {
	original := os.Getenv("ANTHROPIC_API_KEY")
	defer os.Setenv("ANTHROPIC_API_KEY", original)
	os.Unsetenv("ANTHROPIC_API_KEY")

	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestNewClientDefaultModel(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.Model() == "" {
		t.Error("expected a default model to be set")
	}
}

func TestTokenTrackerAdd(t *testing.T) {
	tr := &TokenTracker{}
	tr.Add(100, 50)
	in, out := tr.Total()
	if in != 100 || out != 50 {
		t.Fatalf("Total() = %d, %d; want 100, 50", in, out)
	}
	if tr.Calls() != 1 {
		t.Fatalf("Calls() = %d, want 1", tr.Calls())
	}
}

func TestTokenTrackerAccumulates(t *testing.T) {
	tr := &TokenTracker{}
	tr.Add(100, 50)
	tr.Add(200, 100)
	tr.Add(50, 25)

	in, out := tr.Total()
	if in != 350 || out != 175 {
		t.Fatalf("Total() = %d, %d; want 350, 175", in, out)
	}
	if tr.Calls() != 3 {
		t.Fatalf("Calls() = %d, want 3", tr.Calls())
	}
}

func TestTokenTrackerReset(t *testing.T) {
	tr := &TokenTracker{}
	tr.Add(100, 50)
	tr.Reset()

	in, out := tr.Total()
	if in != 0 || out != 0 || tr.Calls() != 0 {
		t.Fatalf("after Reset: in=%d out=%d calls=%d, want all zero", in, out, tr.Calls())
	}
}
