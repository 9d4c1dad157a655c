package domain

import (
	"encoding/json"
	"testing"
)

func TestKindFromEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     ProviderKind
	}{
		{"https://api.openai.com/v1/chat/completions", ProviderOpenAI},
		{"https://API.OPENAI.com/v1/chat/completions", ProviderOpenAI},
		{"https://api.anthropic.com/v1/messages", ProviderAnthropic},
		{"https://claude.example.com/v1/messages", ProviderAnthropic},
		{"https://gw.xeduapi.com/v1/chat/completions", ProviderXedu},
		{"https://llm.internal.example.com/generate", ProviderGeneric},
		{"", ProviderGeneric},
	}
	for _, tt := range tests {
		if got := KindFromEndpoint(tt.endpoint); got != tt.want {
			t.Errorf("KindFromEndpoint(%q) = %s, want %s", tt.endpoint, got, tt.want)
		}
	}
}

func TestResolvedKindExplicitOverride(t *testing.T) {
	cfg := ProviderConfig{Endpoint: "https://api.openai.com/v1/chat/completions", Kind: ProviderAnthropic}
	if got := cfg.ResolvedKind(); got != ProviderAnthropic {
		t.Errorf("explicit kind ignored, got %s", got)
	}

	cfg = ProviderConfig{Endpoint: "https://api.openai.com/v1/chat/completions", Kind: "bogus"}
	if got := cfg.ResolvedKind(); got != ProviderOpenAI {
		t.Errorf("invalid kind should fall back to inference, got %s", got)
	}
}

func TestMentionFlagsOrderPreserved(t *testing.T) {
	f := NewMentionFlags([]string{"Zeta", "Acme", "Mira"})
	f.Set("Acme", true)

	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"Zeta":0,"Acme":1,"Mira":0}`
	if string(b) != want {
		t.Errorf("marshal order: got %s, want %s", b, want)
	}

	var back MentionFlags
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Get("Acme") != 1 || back.Get("Zeta") != 0 {
		t.Errorf("round-trip lost values: %+v", back)
	}
	names := back.Names()
	if len(names) != 3 || names[0] != "Zeta" || names[1] != "Acme" || names[2] != "Mira" {
		t.Errorf("round-trip lost order: %v", names)
	}
}

func TestMentionFlagsSetUnknownName(t *testing.T) {
	f := NewMentionFlags([]string{"Acme"})
	f.Set("NotThere", true)
	if f.Len() != 1 {
		t.Errorf("unknown name must not grow the map, len=%d", f.Len())
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	for _, s := range []TaskStatus{StatusCompleted, StatusFailed, StatusCanceled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []TaskStatus{StatusPending, StatusRunning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
