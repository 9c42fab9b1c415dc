package tether

import "testing"

type limitsConfig struct {
	Port int    `validate:"min=1,max=65535"`
	Host string `validate:"required"`
}

func TestStructValidator_AcceptsValid(t *testing.T) {
	validate := StructValidator[limitsConfig]()

	if !validate(limitsConfig{Port: 8080, Host: "localhost"}) {
		t.Error("expected valid config to pass")
	}
}

func TestStructValidator_RejectsOutOfRange(t *testing.T) {
	validate := StructValidator[limitsConfig]()

	if validate(limitsConfig{Port: 0, Host: "localhost"}) {
		t.Error("expected port 0 to fail min=1")
	}
	if validate(limitsConfig{Port: 99999, Host: "localhost"}) {
		t.Error("expected port 99999 to fail max=65535")
	}
}

func TestStructValidator_RejectsMissingRequired(t *testing.T) {
	validate := StructValidator[limitsConfig]()

	if validate(limitsConfig{Port: 8080}) {
		t.Error("expected missing host to fail required")
	}
}

func TestStructValidator_OnProperty(t *testing.T) {
	p := New(limitsConfig{Port: 8080, Host: "localhost"},
		WithValidator(StructValidator[limitsConfig]()),
	)

	if outcome := p.Set(limitsConfig{Port: 0, Host: "localhost"}); outcome != OutcomeRejected {
		t.Errorf("expected rejected, got %s", outcome)
	}
	if got := p.Value(); got.Port != 8080 {
		t.Errorf("expected retained port 8080, got %d", got.Port)
	}

	if outcome := p.Set(limitsConfig{Port: 9090, Host: "example.com"}); outcome != OutcomeApplied {
		t.Errorf("expected applied, got %s", outcome)
	}
}
