package campaign

import (
	"testing"

	"github.com/crmkit/leadmail/internal/store"
)

func TestPersonalize(t *testing.T) {
	lead := &store.Lead{
		FullName: "Alice Marie Johnson",
		Email:    "alice@example.com",
		Company:  "Acme Corp",
		Position: "CTO",
		Location: "Berlin",
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "first name is the first word",
			template: "Hi {{first_name}},",
			want:     "Hi Alice,",
		},
		{
			name:     "all tokens",
			template: "{{full_name}} <{{email}}> works as {{position}} at {{company}} in {{location}}",
			want:     "Alice Marie Johnson <alice@example.com> works as CTO at Acme Corp in Berlin",
		},
		{
			name:     "lead_name is the full name",
			template: "Hello {{lead_name}} at {{company}}",
			want:     "Hello Alice Marie Johnson at Acme Corp",
		},
		{
			name:     "full_name aliases lead_name",
			template: "{{lead_name}}|{{full_name}}",
			want:     "Alice Marie Johnson|Alice Marie Johnson",
		},
		{
			name:     "whitespace inside braces",
			template: "Hi {{ first_name }}",
			want:     "Hi Alice",
		},
		{
			name:     "unknown token becomes empty",
			template: "ref: {{order_id}}.",
			want:     "ref: .",
		},
		{
			name:     "no tokens passes through",
			template: "plain text",
			want:     "plain text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Personalize(tt.template, lead); got != tt.want {
				t.Errorf("Personalize(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestPersonalizeEmptyFields(t *testing.T) {
	lead := &store.Lead{Email: "x@example.com"}
	if got := Personalize("Hi {{first_name}} at {{company}}", lead); got != "Hi  at " {
		t.Errorf("empty fields must substitute empty strings, got %q", got)
	}
}
