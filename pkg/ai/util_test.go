package ai

import (
	"testing"
)

func TestUnmarshalFlexibleObjectVariants(t *testing.T) {
	type entity struct {
		Name string `json:"name"`
		Type string `json:"type,omitempty"`
	}

	tests := []struct {
		name  string
		input string
		want  entity
	}{
		{
			name:  "valid json object",
			input: `{"name":"PostgreSQL"}`,
			want:  entity{Name: "PostgreSQL"},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{name: 'PostgreSQL'}`,
			want:  entity{Name: "PostgreSQL"},
		},
		{
			name:  "trailing comma",
			input: `{"name":"PostgreSQL",}`,
			want:  entity{Name: "PostgreSQL"},
		},
		{
			name:  "missing endbracket",
			input: `{"name":"PostgreSQL`,
			want:  entity{Name: "PostgreSQL"},
		},
		{
			name:  "stringified invalid json object",
			input: `"{name: 'PostgreSQL'}"`,
			want:  entity{Name: "PostgreSQL"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"name\": \"PostgreSQL\"\n}\n",
			want:  entity{Name: "PostgreSQL"},
		},
		{
			name:  "duplicate leading brace no newlines",
			input: `{ { "name": "PostgreSQL" }`,
			want:  entity{Name: "PostgreSQL"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got entity
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got.Name != tc.want.Name || got.Type != tc.want.Type {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexibleArrayVariants(t *testing.T) {
	type entity struct {
		Name string `json:"name"`
		Type string `json:"type,omitempty"`
	}

	input := `[{name:'Go'},{name:'Rust',}]`
	var got []entity
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "Go" || got[1].Name != "Rust" {
		t.Fatalf("UnmarshalFlexible() got = %+v, want two entities Go,Rust", got)
	}
}

func TestUnmarshalFlexibleUnrecoverable(t *testing.T) {
	type entity struct {
		Name string `json:"name"`
	}

	var got entity
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestUnmarshalFlexibleExtractionShape(t *testing.T) {
	type relation struct {
		Source string `json:"source_entity"`
		Target string `json:"target_entity"`
		Type   string `json:"relation_type"`
	}
	type response struct {
		Entities  []string   `json:"entities"`
		Relations []relation `json:"relations"`
	}

	tests := []struct {
		name  string
		input string
		want  response
	}{
		{
			name:  "stringified response",
			input: `"{ \"entities\": [ \"machine learning\", \"neural networks\" ], \"relations\": [ { \"source_entity\": \"machine learning\", \"target_entity\": \"neural networks\", \"relation_type\": \"uses\" } ] }"`,
			want: response{
				Entities:  []string{"machine learning", "neural networks"},
				Relations: []relation{{Source: "machine learning", Target: "neural networks", Type: "uses"}},
			},
		},
		{
			name:  "stringified response with newlines",
			input: `"{\n  \"entities\": [\"machine learning\", \"neural networks (e.g., CNNs, RNNs)\"],\n  \"relations\": []\n  }\n"`,
			want: response{
				Entities: []string{"machine learning", "neural networks (e.g., CNNs, RNNs)"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got response
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if len(got.Entities) != len(tc.want.Entities) {
				t.Fatalf("UnmarshalFlexible() entities = %v, want %v", got.Entities, tc.want.Entities)
			}
			for i := range got.Entities {
				if got.Entities[i] != tc.want.Entities[i] {
					t.Fatalf("UnmarshalFlexible() entities[%d] = %q, want %q", i, got.Entities[i], tc.want.Entities[i])
				}
			}
			if len(got.Relations) != len(tc.want.Relations) {
				t.Fatalf("UnmarshalFlexible() relations = %+v, want %+v", got.Relations, tc.want.Relations)
			}
			if len(got.Relations) > 0 && got.Relations[0] != tc.want.Relations[0] {
				t.Fatalf("UnmarshalFlexible() relation = %+v, want %+v", got.Relations[0], tc.want.Relations[0])
			}
		})
	}
}
