package config

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "standard seconds", input: "30s", expected: 30 * time.Second},
		{name: "standard minutes", input: "5m", expected: 5 * time.Minute},
		{name: "combined duration", input: "1h30m", expected: 90 * time.Minute},
		{name: "milliseconds", input: "500ms", expected: 500 * time.Millisecond},
		{name: "integer as seconds", input: "30", expected: 30 * time.Second},
		{name: "empty string", input: "", expected: 0},
		{name: "invalid format", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDurationString() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("ParseDurationString() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseStages(t *testing.T) {
	stages, err := ParseStages("30s:10, 5m:10,30s:0")
	if err != nil {
		t.Fatalf("ParseStages() error = %v", err)
	}

	want := []Stage{
		{Duration: Duration(30 * time.Second), Target: 10, Name: "stage-1"},
		{Duration: Duration(5 * time.Minute), Target: 10, Name: "stage-2"},
		{Duration: Duration(30 * time.Second), Target: 0, Name: "stage-3"},
	}
	if len(stages) != len(want) {
		t.Fatalf("len(stages) = %d, want %d", len(stages), len(want))
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stages[%d] = %+v, want %+v", i, stages[i], want[i])
		}
	}
}

func TestParseStages_Errors(t *testing.T) {
	for _, input := range []string{"", ",", "30s", "abc:10", "30s:ten"} {
		if _, err := ParseStages(input); err == nil {
			t.Errorf("ParseStages(%q) expected error", input)
		}
	}
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"1m30s"`), &d); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if d.Std() != 90*time.Second {
		t.Errorf("Duration = %v, want 1m30s", d)
	}

	if err := json.Unmarshal([]byte(`45`), &d); err != nil {
		t.Fatalf("UnmarshalJSON(45) error = %v", err)
	}
	if d.Std() != 45*time.Second {
		t.Errorf("Duration = %v, want 45s", d)
	}

	out, err := json.Marshal(Duration(2 * time.Second))
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(out) != `"2s"` {
		t.Errorf("MarshalJSON() = %s, want \"2s\"", out)
	}
}

func TestDuration_YAML(t *testing.T) {
	var holder struct {
		Timeout Duration `yaml:"timeout"`
		Grace   Duration `yaml:"grace"`
	}
	if err := yaml.Unmarshal([]byte("timeout: 10s\ngrace: 3\n"), &holder); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if holder.Timeout.Std() != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", holder.Timeout)
	}
	if holder.Grace.Std() != 3*time.Second {
		t.Errorf("Grace = %v, want 3s", holder.Grace)
	}

	if err := yaml.Unmarshal([]byte("timeout: soon\n"), &holder); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestDuration_GetDuration(t *testing.T) {
	if got := Duration(0).GetDuration(time.Second); got != time.Second {
		t.Errorf("GetDuration() = %v, want 1s", got)
	}
	if got := Duration(time.Minute).GetDuration(time.Second); got != time.Minute {
		t.Errorf("GetDuration() = %v, want 1m", got)
	}
}
