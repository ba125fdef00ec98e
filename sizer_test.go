package cachewire

import (
	"encoding/json"
	"testing"
)

func TestDefaultSizerStrings(t *testing.T) {
	sizer := DefaultSizer[any]()

	tests := []struct {
		name  string
		value string
		want  int64
	}{
		{"ascii", "hello", 10},
		{"empty", "", 0},
		{"bmp rune", "héllo", 10},
		{"surrogate pair", "a\U0001F600", 6}, // 1 + 2 code units
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sizer.EstimateSize(tt.value); got != tt.want {
				t.Errorf("EstimateSize(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestDefaultSizerScalars(t *testing.T) {
	sizer := DefaultSizer[any]()

	for _, value := range []any{42, int64(7), 3.14, true, nil} {
		if got := sizer.EstimateSize(value); got != 8 {
			t.Errorf("EstimateSize(%v) = %d, want 8", value, got)
		}
	}
}

func TestDefaultSizerSerializable(t *testing.T) {
	sizer := DefaultSizer[any]()

	value := map[string]any{"a": "b", "n": 1.0}
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := int64(len(data)) * 2

	if got := sizer.EstimateSize(value); got != want {
		t.Errorf("EstimateSize(map) = %d, want %d", got, want)
	}

	slice := []int{1, 2, 3}
	data, _ = json.Marshal(slice)
	if got := sizer.EstimateSize(slice); got != int64(len(data))*2 {
		t.Errorf("EstimateSize(slice) = %d, want %d", got, int64(len(data))*2)
	}
}

func TestDefaultSizerSerializationFailureFallsBack(t *testing.T) {
	sizer := DefaultSizer[any]()

	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	// Must not panic or surface the marshal error.
	if got := sizer.EstimateSize(cyclic); got != 1024 {
		t.Errorf("EstimateSize(cyclic) = %d, want the 1024 fallback", got)
	}

	unmarshalable := []any{make(chan int)}
	if got := sizer.EstimateSize(unmarshalable); got != 1024 {
		t.Errorf("EstimateSize(slice with chan) = %d, want the 1024 fallback", got)
	}
}

func TestSizerFuncAdapter(t *testing.T) {
	sizer := SizerFunc[string](func(string) int64 { return 7 })
	if got := sizer.EstimateSize("anything"); got != 7 {
		t.Errorf("SizerFunc adapter = %d, want 7", got)
	}
}
