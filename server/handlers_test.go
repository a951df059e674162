// handlers_test.go - Unit Tests fuer die Task-Handler
package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/7blacky7/gpugate/adapters"
	"github.com/7blacky7/gpugate/api"
)

// TestNormalizeVideoParams testet die Familien-Normalisierung
func TestNormalizeVideoParams(t *testing.T) {
	tests := []struct {
		name   string
		family adapters.VideoFamily
		in     api.VideoParams
		want   api.VideoParams
	}{
		{
			name:   "Defaults fuer wan",
			family: adapters.VideoFamilyWan,
			in:     api.VideoParams{},
			want:   api.VideoParams{Width: 832, Height: 480, NumFrames: 81, NumInferenceSteps: 30, GuidanceScale: 5.0},
		},
		{
			name:   "Aufloesung wird auf 16 gerundet",
			family: adapters.VideoFamilyWan,
			in:     api.VideoParams{Width: 833, Height: 479},
			want:   api.VideoParams{Width: 832, Height: 480, NumFrames: 81, NumInferenceSteps: 30, GuidanceScale: 5.0},
		},
		{
			name:   "Hunyuan rundet auf 32",
			family: adapters.VideoFamilyHunyuan,
			in:     api.VideoParams{Width: 850, Height: 490},
			want:   api.VideoParams{Width: 864, Height: 480, NumFrames: 85, NumInferenceSteps: 30, GuidanceScale: 5.0},
		},
		{
			name:   "CogVideoX erzwingt Frames 8k+1",
			family: adapters.VideoFamilyCogVideoX,
			in:     api.VideoParams{NumFrames: 50},
			want:   api.VideoParams{Width: 832, Height: 480, NumFrames: 49, NumInferenceSteps: 30, GuidanceScale: 5.0},
		},
		{
			name:   "Rapid ueberschreibt Schritte und Guidance",
			family: adapters.VideoFamilyWanRapid,
			in:     api.VideoParams{NumInferenceSteps: 40, GuidanceScale: 7.0},
			want:   api.VideoParams{Width: 832, Height: 480, NumFrames: 81, NumInferenceSteps: 4, GuidanceScale: 1.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			normalizeVideoParams(tt.family, &got)
			if got != tt.want {
				t.Errorf("normalizeVideoParams() = %+v, erwartet %+v", got, tt.want)
			}
		})
	}
}

// TestResolveCompareModel testet die Namensaufloesung fuer den Vergleich
func TestResolveCompareModel(t *testing.T) {
	known := []string{
		"Qwen/Qwen2.5-7B-Instruct",
		"Qwen/Qwen2.5-14B-Instruct",
		"meta-llama/Llama-3.1-8B",
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"Exakte ID", "Qwen/Qwen2.5-7B-Instruct", "Qwen/Qwen2.5-7B-Instruct", false},
		{"Kurzname", "Llama-3.1-8B", "meta-llama/Llama-3.1-8B", false},
		{"Eindeutiger Teilstring", "llama", "meta-llama/Llama-3.1-8B", false},
		{"Mehrdeutig", "qwen", "", true},
		{"Unbekannt", "gemma", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveCompareModel(tt.input, known)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveCompareModel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveCompareModel(%q) = %q, erwartet %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestResolveCompareModelWithoutList testet den Durchgriff ohne Konfiguration
func TestResolveCompareModelWithoutList(t *testing.T) {
	got, err := resolveCompareModel("org/any-model", nil)
	if err != nil || got != "org/any-model" {
		t.Errorf("resolveCompareModel ohne Liste = %q, %v", got, err)
	}
}

// TestHandleImageValidation testet die Parametervalidierung vor dem Laden
func TestHandleImageValidation(t *testing.T) {
	h := NewHandlers(NewOrchestrator())
	report := func(float64) {}

	task := &api.Task{ID: "t1", Type: api.TaskTypeImage, Params: json.RawMessage(`{}`)}
	if _, err := h.HandleImage(context.Background(), task, report); err == nil {
		t.Error("HandleImage ohne Prompt sollte fehlschlagen")
	}

	task = &api.Task{ID: "t2", Type: api.TaskTypeImage, Params: json.RawMessage(`not json`)}
	if _, err := h.HandleImage(context.Background(), task, report); err == nil {
		t.Error("HandleImage mit kaputtem JSON sollte fehlschlagen")
	}

	task = &api.Task{ID: "t3", Type: api.TaskTypeImage2Image, Params: json.RawMessage(`{"prompt":"x"}`)}
	if _, err := h.HandleImage2Image(context.Background(), task, report); err == nil {
		t.Error("HandleImage2Image ohne Bild sollte fehlschlagen")
	}
}

// TestHandleImageGenerates testet den Erfolgs-Pfad mit Fake-Adapter
func TestHandleImageGenerates(t *testing.T) {
	gpu := &gpuSim{totalMB: 100000}
	fake := &fakeAdapter{gpu: gpu, sizes: map[string]uint64{"org/test-image": 4000}}
	o := NewOrchestrator()
	o.getGpuFn = gpu.status
	o.adapterFn = func(api.ModelType) (adapters.Adapter, error) { return fake, nil }

	// Der Handler holt den Adapter aus der globalen Registry
	adapters.Register(api.ModelTypeImage, fake)

	h := NewHandlers(o)
	var milestones []float64
	report := func(p float64) { milestones = append(milestones, p) }

	task := &api.Task{
		ID:     "t1",
		Type:   api.TaskTypeImage,
		Params: json.RawMessage(`{"prompt":"ein Leuchtturm","model":"org/test-image"}`),
	}
	result, err := h.HandleImage(context.Background(), task, report)
	if err != nil {
		t.Fatalf("HandleImage() error = %v", err)
	}
	if result == nil {
		t.Fatal("HandleImage() ohne Ergebnis")
	}
	if !o.IsLoaded("org/test-image") {
		t.Error("Model wurde nicht geladen")
	}

	want := []float64{10, 20, 80, 90}
	if len(milestones) != len(want) {
		t.Fatalf("Meilensteine = %v, erwartet %v", milestones, want)
	}
	for i := range want {
		if milestones[i] != want[i] {
			t.Errorf("Meilenstein %d = %v, erwartet %v", i, milestones[i], want[i])
		}
	}
}
