// estimate_test.go - Unit Tests fuer die Speicherschaetzung der Adapter
package adapters

import "testing"

// TestEstimateLLMMemory testet die Schaetzung ueber die Parameteranzahl
func TestEstimateLLMMemory(t *testing.T) {
	tests := []struct {
		name    string
		modelID string
		want    uint64
	}{
		{"7B Standard", "meta-llama/Llama-2-7b-chat-hf", 14_000},
		{"Qwen 0.5B", "Qwen/Qwen2.5-0.5B-Instruct", 1_500},
		{"14B", "Qwen/Qwen2.5-14B-Instruct", 28_000},
		{"32B", "Qwen/QwQ-32B", 64_000},
		{"70B", "meta-llama/Meta-Llama-3-70B", 140_000},
		{"72B", "Qwen/Qwen2-72B-Instruct", 144_000},
		{"Grossbuchstaben", "mistralai/Mistral-7B-v0.1", 14_000},
		{"Dezimalzahl rundet auf Nachbarn", "tiiuae/falcon-7.5b", 14_000},
		{"Keine Angabe faellt auf Default", "org/mystery-model", defaultLLMEstimate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateLLMMemory(tt.modelID); got != tt.want {
				t.Errorf("estimateLLMMemory(%q) = %d, erwartet %d", tt.modelID, got, tt.want)
			}
		})
	}
}

// TestEstimateImageMemory testet die Architektur-Erkennung fuer Diffusionsmodelle
func TestEstimateImageMemory(t *testing.T) {
	tests := []struct {
		name    string
		modelID string
		want    uint64
	}{
		{"SDXL", "stabilityai/stable-diffusion-xl-refiner-1.0", 7_000},
		{"SD 2.1", "stabilityai/stable-diffusion-2-1", 5_000},
		{"SD 1.5", "runwayml/stable-diffusion-v1-5", 4_000},
		{"Z-Image", "Tongyi-MAI/Z-Image-Turbo", 14_000},
		{"Flux", "black-forest-labs/FLUX.1-dev", 16_000},
		{"Unbekannt faellt auf Default", "org/some-diffusion", defaultImageEstimate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateImageMemory(tt.modelID); got != tt.want {
				t.Errorf("estimateImageMemory(%q) = %d, erwartet %d", tt.modelID, got, tt.want)
			}
		})
	}
}

// TestDetectVideoFamily testet die Familien-Erkennung fuer Video-Modelle
func TestDetectVideoFamily(t *testing.T) {
	tests := []struct {
		name    string
		modelID string
		want    VideoFamily
	}{
		{"CogVideoX", "THUDM/CogVideoX-5b", VideoFamilyCogVideoX},
		{"Hunyuan", "tencent/HunyuanVideo", VideoFamilyHunyuan},
		{"Wan", "Wan-AI/Wan2.1-T2V-14B", VideoFamilyWan},
		{"Rapid-Destillat hat Vorrang vor wan", "FX-FeiHou/wan2.2-Remix-rapid", VideoFamilyWanRapid},
		{"Phr00t", "Phr00t/WAN2.2-14B-Rapid-AllInOne", VideoFamilyWanRapid},
		{"LTX", "Lightricks/LTX-Video", VideoFamilyLTX},
		{"Unbekannt", "org/new-video-model", VideoFamilyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectVideoFamily(tt.modelID); got != tt.want {
				t.Errorf("DetectVideoFamily(%q) = %s, erwartet %s", tt.modelID, got, tt.want)
			}
		})
	}
}

// TestVideoFamilyDefaults testet Schaetzung und Framerate pro Familie
func TestVideoFamilyDefaults(t *testing.T) {
	a := NewVideoAdapter()

	if got := a.Estimate("tencent/HunyuanVideo"); got != 60_000 {
		t.Errorf("Estimate(hunyuan) = %d, erwartet 60000", got)
	}
	if got := a.Estimate("org/unknown"); got != 24_000 {
		t.Errorf("Estimate(unknown) = %d, erwartet 24000", got)
	}

	if got := FPSForFamily(VideoFamilyCogVideoX); got != 8 {
		t.Errorf("FPSForFamily(cogvideox) = %d, erwartet 8", got)
	}
	if got := FPSForFamily(VideoFamilyWanRapid); got != 24 {
		t.Errorf("FPSForFamily(wan_rapid) = %d, erwartet 24", got)
	}
	if got := FPSForFamily(VideoFamily("nope")); got != 24 {
		t.Errorf("FPSForFamily(nope) = %d, erwartet Default 24", got)
	}
}
