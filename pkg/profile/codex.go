package profile

import "github.com/agenttap/agenttap/pkg/render"

// The codex target: OpenAI Responses API plus the ChatGPT backend channel.
func init() {
	Register("codex", Target{
		Capture: CaptureProfile{
			Name: "codex",
			Proxies: []ProxyConfig{
				{ListenPort: 8080, UpstreamURL: "https://api.openai.com/", Purpose: "Model API (API key mode)"},
				{ListenPort: 8081, UpstreamURL: "https://chatgpt.com/", Purpose: "Backend channels"},
			},
			EnvOverrides: map[string]string{
				"OPENAI_BASE_URL": "http://127.0.0.1:8080/v1",
			},
			ManualSteps: []string{
				`Add to ~/.codex/config.toml: chatgpt_base_url = "http://127.0.0.1:8081/backend-api/"`,
			},
			OutputDir: "tmp/codex-traffic",
		},
		Analysis: AnalysisProfile{
			Name:            "codex",
			ReportTitle:     "Codex Traffic Analysis Report",
			Renderer:        render.OpenAIResponses{},
			RedactedHeaders: RedactionSet("authorization", "cookie", "set-cookie", "openai-organization"),
		},
	})
}
