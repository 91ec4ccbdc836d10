// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud defines the application configuration, loaded from TOML files,
// and the long-lived clients for the hosted multimodal models.
//
// Structs:
//   - Application: Listener, upload and session settings.
//   - Telemetry: Log format and OpenTelemetry exporter selection.
//   - Sampling: ffmpeg/ffprobe locations and frame extraction parameters.
//   - Generator: Which agent model answers replica prompt requests.
//   - AgentModel: Provider, model name and generation settings of one model.
//   - PromptTemplates: The text/template sources sent to the model.
//   - Messages: User-facing texts (status lines, failure notice, copy confirmation).
//   - Config: The top-level struct that aggregates all other configuration structs.
package cloud

import "google.golang.org/genai"

// Model providers understood by NewCloudServiceClients.
const (
	ProviderGemini = "gemini" // Gemini API, authenticated with an API key.
	ProviderVertex = "vertex" // Vertex AI, authenticated with application default credentials.
	ProviderOpenAI = "openai" // Any OpenAI-compatible chat completion endpoint (OpenAI, Ollama, vLLM).
)

// DefaultSafetySettings lets every harm category through; the input is the
// user's own video and the output is a literal description of it.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Application holds general application settings.
type Application struct {
	Name              string `toml:"name"`                // The name of the application.
	GoogleProjectId   string `toml:"google_project_id"`   // The Google Cloud project ID (Vertex AI and trace export).
	GoogleLocation    string `toml:"location"`            // The Google Cloud location (Vertex AI).
	ListenAddress     string `toml:"listen_address"`      // Address the HTTP server binds, e.g. ":8080".
	UploadDir         string `toml:"upload_dir"`          // Parent of the per-session temp dirs; empty means os.TempDir().
	MaxUploadMB       int64  `toml:"max_upload_mb"`       // Largest accepted upload in megabytes.
	SessionTTLMinutes int    `toml:"session_ttl_minutes"` // Idle sessions older than this are evicted.
}

// Telemetry selects how logs, traces and metrics leave the process.
type Telemetry struct {
	Exporter  string `toml:"exporter"`   // "gcp" exports traces and metrics to Cloud Trace/Monitoring, "none" disables export.
	LogFormat string `toml:"log_format"` // "json" (Cloud Logging friendly) or "text" (colourised console).
	LogFile   string `toml:"log_file"`   // Optional file that receives a copy of every log line.
	LogLevel  string `toml:"log_level"`  // debug, info, warn or error.
}

// Sampling configures the frame sampler.
type Sampling struct {
	FFmpegPath       string `toml:"ffmpeg_path"`        // The ffmpeg binary, resolved through PATH when not absolute.
	FFprobePath      string `toml:"ffprobe_path"`       // The ffprobe binary.
	FrameCount       int    `toml:"frame_count"`        // Frames requested per run.
	MaxWidth         int    `toml:"max_width"`          // Frames wider than this are scaled down.
	JPEGQuality      int    `toml:"jpeg_quality"`       // ffmpeg -q:v value, 2 (best) to 31.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Upper bound for each ffmpeg/ffprobe invocation.
}

// Generator selects the agent model used for replica prompts.
type Generator struct {
	AgentModel string `toml:"agent_model"` // Key into Config.AgentModels.
}

// AgentModel represents the configuration for one hosted multimodal model.
type AgentModel struct {
	Provider           string  `toml:"provider"`            // gemini, vertex or openai.
	Model              string  `toml:"model"`               // The model name, e.g. "gemini-2.5-flash".
	BaseURL            string  `toml:"base_url"`            // Endpoint override for the openai provider.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the model.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter.
	TopP               float32 `toml:"top_p"`               // The top_p parameter.
	TopK               float32 `toml:"top_k"`               // The top_k parameter (ignored by openai).
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of output tokens.
	OutputFormat       string  `toml:"output_format"`       // The response MIME type, e.g. "application/json".
	RateLimit          int     `toml:"rate_limit"`          // Requests per second; 0 disables limiting.
}

// PromptTemplates holds the text/template sources for the model prompts.
type PromptTemplates struct {
	ReplicaPrompt string `toml:"replica"` // Rendered with .FRAME_COUNT, .TIMESTAMPS and .EXAMPLE_JSON.
}

// Messages holds the user-facing texts. The defaults are the Arabic texts of
// the original single-page UI.
type Messages struct {
	Title            string `toml:"title"`             // Page heading.
	Subtitle         string `toml:"subtitle"`          // Line under the heading.
	UploadHint       string `toml:"upload_hint"`       // Drop zone text while no file is selected.
	RunLabel         string `toml:"run_label"`         // Trigger button label.
	SamplingStatus   string `toml:"sampling_status"`   // Status while frames are being sampled.
	GeneratingStatus string `toml:"generating_status"` // Status while the model is being queried.
	FailureNotice    string `toml:"failure_notice"`    // The one generic notice shown for any pipeline failure.
	CopyLabel        string `toml:"copy_label"`        // Copy button label.
	CopyConfirmation string `toml:"copy_confirmation"` // Shown after a successful clipboard write.
	PromptHeading    string `toml:"prompt_heading"`    // Heading of the prompt panel.
	AnalysisHeading  string `toml:"analysis_heading"`  // Heading of the analysis panel.
	StyleTagsHeading string `toml:"style_tags_heading"`
}

// Config represents the overall configuration for the application, loaded from TOML files.
// It acts as the root container for all other configuration structs.
type Config struct {
	Application     Application           `toml:"application"`
	Telemetry       Telemetry             `toml:"telemetry"`
	Sampling        Sampling              `toml:"sampling"`
	Generator       Generator             `toml:"generator"`
	AgentModels     map[string]AgentModel `toml:"agent_models"` // Keyed by a logical name (e.g., "replica-flash").
	PromptTemplates PromptTemplates       `toml:"prompt_templates"`
	Messages        Messages              `toml:"messages"`
	Credentials     Credentials           `toml:"-"` // Read from the environment, never from files.
}

// NewConfig returns a Config populated with defaults. TOML files loaded on top
// of it only need to name the values they change.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with its map fields initialized.
func NewConfig() *Config {
	return &Config{
		Application: Application{
			Name:              "replica-prompt",
			GoogleLocation:    "us-central1",
			ListenAddress:     ":8080",
			MaxUploadMB:       512,
			SessionTTLMinutes: 60,
		},
		Telemetry: Telemetry{
			Exporter:  "none",
			LogFormat: "json",
			LogLevel:  "info",
		},
		Sampling: Sampling{
			FFmpegPath:       "ffmpeg",
			FFprobePath:      "ffprobe",
			FrameCount:       15,
			MaxWidth:         1024,
			JPEGQuality:      4,
			TimeoutInSeconds: 60,
		},
		AgentModels: make(map[string]AgentModel),
		Messages: Messages{
			Title:            "مُحلل الفيديو الفائق",
			Subtitle:         "استخراج برومبت يصف الأشخاص، الأشياء، والحركة كما هي تماماً",
			UploadHint:       "ارفع الفيديو للوصف التفصيلي",
			RunLabel:         "تحليل الشخصيات والأشياء",
			SamplingStatus:   "جاري تحليل محتوى الفيديو والعناصر بدقة...",
			GeneratingStatus: "جاري التعرف على الشخصيات والأشياء ووصفها بدقة (Pro Mode)...",
			FailureNotice:    "حدث خطأ أثناء التحليل الدقيق. يرجى المحاولة مرة أخرى.",
			CopyLabel:        "نسخ النص",
			CopyConfirmation: "تم نسخ النص بنجاح!",
			PromptHeading:    "برومبت المحاكاة (Replica Prompt)",
			AnalysisHeading:  "وصف الشخصيات والعناصر",
			StyleTagsHeading: "سمات النمط",
		},
	}
}

// ActiveAgentModel returns the agent model named by Generator.AgentModel.
func (c *Config) ActiveAgentModel() (AgentModel, bool) {
	m, ok := c.AgentModels[c.Generator.AgentModel]
	return m, ok
}
