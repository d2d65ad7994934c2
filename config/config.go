package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Columns overrides the header heuristics used against the trade summary.
// Empty fields fall back to substring discovery.
type Columns struct {
	Symbol string `json:"symbol,omitempty"`
	Volume string `json:"volume,omitempty"`
	Name   string `json:"name,omitempty"`
}

type Config struct {
	ProjectDir   string `json:"project_dir"`
	DataDir      string `json:"data_dir"`
	DownloadsDir string `json:"downloads_dir"`
	AnalysisDir  string `json:"analysis_dir"`
	UploadDir    string `json:"upload_dir"`
	DBPath       string `json:"db_path"`

	StoreDriver string `json:"store_driver"`
	PostgresDSN string `json:"postgres_dsn,omitempty"`

	LLMProvider    string `json:"llm_provider"`
	ChatModel      string `json:"chat_model"`
	ExtractModel   string `json:"extract_model"`
	EmbeddingModel string `json:"embedding_model"`
	BackendURL     string `json:"backend_url"`
	MaxStep        int    `json:"max_step"`

	GoogleAPIKey   string `json:"google_api_key,omitempty"`
	DeepSeekAPIKey string `json:"deepseek_api_key,omitempty"`
	OpenAIAPIKey   string `json:"openai_api_key,omitempty"`

	// SSM prefix used to resolve API keys left empty in the environment.
	SSMParameterPrefix string `json:"ssm_parameter_prefix,omitempty"`

	SnapshotSource string   `json:"snapshot_source"`
	SnapshotCache  bool     `json:"snapshot_cache"`
	TradeSummaryN  int      `json:"trade_summary_top_n"`
	Columns        Columns  `json:"columns"`
	Headless       bool     `json:"headless"`
	TargetYears    []string `json:"target_years"`

	KBChunkSize    int `json:"kb_chunk_size"`
	KBChunkOverlap int `json:"kb_chunk_overlap"`
	KBTopK         int `json:"kb_top_k"`

	HTTPAddr string `json:"http_addr"`

	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
	LogFile     string `json:"log_file,omitempty"`
	Environment string `json:"environment"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()
	return cfg
}

// DefaultConfigWithRoot returns defaults with every path rooted at root.
// The environment is not consulted.
func DefaultConfigWithRoot(root string) *Config {
	dataDir := filepath.Join(root, "data")
	return &Config{
		ProjectDir:   root,
		DataDir:      dataDir,
		DownloadsDir: filepath.Join(root, "downloads"),
		AnalysisDir:  filepath.Join(root, "analysis_results"),
		UploadDir:    filepath.Join(root, "uploads"),
		DBPath:       filepath.Join(dataDir, "broker_agent.db"),

		StoreDriver: "sqlite",

		LLMProvider:    "gemini",
		ChatModel:      "gemini-2.5-flash",
		ExtractModel:   "gemini-2.5-flash",
		EmbeddingModel: "text-embedding-004",
		MaxStep:        12,

		SnapshotSource: "scraper",
		SnapshotCache:  false,
		TradeSummaryN:  50,
		Headless:       true,
		TargetYears:    []string{"2025", "2024"},

		KBChunkSize:    1000,
		KBChunkOverlap: 200,
		KBTopK:         4,

		HTTPAddr: ":8000",

		LogLevel:    "info",
		LogFormat:   "console",
		Environment: "dev",

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("BROKER_DATA_DIR"); val != "" {
		c.DataDir = val
		c.DBPath = filepath.Join(val, "broker_agent.db")
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		c.DBPath = val
	}
	if val := os.Getenv("DOWNLOADS_DIR"); val != "" {
		c.DownloadsDir = val
	}
	if val := os.Getenv("ANALYSIS_DIR"); val != "" {
		c.AnalysisDir = val
	}
	if val := os.Getenv("STORE_DRIVER"); val != "" {
		c.StoreDriver = strings.ToLower(val)
	}
	if val := os.Getenv("POSTGRES_DSN"); val != "" {
		c.PostgresDSN = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(val)
	}
	if val := os.Getenv("CHAT_MODEL"); val != "" {
		c.ChatModel = val
	}
	if val := os.Getenv("EXTRACT_MODEL"); val != "" {
		c.ExtractModel = val
	}
	if val := os.Getenv("EMBEDDING_MODEL"); val != "" {
		c.EmbeddingModel = val
	}
	if val := os.Getenv("OPENAI_BASE_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("MAX_STEP"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxStep = v
		}
	}

	if val := os.Getenv("GOOGLE_API_KEY"); val != "" {
		c.GoogleAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("SSM_PARAMETER_PREFIX"); val != "" {
		c.SSMParameterPrefix = val
	}

	if val := os.Getenv("SNAPSHOT_SOURCE"); val != "" {
		c.SnapshotSource = strings.ToLower(val)
	}
	if val := os.Getenv("SNAPSHOT_CACHE"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.SnapshotCache = enabled
		}
	}
	if val := os.Getenv("TRADE_SUMMARY_TOP_N"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.TradeSummaryN = v
		}
	}
	if val := os.Getenv("SYMBOL_COLUMN"); val != "" {
		c.Columns.Symbol = val
	}
	if val := os.Getenv("VOLUME_COLUMN"); val != "" {
		c.Columns.Volume = val
	}
	if val := os.Getenv("NAME_COLUMN"); val != "" {
		c.Columns.Name = val
	}
	if val := os.Getenv("HEADLESS"); val != "" {
		if headless, err := strconv.ParseBool(val); err == nil {
			c.Headless = headless
		}
	}
	if val := os.Getenv("TARGET_YEARS"); val != "" {
		c.TargetYears = splitList(val)
	}

	if val := os.Getenv("KB_CHUNK_SIZE"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.KBChunkSize = v
		}
	}
	if val := os.Getenv("KB_CHUNK_OVERLAP"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.KBChunkOverlap = v
		}
	}
	if val := os.Getenv("KB_TOP_K"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.KBTopK = v
		}
	}

	if val := os.Getenv("HTTP_ADDR"); val != "" {
		c.HTTPAddr = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.LogFormat = val
	}
	if val := os.Getenv("LOG_FILE"); val != "" {
		c.LogFile = val
	}
	if val := os.Getenv("APP_ENV"); val != "" {
		c.Environment = val
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TradeSummaryDir is where scraped trade summary CSVs are written.
func (c *Config) TradeSummaryDir() string {
	return filepath.Join(c.DownloadsDir, "tradesummary")
}

// ReportsDir is where quarterly report PDFs are written, one folder per symbol.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.DownloadsDir, "quartly_reports")
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.ProjectDir, c.DataDir, c.DownloadsDir, c.TradeSummaryDir(),
		c.ReportsDir(), c.AnalysisDir, c.UploadDir, filepath.Dir(c.DBPath),
	}
	if c.LogFile != "" {
		dirs = append(dirs, filepath.Dir(c.LogFile))
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

var (
	ErrMissingDataDir = errors.New("data_dir is required")
	ErrMissingAPIKey  = errors.New("api key for llm provider is required")
)

// Validate checks structural settings. API keys are only checked by
// ValidateCredentials since several commands run without a model.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return ErrMissingDataDir
	}
	switch c.StoreDriver {
	case "sqlite", "":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("store_driver postgres: postgres_dsn is required")
		}
	default:
		return fmt.Errorf("unsupported store_driver %q", c.StoreDriver)
	}
	switch c.LLMProvider {
	case "gemini", "openai", "deepseek":
	default:
		return fmt.Errorf("unsupported llm_provider %q", c.LLMProvider)
	}
	switch c.SnapshotSource {
	case "scraper", "api", "file":
	default:
		return fmt.Errorf("unsupported snapshot_source %q", c.SnapshotSource)
	}
	if c.TradeSummaryN <= 0 {
		return fmt.Errorf("trade_summary_top_n must be positive, got %d", c.TradeSummaryN)
	}
	if c.KBChunkOverlap >= c.KBChunkSize {
		return fmt.Errorf("kb_chunk_overlap %d must be smaller than kb_chunk_size %d", c.KBChunkOverlap, c.KBChunkSize)
	}
	return nil
}

// ValidateCredentials reports whether the selected chat provider has a key.
func (c Config) ValidateCredentials() error {
	var key string
	switch c.LLMProvider {
	case "gemini":
		key = c.GoogleAPIKey
	case "openai":
		key = c.OpenAIAPIKey
	case "deepseek":
		key = c.DeepSeekAPIKey
	}
	if key == "" {
		return fmt.Errorf("%s: %w", c.LLMProvider, ErrMissingAPIKey)
	}
	return nil
}
