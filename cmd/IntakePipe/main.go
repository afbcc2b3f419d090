package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/IntakePipe/internal/api"
	"github.com/BTreeMap/IntakePipe/internal/catalog"
	"github.com/BTreeMap/IntakePipe/internal/console"
	"github.com/BTreeMap/IntakePipe/internal/extractor"
	"github.com/BTreeMap/IntakePipe/internal/flow"
	"github.com/BTreeMap/IntakePipe/internal/genai"
	"github.com/BTreeMap/IntakePipe/internal/geocode"
	"github.com/BTreeMap/IntakePipe/internal/metrics"
	"github.com/BTreeMap/IntakePipe/internal/store"
	"github.com/BTreeMap/IntakePipe/internal/util"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default configuration constants
const (
	// DefaultLogLevel is used when neither $INTAKE_LOG_LEVEL nor -log-level is set
	DefaultLogLevel = "info"
	// DefaultMaxCompletionTokens caps each extraction completion
	DefaultMaxCompletionTokens int64 = 1024
)

// ErrMissingOpenAIKey is returned at startup when no OpenAI credential is configured.
var ErrMissingOpenAIKey = errors.New("missing OpenAI API key: set OPENAI_API_KEY or -openai-api-key")

func main() {
	// Initialize structured logger; the level is adjusted once configuration is known
	level := initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}
	if err := setLogLevel(level, *flags.logLevel); err != nil {
		slog.Warn("Invalid log level, keeping default", "error", err, "default", DefaultLogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping IntakePipe", "mode", runMode(flags))
	if err := run(ctx, flags, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("IntakePipe failed to run", "error", err)
		stop()
		os.Exit(1)
	}
	slog.Info("IntakePipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	OpenAIKey               string
	OpenAIModel             string
	OpenAITemperature       string
	OpenAIMaxTokens         int64
	GoogleMapsKey           string
	ExtractTimeout          time.Duration
	GeocodeTimeout          time.Duration
	CatalogFile             string
	APIAddr                 string
	LogLevel                string
	SkipAddressVerification bool
}

// Flags holds command line flag values
type Flags struct {
	openaiKey      *string
	openaiModel    *string
	openaiTemp     *string
	openaiMaxToks  *int64
	googleMapsKey  *string
	extractTimeout *time.Duration
	geocodeTimeout *time.Duration
	catalogFile    *string
	apiAddr        *string
	logLevel       *string
	skipAddress    *bool
}

// initializeLogger sets up structured logging on stderr, leaving stdout to the console session
func initializeLogger() *slog.LevelVar {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return level
}

// setLogLevel applies a debug|info|warn|error level name
func setLogLevel(level *slog.LevelVar, name string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return fmt.Errorf("parse log level %q: %w", name, err)
	}
	level.Set(l)
	return nil
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		OpenAIKey:               util.StringEnv("OPENAI_API_KEY", ""),
		OpenAIModel:             util.StringEnv("OPENAI_MODEL", genai.DefaultModel),
		OpenAITemperature:       util.StringEnv("OPENAI_TEMPERATURE", ""),
		OpenAIMaxTokens:         util.ParseInt64Env("OPENAI_MAX_COMPLETION_TOKENS", DefaultMaxCompletionTokens),
		GoogleMapsKey:           util.StringEnv("GOOGLE_MAPS_API_KEY", ""),
		ExtractTimeout:          util.ParseDurationEnv("INTAKE_EXTRACT_TIMEOUT", flow.DefaultExtractTimeout),
		GeocodeTimeout:          util.ParseDurationEnv("INTAKE_GEOCODE_TIMEOUT", flow.DefaultVerifyTimeout),
		CatalogFile:             util.StringEnv("INTAKE_CATALOG_FILE", ""),
		APIAddr:                 util.StringEnv("API_ADDR", ""),
		LogLevel:                util.StringEnv("INTAKE_LOG_LEVEL", DefaultLogLevel),
		SkipAddressVerification: util.ParseBoolEnv("INTAKE_SKIP_ADDRESS_VERIFICATION", false),
	}

	slog.Debug("environment variables loaded",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"OPENAI_TEMPERATURE", config.OpenAITemperature,
		"OPENAI_MAX_COMPLETION_TOKENS", config.OpenAIMaxTokens,
		"GOOGLE_MAPS_API_KEY_SET", config.GoogleMapsKey != "",
		"INTAKE_EXTRACT_TIMEOUT", config.ExtractTimeout,
		"INTAKE_GEOCODE_TIMEOUT", config.GeocodeTimeout,
		"INTAKE_CATALOG_FILE", config.CatalogFile,
		"API_ADDR", config.APIAddr,
		"INTAKE_LOG_LEVEL", config.LogLevel,
		"INTAKE_SKIP_ADDRESS_VERIFICATION", config.SkipAddressVerification)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	flags := Flags{
		openaiKey:      fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:    fs.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		openaiTemp:     fs.String("openai-temperature", config.OpenAITemperature, "sampling temperature 0-2; empty uses the model default (overrides $OPENAI_TEMPERATURE)"),
		openaiMaxToks:  fs.Int64("openai-max-tokens", config.OpenAIMaxTokens, "max completion tokens per extraction; 0 for no cap (overrides $OPENAI_MAX_COMPLETION_TOKENS)"),
		googleMapsKey:  fs.String("google-maps-api-key", config.GoogleMapsKey, "Google Geocoding API key (overrides $GOOGLE_MAPS_API_KEY)"),
		extractTimeout: fs.Duration("extract-timeout", config.ExtractTimeout, "timeout per field extraction call (overrides $INTAKE_EXTRACT_TIMEOUT)"),
		geocodeTimeout: fs.Duration("geocode-timeout", config.GeocodeTimeout, "timeout per address verification call (overrides $INTAKE_GEOCODE_TIMEOUT)"),
		catalogFile:    fs.String("catalog", config.CatalogFile, "JSON file with providers and slots (overrides $INTAKE_CATALOG_FILE)"),
		apiAddr:        fs.String("api-addr", config.APIAddr, "serve the HTTP API on this address instead of the console (overrides $API_ADDR)"),
		logLevel:       fs.String("log-level", config.LogLevel, "log level: debug, info, warn, error (overrides $INTAKE_LOG_LEVEL)"),
		skipAddress:    fs.Bool("skip-address-verification", config.SkipAddressVerification, "accept complete addresses without calling Google (overrides $INTAKE_SKIP_ADDRESS_VERIFICATION)"),
	}

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	slog.Debug("flags parsed",
		"openaiKeySet", *flags.openaiKey != "",
		"openaiModel", *flags.openaiModel,
		"openaiTemperature", *flags.openaiTemp,
		"openaiMaxTokens", *flags.openaiMaxToks,
		"googleMapsKeySet", *flags.googleMapsKey != "",
		"extractTimeout", *flags.extractTimeout,
		"geocodeTimeout", *flags.geocodeTimeout,
		"catalogFile", *flags.catalogFile,
		"apiAddr", *flags.apiAddr,
		"logLevel", *flags.logLevel,
		"skipAddressVerification", *flags.skipAddress)

	return flags, nil
}

func runMode(flags Flags) string {
	if *flags.apiAddr != "" {
		return "api"
	}
	return "console"
}

// run wires the collaborators and serves either the HTTP API or one console session
func run(ctx context.Context, flags Flags, in io.Reader, out io.Writer) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine, err := buildEngine(flags, metrics.NewIntakeMetrics(reg))
	if err != nil {
		return err
	}

	if *flags.apiAddr != "" {
		srv, err := api.NewServer(engine, store.NewInMemoryStore(), api.WithGatherer(reg))
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		return srv.Run(ctx, *flags.apiAddr)
	}
	return console.Run(ctx, in, out, engine, flow.NewSession(uuid.NewString()))
}

// buildEngine constructs the step engine and its collaborators
func buildEngine(flags Flags, m *metrics.IntakeMetrics) (*flow.Engine, error) {
	ext, err := buildExtractor(flags)
	if err != nil {
		return nil, err
	}
	ver, err := buildVerifier(flags)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(*flags.catalogFile)
	if err != nil {
		return nil, err
	}
	return flow.NewEngine(ext, ver, cat,
		flow.WithExtractTimeout(*flags.extractTimeout),
		flow.WithVerifyTimeout(*flags.geocodeTimeout),
		flow.WithMetrics(m),
	)
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) ([]genai.Option, error) {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	if raw := strings.TrimSpace(*flags.openaiTemp); raw != "" {
		temp, err := strconv.ParseFloat(raw, 64)
		if err != nil || temp < 0 || temp > 2 {
			return nil, fmt.Errorf("invalid OpenAI temperature %q: want a number between 0 and 2", raw)
		}
		genaiOpts = append(genaiOpts, genai.WithTemperature(temp))
	}
	if *flags.openaiMaxToks < 0 {
		return nil, fmt.Errorf("invalid OpenAI max tokens %d", *flags.openaiMaxToks)
	}
	genaiOpts = append(genaiOpts, genai.WithMaxCompletionTokens(*flags.openaiMaxToks))
	return genaiOpts, nil
}

func buildExtractor(flags Flags) (extractor.Extractor, error) {
	if strings.TrimSpace(*flags.openaiKey) == "" {
		return nil, ErrMissingOpenAIKey
	}
	genaiOpts, err := buildGenAIOptions(flags)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return extractor.NewOpenAIExtractor(client)
}

// buildVerifier returns the Google verifier, or a pass-through one in development mode
func buildVerifier(flags Flags) (geocode.Verifier, error) {
	if *flags.skipAddress {
		slog.Warn("Address verification disabled; complete addresses are accepted as entered")
		return geocode.PassThrough{}, nil
	}
	ver, err := geocode.NewGoogleVerifier(geocode.WithAPIKey(*flags.googleMapsKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create address verifier: %w", err)
	}
	return ver, nil
}

// loadCatalog reads the slot catalog from path, or returns the seed catalog when path is empty
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		slog.Debug("No catalog file configured, using seed catalog")
		return catalog.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()
	cat, err := catalog.Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog file %s: %w", path, err)
	}
	slog.Info("Catalog loaded", "path", path, "providers", len(cat.Providers()), "slots", len(cat.Slots()))
	return cat, nil
}
