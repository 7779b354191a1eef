package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"photoalbum/internal/logging"
	"photoalbum/internal/memory"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Configuration keys. Each is read from the environment variable of the
// same name or from the config file.
const (
	KeyMediaDir          = "MEDIA_DIR"
	KeyCacheDir          = "CACHE_DIR"
	KeyPort              = "PORT"
	KeyThumbnailSize     = "THUMBNAIL_SIZE"
	KeyScreenWidth       = "SCREEN_WIDTH"
	KeyScreenHeight      = "SCREEN_HEIGHT"
	KeyCacheScreens      = "THUMBNAIL_CACHE_SCREENS"
	KeyThumbnailWorkers  = "THUMBNAIL_WORKERS"
	KeyJobWorkers        = "JOB_WORKERS"
	KeyFFmpegPath        = "FFMPEG_PATH"
	KeyFFprobePath       = "FFPROBE_PATH"
	KeyVideoTimeout      = "VIDEO_TIMEOUT"
	KeyVideoScanSchedule = "VIDEO_SCAN_SCHEDULE"
	KeyPersistThumbnails = "PERSIST_THUMBNAILS"
	KeyBuildThumbnails   = "BUILD_THUMBNAILS"
	KeyWatchMedia        = "WATCH_MEDIA"
	KeyMetricsEnabled    = "METRICS_ENABLED"
	KeyLogHealthChecks   = "LOG_HEALTH_CHECKS"

	// ConfigFileEnv names an explicit config file.
	ConfigFileEnv = "PHOTOALBUM_CONFIG"
)

var defaults = map[string]any{
	KeyMediaDir:          "/media",
	KeyCacheDir:          "/cache",
	KeyPort:              "8080",
	KeyThumbnailSize:     256,
	KeyScreenWidth:       1920,
	KeyScreenHeight:      1080,
	KeyCacheScreens:      3,
	KeyThumbnailWorkers:  0,
	KeyJobWorkers:        0,
	KeyFFmpegPath:        "ffmpeg",
	KeyFFprobePath:       "ffprobe",
	KeyVideoTimeout:      "30s",
	KeyVideoScanSchedule: "@every 6h",
	KeyPersistThumbnails: true,
	KeyBuildThumbnails:   false,
	KeyWatchMedia:        true,
	KeyMetricsEnabled:    true,
	KeyLogHealthChecks:   true,
}

// Config holds all application configuration
type Config struct {
	MediaDir          string
	CacheDir          string
	Port              string
	ThumbnailSize     int
	ScreenWidth       int
	ScreenHeight      int
	CacheScreens      int
	ThumbnailWorkers  int // 0 = derived from GOMAXPROCS
	JobWorkers        int // 0 = derived from GOMAXPROCS
	FFmpegPath        string
	FFprobePath       string
	VideoTimeout      time.Duration
	VideoScanSchedule string // cron spec, empty disables
	BuildThumbnails   bool   // pre-generate image thumbnails after each scan
	WatchMedia        bool   // follow the media directory with fsnotify
	MetricsEnabled    bool
	LogHealthChecks   bool

	// ConfigFile is the file values were read from, if any.
	ConfigFile string

	// Derived paths
	DatabasePath string
	VideoDir     string

	// Feature flags based on directory availability
	PersistThumbnails bool
}

// LoadConfig loads configuration from the environment and an optional
// photoalbum.yaml, validates it and prepares directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	v, err := newViper(os.Getenv(ConfigFileEnv))
	if err != nil {
		return nil, err
	}
	return loadConfig(v)
}

// newViper builds the configuration source. Environment variables win over
// the config file, which wins over defaults. A variable set to the empty
// string counts as set, so VIDEO_SCAN_SCHEDULE= disables scans.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("photoalbum")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/photoalbum")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func loadConfig(v *viper.Viper) (*Config, error) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg := &Config{
		MediaDir:          v.GetString(KeyMediaDir),
		CacheDir:          v.GetString(KeyCacheDir),
		Port:              v.GetString(KeyPort),
		ThumbnailSize:     positiveInt(v, KeyThumbnailSize),
		ScreenWidth:       positiveInt(v, KeyScreenWidth),
		ScreenHeight:      positiveInt(v, KeyScreenHeight),
		CacheScreens:      positiveInt(v, KeyCacheScreens),
		ThumbnailWorkers:  nonNegativeInt(v, KeyThumbnailWorkers),
		JobWorkers:        nonNegativeInt(v, KeyJobWorkers),
		FFmpegPath:        v.GetString(KeyFFmpegPath),
		FFprobePath:       v.GetString(KeyFFprobePath),
		VideoScanSchedule: strings.TrimSpace(v.GetString(KeyVideoScanSchedule)),
		BuildThumbnails:   v.GetBool(KeyBuildThumbnails),
		WatchMedia:        v.GetBool(KeyWatchMedia),
		MetricsEnabled:    v.GetBool(KeyMetricsEnabled),
		LogHealthChecks:   v.GetBool(KeyLogHealthChecks),
		ConfigFile:        v.ConfigFileUsed(),
	}
	persist := v.GetBool(KeyPersistThumbnails)

	timeoutStr := v.GetString(KeyVideoTimeout)
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil || timeout <= 0 {
		logging.Warn("  Invalid %s %q, using default: 30s", KeyVideoTimeout, timeoutStr)
		timeout = 30 * time.Second
	}
	cfg.VideoTimeout = timeout

	if cfg.ConfigFile != "" {
		logging.Info("  Config file:              %s", cfg.ConfigFile)
	}
	logging.Info("  MEDIA_DIR:                %s", cfg.MediaDir)
	logging.Info("  CACHE_DIR:                %s", cfg.CacheDir)
	logging.Info("  PORT:                     %s", cfg.Port)
	logging.Info("  THUMBNAIL_SIZE:           %d", cfg.ThumbnailSize)
	logging.Info("  SCREEN_WIDTH x HEIGHT:    %dx%d", cfg.ScreenWidth, cfg.ScreenHeight)
	logging.Info("  THUMBNAIL_CACHE_SCREENS:  %d", cfg.CacheScreens)
	logging.Info("  THUMBNAIL_WORKERS:        %s", workersString(cfg.ThumbnailWorkers))
	logging.Info("  JOB_WORKERS:              %s", workersString(cfg.JobWorkers))
	logging.Info("  FFMPEG_PATH:              %s", cfg.FFmpegPath)
	logging.Info("  FFPROBE_PATH:             %s", cfg.FFprobePath)
	logging.Info("  VIDEO_TIMEOUT:            %v", cfg.VideoTimeout)
	logging.Info("  VIDEO_SCAN_SCHEDULE:      %s", scheduleString(cfg.VideoScanSchedule))
	logging.Info("  PERSIST_THUMBNAILS:       %v", persist)
	logging.Info("  BUILD_THUMBNAILS:         %v", cfg.BuildThumbnails)
	logging.Info("  WATCH_MEDIA:              %v", cfg.WatchMedia)
	logging.Info("  METRICS_ENABLED:          %v", cfg.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:        %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:                %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	cfg.MediaDir, err = filepath.Abs(cfg.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	logging.Info("  Media directory (absolute): %s", cfg.MediaDir)

	cfg.CacheDir, err = filepath.Abs(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", cfg.CacheDir)

	// Media directory problems are not fatal, the first scan reports them.
	if err := ensureDirectory(cfg.MediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	// The cache directory holds extracted video frames and is required.
	if err := ensureDirectory(cfg.CacheDir, "cache"); err != nil {
		return nil, fmt.Errorf("cache directory error: %w", err)
	}
	if err := testWriteAccess(cfg.CacheDir); err != nil {
		return nil, fmt.Errorf("cache directory is not writable: %w", err)
	}
	logging.Info("  [OK] Cache directory is writable")

	cfg.DatabasePath = filepath.Join(cfg.CacheDir, "thumbnails.db")
	cfg.VideoDir = cfg.CacheDir
	cfg.PersistThumbnails = persist && setupOptionalDir(filepath.Dir(cfg.DatabasePath), "thumbnail store")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Persistent thumbnails: %s", enabledString(cfg.PersistThumbnails))
	logging.Info("    Video scans:           %s", enabledString(cfg.VideoScanSchedule != ""))
	logging.Info("    Metrics:               %s", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

func positiveInt(v *viper.Viper, key string) int {
	n := v.GetInt(key)
	if n <= 0 {
		def, _ := defaults[key].(int)
		logging.Warn("  Invalid %s %q, using default: %d", key, v.GetString(key), def)
		return def
	}
	return n
}

func nonNegativeInt(v *viper.Viper, key string) int {
	n := v.GetInt(key)
	if n < 0 {
		logging.Warn("  Invalid %s %d, using automatic sizing", key, n)
		return 0
	}
	return n
}

func workersString(n int) string {
	if n == 0 {
		return "auto"
	}
	return fmt.Sprintf("%d", n)
}

func scheduleString(spec string) string {
	if spec == "" {
		return "DISABLED"
	}
	return spec
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv.
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if !result.Configured {
		logging.Info("  No memory limit configured (set MEMORY_LIMIT or GOMEMLIMIT)")
		return
	}
	logging.Info("  Source:          %s", result.Source)
	if result.ContainerLimit > 0 {
		logging.Info("  Container limit: %s", FormatBytes(result.ContainerLimit))
		logging.Info("  Ratio:           %.2f", result.Ratio)
	}
	logging.Info("  GOMEMLIMIT:      %s", FormatBytes(result.GoMemLimit))
}

// LogThumbnailStoreInit logs thumbnail store initialization
func LogThumbnailStoreInit(duration time.Duration, entries int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("THUMBNAIL STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Thumbnail store opened in %v (%d thumbnails)", duration, entries)
}

// LogPipelineInit logs the image loading pipeline setup.
func LogPipelineInit(decodeWorkers int, cacheBudget int64, vips bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("IMAGE PIPELINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Decode workers:  %d", decodeWorkers)
	logging.Info("  Cache budget:    %s", FormatBytes(cacheBudget))
	logging.Info("  Decoder:         %s", map[bool]string{true: "libvips + imaging", false: "imaging"}[vips])
}

// LogVideoInit logs video extractor availability.
func LogVideoInit(available bool, jobWorkers int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("VIDEO THUMBNAILS")
	logging.Info("------------------------------------------------------------")
	if !available {
		logging.Warn("  ffmpeg/ffprobe not found")
		logging.Warn("  Video thumbnail requests will be dropped")
		return
	}
	logging.Info("  [OK] ffmpeg and ffprobe are available")
	logging.Info("  Background job workers: %d", jobWorkers)
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(mediaDir, schedule string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Media directory: %s", mediaDir)
	logging.Info("  Video scans:     %s", scheduleString(schedule))
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Status:        http://localhost:%s/api/status", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func printBanner() {
	banner := `
------------------------------------------------------------
         __          __        ____         
    ____/ /_  ____  / /_____  / __ \ ____ _ 
   / __  / / / __ \/ __/ __ \/ /_/ // __ '/ 
  / /_/ / / / /_/ / /_/ /_/ / __  // /_/ /  
 / .___/_/ /\____/\__/\____/_/ /_/ \__,_/   
/_/     /_/   photoalbum

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
