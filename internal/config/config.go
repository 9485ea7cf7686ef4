package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/nuget-promoter/internal/domain/nupkg"
	"github.com/oshokin/nuget-promoter/internal/logger"
)

// Config holds the tunables of a promotion run.
type Config struct {
	// ToolName is the conventional name of the resource editor.
	ToolName string `yaml:"tool_name"`
	// ToolTimeout bounds each resource editor invocation.
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	// ExecutableExtension selects the files handed to the resource editor.
	ExecutableExtension string `yaml:"executable_extension"`
	// DescriptorExtension identifies the manifest descriptor inside an archive.
	DescriptorExtension string `yaml:"descriptor_extension"`
	// PackageExtension is appended to the output file name.
	PackageExtension string `yaml:"package_extension"`
	// OutputDir is where the promoted package is written; empty means the working directory.
	OutputDir string `yaml:"output_dir"`
	// Jobs is the number of executables patched concurrently.
	Jobs int `yaml:"jobs"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// WorkDirPrefix names the per-run extraction directories under the system temp dir.
	WorkDirPrefix string `yaml:"work_dir_prefix"`
}

const (
	// DefaultConfigFilename is the default filename for promoter settings.
	DefaultConfigFilename = "nuget-promoter-settings.yaml"

	// DefaultToolTimeout is how long a single resource editor invocation may run.
	DefaultToolTimeout = 10 * time.Second

	// DefaultExecutableExtension selects Windows executables inside packages.
	DefaultExecutableExtension = ".exe"

	// DefaultJobs patches executables one at a time.
	DefaultJobs = 1

	// DefaultLogLevel is used when neither the file nor the flags set a level.
	DefaultLogLevel = "info"

	// DefaultWorkDirPrefix names extraction directories.
	DefaultWorkDirPrefix = "nuget-promoter-"

	// DefaultFilePermissions is the default file permission for settings files.
	DefaultFilePermissions os.FileMode = 0o600

	// baseToolName is the resource editor name without a platform extension.
	baseToolName = "rcedit"
)

var (
	// errConfigIsNotSet is returned when a nil config is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadExtension is returned when an extension setting does not start with a dot.
	errBadExtension = errors.New("extension must start with a dot")
)

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		ToolName:            DefaultToolName(),
		ToolTimeout:         DefaultToolTimeout,
		ExecutableExtension: DefaultExecutableExtension,
		DescriptorExtension: nupkg.DescriptorExtension,
		PackageExtension:    nupkg.PackageExtension,
		Jobs:                DefaultJobs,
		LogLevel:            DefaultLogLevel,
		WorkDirPrefix:       DefaultWorkDirPrefix,
	}
}

// DefaultToolName returns the resource editor name for the current platform.
func DefaultToolName() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return baseToolName + ".exe"
	}

	return baseToolName
}

// Load reads settings from the provided path. A missing file yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w: %w", nupkg.ErrInvalidArguments, err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults for unset fields and rejects malformed values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	cfg.ToolName = strings.TrimSpace(cfg.ToolName)
	if cfg.ToolName == "" {
		cfg.ToolName = DefaultToolName()
	}

	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}

	if cfg.ExecutableExtension == "" {
		cfg.ExecutableExtension = DefaultExecutableExtension
	}

	if cfg.DescriptorExtension == "" {
		cfg.DescriptorExtension = nupkg.DescriptorExtension
	}

	if cfg.PackageExtension == "" {
		cfg.PackageExtension = nupkg.PackageExtension
	}

	for name, ext := range map[string]string{
		"executable_extension": cfg.ExecutableExtension,
		"descriptor_extension": cfg.DescriptorExtension,
		"package_extension":    cfg.PackageExtension,
	} {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("%s %q: %w: %w", name, ext, nupkg.ErrInvalidArguments, errBadExtension)
		}
	}

	if cfg.Jobs <= 0 {
		cfg.Jobs = DefaultJobs
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("log level %q: %w", cfg.LogLevel, nupkg.ErrInvalidArguments)
	}

	if cfg.WorkDirPrefix == "" {
		cfg.WorkDirPrefix = DefaultWorkDirPrefix
	}

	if strings.ContainsAny(cfg.WorkDirPrefix, `/\`) {
		return fmt.Errorf("work dir prefix %q: %w", cfg.WorkDirPrefix, nupkg.ErrInvalidArguments)
	}

	return nil
}
