package promoter

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/oshokin/nuget-promoter/internal/config"
	"github.com/oshokin/nuget-promoter/internal/domain/nupkg"
	"github.com/oshokin/nuget-promoter/internal/logger"
	"github.com/oshokin/nuget-promoter/internal/repository/archive"
	"github.com/oshokin/nuget-promoter/internal/service/manifest"
	"github.com/oshokin/nuget-promoter/internal/service/patcher"
)

// Options contains inputs for the promoter entry point.
type Options struct {
	// PackagePath is the prerelease package to promote. Required.
	PackagePath string
	// OutputDir overrides the configured output directory.
	OutputDir string
	// PrereleaseTag, when set, is appended to the release version of the new package.
	// Executables always receive the plain major.minor.patch version.
	PrereleaseTag string
	// ConfigPath is an optional settings file (defaults to nuget-promoter-settings.yaml).
	ConfigPath string
	// LogLevel overrides the configured log level.
	LogLevel string

	// Locator and Runner replace the resource editor lookup and execution; nil keeps the defaults.
	Locator patcher.Locator
	Runner  patcher.Runner
}

// Result describes a completed promotion.
type Result struct {
	// PackageID is the id of the promoted package.
	PackageID string
	// Version is the version written into the new package.
	Version string
	// OutputPath is where the new package was written.
	OutputPath string
	// Patched lists the executables whose version resource was updated.
	Patched []string
	// Checksum is the SHA-512 of the written archive.
	Checksum []byte
}

// promoter runs a single promotion with resolved settings.
// It is unexported; callers go through Run.
type promoter struct {
	// cfg holds the effective settings.
	cfg *config.Config
	// patcher stamps versions into executables.
	patcher *patcher.Patcher
	// writer serializes the new archive.
	writer *archive.Writer
}

// Run executes the promotion workflow.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "nuget-promoter")

	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if err = applyOverrides(cfg, opts); err != nil {
		return nil, err
	}

	result, err := newPromoter(cfg, opts).promote(ctx, opts.PackagePath, opts.PrereleaseTag)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// validateOptions rejects missing or malformed inputs before any work starts.
func validateOptions(opts *Options) error {
	if opts == nil || strings.TrimSpace(opts.PackagePath) == "" {
		return fmt.Errorf("package path is required: %w", nupkg.ErrInvalidArguments)
	}

	if _, err := nupkg.ApplyPrerelease("0.0.0", opts.PrereleaseTag); err != nil {
		return err
	}

	return nil
}

// applyOverrides merges command line values into the loaded settings.
func applyOverrides(cfg *config.Config, opts *Options) error {
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	// Validate guarantees the level parses.
	level, _ := logger.ParseLogLevel(cfg.LogLevel)
	logger.SetLevel(level)

	return nil
}

func newPromoter(cfg *config.Config, opts *Options) *promoter {
	return &promoter{
		cfg: cfg,
		patcher: patcher.New(cfg.ToolName,
			patcher.WithLocator(opts.Locator),
			patcher.WithRunner(opts.Runner),
			patcher.WithTimeout(cfg.ToolTimeout),
			patcher.WithExtension(cfg.ExecutableExtension),
			patcher.WithJobs(cfg.Jobs),
		),
		writer: archive.NewWriter(cfg.DescriptorExtension),
	}
}

// promote runs every stage in order and stops at the first failure.
func (p *promoter) promote(ctx context.Context, packagePath, tag string) (*Result, error) {
	reader, err := archive.Open(packagePath, p.cfg.DescriptorExtension)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}

	pkg := reader.Package()
	ctx = logger.WithKV(ctx, "package", pkg.ID)

	logger.Infof(ctx, "Package Id: %s", pkg.ID)

	workDir, release, err := archive.AcquireWorkDir(ctx, p.cfg.WorkDirPrefix)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	defer release()

	if err = p.extract(ctx, reader, workDir); err != nil {
		return nil, err
	}

	version, err := nupkg.ResolveVersion(pkg.RawVersion)
	if err != nil {
		return nil, fmt.Errorf("resolve version of %s: %w", pkg.ID, err)
	}

	packageVersion, err := nupkg.ApplyPrerelease(version, tag)
	if err != nil {
		return nil, err
	}

	logger.Infof(ctx, "The new version of the package will be %s", packageVersion)

	patched, err := p.patcher.PatchAll(ctx, workDir, version)
	if err != nil {
		return nil, fmt.Errorf("patch executables: %w", err)
	}

	metadata, files, err := manifest.Build(&pkg, packageVersion, workDir, p.cfg.DescriptorExtension)
	if err != nil {
		return nil, fmt.Errorf("build manifest: %w", err)
	}

	logger.Debugf(ctx, "Manifest lists %d files", len(files))

	outputDir, err := p.outputDir()
	if err != nil {
		return nil, err
	}

	outputPath := nupkg.OutputFileName(outputDir, pkg.ID, packageVersion, p.cfg.PackageExtension)
	logger.Infof(ctx, "Saving new file to %s", outputPath)

	checksum, err := p.writer.Write(ctx, metadata, files, outputPath)
	if err != nil {
		return nil, fmt.Errorf("write package: %w", err)
	}

	logger.InfoKV(ctx, "Successfully promoted package",
		"files", len(files),
		"sha512", base64.StdEncoding.EncodeToString(checksum))

	return &Result{
		PackageID:  pkg.ID,
		Version:    packageVersion,
		OutputPath: outputPath,
		Patched:    patched,
		Checksum:   checksum,
	}, nil
}

// extract unpacks the archive and releases its handle before the next stage.
func (p *promoter) extract(ctx context.Context, reader *archive.Reader, workDir string) error {
	extractErr := reader.Extract(ctx, workDir)
	closeErr := reader.Close()

	if extractErr != nil {
		return fmt.Errorf("extract package: %w", extractErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close package: %w: %w", nupkg.ErrIO, closeErr)
	}

	logger.Infof(ctx, "Extracted to %s", workDir)

	return nil
}

// outputDir returns the configured output directory or the working directory.
func (p *promoter) outputDir() (string, error) {
	if p.cfg.OutputDir != "" {
		return p.cfg.OutputDir, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w: %w", nupkg.ErrIO, err)
	}

	return wd, nil
}
