package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/oshokin/inox-unpack/internal/browser"
	"github.com/oshokin/inox-unpack/internal/config"
	"github.com/oshokin/inox-unpack/internal/crx"
	"github.com/oshokin/inox-unpack/internal/logger"
	"github.com/oshokin/inox-unpack/internal/preset"
	"github.com/oshokin/inox-unpack/internal/repository/extension"
	"github.com/oshokin/inox-unpack/internal/webstore"
)

// temporaryDirectoryPattern names the per-run working directory.
const temporaryDirectoryPattern = "inox-unpack-"

// errNoExtension is returned when no extension argument is provided.
var errNoExtension = errors.New("extension ID or preset must be provided")

// Options are inputs accepted by the installer entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Target overrides the target base directory from settings.
	Target string
	// Extension is a store ID or a preset name.
	Extension string
	// Output receives progress and the install guide. Defaults to stdout.
	Output io.Writer
	// Detector finds running browsers. Defaults to the OS process table.
	Detector *browser.Detector
}

// runner holds the state of a single install.
type runner struct {
	cfg                *config.Config       // Settings loaded from YAML or defaults.
	presets            *preset.Table        // Built-in and user aliases.
	client             *webstore.Client     // Update endpoint client.
	repo               extension.Repository // Target directory.
	detector           *browser.Detector    // Running browser lookup.
	out                io.Writer            // Human-readable progress.
	temporaryDirectory string               // Download and extraction area.
}

// Run installs one extension and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) (err error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "inox-unpack")

	r, err := newRunner(opts)
	if err != nil {
		return err
	}

	defer func() {
		if cleanupErr := r.cleanup(ctx); cleanupErr != nil {
			err = appendError(err, cleanupErr)
		}
	}()

	return r.run(ctx, strings.TrimSpace(opts.Extension))
}

// newRunner loads settings and wires the collaborators.
func newRunner(opts *Options) (*runner, error) {
	if strings.TrimSpace(opts.Extension) == "" {
		return nil, errNoExtension
	}

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	target := cfg.TargetDir
	if opts.Target != "" {
		target = opts.Target
	}

	target, err = config.ExpandHome(target)
	if err != nil {
		return nil, err
	}

	r := &runner{
		cfg:      cfg,
		presets:  preset.New(cfg.Presets),
		client:   webstore.NewClient(cfg.UpdateURL, cfg.OS, cfg.ProductVersion, webstore.WithTimeout(cfg.Timeout)),
		repo:     extension.NewDirRepository(target),
		detector: opts.Detector,
		out:      opts.Output,
	}

	if r.detector == nil {
		r.detector = browser.NewDetector()
	}

	if r.out == nil {
		r.out = os.Stdout
	}

	return r, nil
}

// run walks resolve-id → ensure-target-dir → create-tempdir → download → unpack → replace-target → report.
func (r *runner) run(ctx context.Context, argument string) error {
	id := r.resolve(ctx, argument)

	if err := extension.ValidateID(id); err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "extension_id", id)

	logger.DebugKV(ctx, "Using update endpoint",
		"url", r.cfg.UpdateURL, "os", r.cfg.OS, "product_version", r.cfg.ProductVersion)

	if err := r.repo.Ensure(); err != nil {
		return err
	}

	temporaryDirectory, err := os.MkdirTemp("", temporaryDirectoryPattern)
	if err != nil {
		return fmt.Errorf("create temporary directory: %w", err)
	}

	r.temporaryDirectory = temporaryDirectory

	_, _ = fmt.Fprintf(r.out, "Downloading extension %s ...\n", id)

	packagePath, err := r.client.Download(ctx, id, temporaryDirectory)
	if err != nil {
		return fmt.Errorf("download extension %s: %w", id, err)
	}

	r.checkPackageID(ctx, id, packagePath)

	unpackedPath := filepath.Join(temporaryDirectory, id)

	name, err := crx.Unpack(ctx, packagePath, unpackedPath)
	if err != nil {
		return err
	}

	installedPath, err := r.repo.Replace(ctx, id, unpackedPath)
	if err != nil {
		return fmt.Errorf("install extension %s: %w", id, err)
	}

	logger.InfoKV(ctx, "Extension installed", "name", name, "path", installedPath)

	_, _ = fmt.Fprintf(r.out, "Unpacked %s to %s\n", name, installedPath)
	_, _ = fmt.Fprint(r.out, InstallGuide(installedPath))

	r.remindReload(ctx)

	return nil
}

// resolve maps a preset name to its ID or returns the argument unchanged.
func (r *runner) resolve(ctx context.Context, argument string) string {
	id := r.presets.Resolve(argument)

	switch {
	case id != argument:
		logger.InfoKV(ctx, "Resolved preset", "preset", argument, "extension_id", id)
	case !preset.LooksLikeID(id):
		logger.WarnKV(ctx, "Argument is neither a known preset nor a store ID, using it as is",
			"argument", argument)
	}

	return id
}

// checkPackageID warns when the package was signed for a different extension.
func (r *runner) checkPackageID(ctx context.Context, id, packagePath string) {
	header, err := crx.Inspect(packagePath)
	if err != nil {
		// Unpack reports the same problem with more context.
		return
	}

	if header.ID != "" && header.ID != id {
		logger.WarnKV(ctx, "Package was signed for a different extension ID",
			"requested", id, "package", header.ID)
	}
}

// remindReload tells the user to reload the extension if a browser is running.
func (r *runner) remindReload(ctx context.Context) {
	running, err := r.detector.Running()
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	if len(running) > 0 {
		logger.WarnKV(ctx, "A browser is running: reload the extension at chrome://extensions to pick up the new files",
			"browsers", strings.Join(running, ", "))
	}
}

// cleanup removes the temporary working directory.
func (r *runner) cleanup(ctx context.Context) error {
	if r.temporaryDirectory == "" {
		return nil
	}

	if err := os.RemoveAll(r.temporaryDirectory); err != nil {
		return fmt.Errorf("remove temporary directory: %w", err)
	}

	logger.DebugKV(ctx, "Removed temporary directory", "path", r.temporaryDirectory)

	return nil
}

// appendError combines a run error with a cleanup error into a single-line message.
func appendError(err, next error) error {
	combined := multierror.Append(err, next)
	combined.ErrorFormat = func(errs []error) string {
		messages := make([]string, 0, len(errs))
		for _, e := range errs {
			messages = append(messages, e.Error())
		}

		return strings.Join(messages, "; ")
	}

	return combined.ErrorOrNil()
}
