package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/buildgridgo/internal/component"
	"github.com/vk/buildgridgo/internal/imageref"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads the pipeline definition from path, applies defaults and
	// validates it into the format-agnostic model.
	Load(ctx context.Context, path string) (*Model, error)
}

// Model is the unified, format-agnostic representation of one pipeline
// definition: where images go, where the dependency cache comes from, and
// how the external tools are invoked.
type Model struct {
	// Registry is the registry-qualified repository root, e.g. "gcr.io/kf-feast".
	Registry string
	// ImagePrefix is prepended to component names, e.g. "feast" yields
	// "feast-core". Defaults to imageref.DefaultPrefix.
	ImagePrefix string
	// CacheURI locates the prebuilt dependency cache archive. Schemes:
	// s3://, http://, https://, file://. Empty disables the fetch stage.
	CacheURI string
	// Components is the subset of the closed component set to build.
	// Defaults to the full set.
	Components []component.Component
	// Workers bounds the matrix worker pool. Defaults to the component count.
	Workers int

	// BuildTool runs build targets, e.g. "make".
	BuildTool string
	// ContainerTool tags and pushes images, e.g. "docker".
	ContainerTool string
	// AuthCommand authenticates ContainerTool to the registry once per run.
	AuthCommand []string

	// Cache carries object-store settings for s3:// cache URIs. Nil when
	// the cache is fetched over HTTP or from the filesystem.
	Cache *CacheStore
	// Lint configures the two static-check jobs.
	Lint Lint
}

// CacheStore holds S3-compatible object store connection settings.
type CacheStore struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Lint configures the tool container and targets for the lint jobs.
type Lint struct {
	// Image is the prebuilt tool container the lint targets run in.
	Image string
	// JavaTarget and PythonTarget are the build-file targets invoked
	// inside the container.
	JavaTarget   string
	PythonTarget string
	// InstallTarget installs python dependencies before PythonTarget runs.
	InstallTarget string
}

// Defaults applied by Finalize for attributes the source omitted.
const (
	DefaultBuildTool     = "make"
	DefaultContainerTool = "docker"
	DefaultJavaTarget    = "lint-java"
	DefaultPythonTarget  = "lint-python"
	DefaultInstallTarget = "install-python-ci-dependencies"
)

// DefaultAuthCommand returns the registry authentication command used when
// the source does not override it.
func DefaultAuthCommand() []string {
	return []string{"gcloud", "auth", "configure-docker", "--quiet"}
}

// Finalize applies defaults and validates the model. Loaders call it after
// decoding; tests constructing a Model by hand call it directly.
func (m *Model) Finalize() error {
	if m.Registry == "" {
		return errors.New("registry is a required pipeline attribute")
	}
	if m.ImagePrefix == "" {
		m.ImagePrefix = imageref.DefaultPrefix
	}
	if len(m.Components) == 0 {
		m.Components = component.All()
	}
	if m.Workers <= 0 {
		m.Workers = len(m.Components)
	}
	if m.BuildTool == "" {
		m.BuildTool = DefaultBuildTool
	}
	if m.ContainerTool == "" {
		m.ContainerTool = DefaultContainerTool
	}
	if len(m.AuthCommand) == 0 {
		m.AuthCommand = DefaultAuthCommand()
	}
	if m.Lint.Image == "" {
		return errors.New("lint.image is a required pipeline attribute")
	}
	if m.Lint.JavaTarget == "" {
		m.Lint.JavaTarget = DefaultJavaTarget
	}
	if m.Lint.PythonTarget == "" {
		m.Lint.PythonTarget = DefaultPythonTarget
	}
	if m.Lint.InstallTarget == "" {
		m.Lint.InstallTarget = DefaultInstallTarget
	}

	// Validate the registry by deriving a reference for the first component
	// with a placeholder tag; a bad registry should fail at load time, not
	// mid-run.
	if _, err := imageref.New(m.Registry, m.ImagePrefix, m.Components[0], "0"); err != nil {
		return fmt.Errorf("invalid registry %q: %w", m.Registry, err)
	}
	return nil
}
