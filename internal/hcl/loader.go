package hcl

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildgridgo/internal/component"
	"github.com/vk/buildgridgo/internal/config"
	"github.com/vk/buildgridgo/internal/ctxlog"
)

// Loader implements config.Loader for .hcl pipeline files.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileSchema is the top-level HCL layout of a pipeline file.
type fileSchema struct {
	Pipeline *pipelineSchema `hcl:"pipeline,block"`
}

type pipelineSchema struct {
	Registry      string   `hcl:"registry"`
	ImagePrefix   string   `hcl:"image_prefix,optional"`
	CacheURI      string   `hcl:"cache_uri,optional"`
	Components    []string `hcl:"components,optional"`
	Workers       int      `hcl:"workers,optional"`
	BuildTool     string   `hcl:"build_tool,optional"`
	ContainerTool string   `hcl:"container_tool,optional"`
	AuthCommand   []string `hcl:"auth_command,optional"`

	Cache *cacheSchema `hcl:"cache,block"`
	Lint  *lintSchema  `hcl:"lint,block"`
}

type cacheSchema struct {
	Endpoint  string `hcl:"endpoint"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`
	Region    string `hcl:"region,optional"`
	UseSSL    bool   `hcl:"use_ssl,optional"`
}

type lintSchema struct {
	Image         string `hcl:"image"`
	JavaTarget    string `hcl:"java_target,optional"`
	PythonTarget  string `hcl:"python_target,optional"`
	InstallTarget string `hcl:"install_target,optional"`
}

// Load implements config.Loader.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing pipeline file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	var raw fileSchema
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}
	if raw.Pipeline == nil {
		return nil, fmt.Errorf("%s: missing required 'pipeline' block", path)
	}

	model, err := translate(raw.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline file %s: %w", path, err)
	}

	logger.Debug("Pipeline file loaded and translated into unified model.",
		"registry", model.Registry, "components", len(model.Components))
	return model, nil
}

// translate converts the HCL-specific schema into the agnostic model.
func translate(p *pipelineSchema) (*config.Model, error) {
	components, err := component.ParseSet(p.Components)
	if err != nil {
		return nil, err
	}

	m := &config.Model{
		Registry:      p.Registry,
		ImagePrefix:   p.ImagePrefix,
		CacheURI:      p.CacheURI,
		Components:    components,
		Workers:       p.Workers,
		BuildTool:     p.BuildTool,
		ContainerTool: p.ContainerTool,
		AuthCommand:   p.AuthCommand,
	}
	if p.Cache != nil {
		m.Cache = &config.CacheStore{
			Endpoint:  p.Cache.Endpoint,
			AccessKey: p.Cache.AccessKey,
			SecretKey: p.Cache.SecretKey,
			Region:    p.Cache.Region,
			UseSSL:    p.Cache.UseSSL,
		}
	}
	if p.Lint != nil {
		m.Lint = config.Lint{
			Image:         p.Lint.Image,
			JavaTarget:    p.Lint.JavaTarget,
			PythonTarget:  p.Lint.PythonTarget,
			InstallTarget: p.Lint.InstallTarget,
		}
	}

	if err := m.Finalize(); err != nil {
		return nil, err
	}
	return m, nil
}

// evalContext exposes the process environment to pipeline expressions as an
// `env` object, so secrets and endpoints need not be hardcoded in the file.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
	}
}
