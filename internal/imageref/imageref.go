// Package imageref derives and validates fully qualified container image
// references of the form {registry}/{prefix}-{component}:{tag}.
package imageref

import (
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/vk/buildgridgo/internal/component"
)

// DefaultPrefix is the image name prefix used when the pipeline
// configuration does not override it.
const DefaultPrefix = "feast"

// Ref is a validated, tagged pointer to a container image.
type Ref struct {
	tag name.Tag
}

// New builds the primary reference for a component. The result is validated
// strictly so a malformed registry or tag fails before any external tool is
// invoked.
func New(registry, prefix string, c component.Component, tag string) (Ref, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	raw := fmt.Sprintf("%s/%s-%s:%s", registry, prefix, c, tag)
	parsed, err := name.NewTag(raw, name.StrictValidation)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid image reference %q: %w", raw, err)
	}
	return Ref{tag: parsed}, nil
}

// Parse validates an externally supplied reference string.
func Parse(raw string) (Ref, error) {
	parsed, err := name.NewTag(raw, name.StrictValidation)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid image reference %q: %w", raw, err)
	}
	return Ref{tag: parsed}, nil
}

// WithTag derives a second reference to the same repository under a new tag,
// used for the PR-alias push.
func (r Ref) WithTag(newTag string) (Ref, error) {
	raw := fmt.Sprintf("%s:%s", r.tag.Context().Name(), newTag)
	parsed, err := name.NewTag(raw, name.StrictValidation)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid alias tag %q: %w", newTag, err)
	}
	return Ref{tag: parsed}, nil
}

// String returns the full reference, e.g. "gcr.io/kf-feast/feast-core:abc123".
func (r Ref) String() string {
	return r.tag.String()
}

// Tag returns the tag portion of the reference.
func (r Ref) Tag() string {
	return r.tag.TagStr()
}

// Repository returns the registry-qualified repository without the tag.
func (r Ref) Repository() string {
	return r.tag.Context().Name()
}
