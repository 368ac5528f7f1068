package event

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// filePayload is the on-disk shape of an event file. Two layouts are
// accepted: the flat native form and the GitHub webhook form (`after` plus
// `pull_request.head.sha`). YAML is a superset of JSON, so raw webhook
// payloads saved as JSON decode too.
type filePayload struct {
	Kind      string `yaml:"kind"`
	SHA       string `yaml:"sha"`
	PRHeadSHA string `yaml:"pr_head_sha"`

	// GitHub webhook fields.
	After       string `yaml:"after"`
	PullRequest *struct {
		Head struct {
			SHA string `yaml:"sha"`
		} `yaml:"head"`
	} `yaml:"pull_request"`
}

// LoadFile reads and validates a trigger event from a YAML or JSON file.
func LoadFile(path string) (Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Event{}, fmt.Errorf("failed to read event file: %w", err)
	}

	var p filePayload
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Event{}, fmt.Errorf("failed to parse event file %s: %w", path, err)
	}

	kind, sha, prHead := p.Kind, p.SHA, p.PRHeadSHA

	// Webhook form: the trigger kind is implied by the payload shape.
	if sha == "" && p.After != "" {
		sha = p.After
	}
	if p.PullRequest != nil {
		if kind == "" {
			kind = string(PullRequest)
		}
		if prHead == "" {
			prHead = p.PullRequest.Head.SHA
		}
	} else if kind == "" {
		kind = string(Push)
	}

	e, err := New(kind, sha, prHead)
	if err != nil {
		return Event{}, fmt.Errorf("invalid event file %s: %w", path, err)
	}
	return e, nil
}
