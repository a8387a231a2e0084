package image

import (
	"encoding/json"
	"fmt"

	"github.com/containerd/containerd/platforms"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

var emptyJSON = []byte("{}")

// EmptyConfig is the descriptor of the "{}" config blob.
var EmptyConfig = v1.Descriptor{
	MediaType: string(EmptyJSONMediaType),
	Digest:    digest.FromBytes(emptyJSON),
	Size:      int64(len(emptyJSON)),
}

type Index v1.Index

func (i Index) Validate() error {
	if mt := MediaType(i.MediaType); !mt.IsIndex() {
		return fmt.Errorf("unexpected index media type %q", mt)
	}
	for _, manifest := range i.Manifests {
		if mt := MediaType(manifest.MediaType); !mt.IsManifest() {
			return fmt.Errorf("unexpected manifest media type %q", mt)
		}
		if err := manifest.Digest.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type Manifest v1.Manifest

func (m Manifest) Validate() error {
	if mt := MediaType(m.MediaType); !mt.IsManifest() {
		return fmt.Errorf("unexpected manifest media type %q", mt)
	}
	if err := m.Config.Digest.Validate(); err != nil {
		return err
	}
	for _, layer := range m.Layers {
		if err := layer.Digest.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Descriptor encodes the manifest and returns the encoding along with a
// descriptor for it.
func (m Manifest) Descriptor() (v1.Descriptor, []byte, error) {
	encoded, err := json.Marshal(v1.Manifest(m))
	if err != nil {
		return v1.Descriptor{}, nil, err
	}
	return v1.Descriptor{
		MediaType: m.MediaType,
		Digest:    digest.FromBytes(encoded),
		Size:      int64(len(encoded)),
	}, encoded, nil
}

// NewIndex wraps the manifest in a single-entry index. A non-empty platform
// (like "linux/amd64") is attached to the manifest's entry, and a non-empty ref
// must be a valid image tag reference whose tag becomes the entry's ref name.
func NewIndex(m Manifest, platform, ref string) (Index, error) {
	desc, _, err := m.Descriptor()
	if err != nil {
		return Index{}, err
	}

	if platform != "" {
		p, err := platforms.Parse(platform)
		if err != nil {
			return Index{}, err
		}
		p = platforms.Normalize(p)
		desc.Platform = &p
	}

	if ref != "" {
		tag, err := name.NewTag(ref, name.StrictValidation)
		if err != nil {
			return Index{}, err
		}
		desc.Annotations = map[string]string{v1.AnnotationRefName: tag.TagStr()}
	}

	idx := Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: string(OCIIndexMediaType),
		Manifests: []v1.Descriptor{desc},
	}
	return idx, idx.Validate()
}
