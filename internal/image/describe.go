package image

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"

	"github.com/featherbread/adapar/internal/log"
	"github.com/featherbread/adapar/internal/parallel"
)

// DescribeFile digests the file at path and returns a descriptor for it as a
// blob of the given media type, titled with the file's base name.
func DescribeFile(path string, mediaType MediaType) (v1.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return v1.Descriptor{}, err
	}
	defer f.Close()

	digester := digest.Canonical.Digester()
	size, err := io.Copy(digester.Hash(), f)
	if err != nil {
		return v1.Descriptor{}, fmt.Errorf("reading %s: %w", path, err)
	}

	return v1.Descriptor{
		MediaType:   string(mediaType),
		Digest:      digester.Digest(),
		Size:        size,
		Annotations: map[string]string{v1.AnnotationTitle: filepath.Base(path)},
	}, nil
}

// DescribeFiles describes every path through the engine. The descriptor for a
// file that cannot be read is left empty, and the failure is included in the
// returned error.
func DescribeFiles(e *parallel.Engine, paths []string, mediaType MediaType) ([]v1.Descriptor, error) {
	return parallel.Map(e, paths, func(path string) (v1.Descriptor, error) {
		desc, err := DescribeFile(path, mediaType)
		if err == nil {
			log.Verbosef("[image] %s => %s (%d bytes)", path, desc.Digest, desc.Size)
		}
		return desc, err
	})
}

// BuildManifest assembles the non-empty descriptors into the layers of a
// manifest with an empty config, preserving their order.
func BuildManifest(e *parallel.Engine, layers []v1.Descriptor) (Manifest, error) {
	layers = lo.Filter(layers, func(desc v1.Descriptor, _ int) bool { return desc.Digest != "" })
	runs := lo.Map(layers, func(desc v1.Descriptor, _ int) []v1.Descriptor { return []v1.Descriptor{desc} })

	joined, err := parallel.Fold(e, runs, func(a, b []v1.Descriptor) ([]v1.Descriptor, error) {
		return slices.Concat(a, b), nil
	})
	if err != nil {
		return Manifest{}, err
	}

	m := Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: string(OCIManifestMediaType),
		Config:    EmptyConfig,
		Layers:    joined,
	}
	if m.Layers == nil {
		m.Layers = []v1.Descriptor{}
	}
	return m, m.Validate()
}
