package image

import v1 "github.com/opencontainers/image-spec/specs-go/v1"

// MediaType identifies the format of a blob referenced by a descriptor.
type MediaType string

const (
	OCIIndexMediaType    = MediaType(v1.MediaTypeImageIndex)
	OCIManifestMediaType = MediaType(v1.MediaTypeImageManifest)

	// EmptyJSONMediaType marks the "{}" blob used as the config of manifests
	// that describe plain files rather than a runnable image.
	EmptyJSONMediaType = MediaType("application/vnd.oci.empty.v1+json")

	LayerMediaType  = MediaType(v1.MediaTypeImageLayer)
	OctetStreamType = MediaType("application/octet-stream")
)

func (mt MediaType) IsIndex() bool {
	return mt == OCIIndexMediaType
}

func (mt MediaType) IsManifest() bool {
	return mt == OCIManifestMediaType
}
