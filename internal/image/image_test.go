package image

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherbread/adapar/internal/costprofile"
	"github.com/featherbread/adapar/internal/parallel"
	"github.com/featherbread/adapar/internal/pool"
)

func newEngine(t *testing.T) *parallel.Engine {
	t.Helper()
	p := pool.New(4)
	t.Cleanup(p.Close)
	return parallel.NewWithProfile(p, costprofile.Profile{AvailableParallelism: 4})
}

func writeFiles(t *testing.T, contents ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(contents))
	for i, content := range contents {
		paths[i] = filepath.Join(dir, "file"+strconv.Itoa(i))
		require.NoError(t, os.WriteFile(paths[i], []byte(content), 0o644))
	}
	return paths
}

func TestDescribeFile(t *testing.T) {
	paths := writeFiles(t, "hello world")

	desc, err := DescribeFile(paths[0], LayerMediaType)
	require.NoError(t, err)
	assert.Equal(t, digest.FromString("hello world"), desc.Digest)
	assert.EqualValues(t, 11, desc.Size)
	assert.Equal(t, string(LayerMediaType), desc.MediaType)
	assert.Equal(t, "file0", desc.Annotations[v1.AnnotationTitle])
}

func TestDescribeFilesWithFailures(t *testing.T) {
	e := newEngine(t)
	paths := writeFiles(t, "a", "b", "c", "d", "e", "f", "g", "h")
	paths[3] = filepath.Join(t.TempDir(), "missing")

	descs, err := DescribeFiles(e, paths, OctetStreamType)
	require.Error(t, err)

	elemErrs := parallel.ElementErrors(err)
	require.Len(t, elemErrs, 1)
	assert.Equal(t, 3, elemErrs[0].Index)
	assert.ErrorIs(t, elemErrs[0], os.ErrNotExist)

	for i, desc := range descs {
		if i == 3 {
			assert.Empty(t, desc.Digest)
			continue
		}
		assert.Equal(t, digest.FromString(string(rune('a'+i))), desc.Digest)
	}

	m, err := BuildManifest(e, descs)
	require.NoError(t, err)
	require.Len(t, m.Layers, 7)
	for i, layer := range m.Layers {
		want := i
		if i >= 3 {
			want = i + 1
		}
		assert.Equal(t, "file"+strconv.Itoa(want), layer.Annotations[v1.AnnotationTitle])
	}
}

func TestBuildManifestEmpty(t *testing.T) {
	m, err := BuildManifest(newEngine(t), nil)
	require.NoError(t, err)
	assert.Empty(t, m.Layers)
	assert.Equal(t, EmptyConfig, m.Config)

	encoded, err := json.Marshal(v1.Manifest(m))
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"layers":[]`)
}

func TestNewIndex(t *testing.T) {
	e := newEngine(t)
	descs, err := DescribeFiles(e, writeFiles(t, "one", "two"), LayerMediaType)
	require.NoError(t, err)
	m, err := BuildManifest(e, descs)
	require.NoError(t, err)

	idx, err := NewIndex(m, "linux/arm64", "registry.example.com/files/bundle:v1")
	require.NoError(t, err)
	require.Len(t, idx.Manifests, 1)

	entry := idx.Manifests[0]
	wantDesc, _, err := m.Descriptor()
	require.NoError(t, err)
	assert.Equal(t, wantDesc.Digest, entry.Digest)
	assert.Equal(t, "linux", entry.Platform.OS)
	assert.Equal(t, "arm64", entry.Platform.Architecture)
	assert.Equal(t, "v1", entry.Annotations[v1.AnnotationRefName])
}

func TestNewIndexInvalidInputs(t *testing.T) {
	m, err := BuildManifest(newEngine(t), nil)
	require.NoError(t, err)

	_, err = NewIndex(m, "not a platform!", "")
	assert.Error(t, err)

	_, err = NewIndex(m, "", "no tag here")
	assert.Error(t, err)
}

func TestManifestValidate(t *testing.T) {
	m := Manifest{MediaType: string(OCIManifestMediaType), Config: EmptyConfig}
	assert.NoError(t, m.Validate())

	m.Layers = []v1.Descriptor{{Digest: "sha256:09f911029d74e35bd84156c5635688c1"}}
	assert.Error(t, m.Validate())

	m.Layers = nil
	m.MediaType = string(OCIIndexMediaType)
	assert.Error(t, m.Validate())
}
