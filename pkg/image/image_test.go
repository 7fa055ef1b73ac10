package image

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	for _, c := range []struct {
		in, domain, image, tag string
	}{
		{"atmhoff/lff-sdm:1.0.0", "", "atmhoff/lff-sdm", "1.0.0"},
		{"alpine", "", "alpine", ""},
		{"alpine:3.10", "", "alpine", "3.10"},
		{"quay.io/acme/widgets:v2", "quay.io", "acme/widgets", "v2"},
		{"localhost:5000/team/app:sha-1", "localhost:5000", "team/app", "sha-1"},
		{"localhost/app", "localhost", "app", ""},
		{"registry.example.com/a/b/c:t", "registry.example.com", "a/b/c", "t"},
	} {
		ref, err := ParseRef(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.domain, ref.Domain, c.in)
		assert.Equal(t, c.image, ref.Image, c.in)
		assert.Equal(t, c.tag, ref.Tag, c.in)
		assert.Equal(t, c.in, ref.String())
	}
}

func TestParseRefErrors(t *testing.T) {
	for _, in := range []string{"", "/foo", "foo/", "foo:", ":tag", "a:b:c"} {
		_, err := ParseRef(in)
		assert.Error(t, err, in)
		assert.Equal(t, ErrInvalidImageID, errors.Cause(err), in)
	}
}

func TestParseTaggedRef(t *testing.T) {
	_, err := ParseTaggedRef("atmhoff/lff-sdm")
	assert.Error(t, err)
	ref, err := ParseTaggedRef("atmhoff/lff-sdm:1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", ref.Tag)
}

func TestCanonical(t *testing.T) {
	ref, _ := ParseRef("alpine:3.10")
	assert.Equal(t, "index.docker.io/library/alpine:3.10", ref.Canonical().String())

	a, _ := ParseRef("docker.io/atmhoff/lff-sdm:1.0.0")
	b, _ := ParseRef("atmhoff/lff-sdm:1.0.0")
	assert.True(t, a.Equivalent(b))
	assert.False(t, a.Equivalent(b.WithNewTag("1.0.1")))
}

func TestRefJSON(t *testing.T) {
	ref, _ := ParseRef("quay.io/acme/widgets:v2")
	bytes, err := json.Marshal(ref)
	require.NoError(t, err)
	assert.Equal(t, `"quay.io/acme/widgets:v2"`, string(bytes))

	var out Ref
	require.NoError(t, json.Unmarshal(bytes, &out))
	assert.Equal(t, ref, out)
}
