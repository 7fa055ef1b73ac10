package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorJSONRoundTrip(t *testing.T) {
	in := &Error{Type: User, Help: "do it differently", Err: errors.New("nope")}
	bytes, err := json.Marshal(in)
	require.NoError(t, err)

	var out Error
	require.NoError(t, json.Unmarshal(bytes, &out))
	assert.Equal(t, User, out.Type)
	assert.Equal(t, "do it differently", out.Help)
	assert.Equal(t, "nope", out.Err.Error())
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, IsMissing(UnknownJob("abc")))
	assert.False(t, IsMissing(BadPush(errors.New("x"))))
	assert.True(t, IsUser(BadPush(errors.New("x"))))
	assert.False(t, IsUser(errors.New("plain")))
}

func TestCoverAllIsServer(t *testing.T) {
	e := CoverAllError(errors.New("boom"))
	assert.Equal(t, Server, e.Type)
	assert.Contains(t, e.Help, "boom")
	assert.Equal(t, "boom", e.Error())
}
