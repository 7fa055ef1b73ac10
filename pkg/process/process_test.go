package process

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{"PATH": os.Getenv("PATH")}
}

func sh(script string) Command {
	return Command{Program: "sh", Args: []string{"-c", script}}
}

func TestSpawnSuccessStreamsOutput(t *testing.T) {
	var log bytes.Buffer
	res, err := Exec{}.Spawn(context.Background(), sh("echo hello; echo world >&2"), Options{
		Dir: t.TempDir(),
		Env: baseEnv(),
		Log: &log,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)
	assert.False(t, res.Failed())
	assert.Contains(t, log.String(), "> sh -c echo hello; echo world >&2\n")
	assert.Contains(t, log.String(), "hello\n")
	assert.Contains(t, log.String(), "world\n")
}

func TestSpawnNonZeroExitIsAResult(t *testing.T) {
	res, err := Exec{}.Spawn(context.Background(), sh("echo working; echo 'error: it broke' >&2; exit 3"), Options{
		Dir: t.TempDir(),
		Env: baseEnv(),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Code)
	assert.True(t, res.Failed())
	assert.Equal(t, "sh -c echo working; echo 'error: it broke' >&2; exit 3 exited with code 3: it broke", res.Message)
}

func TestSpawnRunsInDir(t *testing.T) {
	dir := t.TempDir()
	var log bytes.Buffer
	_, err := Exec{}.Spawn(context.Background(), sh("pwd"), Options{Dir: dir, Env: baseEnv(), Log: &log})
	require.NoError(t, err)
	assert.Contains(t, log.String(), dir)
}

func TestSpawnEnvironmentIsExplicit(t *testing.T) {
	os.Setenv("SDM_TEST_AMBIENT", "leaked")
	defer os.Unsetenv("SDM_TEST_AMBIENT")

	base := baseEnv()
	base["FOO"] = "base"
	base["BAR"] = "base"
	c := sh(`echo "[$FOO][$BAR][$SDM_TEST_AMBIENT]"`)
	c.Env = map[string]string{"BAR": "override"}

	var log bytes.Buffer
	res, err := Exec{}.Spawn(context.Background(), c, Options{Dir: t.TempDir(), Env: base, Log: &log})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)
	assert.Contains(t, log.String(), "[base][override][]")
	assert.Equal(t, "base", base["BAR"], "base environment must not be modified")
}

func TestSpawnMissingProgramIsAnError(t *testing.T) {
	_, err := Exec{}.Spawn(context.Background(), Command{Program: "no-such-program-sdm"}, Options{Dir: t.TempDir(), Env: baseEnv()})
	assert.Error(t, err)

	_, err = Exec{}.Spawn(context.Background(), Command{}, Options{})
	assert.Error(t, err)
}

func TestSpawnTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Exec{}.Spawn(ctx, sh("sleep 5"), Options{Dir: t.TempDir(), Env: baseEnv()})
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
}

func TestMergeEnv(t *testing.T) {
	base := map[string]string{"A": "1", "B": "2"}
	over := map[string]string{"B": "3", "C": "4"}
	assert.Equal(t, []string{"A=1", "B=3", "C=4"}, MergeEnv(base, over))
	assert.Equal(t, "2", base["B"])

	empty := MergeEnv(nil, nil)
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)
}

func TestFindErrorMessage(t *testing.T) {
	for _, c := range []struct {
		output, want string
	}{
		{"", ""},
		{"one\ntwo\n\n", "two"},
		{"fetching\nnpm ERR! missing script: compile\nnpm ERR! more", "missing script: compile"},
		{"Step 1/3\nERROR: failed to solve\n", "failed to solve"},
		{"fatal: not a git repository\n", "fatal: not a git repository"},
	} {
		assert.Equal(t, c.want, findErrorMessage(strings.NewReader(c.output)), c.output)
	}
}

func TestAllowedEnvOnlyCopiesAllowList(t *testing.T) {
	os.Setenv("SDM_TEST_SECRET", "s3cret")
	defer os.Unsetenv("SDM_TEST_SECRET")
	env := AllowedEnv()
	_, ok := env["SDM_TEST_SECRET"]
	assert.False(t, ok)
	if p, set := os.LookupEnv("PATH"); set {
		assert.Equal(t, p, env["PATH"])
	}
}

func TestSpawnMasksSecrets(t *testing.T) {
	c := sh("echo token=hunter2; printf 'hunt'; printf 'er2 again\\n'; echo 'error: bad token hunter2' >&2; exit 1")
	c.Secrets = []string{"hunter2", ""}

	var log bytes.Buffer
	res, err := Exec{}.Spawn(context.Background(), c, Options{Dir: t.TempDir(), Env: baseEnv(), Log: &log})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Code)
	assert.NotContains(t, log.String(), "hunter2")
	assert.Contains(t, log.String(), "token=<redacted>\n")
	assert.Contains(t, log.String(), "<redacted> again\n")
	assert.NotContains(t, res.Message, "hunter2")
	assert.Contains(t, res.Message, "bad token <redacted>")
}
