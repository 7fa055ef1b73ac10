package progress

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingLogger) Log(keyvals ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i+1 < len(keyvals); i += 2 {
		if keyvals[i] == "output" {
			r.lines = append(r.lines, fmt.Sprint(keyvals[i+1]))
		}
	}
	return nil
}

func TestBufferConcurrentWrites(t *testing.T) {
	b := NewBuffer()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Fprint(b, "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, "xxxxxxxxxx", b.String())
}

func TestLoggerLogSplitsLines(t *testing.T) {
	rec := &recordingLogger{}
	l := NewLoggerLog(rec)
	fmt.Fprint(l, "first\nsec")
	fmt.Fprint(l, "ond\r\n\nthird")
	assert.Equal(t, []string{"first", "second"}, rec.lines)
	assert.NoError(t, l.Close())
	assert.Equal(t, []string{"first", "second", "third"}, rec.lines)
	assert.Equal(t, "", l.String())
}

func TestTee(t *testing.T) {
	rec := &recordingLogger{}
	b := NewBuffer()
	l := Tee(NewLoggerLog(rec), b)
	fmt.Fprintln(l, "hello")
	assert.Equal(t, "hello\n", l.String())
	assert.Equal(t, []string{"hello"}, rec.lines)
	assert.NoError(t, l.Close())
}

func TestWriterLog(t *testing.T) {
	var out strings.Builder
	l := Tee(NewBuffer(), NewWriterLog(&out))
	fmt.Fprint(l, "npm ci\n")
	assert.Equal(t, "npm ci\n", out.String())
	assert.Equal(t, "npm ci\n", l.String())
	assert.NoError(t, l.Close())
}
