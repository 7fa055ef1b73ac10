package job

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	shutdown := make(chan struct{})
	wg := &sync.WaitGroup{}
	defer close(shutdown)
	q := NewQueue(shutdown, wg)
	if q.Len() != 0 {
		t.Errorf("Fresh queue has length %d (!= 0)", q.Len())
	}

	select {
	case <-q.Ready():
		t.Error("Value from q.Ready before any values enqueued")
	default:
	}

	// When this proceeds, the value will be in the queue
	q.Enqueue(&Job{"job 1", nil})
	q.Sync()
	if q.Len() != 1 {
		t.Errorf("Queue has length %d (!= 1) after enqueuing one item (and sync)", q.Len())
	}

	// This should proceed eventually
	j := <-q.Ready()
	if j.ID != "job 1" {
		t.Errorf("Dequeued odd job: %#v", j)
	}
	q.Sync()
	if q.Len() != 0 {
		t.Errorf("Queue has length %d (!= 0) after dequeuing only item (and sync)", q.Len())
	}

	// This should not proceed, because the queue is empty
	select {
	case j = <-q.Ready():
		t.Errorf("Dequeued from empty queue: %#v", j)
	default:
	}
}

func TestQueueOrder(t *testing.T) {
	shutdown := make(chan struct{})
	wg := &sync.WaitGroup{}
	q := NewQueue(shutdown, wg)

	for _, id := range []ID{"a", "b", "c"} {
		q.Enqueue(&Job{ID: id})
	}
	q.Sync()

	var seen []ID
	q.ForEach(func(i int, j *Job) bool {
		seen = append(seen, j.ID)
		return true
	})
	assert.Equal(t, []ID{"a", "b", "c"}, seen)

	for _, id := range []ID{"a", "b", "c"} {
		assert.Equal(t, id, (<-q.Ready()).ID)
	}
	close(shutdown)
	wg.Wait()
}

func TestStatusCache(t *testing.T) {
	c := &StatusCache{Size: 2}
	c.SetStatus("one", Status{StatusString: StatusQueued})
	c.SetStatus("one", Status{StatusString: StatusRunning})
	assert.Equal(t, []ID{"one"}, c.Recent())

	s, ok := c.Status("one")
	assert.True(t, ok)
	assert.Equal(t, StatusRunning, s.StatusString)

	c.SetStatus("two", Status{StatusString: StatusQueued})
	c.SetStatus("three", Status{StatusString: StatusFailed, Err: "boom"})
	_, ok = c.Status("one")
	assert.False(t, ok, "oldest evicted")
	assert.Equal(t, []ID{"two", "three"}, c.Recent())

	s, _ = c.Status("three")
	assert.Equal(t, "boom", s.Error())
}

func TestStatusCacheZeroSize(t *testing.T) {
	c := &StatusCache{}
	c.SetStatus("one", Status{StatusString: StatusQueued})
	_, ok := c.Status("one")
	assert.False(t, ok)
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, string(a), 36)
}
