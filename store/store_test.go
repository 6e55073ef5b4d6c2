package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/prepflow/pkg/errors"
)

type artifact struct {
	ID string
}

func TestPutGet(t *testing.T) {
	s := New[*artifact]("model")

	s.Put("model_a", &artifact{ID: "model_a"})
	got, err := s.Get("model_a")
	require.NoError(t, err)
	assert.Equal(t, "model_a", got.ID)
	assert.Equal(t, 1, s.Len())
}

func TestGetUnknown(t *testing.T) {
	s := New[*artifact]("cleaner")

	_, err := s.Get("cleaner_missing")
	require.Error(t, err)
	var notFound *errors.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "cleaner", notFound.Kind)
	assert.Equal(t, "cleaner_missing", notFound.ID)
}

func TestLastWriterWins(t *testing.T) {
	s := New[*artifact]("model")

	s.Put("id", &artifact{ID: "first"})
	s.Put("id", &artifact{ID: "second"})
	got, err := s.Get("id")
	require.NoError(t, err)
	assert.Equal(t, "second", got.ID)
	assert.Equal(t, 1, s.Len())
}

func TestConcurrentAccess(t *testing.T) {
	s := New[*artifact]("model")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("model_%d", i)
			s.Put(id, &artifact{ID: id})
			got, err := s.Get(id)
			if err != nil || got.ID != id {
				t.Errorf("Get(%s) = %v, %v", id, got, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
	assert.Len(t, s.IDs(), 50)
}
