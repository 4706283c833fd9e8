package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
	assert.Len(t, gen.GenerateString(), 26)
}

func TestBufferID(t *testing.T) {
	bid := NewBufferID()

	assert.True(t, strings.HasPrefix(bid.String(), "buf_"))
	assert.True(t, IsPrefixed(bid.String(), BufferPrefix))
	assert.False(t, IsPrefixed(bid.String(), ConnectionPrefix))
	assert.True(t, IsPrefixed(NewConnectionID().String(), ConnectionPrefix))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(NewGenerator().GenerateString()))

	for _, bad := range []string{"", "invalid", "1234567890", "zzzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		assert.False(t, IsValid(bad), bad)
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().UnixMilli()
	bid := NewBufferID()
	after := time.Now().UnixMilli()

	ts, err := Timestamp(bid.String())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts.UnixMilli(), before)
	assert.LessOrEqual(t, ts.UnixMilli(), after)

	_, err = Timestamp("buf_nope")
	assert.Error(t, err)
}

func TestConcurrentGeneration(t *testing.T) {
	const workers, per = 8, 100
	seen := sync.Map{}
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				_, dup := seen.LoadOrStore(NewBufferID(), struct{}{})
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()
}
