package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOut_SubmissionOrder(t *testing.T) {
	// il primo task termina per ultimo
	results := fanOut(context.Background(), 4, 0, func(ctx context.Context, i int) Outcome {
		time.Sleep(time.Duration(4-i) * 10 * time.Millisecond)
		return Success(fmt.Sprintf("task-%d", i))
	})

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("task-%d", i), r.Text())
	}
}

func TestFanOut_FailureIsolation(t *testing.T) {
	results := fanOut(context.Background(), 3, 0, func(ctx context.Context, i int) Outcome {
		switch i {
		case 0:
			panic("boom")
		case 1:
			return Failure("bad")
		}
		return Success("fine")
	})

	assert.False(t, results[0].OK())
	assert.Contains(t, results[0].Reason(), "boom")
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())
	assert.Equal(t, []string{"fine"}, successes(results))
}

func TestFanOut_PerTaskTimeout(t *testing.T) {
	results := fanOut(context.Background(), 2, 20*time.Millisecond, func(ctx context.Context, i int) Outcome {
		if i == 0 {
			select {
			case <-ctx.Done():
				return Failure(ctx.Err().Error())
			case <-time.After(time.Second):
				return Success("late")
			}
		}
		return Success("fast")
	})

	assert.False(t, results[0].OK())
	assert.True(t, results[1].OK())
}

func TestFanOut_Empty(t *testing.T) {
	results := fanOut(context.Background(), 0, 0, func(ctx context.Context, i int) Outcome {
		t.Fatal("task must not run")
		return Outcome{}
	})
	assert.Empty(t, results)
}
