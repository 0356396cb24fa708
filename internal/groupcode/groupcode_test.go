package groupcode

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/repository"
)

func TestGenerate_Shape(t *testing.T) {
	a := New(0, 0)

	for i := 0; i < 200; i++ {
		code, err := a.Generate()
		require.NoError(t, err)
		assert.Len(t, code, DefaultLength)
		assert.True(t, a.Valid(code), "code %q has characters outside the alphabet", code)
	}
}

func TestGenerate_RejectsBiasedBytes(t *testing.T) {
	// 252 is the first rejected byte for a 36-symbol alphabet.
	src := bytes.NewReader([]byte{255, 252, 0, 1, 2, 35})
	a := New(4, 1, WithRandom(src))

	code, err := a.Generate()
	require.NoError(t, err)
	assert.Equal(t, "ABC9", code)
}

func TestGenerate_RandomSourceFailure(t *testing.T) {
	a := New(6, 1, WithRandom(bytes.NewReader(nil)))

	_, err := a.Generate()
	assert.Error(t, err)
}

// constReader returns b forever.
type constReader byte

func (r constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

func TestGenerate_StarvedSource(t *testing.T) {
	_, err := New(6, 1, WithRandom(constReader(0xFF))).Generate()
	assert.ErrorIs(t, err, ErrStarved)
}

func TestAllocate_StarvedSourceExhausts(t *testing.T) {
	a := New(0, 3, WithRandom(constReader(0xFF)))

	_, err := a.Allocate(context.Background(), func(ctx context.Context, code string) error {
		t.Fatal("insert called without a code")
		return nil
	})
	assert.ErrorIs(t, err, apperror.ErrCodeGenerationExhausted)
}

func TestAllocate_RetriesOnCollision(t *testing.T) {
	a := New(6, 5)
	calls := 0

	code, err := a.Allocate(context.Background(), func(ctx context.Context, code string) error {
		calls++
		if calls < 3 {
			return repository.ErrCodeTaken
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, code, 6)
}

func TestAllocate_Exhausted(t *testing.T) {
	a := New(6, 4)
	calls := 0

	_, err := a.Allocate(context.Background(), func(ctx context.Context, code string) error {
		calls++
		return repository.ErrCodeTaken
	})

	assert.True(t, errors.Is(err, apperror.ErrCodeGenerationExhausted), "got %v", err)
	assert.Equal(t, 4, calls)
}

func TestAllocate_OtherErrorStops(t *testing.T) {
	a := New(6, 10)
	boom := errors.New("boom")
	calls := 0

	_, err := a.Allocate(context.Background(), func(ctx context.Context, code string) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestAllocate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(6, 10).Allocate(ctx, func(ctx context.Context, code string) error {
		t.Fatal("insert called with a cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ABC123", Normalize("  abc123\n"))
	assert.Equal(t, "", Normalize("   "))
}
