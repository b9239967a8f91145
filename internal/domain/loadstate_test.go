package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameTerms(t *testing.T) {
	assert.True(t, SameTerms(nil, nil))
	assert.True(t, SameTerms(Terms("pizza"), Terms("pizza")))
	assert.True(t, SameTerms(Terms(""), Terms("")))
	assert.False(t, SameTerms(Terms("pizza"), nil))
	assert.False(t, SameTerms(nil, Terms("")))
	assert.False(t, SameTerms(Terms("pizza"), Terms("tacos")))
}

func TestCloneTerms(t *testing.T) {
	orig := Terms("sushi")
	clone := CloneTerms(orig)

	*orig = "udon"

	assert.Equal(t, "sushi", *clone)
	assert.Nil(t, CloneTerms(nil))
}

func TestLoadState_IsLoading(t *testing.T) {
	task := NewTask(Terms("pho"), nil)
	s := Loading[int](Terms("pho"), task)

	assert.True(t, s.IsLoading(Terms("pho")))
	assert.False(t, s.IsLoading(nil))
	assert.False(t, s.IsLoading(Terms("bun")))
	assert.True(t, s.IsLoadingTask(task))
	assert.False(t, s.IsLoadingTask(NewTask(Terms("pho"), nil)))

	assert.False(t, Uninitialized[int]().IsLoading(nil))
	assert.False(t, Done[int]().IsLoadingTask(task))
}

func TestLoadState_Same(t *testing.T) {
	a := NewTask(nil, nil)
	b := NewTask(nil, nil)

	assert.True(t, Uninitialized[int]().Same(Uninitialized[int]()))
	assert.True(t, Done[int]().Same(Done[int]()))
	assert.True(t, Loading[int](nil, a).Same(Loading[int](nil, a)))
	assert.False(t, Loading[int](nil, a).Same(Loading[int](nil, b)))
	assert.False(t, Succeeded(1).Same(Succeeded(1)))
	err := errors.New("x")
	assert.False(t, Failed[int](err).Same(Failed[int](err)))
	assert.False(t, Uninitialized[int]().Same(Done[int]()))
}

func TestTask_FinishIsIdempotent(t *testing.T) {
	cancelled := 0
	task := NewTask(nil, func() { cancelled++ })

	task.Finish()
	task.Finish()

	select {
	case <-task.Done():
	default:
		t.Fatal("done channel not closed")
	}
	assert.Equal(t, 1, cancelled)
}

func TestNewInvariantViolation(t *testing.T) {
	err := NewInvariantViolation(Done[int](), Succeeded(3))

	assert.Equal(t, "load state unexpectedly going from done to success", err.Error())
	assert.False(t, IsRetryable(err))
}
