package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackgroundTaskSuccess(t *testing.T) {
	var got int
	NewBackgroundTaskNoError(nil, func() *int {
		v := 42
		return &v
	}).OnSuccess(func(v int) { got = v }).Run()
	assert.Equal(t, 42, got)
}

func TestBackgroundTaskRecover(t *testing.T) {
	boom := errors.New("boom")
	var got int
	NewBackgroundTask(nil, func() (*int, error) {
		return nil, boom
	}).Recover(func(err error) int {
		assert.ErrorIs(t, err, boom)
		return -1
	}).OnSuccess(func(v int) { got = v }).Run()
	assert.Equal(t, -1, got)
}

func TestBackgroundTaskTimeout(t *testing.T) {
	var gotErr error
	succeeded := false
	NewBackgroundTaskNoError(nil, func() *int {
		time.Sleep(500 * time.Millisecond)
		v := 1
		return &v
	}).WithTimeout(50 * time.Millisecond).
		OnError(func(err error) { gotErr = err }).
		OnSuccess(func(int) { succeeded = true }).
		Run()
	assert.Error(t, gotErr)
	assert.False(t, succeeded)
}

func TestBackgroundTaskPanicAndMap(t *testing.T) {
	var gotErr error
	MapBackgroundTask(NewBackgroundTaskNoError(nil, func() *int {
		panic("device gone")
	}), func(v *int) *string {
		s := "mapped"
		return &s
	}).OnError(func(err error) { gotErr = err }).Run()
	assert.Error(t, gotErr)

	var got string
	MapBackgroundTask(NewBackgroundTaskNoError(nil, func() *int {
		v := 7
		return &v
	}), func(v *int) *string {
		s := "seven"
		return &s
	}).OnSuccess(func(s string) { got = s }).Run()
	assert.Equal(t, "seven", got)
}
