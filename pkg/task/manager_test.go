package task

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestScheduleRunsTask(t *testing.T) {
	is := is.New(t)
	m := NewManager(context.TODO())

	ran := make(chan struct{})
	id, err := m.Schedule("test", func(context.Context) error {
		close(ran)
		return nil
	})
	is.NoErr(err)
	is.True(id != "")

	<-ran
	is.NoErr(m.Wait(id))
}

func TestScheduleKeepsError(t *testing.T) {
	is := is.New(t)
	m := NewManager(context.TODO())

	boom := errors.New("boom")
	id, err := m.Schedule("failing", func(context.Context) error {
		return boom
	})
	is.NoErr(err)
	is.True(errors.Is(m.Wait(id), boom))
}

func TestScheduleRecoversPanic(t *testing.T) {
	is := is.New(t)
	m := NewManager(context.TODO())

	id, err := m.Schedule("panicking", func(context.Context) error {
		panic("oh no")
	})
	is.NoErr(err)
	is.True(m.Wait(id) != nil)
}

func TestShutdownDrainsRuns(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.TODO())
	m := NewManager(ctx)

	var finished bool
	release := make(chan struct{})
	_, err := m.Schedule("slow", func(context.Context) error {
		<-release
		finished = true
		return nil
	})
	is.NoErr(err)

	cancel()
	close(release)
	is.NoErr(m.Shutdown(context.Background()))
	is.True(finished)
}

func TestShutdownHonorsDeadline(t *testing.T) {
	is := is.New(t)
	m := NewManager(context.TODO())

	release := make(chan struct{})
	defer close(release)
	_, err := m.Schedule("stuck", func(context.Context) error {
		<-release
		return nil
	})
	is.NoErr(err)

	sctx, scancel := context.WithCancel(context.TODO())
	scancel()
	is.True(errors.Is(m.Shutdown(sctx), context.Canceled))
}

func TestScheduleAfterShutdown(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.TODO())
	m := NewManager(ctx)
	cancel()

	_, err := m.Schedule("late", func(context.Context) error { return nil })
	is.True(errors.Is(err, ErrShuttingDown))
}

func TestWaitUnknownRun(t *testing.T) {
	is := is.New(t)
	m := NewManager(context.TODO())
	is.True(errors.Is(m.Wait("nope"), ErrNotFound))
}
