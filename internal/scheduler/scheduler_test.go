package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	bkmocks "github.com/name2020117/gridflow/internal/bookkeeping/mocks"
	"github.com/name2020117/gridflow/internal/faults"
	lockmocks "github.com/name2020117/gridflow/internal/locks/mocks"
	"github.com/name2020117/gridflow/internal/scheduler"
	"github.com/name2020117/gridflow/internal/stages"
	stagemocks "github.com/name2020117/gridflow/internal/stages/mocks"
)

func TestBuildRunsUnderLock(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	lockReg := lockmocks.NewMockRegistry(ctrl)
	keeper := bkmocks.NewMockKeeper(ctrl)
	runner := stagemocks.NewMockRunner(ctrl)

	last := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	gomock.InOrder(
		lockReg.EXPECT().Acquire("settings-alpha_BUILD").Return(nil),
		keeper.EXPECT().LastRun(gomock.Any(), "alpha").Return(&last, nil),
		keeper.EXPECT().SetBuildStart(gomock.Any(), "alpha").Return(nil),
		runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req stages.Request) error {
				assert.Equal(t, stages.StageBuild, req.Stage)
				assert.Equal(t, "alpha", req.Project)
				assert.Equal(t, "/etc/gridflow/settings-alpha.yaml", req.SettingsPath)
				assert.Equal(t, "2025-03-10 08:00:00", req.LastRun)
				return nil
			}),
		keeper.EXPECT().SetBuildComplete(gomock.Any(), "alpha").Return(nil),
		lockReg.EXPECT().Release("settings-alpha_BUILD").Return(nil),
	)

	s := scheduler.New(lockReg, keeper, runner, t.TempDir())
	s.Submit(context.Background(), scheduler.Task{
		Project:      "alpha",
		SettingsPath: "/etc/gridflow/settings-alpha.yaml",
	})
	require.NoError(t, s.Wait())
	assert.True(t, s.Ready())
}

func TestHeldLockSkipsWithoutBookkeeping(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	lockReg := lockmocks.NewMockRegistry(ctrl)
	keeper := bkmocks.NewMockKeeper(ctrl)
	runner := stagemocks.NewMockRunner(ctrl)

	lockReg.EXPECT().
		Acquire("settings-alpha_BUILD").
		Return(faults.LockConflict("held"))
	// No bookkeeping calls, no runner call, no release.

	s := scheduler.New(lockReg, keeper, runner, t.TempDir())
	s.Submit(context.Background(), scheduler.Task{
		Project:      "alpha",
		SettingsPath: "settings-alpha.yaml",
	})
	require.NoError(t, s.Wait())
}

func TestBuildFaultLeavesStartWithoutFinish(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	lockReg := lockmocks.NewMockRegistry(ctrl)
	keeper := bkmocks.NewMockKeeper(ctrl)
	runner := stagemocks.NewMockRunner(ctrl)

	buildErr := faults.Stage("collaborator crashed")

	gomock.InOrder(
		lockReg.EXPECT().Acquire("settings-alpha_BUILD").Return(nil),
		keeper.EXPECT().LastRun(gomock.Any(), "alpha").Return(nil, nil),
		keeper.EXPECT().SetBuildStart(gomock.Any(), "alpha").Return(nil),
		runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(buildErr),
		// SetBuildComplete never called; the lock is still released.
		lockReg.EXPECT().Release("settings-alpha_BUILD").Return(nil),
	)

	s := scheduler.New(lockReg, keeper, runner, t.TempDir())
	s.Submit(context.Background(), scheduler.Task{
		Project:      "alpha",
		SettingsPath: "settings-alpha.yaml",
	})

	err := s.Wait()
	require.Error(t, err)
	assert.True(t, errors.Is(err, buildErr))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	const tasks = 6

	ctrl := gomock.NewController(t)
	lockReg := lockmocks.NewMockRegistry(ctrl)
	keeper := bkmocks.NewMockKeeper(ctrl)
	runner := stagemocks.NewMockRunner(ctrl)

	lockReg.EXPECT().Acquire(gomock.Any()).Return(nil).Times(tasks)
	lockReg.EXPECT().Release(gomock.Any()).Return(nil).Times(tasks)
	keeper.EXPECT().LastRun(gomock.Any(), gomock.Any()).Return(nil, nil).Times(tasks)
	keeper.EXPECT().SetBuildStart(gomock.Any(), gomock.Any()).Return(nil).Times(tasks)
	keeper.EXPECT().SetBuildComplete(gomock.Any(), gomock.Any()).Return(nil).Times(tasks)

	var mu sync.Mutex
	var running, peak int
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, stages.Request) error {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			return nil
		}).Times(tasks)

	s := scheduler.New(lockReg, keeper, runner, t.TempDir(), scheduler.WithWorkers(2))
	for i := range tasks {
		s.Submit(context.Background(), scheduler.Task{
			Project:      string(rune('a' + i)),
			SettingsPath: "settings-" + string(rune('a'+i)) + ".yaml",
		})
	}
	require.NoError(t, s.Wait())

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}

func TestSubmitDoesNotBlockWhenPoolFull(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	lockReg := lockmocks.NewMockRegistry(ctrl)
	keeper := bkmocks.NewMockKeeper(ctrl)
	runner := stagemocks.NewMockRunner(ctrl)

	release := make(chan struct{})

	lockReg.EXPECT().Acquire(gomock.Any()).Return(nil).Times(2)
	lockReg.EXPECT().Release(gomock.Any()).Return(nil).Times(2)
	keeper.EXPECT().LastRun(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	keeper.EXPECT().SetBuildStart(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	keeper.EXPECT().SetBuildComplete(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, stages.Request) error {
			<-release
			return nil
		}).Times(2)

	s := scheduler.New(lockReg, keeper, runner, t.TempDir(), scheduler.WithWorkers(1))

	done := make(chan struct{})
	go func() {
		s.Submit(context.Background(), scheduler.Task{Project: "a", SettingsPath: "settings-a.yaml"})
		s.Submit(context.Background(), scheduler.Task{Project: "b", SettingsPath: "settings-b.yaml"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked with a full pool")
	}

	assert.False(t, s.Ready())
	close(release)
	require.NoError(t, s.Wait())
	assert.True(t, s.Ready())
}
