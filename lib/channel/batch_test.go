package channel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassoftware/apkchannel/internal/apktest"
	"github.com/sassoftware/apkchannel/lib/sigerrors"
)

func batchJobs(dir string, names ...string) []Job {
	jobs := make([]Job, len(names))
	for i, name := range names {
		jobs[i] = Job{
			Name:  name,
			Dest:  filepath.Join(dir, "out", fmt.Sprintf("app_%s.apk", name)),
			Value: []byte(fmt.Sprintf(`{"channel":%q}`, name)),
		}
	}
	return jobs
}

func TestBatch(t *testing.T) {
	for _, inPlace := range []bool{false, true} {
		t.Run(fmt.Sprintf("InPlace=%t", inPlace), func(t *testing.T) {
			dir := t.TempDir()
			src := apktest.Write(t, dir, "app.apk", apktest.Options{})
			jobs := batchJobs(dir, "huawei", "xiaomi", "oppo", "vivo", "meizu")
			results, err := Batch(context.Background(), src, jobs, BatchOptions{Jobs: 3, Overwrite: true, InPlace: inPlace})
			require.NoError(t, err)
			require.Len(t, results, len(jobs))
			for i, r := range results {
				require.NoError(t, r.Err)
				assert.Equal(t, "ok", r.Kind())
				assert.Equal(t, jobs[i].Name, r.Job.Name)
				value, found, err := Read(jobs[i].Dest)
				require.NoError(t, err)
				require.True(t, found)
				assert.Equal(t, jobs[i].Value, value)
				apktest.RequireZip(t, jobs[i].Dest, nil)
				assert.NoFileExists(t, jobs[i].Dest+".lock")
			}
		})
	}
}

func TestBatchSkipExisting(t *testing.T) {
	dir := t.TempDir()
	src := apktest.Write(t, dir, "app.apk", apktest.Options{})
	jobs := batchJobs(dir, "huawei", "xiaomi")
	require.NoError(t, os.MkdirAll(filepath.Dir(jobs[0].Dest), 0755))
	require.NoError(t, os.WriteFile(jobs[0].Dest, []byte("keep me"), 0644))
	results, err := Batch(context.Background(), src, jobs, BatchOptions{})
	require.NoError(t, err)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, "skipped", results[0].Kind())
	b, err := os.ReadFile(jobs[0].Dest)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(b))
	assert.NoError(t, results[1].Err)
	assert.False(t, results[1].Skipped)
}

func TestBatchContinuesPastFailure(t *testing.T) {
	dir := t.TempDir()
	src := apktest.Write(t, dir, "app.apk", apktest.Options{})
	jobs := batchJobs(dir, "huawei", "locked", "xiaomi")
	require.NoError(t, os.MkdirAll(filepath.Dir(jobs[1].Dest), 0755))
	unlock, err := LockDest(jobs[1].Dest)
	require.NoError(t, err)
	defer unlock()

	results, err := Batch(context.Background(), src, jobs, BatchOptions{Jobs: 2, Overwrite: true})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrLocked)
	assert.Equal(t, "other", results[1].Kind())
	assert.NoError(t, results[2].Err)
	assert.NoFileExists(t, jobs[1].Dest)
}

func TestBatchUnsigned(t *testing.T) {
	dir := t.TempDir()
	src := apktest.Write(t, dir, "app.apk", apktest.Options{NoBlock: true})
	jobs := batchJobs(dir, "huawei", "xiaomi")
	results, err := Batch(context.Background(), src, jobs, BatchOptions{Overwrite: true})
	require.NoError(t, err)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, sigerrors.ErrContainerNotFound)
		assert.Equal(t, "container_not_found", r.Kind())
		assert.NoFileExists(t, r.Job.Dest)
	}
}

func TestBatchConflicts(t *testing.T) {
	dir := t.TempDir()
	src := apktest.Write(t, dir, "app.apk", apktest.Options{})
	jobs := batchJobs(dir, "a", "b")
	jobs[1].Dest = jobs[0].Dest
	_, err := Batch(context.Background(), src, jobs, BatchOptions{})
	assert.Error(t, err)

	jobs = batchJobs(dir, "a")
	jobs[0].Dest = src
	_, err = Batch(context.Background(), src, jobs, BatchOptions{})
	assert.Error(t, err)

	_, err = Batch(context.Background(), filepath.Join(dir, "missing.apk"), batchJobs(dir, "a"), BatchOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBatchCanceled(t *testing.T) {
	dir := t.TempDir()
	src := apktest.Write(t, dir, "app.apk", apktest.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := Batch(ctx, src, batchJobs(dir, "a", "b"), BatchOptions{Overwrite: true})
	assert.ErrorIs(t, err, context.Canceled)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.NoFileExists(t, r.Job.Dest)
	}
}

func TestLockDest(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "app.apk")
	unlock, err := LockDest(dest)
	require.NoError(t, err)
	assert.FileExists(t, dest+".lock")
	_, err = LockDest(dest)
	assert.ErrorIs(t, err, ErrLocked)
	unlock()
	assert.NoFileExists(t, dest+".lock")
	unlock, err = LockDest(dest)
	require.NoError(t, err)
	unlock()
}
