package blocker_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lattixe/MonkMode-windows/internal/blocker"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/testutil"
)

func TestHostsWatcher_ReportsLostRegionOnce(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	applied := blocker.ApplyRegion(testutil.SampleHosts, []string{"reddit.com"})
	path := testutil.CreateHostsFile(t, dir, applied)

	lost := make(chan struct{}, 4)
	w, err := blocker.WatchHosts(logger.NewNoOpLogger(), blocker.NewHostsFile(path, ""), func() {
		lost <- struct{}{}
	})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// Rewriting with the region intact is not tampering
	require.NoError(t, os.WriteFile(path, []byte(applied), 0o644))
	select {
	case <-lost:
		t.Fatal("Region still present, nothing should be reported")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte(testutil.SampleHosts), 0o644))
	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("Lost region was not reported")
	}

	require.NoError(t, os.WriteFile(path, []byte(testutil.SampleHosts+"# edit\r\n"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, lost, "Reported once per disappearance")
}

func TestHostsWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := testutil.CreateHostsFile(t, dir, blocker.ApplyRegion("", []string{"reddit.com"}))

	lost := make(chan struct{}, 1)
	w, err := blocker.WatchHosts(logger.NewNoOpLogger(), blocker.NewHostsFile(path, ""), func() {
		lost <- struct{}{}
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path+".tmp", []byte("junk"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, lost)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
