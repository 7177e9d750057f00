package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oscillon/desync/desyncerrors"
	"github.com/oscillon/desync/node"
)

func TestAlgoConfigRejectsUnknownAlgo(t *testing.T) {
	algo = "not-a-real-algorithm"
	defer func() { algo = "" }()

	_, err := algoConfig()
	require.Error(t, err)

	var se *desyncerrors.SimError
	require.ErrorAs(t, err, &se)
	require.Equal(t, desyncerrors.KindUsage, se.Kind)
}

func TestAlgoConfigBuildsValidatedConfig(t *testing.T) {
	algo = "solo2"
	alpha = 40
	defer func() { algo, alpha = "", 0 }()

	cfg, err := algoConfig()
	require.NoError(t, err)
	require.Equal(t, node.Solo2, cfg.Kind)
	require.Equal(t, 40, cfg.Alpha)
	require.Equal(t, int64(10), cfg.Jitter) // filled in by Validate
}

func TestExitCodeForUsageErrorIsTwo(t *testing.T) {
	err := desyncerrors.NewUsageError("op", "bad flag", nil)
	require.Equal(t, 2, exitCodeFor(err))
}

func TestExitCodeForOtherErrorsIsOne(t *testing.T) {
	err := desyncerrors.NewIOError("op", "disk full", nil)
	require.Equal(t, 1, exitCodeFor(err))
}

func TestCheckOutDirRejectsMissingDirectory(t *testing.T) {
	err := checkOutDir(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	var se *desyncerrors.SimError
	require.ErrorAs(t, err, &se)
	require.Equal(t, desyncerrors.KindUsage, se.Kind)
}

func TestCheckOutDirRejectsNonEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("x"), 0644))

	err := checkOutDir(dir)
	require.Error(t, err)
	var se *desyncerrors.SimError
	require.ErrorAs(t, err, &se)
	require.Equal(t, desyncerrors.KindUsage, se.Kind)
}

func TestCheckOutDirAcceptsEmptyDirectory(t *testing.T) {
	require.NoError(t, checkOutDir(t.TempDir()))
}
