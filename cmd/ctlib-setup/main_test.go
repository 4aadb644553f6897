// Copyright ctlib-bindings-go Contributors (https://github.com/ase-go/ctlib-bindings-go)
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ase-go/ctlib-bindings-go/ctmsg"
)

func TestGetTarget(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		arch     string
		abi      string
		expected string
	}{
		{name: "linux amd64 gnu", goos: "linux", arch: "amd64", abi: "gnu", expected: "x86_64-unknown-linux-gnu"},
		{name: "linux amd64 musl", goos: "linux", arch: "amd64", abi: "musl", expected: "x86_64-unknown-linux-musl"},
		{name: "linux arm64 gnu", goos: "linux", arch: "arm64", abi: "gnu", expected: "aarch64-unknown-linux-gnu"},
		{name: "darwin amd64", goos: "darwin", arch: "amd64", expected: "x86_64-apple-darwin"},
		{name: "darwin arm64 with abi ignored", goos: "darwin", arch: "arm64", abi: "musl", expected: "aarch64-apple-darwin"},
		{name: "windows amd64", goos: "windows", arch: "amd64", expected: "x86_64-pc-windows-msvc"},
		{name: "unknown os", goos: "freebsd", arch: "amd64", expected: "amd64-unknown-freebsd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetTarget(tt.goos, tt.arch, tt.abi))
		})
	}
}

func TestGetTarget_foreignLinuxDefaultsToGnu(t *testing.T) {
	if runtime.GOOS == "linux" {
		t.Skip("ABI is detected on linux hosts")
	}
	assert.Equal(t, "x86_64-unknown-linux-gnu", GetTarget("linux", "amd64", ""))
}

func TestGetABI(t *testing.T) {
	abi := GetABI()
	if runtime.GOOS != "linux" {
		assert.Empty(t, abi)
		return
	}
	assert.Contains(t, []string{"gnu", "musl"}, abi)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("x86_64-unknown-linux-gnu"))
	assert.True(t, Supported("x86_64-pc-windows-msvc"))
	assert.False(t, Supported("x86_64-unknown-linux-musl"))
	assert.False(t, Supported("amd64-unknown-freebsd"))
}

func TestLibraryNames(t *testing.T) {
	tests := []struct {
		name      string
		goos      string
		reentrant bool
		expected  []string
	}{
		{
			name:     "linux",
			goos:     "linux",
			expected: []string{"sybct64", "sybcs64", "sybtcl64", "sybcomn64", "sybintl64", "sybunic64"},
		},
		{
			name:      "linux reentrant",
			goos:      "linux",
			reentrant: true,
			expected:  []string{"sybct_r64", "sybcs_r64", "sybtcl_r64", "sybcomn_r64", "sybintl_r64", "sybunic_r64"},
		},
		{
			name:      "windows ignores reentrant",
			goos:      "windows",
			reentrant: true,
			expected:  []string{"libsybct64", "libsybcs64", "libsybtcl64", "libsybcomn64", "libsybintl64", "libsybunic64"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LibraryNames(tt.goos, tt.reentrant))
		})
	}
}

func TestLibraryFileName(t *testing.T) {
	assert.Equal(t, "libsybct64.so", LibraryFileName("linux", "sybct64"))
	assert.Equal(t, "libsybct64.dylib", LibraryFileName("darwin", "sybct64"))
	assert.Equal(t, "libsybct64.lib", LibraryFileName("windows", "libsybct64"))
}

func TestOCSDir(t *testing.T) {
	_, err := OCSDir("", "OCS-16_0")
	require.Error(t, err)

	dir, err := OCSDir("/opt/sap", "OCS-16_0")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/opt/sap", "OCS-16_0"), dir)
}

func TestCgoFlags(t *testing.T) {
	dir := filepath.Join("/opt/sap", "OCS-16_0")

	cflags, ldflags := CgoFlags(dir, "linux", true)
	assert.Equal(t, "-I"+filepath.Join(dir, "include")+" -D_REENTRANT", cflags)
	assert.Equal(t, "-L"+filepath.Join(dir, "lib")+" -Wl,-rpath,"+filepath.Join(dir, "lib"), ldflags)

	cflags, ldflags = CgoFlags(dir, "darwin", false)
	assert.Equal(t, "-I"+filepath.Join(dir, "include"), cflags)
	assert.Equal(t, "-L"+filepath.Join(dir, "lib"), ldflags)
}

func TestMissingLibraries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "include", "ctpublic.h"), nil, 0o600))

	names := LibraryNames("linux", false)
	missing := MissingLibraries(dir, "linux", names)
	assert.Len(t, missing, len(names))

	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", LibraryFileName("linux", name)), nil, 0o600))
	}
	assert.Empty(t, MissingLibraries(dir, "linux", names))

	require.NoError(t, os.Remove(filepath.Join(dir, "include", "ctpublic.h")))
	assert.Equal(t, []string{filepath.Join(dir, "include", "ctpublic.h")}, MissingLibraries(dir, "linux", names))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	ocs := filepath.Join(dir, "OCS-16_0")

	t.Run("flags", func(t *testing.T) {
		var out bytes.Buffer
		err := run(options{Sybase: dir, OCS: "OCS-16_0", OS: "linux", Arch: "amd64"}, &out)
		require.NoError(t, err)
		assert.Contains(t, out.String(), `export CGO_CFLAGS="-I`+filepath.Join(ocs, "include")+`"`)
		assert.Contains(t, out.String(), "export CGO_LDFLAGS=")
	})

	t.Run("no installation root", func(t *testing.T) {
		var out bytes.Buffer
		require.Error(t, run(options{OCS: "OCS-16_0", OS: "linux"}, &out))
	})

	t.Run("check fails on empty installation", func(t *testing.T) {
		var out bytes.Buffer
		err := run(options{Sybase: dir, OCS: "OCS-16_0", OS: "linux", Check: true}, &out)
		require.Error(t, err)
		assert.Contains(t, out.String(), "missing")
	})
}

func TestSelfTest(t *testing.T) {
	var out bytes.Buffer
	err := SelfTest(ctmsg.DefaultConfig(), &out)
	require.NoError(t, err, out.String())
	assert.Contains(t, out.String(), "server message content")
	assert.Contains(t, out.String(), "concurrent connections")
	assert.NotContains(t, out.String(), "FAIL")
}

func TestSelfTest_withQueue(t *testing.T) {
	cfg := ctmsg.DefaultConfig()
	cfg.QueueSize = 64
	cfg.Workers = 2

	var out bytes.Buffer
	require.NoError(t, SelfTest(cfg, &out), out.String())
	assert.Contains(t, out.String(), "dropped 0")
}

func TestSelfTest_invalidConfig(t *testing.T) {
	cfg := ctmsg.DefaultConfig()
	cfg.QueueSize = -1

	var out bytes.Buffer
	require.Error(t, SelfTest(cfg, &out))
}
