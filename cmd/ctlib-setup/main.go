// Copyright ctlib-bindings-go Contributors (https://github.com/ase-go/ctlib-bindings-go)
// SPDX-License-Identifier: Apache-2.0

// ctlib-setup prints the cgo flags needed to build the ctlib bindings
// against an installed SAP Open Client and checks the installation.
//
// Usage:
//
//	go install github.com/ase-go/ctlib-bindings-go/cmd/ctlib-setup@latest
//	eval "$(ctlib-setup --sybase /opt/sap)"
//	go build -tags ctlib ./...
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/ase-go/ctlib-bindings-go/ctmsg"
)

type options struct {
	Sybase    string `long:"sybase" env:"SYBASE" description:"Open Client installation root"`
	OCS       string `long:"ocs" env:"SYBASE_OCS" default:"OCS-16_0" description:"Open Client directory below the installation root"`
	OS        string `long:"os" description:"target operating system, current if not set"`
	Arch      string `long:"arch" description:"target architecture, current if not set"`
	Reentrant bool   `long:"reentrant" description:"link the reentrant (_r) libraries"`
	Check     bool   `long:"check" description:"verify that all libraries are installed"`
	SelfTest  bool   `long:"selftest" description:"run the callback bridge against the simulated library"`

	Broker ctmsg.Config `group:"broker" namespace:"broker" env-namespace:"CTLIB"`

	Dbg bool `long:"dbg" description:"debug mode"`
}

// baseLibraries are the Open Client libraries the bindings link, in link
// order.
var baseLibraries = []string{"sybct", "sybcs", "sybtcl", "sybcomn", "sybintl", "sybunic"}

var exitFunc = os.Exit

// Version is the ctlib-setup version, "(devel)" for local builds.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(unknown)"
	}
	return info.Main.Version
}

// GetABI names the C library of the running Linux system, "musl" or
// "gnu". Open Client links against glibc only. Elsewhere it is empty.
func GetABI() string {
	if runtime.GOOS != "linux" {
		return ""
	}
	if isMusl() {
		return "musl"
	}
	return "gnu"
}

func isMusl() bool {
	for _, dir := range []string{"/lib", "/usr/lib"} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), "ld-musl-") {
				return true
			}
		}
	}
	return false
}

// GetTarget builds the platform triple Supported and LibraryNames are
// keyed on. Empty goos or arch mean the running system; abi is detected
// only when goos is the running one.
func GetTarget(goos, arch, abi string) string {
	if goos == "" {
		goos = runtime.GOOS
	}
	if arch == "" {
		arch = runtime.GOARCH
	}
	if abi == "" && goos == runtime.GOOS {
		abi = GetABI()
	}

	switch goos {
	case "darwin":
		if arch == "arm64" {
			return "aarch64-apple-darwin"
		}
		return "x86_64-apple-darwin"
	case "linux":
		libc := "gnu"
		if abi != "" {
			libc = abi
		}
		if arch == "arm64" {
			return fmt.Sprintf("aarch64-unknown-linux-%s", libc)
		}
		return fmt.Sprintf("x86_64-unknown-linux-%s", libc)
	case "windows":
		return "x86_64-pc-windows-msvc"
	}

	return fmt.Sprintf("%s-unknown-%s", arch, goos)
}

// Supported reports whether Open Client ships for target. There are no
// musl builds.
func Supported(target string) bool {
	switch target {
	case "x86_64-unknown-linux-gnu", "aarch64-unknown-linux-gnu",
		"x86_64-apple-darwin", "aarch64-apple-darwin", "x86_64-pc-windows-msvc":
		return true
	}
	return false
}

// LibraryNames returns the names to pass to the linker with -l.
// Example: LibraryNames("linux", true) -> ["sybct_r64", "sybcs_r64", ...]
func LibraryNames(goos string, reentrant bool) []string {
	suffix := "64"
	if reentrant && goos != "windows" {
		suffix = "_r64"
	}

	names := make([]string, 0, len(baseLibraries))
	for _, base := range baseLibraries {
		name := base + suffix
		if goos == "windows" {
			name = "lib" + name
		}
		names = append(names, name)
	}
	return names
}

// LibraryFileName returns the file the linker looks for when given -lname.
func LibraryFileName(goos, name string) string {
	switch goos {
	case "windows":
		return name + ".lib"
	case "darwin":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// OCSDir returns the Open Client directory of an installation.
func OCSDir(sybase, ocs string) (string, error) {
	if sybase == "" {
		return "", fmt.Errorf("installation root not set, use --sybase or $SYBASE")
	}
	return filepath.Join(sybase, ocs), nil
}

// CgoFlags returns CGO_CFLAGS and CGO_LDFLAGS for an installation.
func CgoFlags(ocsDir, goos string, reentrant bool) (cflags, ldflags string) {
	cflags = "-I" + filepath.Join(ocsDir, "include")
	if reentrant {
		cflags += " -D_REENTRANT"
	}

	parts := []string{"-L" + filepath.Join(ocsDir, "lib")}
	if goos != "windows" && goos != "darwin" {
		parts = append(parts, "-Wl,-rpath,"+filepath.Join(ocsDir, "lib"))
	}
	return cflags, strings.Join(parts, " ")
}

// MissingLibraries returns the libraries of names not found in the lib
// directory of ocsDir.
func MissingLibraries(ocsDir, goos string, names []string) []string {
	var missing []string
	for _, name := range names {
		path := filepath.Join(ocsDir, "lib", LibraryFileName(goos, name))
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	if _, err := os.Stat(filepath.Join(ocsDir, "include", "ctpublic.h")); err != nil {
		missing = append(missing, filepath.Join(ocsDir, "include", "ctpublic.h"))
	}
	return missing
}

func main() {
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		exitFunc(1) // can be redefined in tests
		return
	}
	setupLog(opts.Dbg)

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgHiRed).Sprint("error:"), err)
		exitFunc(1)
	}
}

func run(opts options, out io.Writer) error {
	goos := opts.OS
	if goos == "" {
		goos = runtime.GOOS
	}
	target := GetTarget(opts.OS, opts.Arch, "")

	if opts.SelfTest {
		return SelfTest(opts.Broker, out)
	}

	fmt.Fprintf(out, "# ctlib-setup %s, target %s\n", Version(), target)
	if !Supported(target) {
		lgr.Printf("[WARN] no Open Client build is known for %s", target)
	}

	ocsDir, err := OCSDir(opts.Sybase, opts.OCS)
	if err != nil {
		return err
	}

	names := LibraryNames(goos, opts.Reentrant)
	if opts.Check {
		if missing := MissingLibraries(ocsDir, goos, names); len(missing) > 0 {
			for _, m := range missing {
				fmt.Fprintf(out, "%s %s\n", color.New(color.FgRed).Sprint("missing"), m)
			}
			return fmt.Errorf("%d files missing in %s", len(missing), ocsDir)
		}
		fmt.Fprintf(out, "%s all libraries found in %s\n", color.New(color.FgGreen).Sprint("ok"), ocsDir)
		return nil
	}

	cflags, ldflags := CgoFlags(ocsDir, goos, opts.Reentrant)
	lgr.Printf("[DEBUG] link %s", strings.Join(names, " "))
	fmt.Fprintf(out, "export CGO_CFLAGS=%q\n", cflags)
	fmt.Fprintf(out, "export CGO_LDFLAGS=%q\n", ldflags)
	return nil
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.Err(os.Stderr), lgr.Out(os.Stderr)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces,
			lgr.StackTraceOnError, lgr.Err(os.Stderr), lgr.Out(os.Stderr)}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
