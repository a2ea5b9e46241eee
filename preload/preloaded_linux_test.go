package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tu "github.com/pleclech/preloadfs/fs/utils/testing"
)

// preloadedEnv builds the shared library and the C programs from testdata
// into a temporary directory
type preloadedEnv struct {
	dir string
	lib string
}

func newPreloadedEnv(t *testing.T) *preloadedEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping preloaded process tests in short mode")
	}
	for _, tool := range []string{"go", "cc"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available: %v", tool, err)
		}
	}

	dir := t.TempDir()
	e := &preloadedEnv{dir: dir, lib: filepath.Join(dir, "libpreloadfs.so")}

	build := exec.Command("go", "build", "-buildmode=c-shared", "-o", e.lib, ".")
	build.Env = append(os.Environ(), "CGO_ENABLED=1")
	e.must(t, build)

	e.must(t, exec.Command("cc", "-o", filepath.Join(dir, "harness"), "testdata/harness.c"))
	e.must(t, exec.Command("cc", "-shared", "-fPIC", "-o", filepath.Join(dir, "libctor.so"), "testdata/ctor.c"))
	e.must(t, exec.Command("cc", "-o", filepath.Join(dir, "ctormain"), "testdata/ctormain.c",
		"-L"+dir, "-lctor", "-Wl,-rpath,"+dir))
	return e
}

func (e *preloadedEnv) must(t *testing.T, cmd *exec.Cmd) {
	t.Helper()
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("%s: %v\n%s", strings.Join(cmd.Args, " "), err, out)
	}
}

// run executes name with the library preloaded; a hung process fails the
// test instead of blocking it
func (e *preloadedEnv) run(t *testing.T, cfg string, extraEnv []string, name string, args ...string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if !filepath.IsAbs(name) {
		name = filepath.Join(e.dir, name)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "LD_PRELOAD="+e.lib, "PRELOADFS_CONFIG="+cfg)
	cmd.Env = append(cmd.Env, extraEnv...)
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		t.Fatalf("%s %v did not finish: %v\n%s", name, args, ctx.Err(), out)
	}
	if err != nil {
		t.Fatalf("%s %v: %v\n%s", name, args, err, out)
	}
	return string(out)
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestPreloadedProcess(t *testing.T) {
	e := newPreloadedEnv(t)

	layout := tu.NewLayout(t, 2)
	layout.WriteBase(t, "dir/a", "base")
	layout.WriteBase(t, "dir/b", "base")
	layout.WriteOverlay(t, 0, "dir/b", "high")
	layout.WriteOverlay(t, 0, "dir/c", "high")
	layout.WriteOverlay(t, 1, "etc/foo.conf", "from the low root\n")
	cfg := layout.WriteConfig(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "file only under the low root",
			args: []string{"cat", layout.Logical("etc/foo.conf")},
			want: []string{"from the low root"},
		},
		{
			name: "overlay shadows base",
			args: []string{"cat", layout.Logical("dir/b")},
			want: []string{"high"},
		},
		{
			name: "successful stat keeps errno",
			args: []string{"stat", layout.Logical("etc/foo.conf")},
			want: []string{"stat=0 errno=1234"},
		},
		{
			name: "missing path reports ENOENT",
			args: []string{"stat", layout.Logical("nowhere")},
			want: []string{"stat=-1 errno=2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lines(e.run(t, cfg, nil, "harness", tt.args...))
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("merged listing", func(t *testing.T) {
		got := lines(e.run(t, cfg, nil, "harness", "ls", layout.Logical("dir")))
		tu.NamesShouldEqual(got, []string{".", "..", "a", "b", "c"}, t)
	})

	t.Run("library constructor runs before the layer is ready", func(t *testing.T) {
		env := []string{"CTOR_PATH=" + layout.Logical("etc/foo.conf")}
		got := lines(e.run(t, cfg, env, "ctormain", layout.Logical("etc/foo.conf")))
		if want := "ctor=1 stat=0"; len(got) != 1 || got[0] != want {
			t.Errorf("output = %q, want %q", got, want)
		}
	})

	t.Run("system ls", func(t *testing.T) {
		ls, err := exec.LookPath("ls")
		if err != nil {
			t.Skipf("ls not available: %v", err)
		}
		got := lines(e.run(t, cfg, nil, ls, "-1", layout.Logical("dir")))
		if want := []string{"a", "b", "c"}; strings.Join(got, "\n") != strings.Join(want, "\n") {
			t.Errorf("ls output = %q, want %q", got, want)
		}
	})
}
