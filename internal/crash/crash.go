/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report, a rescued copy of the
// annotated image and a non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"photomark/internal/export"
	applog "photomark/internal/log"
	"photomark/internal/telemetry"
	"photomark/internal/version"
)

var exitFn = os.Exit

// Rescue tells Recover where to write and what to save. A nil Rescue writes
// the report to the temp dir and saves no image.
type Rescue struct {
	// Dir receives crash-<stamp>.log and rescue-<stamp>.png. Empty means os.TempDir().
	Dir string
	// Merged returns the flattened image of the open session, if any.
	Merged func() (*image.RGBA, error)
}

// Recover must be deferred directly:
//
//	defer crash.Recover(&crash.Rescue{Dir: dir, Merged: s.Merged})
func Recover(rs *Rescue) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	stamp := time.Now().Format("20060102-150405")
	reportPath, err := writeReport(rs.dir(), stamp, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if path, err := rs.saveImage(stamp); err != nil {
		l.Error("rescue image failed", slog.Any("err", err))
	} else if path != "" {
		l.Info("rescued annotated image", slog.String("path", path))
		_, _ = fmt.Fprintf(os.Stderr, "Your annotated image was saved to: %s\n", path)
	}

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\n", version.String())
	exitFn(2)
}

func (rs *Rescue) dir() string {
	if rs == nil || rs.Dir == "" {
		return os.TempDir()
	}
	return rs.Dir
}

func (rs *Rescue) saveImage(stamp string) (path string, err error) {
	if rs == nil || rs.Merged == nil {
		return "", nil
	}
	// The session may be the thing that panicked.
	defer func() {
		if r := recover(); r != nil {
			path, err = "", fmt.Errorf("merge panicked: %v", r)
		}
	}()
	img, err := rs.Merged()
	if err != nil || img == nil {
		return "", err
	}
	path = filepath.Join(rs.dir(), "rescue-"+stamp+export.PNG.Ext())
	if err := export.WriteFile(path, img, export.Options{Format: export.PNG}); err != nil {
		return "", err
	}
	return path, nil
}

func writeReport(dir, stamp string, panicVal any, stack []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "crash-"+stamp+".log")

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "photomark crash report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
