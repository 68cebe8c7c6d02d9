/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recorder struct {
	events  chan map[string]any
	crashes chan string
}

func newRecorder(t *testing.T) (*recorder, *httptest.Server) {
	t.Helper()
	rec := &recorder{events: make(chan map[string]any, 8), crashes: make(chan string, 8)}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		rec.events <- m
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.crashes <- string(b)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return rec, srv
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for request")
	}
	var zero T
	return zero
}

func TestClientPostsEventsAndCrashes(t *testing.T) {
	rec, srv := newRecorder(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("client should be enabled")
	}

	c.Event(EventImageLoaded, map[string]any{"width": 640, "name": "spoofed"})
	m := waitFor(t, rec.events)
	if m["name"] != EventImageLoaded {
		t.Fatalf("reserved field overwritten or missing: %v", m["name"])
	}
	if m["width"] != float64(640) {
		t.Fatalf("props not sent: %v", m)
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts: %v", m)
	}

	c.UploadCrash([]byte("STACKTRACE"))
	if got := waitFor(t, rec.crashes); got != "STACKTRACE" {
		t.Fatalf("crash body = %q", got)
	}
}

func TestClientDisabledSendsNothing(t *testing.T) {
	rec, srv := newRecorder(t)
	cases := []Config{
		{OptIn: false, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash"},
		{OptIn: true},
	}
	for _, cfg := range cases {
		c := New(cfg)
		c.Event(EventSessionStart, nil)
		c.UploadCrash([]byte("x"))
		c.Flush(context.Background())
		c.Close()
	}
	on := New(Config{OptIn: true, EventsURL: srv.URL + "/events"})
	defer on.Close()
	on.Event("", nil)
	select {
	case m := <-rec.events:
		t.Fatalf("unexpected event: %v", m)
	case s := <-rec.crashes:
		t.Fatalf("unexpected crash upload: %q", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnreachableEndpointIsHarmless(t *testing.T) {
	c := New(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events", CrashURL: "http://127.0.0.1:1/crash", Timeout: 50 * time.Millisecond, DebugLogging: true})
	defer c.Close()
	c.Event("err", map[string]any{"a": 1})
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvOptIn, "yes")
	t.Setenv(EnvEventsURL, " http://127.0.0.1:0/e ")
	t.Setenv(EnvCrashURL, "")
	t.Setenv(EnvTimeoutMS, "100")
	t.Setenv(EnvDebug, "")
	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL != "http://127.0.0.1:0/e" || cfg.Timeout != 100*time.Millisecond || cfg.DebugLogging {
		t.Fatalf("FromEnv = %+v", cfg)
	}
	t.Setenv(EnvTimeoutMS, "soon")
	if FromEnv().Timeout != 1500*time.Millisecond {
		t.Fatalf("bad timeout should keep the default")
	}
}

func TestPackageHelpersUseInstalledClient(t *testing.T) {
	if Enabled() {
		t.Fatalf("no client installed yet")
	}
	ImageLoaded(1, 1, "png") // no-op without a client

	rec, srv := newRecorder(t)
	c := Install(Config{OptIn: true, EventsURL: srv.URL + "/events"})
	t.Cleanup(func() { Install(Config{}).Close() })
	if !Enabled() || current() != c {
		t.Fatalf("Install did not take effect")
	}
	ImageExported("jpeg", 1234, 3)
	m := waitFor(t, rec.events)
	if m["name"] != EventImageExported || m["format"] != "jpeg" || m["strokes"] != float64(3) {
		t.Fatalf("event = %v", m)
	}
}
