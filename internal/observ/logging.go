// Package observ is the structured logging and metrics surface shared
// by every component. Logging follows the teacher's one-line
// event+kv idiom; metrics are backed by prometheus/client_golang.
package observ

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	mu    sync.Mutex
	runID string
)

// Init stamps every subsequent Log call with the given run_id. Call
// once at process start, before any other component logs.
func Init(id string) {
	mu.Lock()
	defer mu.Unlock()
	runID = id
}

// Log emits one JSON line to stdout: ts, event, run_id (if set), and
// the caller's key-value pairs.
func Log(event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	mu.Lock()
	id := runID
	mu.Unlock()
	kv["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	kv["event"] = event
	if id != "" {
		if _, present := kv["run_id"]; !present {
			kv["run_id"] = id
		}
	}
	b, err := json.Marshal(kv)
	if err != nil {
		fmt.Fprintf(os.Stderr, `{"event":"log_marshal_error","error":%q}`+"\n", err.Error())
		return
	}
	fmt.Println(string(b))
}

// Fatal logs a last-gasp IoError event to stderr and exits the process.
// Used only for the unrecoverable error class per spec.md §7.
func Fatal(event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	kv["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	kv["event"] = event
	kv["fatal"] = true
	b, _ := json.Marshal(kv)
	fmt.Fprintln(os.Stderr, string(b))
	os.Exit(1)
}
