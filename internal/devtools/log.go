// Package devtools models the raw Chrome DevTools Protocol event log that
// pagelens analysis consumes. Entries preserve their raw params payload so
// methods we do not interpret pass through untouched.
package devtools

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// Protocol methods interpreted by the analysis pipeline.
const (
	MethodExecutionContextCreated = "Runtime.executionContextCreated"
	MethodRequestWillBeSent       = "Network.requestWillBeSent"
	MethodFrameNavigated          = "Page.frameNavigated"
)

// LogEntry is a single protocol event: a method name plus its raw payload.
type LogEntry struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Log is an ordered protocol event log. Order is the arrival order reported
// by the browser and is load-bearing for classification (first write wins).
type Log struct {
	Entries []LogEntry

	hashOnce sync.Once
	hash     string
}

// NewLog wraps an entry slice in a Log.
func NewLog(entries []LogEntry) *Log {
	return &Log{Entries: entries}
}

// Len returns the number of entries.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// Hash returns a stable fingerprint of the log contents. Computed once and
// memoized; used as the cache-key component for artifacts that consume the
// log, so the (possibly large) entry list is never re-serialized per request.
func (l *Log) Hash() string {
	l.hashOnce.Do(func() {
		h := sha256.New()
		for _, e := range l.Entries {
			h.Write([]byte(e.Method))
			h.Write([]byte{0})
			h.Write(e.Params)
			h.Write([]byte{0})
		}
		l.hash = hex.EncodeToString(h.Sum(nil))[:16]
	})
	return l.hash
}

// ExecutionContextCreatedParams is the payload of Runtime.executionContextCreated.
type ExecutionContextCreatedParams struct {
	Context ExecutionContextDescription `json:"context"`
}

// ExecutionContextDescription describes a created JS execution context.
type ExecutionContextDescription struct {
	Origin string `json:"origin"`
	Name   string `json:"name"`
}

// RequestWillBeSentParams is the payload of Network.requestWillBeSent.
type RequestWillBeSentParams struct {
	RequestID   string  `json:"requestId"`
	DocumentURL string  `json:"documentURL,omitempty"`
	Timestamp   float64 `json:"timestamp,omitempty"`
	Request     Request `json:"request"`
}

// Request carries the subset of the CDP request object we use.
type Request struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
}

// ExecutionContextCreated decodes the entry payload if the entry is a
// Runtime.executionContextCreated event.
func (e LogEntry) ExecutionContextCreated() (*ExecutionContextCreatedParams, bool) {
	if e.Method != MethodExecutionContextCreated {
		return nil, false
	}
	var p ExecutionContextCreatedParams
	if err := json.Unmarshal(e.Params, &p); err != nil {
		return nil, false
	}
	return &p, true
}

// RequestWillBeSent decodes the entry payload if the entry is a
// Network.requestWillBeSent event.
func (e LogEntry) RequestWillBeSent() (*RequestWillBeSentParams, bool) {
	if e.Method != MethodRequestWillBeSent {
		return nil, false
	}
	var p RequestWillBeSentParams
	if err := json.Unmarshal(e.Params, &p); err != nil {
		return nil, false
	}
	return &p, true
}
