// Package records normalizes the raw protocol event log into the ordered
// network request sequence the rest of the pipeline consumes. It is a
// computed artifact so that every audit sharing it within a run triggers the
// derivation exactly once.
package records

import (
	"context"
	"fmt"

	"pagelens/internal/artifacts"
	"pagelens/internal/devtools"
	"pagelens/internal/logging"
)

// Record is one observed network request. Order in the derived slice is the
// log's arrival order.
type Record struct {
	RequestID   string  `json:"requestId"`
	URL         string  `json:"url"`
	Method      string  `json:"method,omitempty"`
	DocumentURL string  `json:"documentUrl,omitempty"`
	Timestamp   float64 `json:"timestamp,omitempty"`
}

// Inputs declares the dependencies of the NetworkRecords artifact.
type Inputs struct {
	Log *devtools.Log
}

// Fingerprint keys the cache by the log's memoized content hash.
func (in Inputs) Fingerprint() string {
	if in.Log == nil {
		return "log:nil"
	}
	return "log:" + in.Log.Hash()
}

// NetworkRecords derives the ordered request records from
// Network.requestWillBeSent entries of the protocol log.
var NetworkRecords = artifacts.Define("NetworkRecords", nil, compute)

func compute(_ context.Context, in Inputs, _ *artifacts.Scope) ([]Record, error) {
	if in.Log == nil {
		return nil, fmt.Errorf("records: devtools log required")
	}

	recs := make([]Record, 0, in.Log.Len())
	for _, entry := range in.Log.Entries {
		p, ok := entry.RequestWillBeSent()
		if !ok || p.Request.URL == "" {
			continue
		}
		recs = append(recs, Record{
			RequestID:   p.RequestID,
			URL:         p.Request.URL,
			Method:      p.Request.Method,
			DocumentURL: p.DocumentURL,
			Timestamp:   p.Timestamp,
		})
	}

	logging.ArtifactsDebug("derived %d network records from %d log entries", len(recs), in.Log.Len())
	return recs, nil
}
