package devtools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PageURL holds the resolved URL metadata for an analyzed page.
type PageURL struct {
	// MainDocumentURL is the URL of the main document request after
	// redirects. Empty for non-navigation captures (e.g., a snapshot of an
	// already-loaded page).
	MainDocumentURL string `json:"mainDocumentUrl,omitempty"`
	// FinalDisplayedURL is the URL shown in the address bar when capture ended.
	FinalDisplayedURL string `json:"finalDisplayedUrl"`
}

// Canonical returns the page's canonical URL, preferring the main-document
// URL and falling back to the final displayed URL.
func (u PageURL) Canonical() string {
	if u.MainDocumentURL != "" {
		return u.MainDocumentURL
	}
	return u.FinalDisplayedURL
}

// Bundle is the on-disk telemetry format written by gather and read by
// analyze: page URL metadata plus the ordered protocol event log.
type Bundle struct {
	FinalDisplayedURL string     `json:"finalDisplayedUrl"`
	MainDocumentURL   string     `json:"mainDocumentUrl,omitempty"`
	Log               []LogEntry `json:"log"`
}

// PageURL returns the bundle's URL metadata.
func (b *Bundle) PageURL() PageURL {
	return PageURL{
		MainDocumentURL:   b.MainDocumentURL,
		FinalDisplayedURL: b.FinalDisplayedURL,
	}
}

// DevtoolsLog wraps the bundle's entries in a Log.
func (b *Bundle) DevtoolsLog() *Log {
	return NewLog(b.Log)
}

// ReadBundle loads a telemetry bundle from disk.
func ReadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}
	if b.FinalDisplayedURL == "" {
		return nil, fmt.Errorf("bundle %s: missing finalDisplayedUrl", path)
	}
	return &b, nil
}

// WriteFile persists the bundle as indented JSON.
func (b *Bundle) WriteFile(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
