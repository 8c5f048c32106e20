package audits

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"pagelens/internal/artifacts"
	"pagelens/internal/devtools"
	"pagelens/internal/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestEntry(url string) devtools.LogEntry {
	return devtools.LogEntry{
		Method: devtools.MethodRequestWillBeSent,
		Params: json.RawMessage(fmt.Sprintf(`{"requestId":"1","request":{"url":%q}}`, url)),
	}
}

// shopInputs builds a page on shop.example.com with two first-party requests,
// three analytics requests, and one unrecognized third party.
func shopInputs() entities.Inputs {
	log := devtools.NewLog([]devtools.LogEntry{
		requestEntry("https://shop.example.com/"),
		requestEntry("https://shop.example.com/cart"),
		requestEntry("https://www.google-analytics.com/collect"),
		requestEntry("https://www.google-analytics.com/analytics.js"),
		requestEntry("https://www.googletagmanager.com/gtm.js"),
		requestEntry("https://cdn.sketchy-ads.net/banner.js"),
	})
	return entities.Inputs{
		Log: log,
		URL: devtools.PageURL{MainDocumentURL: "https://shop.example.com/"},
	}
}

func TestThirdPartySummary(t *testing.T) {
	run := artifacts.NewContext()
	res, err := ThirdPartySummary{}.Run(context.Background(), run, shopInputs())
	require.NoError(t, err)

	assert.Equal(t, "third-party-summary", res.Audit)
	details, ok := res.Details.(ThirdPartyDetails)
	require.True(t, ok)

	assert.Equal(t, 6, details.TotalClassified)
	require.Equal(t, 2, details.ThirdPartyCount)

	// Sorted by request count descending; first party excluded.
	assert.Equal(t, "Google Analytics", details.Rows[0].Entity)
	assert.Equal(t, 3, details.Rows[0].RequestCount)
	assert.InDelta(t, 0.5, details.Rows[0].TrafficShare, 1e-9)
	assert.False(t, details.Rows[0].Unrecognized)

	assert.Equal(t, "sketchy-ads.net", details.Rows[1].Entity)
	assert.Equal(t, "sketchy-ads.net", details.Rows[1].Key)
	assert.Equal(t, 1, details.Rows[1].RequestCount)
	assert.True(t, details.Rows[1].Unrecognized)
}

func TestFirstPartyShare(t *testing.T) {
	run := artifacts.NewContext()
	res, err := FirstPartyShare{}.Run(context.Background(), run, shopInputs())
	require.NoError(t, err)

	details, ok := res.Details.(FirstPartyDetails)
	require.True(t, ok)
	assert.Equal(t, "example.com", details.FirstPartyKey)
	assert.Equal(t, 2, details.FirstPartyCount)
	assert.Equal(t, 6, details.TotalClassified)
	assert.InDelta(t, 2.0/6.0, details.Share, 1e-9)
	assert.False(t, details.FirstPartyMissing)
}

func TestFirstPartyShare_MissingFirstParty(t *testing.T) {
	in := entities.Inputs{
		Log: devtools.NewLog([]devtools.LogEntry{requestEntry("https://example.com/")}),
		URL: devtools.PageURL{FinalDisplayedURL: "about:blank"},
	}
	res, err := FirstPartyShare{}.Run(context.Background(), artifacts.NewContext(), in)
	require.NoError(t, err)

	details := res.Details.(FirstPartyDetails)
	assert.True(t, details.FirstPartyMissing)
	assert.Zero(t, details.FirstPartyCount)
	assert.Equal(t, 1, details.TotalClassified)
}

func TestAudits_ShareClassificationWithinRun(t *testing.T) {
	run := artifacts.NewContext()
	in := shopInputs()

	for _, audit := range All() {
		_, err := audit.Run(context.Background(), run, in)
		require.NoError(t, err, audit.Name())
	}

	// Both audits resolved through the same cached artifacts: one entry for
	// classification, one for the records it depends on.
	assert.Equal(t, 2, run.Size())
}

func TestAudits_PropagateClassificationFailure(t *testing.T) {
	run := artifacts.NewContext()
	in := entities.Inputs{URL: devtools.PageURL{FinalDisplayedURL: "https://example.com/"}} // nil log

	_, err1 := ThirdPartySummary{}.Run(context.Background(), run, in)
	require.Error(t, err1)
	_, err2 := FirstPartyShare{}.Run(context.Background(), run, in)
	require.Error(t, err2)
}

func TestAll_NamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, audit := range All() {
		require.NotEmpty(t, audit.Name())
		assert.False(t, seen[audit.Name()], "duplicate audit name %s", audit.Name())
		seen[audit.Name()] = true
	}
}
