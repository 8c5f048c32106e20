package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"pagelens/internal/artifacts"
	"pagelens/internal/devtools"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestEntry(url string) devtools.LogEntry {
	return devtools.LogEntry{
		Method: devtools.MethodRequestWillBeSent,
		Params: json.RawMessage(fmt.Sprintf(`{"requestId":"1","request":{"url":%q}}`, url)),
	}
}

func contextEntry(origin, name string) devtools.LogEntry {
	return devtools.LogEntry{
		Method: devtools.MethodExecutionContextCreated,
		Params: json.RawMessage(fmt.Sprintf(`{"context":{"origin":%q,"name":%q}}`, origin, name)),
	}
}

func logOf(entries ...devtools.LogEntry) *devtools.Log {
	return devtools.NewLog(entries)
}

func classify(t *testing.T, log *devtools.Log, pageURL devtools.PageURL) *Result {
	t.Helper()
	res, err := ClassifiedEntities.Request(context.Background(),
		Inputs{Log: log, URL: pageURL}, artifacts.NewContext())
	require.NoError(t, err)
	return res
}

func TestClassification_RootDomainRollUp(t *testing.T) {
	log := logOf(
		requestEntry("https://a.example.com/one"),
		requestEntry("https://b.example.com/two"),
		requestEntry("https://example.com/three"),
	)
	res := classify(t, log, devtools.PageURL{FinalDisplayedURL: "https://other.test/"})

	a := res.EntityByURL["https://a.example.com/one"]
	b := res.EntityByURL["https://b.example.com/two"]
	c := res.EntityByURL["https://example.com/three"]
	require.NotNil(t, a)
	assert.Same(t, a, b, "subdomains of one root domain share one entity value")
	assert.Same(t, a, c)

	assert.True(t, a.IsUnrecognized)
	assert.Equal(t, "example.com", a.Name)
	assert.Equal(t, "example.com", a.Company)
	assert.Equal(t, []string{"example.com"}, a.Domains)
	assert.Same(t, a, res.EntityByKey["example.com"])
	assert.Equal(t, "example.com", res.KeyOf(a))

	assert.ElementsMatch(t,
		[]string{"https://a.example.com/one", "https://b.example.com/two", "https://example.com/three"},
		res.URLsByEntity[a])
}

func TestClassification_MultiLabelPublicSuffix(t *testing.T) {
	log := logOf(
		requestEntry("https://shop.example.co.uk/cart"),
		requestEntry("https://cdn.example.co.uk/style.css"),
	)
	res := classify(t, log, devtools.PageURL{FinalDisplayedURL: "https://other.test/"})

	e := res.EntityByURL["https://shop.example.co.uk/cart"]
	require.NotNil(t, e)
	assert.Same(t, e, res.EntityByURL["https://cdn.example.co.uk/style.css"])
	assert.Equal(t, "example.co.uk", e.Name)
}

func TestClassification_ReferenceDataset(t *testing.T) {
	log := logOf(
		requestEntry("https://www.google-analytics.com/collect"),
		requestEntry("https://www.googletagmanager.com/gtm.js"),
		requestEntry("https://stats.g.doubleclick.net/r/collect"),
	)
	res := classify(t, log, devtools.PageURL{FinalDisplayedURL: "https://shop.test/"})

	ga := res.EntityByURL["https://www.google-analytics.com/collect"]
	require.NotNil(t, ga)
	assert.Equal(t, "Google Analytics", ga.Name)
	assert.Equal(t, "Google", ga.Company)
	assert.Equal(t, "analytics", ga.Category)
	assert.False(t, ga.IsUnrecognized)

	// Two domains of the same organization resolve to the same value.
	assert.Same(t, ga, res.EntityByURL["https://www.googletagmanager.com/gtm.js"])
	assert.Same(t, ga, res.EntityByKey["Google Analytics"])

	// Deep subdomain matches a dataset record via parent-domain walk.
	ads := res.EntityByURL["https://stats.g.doubleclick.net/r/collect"]
	require.NotNil(t, ads)
	assert.Equal(t, "Google/Doubleclick Ads", ads.Name)
	assert.NotSame(t, ga, ads)
}

func TestClassification_ExtensionContextPrecedence(t *testing.T) {
	log := logOf(
		// Context event arrives before (and regardless of order, preloads ahead
		// of) the extension's network requests.
		contextEntry("chrome-extension://abc123", "My Extension"),
		requestEntry("chrome-extension://abc123/content.js"),
		requestEntry("chrome-extension://abc123/styles.css"),
	)
	res := classify(t, log, devtools.PageURL{FinalDisplayedURL: "https://page.test/"})

	e := res.EntityByURL["chrome-extension://abc123/content.js"]
	require.NotNil(t, e)
	assert.Equal(t, "My Extension", e.Name)
	assert.Equal(t, "My Extension", e.Company)
	assert.Equal(t, "Chrome Extension", e.Category)
	assert.Equal(t, "https://chromewebstore.google.com/detail/abc123", e.Homepage)
	assert.False(t, e.IsUnrecognized)

	assert.Same(t, e, res.EntityByURL["chrome-extension://abc123/styles.css"])
	assert.Same(t, e, res.EntityByKey["chrome-extension://abc123"])
}

func TestClassification_ExtensionPreloadBeatsRecordOrder(t *testing.T) {
	// The record precedes the context event in the log; preloading still wins.
	log := logOf(
		requestEntry("chrome-extension://abc123/content.js"),
		contextEntry("chrome-extension://abc123", "My Extension"),
	)
	res := classify(t, log, devtools.PageURL{FinalDisplayedURL: "https://page.test/"})

	e := res.EntityByURL["chrome-extension://abc123/content.js"]
	require.NotNil(t, e)
	assert.Equal(t, "My Extension", e.Name)
}

func TestClassification_ExtensionFallbackWithoutContext(t *testing.T) {
	log := logOf(requestEntry("chrome-extension://zzz789/background.js"))
	res := classify(t, log, devtools.PageURL{FinalDisplayedURL: "https://page.test/"})

	e := res.EntityByURL["chrome-extension://zzz789/background.js"]
	require.NotNil(t, e)
	assert.Equal(t, "zzz789", e.Name, "extension host stands in when no context event named it")
	assert.Equal(t, "Chrome Extension", e.Category)
	assert.False(t, e.IsUnrecognized)
}

func TestClassification_UnclassifiableURLsOmitted(t *testing.T) {
	log := logOf(
		requestEntry("data:text/plain;base64,aGVsbG8="),
		requestEntry("about:blank"),
		requestEntry("blob:https://example.com/d3958f5c"),
		requestEntry("ftp://files.example.com/readme"),
		requestEntry("https://192.168.1.10/api"),
		requestEntry("https://localhost/dev"),
		requestEntry("https://real.example.com/ok"),
	)
	res := classify(t, log, devtools.PageURL{FinalDisplayedURL: "https://other.test/"})

	assert.Len(t, res.EntityByURL, 1, "only the classifiable URL appears")
	assert.Contains(t, res.EntityByURL, "https://real.example.com/ok")
}

func TestClassification_DuplicateURLCountedOnce(t *testing.T) {
	log := logOf(
		requestEntry("https://example.com/repeat"),
		requestEntry("https://example.com/repeat"),
		requestEntry("https://example.com/repeat"),
	)
	res := classify(t, log, devtools.PageURL{FinalDisplayedURL: "https://other.test/"})

	e := res.EntityByURL["https://example.com/repeat"]
	require.NotNil(t, e)
	assert.Equal(t, []string{"https://example.com/repeat"}, res.URLsByEntity[e])
}

func TestClassification_FirstPartyFromMainDocumentURL(t *testing.T) {
	log := logOf(
		requestEntry("https://shop.example.com/"),
		requestEntry("https://cdn.thirdparty.net/lib.js"),
	)
	res := classify(t, log, devtools.PageURL{
		MainDocumentURL:   "https://shop.example.com/",
		FinalDisplayedURL: "https://shop.example.com/#loaded",
	})

	require.NotNil(t, res.FirstParty)
	assert.Equal(t, "example.com", res.FirstParty.Name)
	assert.Same(t, res.FirstParty, res.EntityByURL["https://shop.example.com/"])

	assert.True(t, res.IsFirstParty("https://shop.example.com/"))
	assert.False(t, res.IsFirstParty("https://cdn.thirdparty.net/lib.js"))
	assert.False(t, res.IsFirstParty("https://never-seen.example.org/"))
}

func TestClassification_FirstPartyFallsBackToFinalURL(t *testing.T) {
	log := logOf(requestEntry("https://example.com/"))
	res := classify(t, log, devtools.PageURL{FinalDisplayedURL: "https://example.com/"})

	require.NotNil(t, res.FirstParty)
	assert.Equal(t, "example.com", res.FirstParty.Name)
}

func TestClassification_FirstPartySynthesizedWithoutMatchingRecords(t *testing.T) {
	// No record shares the page's domain; first party still resolves and is
	// registered, but owns no URLs.
	log := logOf(requestEntry("https://cdn.thirdparty.net/lib.js"))
	res := classify(t, log, devtools.PageURL{FinalDisplayedURL: "https://lonely.example.org/"})

	require.NotNil(t, res.FirstParty)
	assert.Equal(t, "example.org", res.FirstParty.Name)
	assert.Same(t, res.FirstParty, res.EntityByKey["example.org"])
	assert.Empty(t, res.URLsByEntity[res.FirstParty])
}

func TestClassification_FirstPartyNilForUnresolvablePage(t *testing.T) {
	log := logOf(requestEntry("https://example.com/"))
	res := classify(t, log, devtools.PageURL{FinalDisplayedURL: "about:blank"})
	assert.Nil(t, res.FirstParty)
	assert.False(t, res.IsFirstParty("https://example.com/"))
}

func TestClassification_CachedWithinRun(t *testing.T) {
	run := artifacts.NewContext()
	in := Inputs{
		Log: logOf(requestEntry("https://example.com/")),
		URL: devtools.PageURL{FinalDisplayedURL: "https://example.com/"},
	}

	first, err := ClassifiedEntities.Request(context.Background(), in, run)
	require.NoError(t, err)
	second, err := ClassifiedEntities.Request(context.Background(), in, run)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestClassification_IdempotentAcrossRuns(t *testing.T) {
	log := logOf(
		contextEntry("chrome-extension://abc123", "My Extension"),
		requestEntry("chrome-extension://abc123/content.js"),
		requestEntry("https://www.google-analytics.com/collect"),
		requestEntry("https://a.example.com/x"),
	)
	pageURL := devtools.PageURL{FinalDisplayedURL: "https://a.example.com/"}

	one := classify(t, log, pageURL)
	two := classify(t, log, pageURL)

	// Structurally identical across independent runs.
	assert.Empty(t, cmp.Diff(one.EntityByURL, two.EntityByURL))
	assert.Empty(t, cmp.Diff(one.EntityByKey, two.EntityByKey))
	assert.Empty(t, cmp.Diff(one.FirstParty, two.FirstParty))

	// But never sharing values: each run owns its entities.
	assert.NotSame(t, one.EntityByURL["https://www.google-analytics.com/collect"],
		two.EntityByURL["https://www.google-analytics.com/collect"])
}

func TestResult_KeyOfForeignEntity(t *testing.T) {
	res := classify(t, logOf(requestEntry("https://example.com/")),
		devtools.PageURL{FinalDisplayedURL: "https://example.com/"})
	assert.Equal(t, "", res.KeyOf(&Entity{Name: "stranger"}))
}
