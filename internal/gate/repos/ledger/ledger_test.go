package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/perch-io/crossgate/internal/gate/common/log"
	"github.com/perch-io/crossgate/internal/gate/common/uriutil"
	"github.com/perch-io/crossgate/internal/gate/domain"
)

func newTestLedger() *Ledger {
	identify := func(uri string) string {
		return uriutil.Identify(uri, domain.LevelBaseDomain)
	}
	return New(identify, log.NewNoopLogger())
}

func TestLedger_RecordRejected(t *testing.T) {
	l := newTestLedger()
	l.RecordRejected("http://a.example/page", "http://b.example/img.png")

	assert.True(t, l.OriginHasRejectedRequests("http://a.example/page"))
	assert.False(t, l.OriginHasRejectedRequests("http://b.example/img.png"))

	snap := l.RejectedSnapshot()
	assert.Contains(t, snap, "http://a.example/page")
	assert.Contains(t, snap["http://a.example/page"], "b.example")
	assert.ElementsMatch(t, []string{"http://b.example/img.png"}, snap["http://a.example/page"]["b.example"])
}

// Recording the same pair as allowed and rejected in any order leaves it
// in exactly one set.
func TestLedger_MutualExclusivity(t *testing.T) {
	l := newTestLedger()
	origin, dest := "http://a.example/", "http://b.example/x"

	l.RecordRejected(origin, dest)
	l.RecordAllowed(origin, dest, false)
	assert.Empty(t, l.RejectedSnapshot(), "allow must evict the rejected entry")
	assert.Contains(t, l.AllowedSnapshot(), origin)
	assert.False(t, l.OriginHasRejectedRequests(origin))

	l.RecordRejected(origin, dest)
	assert.Empty(t, l.AllowedSnapshot(), "reject must evict the allowed entry")
	assert.True(t, l.OriginHasRejectedRequests(origin))
}

func TestLedger_DuplicateRecordingIsIdempotent(t *testing.T) {
	l := newTestLedger()
	l.RecordRejected("http://a.example/", "http://b.example/x")
	l.RecordRejected("http://a.example/", "http://b.example/x")
	l.RecordRejected("http://a.example/", "http://b.example/x")

	// one eviction empties the bucket, so the count was 1, not 3
	l.RecordAllowed("http://a.example/", "http://b.example/x", false)
	assert.Empty(t, l.RejectedSnapshot())
}

func TestLedger_BucketsGroupByDestIdentifier(t *testing.T) {
	l := newTestLedger()
	l.RecordRejected("http://a.example/", "http://b.example/x")
	l.RecordRejected("http://a.example/", "http://cdn.b.example/y")
	l.RecordRejected("http://a.example/", "http://c.example/z")

	snap := l.RejectedSnapshot()
	assert.Len(t, snap["http://a.example/"], 2)
	assert.Len(t, snap["http://a.example/"]["b.example"], 2, "same base domain shares a bucket")
	assert.Len(t, snap["http://a.example/"]["c.example"], 1)
}

// Allowing a destination as a (re)loaded page wipes everything that was
// previously recorded as originating from it.
func TestLedger_CascadingReset(t *testing.T) {
	l := newTestLedger()
	page := "http://b.example/page"
	l.RecordRejected(page, "http://ads.example/pixel")
	l.RecordAllowed(page, "http://cdn.example/app.js", false)
	assert.True(t, l.OriginHasRejectedRequests(page))

	l.RecordAllowed("http://a.example/", page, false)

	assert.False(t, l.OriginHasRejectedRequests(page), "old sub-requests are superseded")
	snap := l.AllowedSnapshot()
	assert.NotContains(t, snap, page)
	assert.Contains(t, snap, "http://a.example/")
}

func TestLedger_RedirectInsertSkipsCascade(t *testing.T) {
	l := newTestLedger()
	page := "http://b.example/page"
	l.RecordRejected(page, "http://ads.example/pixel")

	l.RecordAllowed("http://a.example/", page, true)

	assert.True(t, l.OriginHasRejectedRequests(page), "merge insert must not clear prior entries")
	assert.True(t, l.OriginHasRejectedRequests("http://a.example/"), "and the chain is now transitive")
}

func TestLedger_TransitiveRejectedQuery(t *testing.T) {
	l := newTestLedger()
	l.RecordAllowed("http://start.example/", "http://mid.example/", false)
	l.RecordAllowed("http://mid.example/", "http://leaf.example/", false)
	l.RecordRejected("http://leaf.example/", "http://blocked.example/x")

	assert.True(t, l.OriginHasRejectedRequests("http://leaf.example/"))
	assert.True(t, l.OriginHasRejectedRequests("http://mid.example/"))
	assert.True(t, l.OriginHasRejectedRequests("http://start.example/"))
	assert.False(t, l.OriginHasRejectedRequests("http://other.example/"))
}

func TestLedger_TransitiveQueryTerminatesOnCycle(t *testing.T) {
	l := newTestLedger()
	// a -> b -> c -> a, no rejections anywhere
	l.RecordAllowed("http://a.example/", "http://b.example/", true)
	l.RecordAllowed("http://b.example/", "http://c.example/", true)
	l.RecordAllowed("http://c.example/", "http://a.example/", true)

	assert.False(t, l.OriginHasRejectedRequests("http://a.example/"))

	l.RecordRejected("http://c.example/", "http://blocked.example/")
	assert.True(t, l.OriginHasRejectedRequests("http://a.example/"))
}

func TestLedger_Clear(t *testing.T) {
	l := newTestLedger()
	l.RecordAllowed("http://a.example/", "http://b.example/", false)
	l.RecordRejected("http://a.example/", "http://c.example/")

	l.Clear()
	assert.Empty(t, l.AllowedSnapshot())
	assert.Empty(t, l.RejectedSnapshot())
	assert.False(t, l.OriginHasRejectedRequests("http://a.example/"))
}

func TestLedger_SnapshotIsDeepCopy(t *testing.T) {
	l := newTestLedger()
	l.RecordRejected("http://a.example/", "http://b.example/x")

	snap := l.RejectedSnapshot()
	snap["http://a.example/"]["b.example"][0] = "mutated"
	delete(snap, "http://a.example/")

	fresh := l.RejectedSnapshot()
	assert.ElementsMatch(t, []string{"http://b.example/x"}, fresh["http://a.example/"]["b.example"])
}
