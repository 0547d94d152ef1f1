package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/perch-io/crossgate/internal/gate/common/log"
	"github.com/perch-io/crossgate/internal/gate/domain"
)

func TestExport_GroupedAndSorted(t *testing.T) {
	s := New(nil, log.NewNoopLogger())
	assert.NoError(t, s.AddAllowRule(mustRule(t, "z.example|")))
	assert.NoError(t, s.AddAllowRule(mustRule(t, "a.example|")))
	assert.NoError(t, s.AddAllowRule(mustRule(t, "|b.example")))
	assert.NoError(t, s.AddAllowRule(mustRule(t, "a.example|b.example")))

	want := "[origins]\n" +
		"a.example\n" +
		"z.example\n" +
		"[destinations]\n" +
		"b.example\n" +
		"[origins-to-destinations]\n" +
		"a.example|b.example\n"
	assert.Equal(t, want, s.Export(domain.ActionAllow))
}

func TestExport_EmptyStoreStillCarriesHeaders(t *testing.T) {
	s := New(nil, log.NewNoopLogger())
	assert.Equal(t, "[origins]\n[destinations]\n[origins-to-destinations]\n",
		s.Export(domain.ActionDeny))
}

// Round-trip: export, import into an empty store, compare both the
// re-export bit-for-bit and ruleExists answers for a probe set.
func TestImportExport_RoundTrip(t *testing.T) {
	s := New(nil, log.NewNoopLogger())
	probes := []string{
		"a.example|",
		"*.wild.example|",
		"https://secure.example|",
		"|b.example",
		"|cdn.example:8080",
		"a.example|b.example",
		"https://a.example|https://b.example:443",
	}
	for _, p := range probes {
		assert.NoError(t, s.AddAllowRule(mustRule(t, p)))
	}
	doc := s.Export(domain.ActionAllow)

	fresh := New(nil, log.NewNoopLogger())
	assert.NoError(t, fresh.Import(domain.ActionAllow, doc))
	assert.Equal(t, doc, fresh.Export(domain.ActionAllow), "round-trip must be bit-for-bit")

	for _, p := range probes {
		assert.True(t, fresh.RuleExists(domain.ActionAllow, domain.ScopePermanent, mustRule(t, p)), p)
	}
	assert.False(t, fresh.RuleExists(domain.ActionAllow, domain.ScopePermanent, mustRule(t, "|never.example")))
}

func TestImport_ReplacesPermanentKeepsTemporary(t *testing.T) {
	s := New(nil, log.NewNoopLogger())
	assert.NoError(t, s.AddAllowRule(mustRule(t, "|old.example")))
	assert.NoError(t, s.AddTemporaryAllowRule(mustRule(t, "|temp.example")))

	assert.NoError(t, s.Import(domain.ActionAllow, "[origins]\n[destinations]\nnew.example\n[origins-to-destinations]\n"))

	assert.False(t, s.RuleExists(domain.ActionAllow, domain.ScopePermanent, mustRule(t, "|old.example")))
	assert.True(t, s.RuleExists(domain.ActionAllow, domain.ScopePermanent, mustRule(t, "|new.example")))
	assert.True(t, s.RuleExists(domain.ActionAllow, domain.ScopeTemporary, mustRule(t, "|temp.example")))
	assert.Equal(t, 1, s.TemporaryCount())
}

func TestImport_Rejections(t *testing.T) {
	s := New(nil, log.NewNoopLogger())
	assert.Error(t, s.Import(domain.ActionAllow, "a.example\n"), "rule before header")
	assert.Error(t, s.Import(domain.ActionAllow, "[unknown]\n"), "unknown header")
	assert.Error(t, s.Import(domain.ActionAllow, "[origins-to-destinations]\na.example\n"), "pair line missing separator")
	assert.NoError(t, s.Import(domain.ActionAllow, ""), "empty document is an empty rule set")
	assert.NoError(t, s.Import(domain.ActionAllow, "\n\n[origins]\n\na.example\n"), "blank lines are skipped")
}
