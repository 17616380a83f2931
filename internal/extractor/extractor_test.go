package extractor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramkansal/capwatch/pkg/plugin"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newPage(t *testing.T, markup string) *Page {
	t.Helper()
	p, err := NewPage("https://discgolfmetrix.com/2934567", markup, testNow, time.UTC)
	require.NoError(t, err)
	return p
}

func assertCounts(t *testing.T, res *plugin.CapacityResult, registered, limit int) {
	t.Helper()
	require.NotNil(t, res)
	require.NotNil(t, res.Registered, "registered")
	require.NotNil(t, res.Limit, "limit")
	require.NotNil(t, res.Remaining, "remaining")
	assert.Equal(t, registered, *res.Registered)
	assert.Equal(t, limit, *res.Limit)
	assert.Equal(t, limit-registered, *res.Remaining)
}

const playersTable = `
<table>
  <tr><th>Name</th><th>Club</th></tr>
  <tr><td>Anna</td><td>DGC</td></tr>
  <tr><td>Bert</td><td>DGC</td></tr>
  <tr><td>Cecilia</td><td>FGC</td></tr>
</table>`

// ---------- visible text ----------

func TestVisibleText(t *testing.T) {
	p := newPage(t, `<html><head><title>x</title></head><body>
		<div>Hello<script>var a = 1;</script></div>
		<table><tr><td>a</td><td>b</td></tr></table>
		<p>Tjing&nbsp; here</p>
		<!-- hidden -->
	</body></html>`)
	assert.Equal(t, "Hello\na b\nTjing here", p.Text)
}

func TestVisibleTextNormalizesToNFC(t *testing.T) {
	p := newPage(t, "<p>Anma\u0308lan o\u0308ppnar</p>")
	assert.Equal(t, "Anm\u00e4lan \u00f6ppnar", p.Text)
}

// ---------- chains ----------

func TestChainOrder(t *testing.T) {
	assert.Equal(t, []string{
		"registration-not-open", "header-metadata", "labelled-phrase",
		"stats-table", "generic-pattern", "embedded-json",
	}, MetrixChain.Names())
	assert.Equal(t, []string{
		"registration-not-open", "json-fields", "labelled-bold", "free-text",
		"embedded-json", "remaining-text", "data-attributes",
	}, TjingChain.Names())
	assert.Equal(t, []string{"render-phrases", "render-table"}, RenderChain.Names())
}

func TestChainFirstMatchWins(t *testing.T) {
	calls := 0
	hit := func(*Page) *plugin.CapacityResult {
		calls++
		return found(plugin.RemainingOnly(1, plugin.Note{}))
	}
	miss := func(*Page) *plugin.CapacityResult {
		calls++
		return nil
	}
	res, name := Chain{{"a", miss}, {"b", hit}, {"c", hit}}.Run(newPage(t, ""))
	require.NotNil(t, res)
	assert.Equal(t, "b", name)
	assert.Equal(t, 2, calls)
}

// ---------- Metrix ----------

func TestMetrixHeader(t *testing.T) {
	p := newPage(t, `<div class="main-header-meta">Course: Oulu DGP<br>Max players: 72</div>`+playersTable)
	res, name := MetrixChain.Run(p)
	assert.Equal(t, "header-metadata", name)
	assertCounts(t, res, 3, 72)
	assert.Equal(t, "platform-a-header", res.Note.String())
}

func TestMetrixHeaderBeatsGeneric(t *testing.T) {
	p := newPage(t, `<div class="main-header-meta">Max players: 72</div>
		<p>Registered: 40</p><p>Pool A 10/20</p>`)
	res, name := MetrixChain.Run(p)
	assert.Equal(t, "header-metadata", name)
	assertCounts(t, res, 40, 72)
}

func TestMetrixHeaderWithoutLimit(t *testing.T) {
	p := newPage(t, `<div class="main-header-meta">Course: Oulu DGP</div>
		<p>Maximum: 100</p>`+playersTable)
	res, name := MetrixChain.Run(p)
	assert.Equal(t, "header-metadata", name)
	require.NotNil(t, res)
	assert.Equal(t, 3, *res.Registered)
	assert.Nil(t, res.Limit)
	assert.Nil(t, res.Remaining)
	assert.Equal(t, "platform-a-header-no-limit", res.Note.String())
}

func TestMetrixLabelled(t *testing.T) {
	t.Run("english", func(t *testing.T) {
		p := newPage(t, `<p>Maximum number of participants: 40</p><p>Registered players: 12</p>`)
		res, name := MetrixChain.Run(p)
		assert.Equal(t, "labelled-phrase", name)
		assertCounts(t, res, 12, 40)
	})
	t.Run("finnish", func(t *testing.T) {
		p := newPage(t, `<p>Maksimi pelaajamäärä: 80</p><p>Ilmoittautuneet: 33</p>`)
		res, name := MetrixChain.Run(p)
		assert.Equal(t, "labelled-phrase", name)
		assertCounts(t, res, 33, 80)
		assert.Equal(t, "platform-a-labelled", res.Note.String())
	})
	t.Run("counts players table", func(t *testing.T) {
		p := newPage(t, `<p>Max players 54</p>`+playersTable)
		res, _ := MetrixChain.Run(p)
		assertCounts(t, res, 3, 54)
	})
}

func TestCountRegisteredHeaderlessTable(t *testing.T) {
	p := newPage(t, `<table>
		<tr><td>Name</td><td>Rating</td></tr>
		<tr><td>Anna</td><td>950</td></tr>
		<tr><td>Bert</td><td>910</td></tr>
	</table>`)
	assert.Equal(t, 2, CountRegistered(p))
}

func TestMetrixStatsTable(t *testing.T) {
	p := newPage(t, `<table>
		<tr><th>Luokka</th><th>Ilmoittautuneet</th><th>Max</th><th>Jono</th></tr>
		<tr><td>MPO</td><td>30</td><td>40</td><td>2</td></tr>
		<tr><td>Yhteensä</td><td>50</td><td>72</td><td>3</td></tr>
	</table>`)
	res, name := MetrixChain.Run(p)
	assert.Equal(t, "stats-table", name)
	assertCounts(t, res, 50, 72)
	assert.Nil(t, res.Queued)
}

func TestMetrixStatsTableTwoColumns(t *testing.T) {
	p := newPage(t, `<table>
		<tr><th>Registration</th><th>Count</th><th>Limit</th></tr>
		<tr><td>Total</td><td>18</td><td>24</td></tr>
	</table>`)
	res := MetrixStatsTable(p)
	assertCounts(t, res, 18, 24)
}

func TestMetrixGeneric(t *testing.T) {
	t.Run("slash", func(t *testing.T) {
		res, name := MetrixChain.Run(newPage(t, `<p>Players 45/60</p>`))
		assert.Equal(t, "generic-pattern", name)
		assertCounts(t, res, 45, 60)
	})
	t.Run("dates are not counts", func(t *testing.T) {
		assert.Nil(t, MetrixGeneric(newPage(t, `<p>Date 12/05/2026</p>`)))
	})
	t.Run("places left", func(t *testing.T) {
		res := MetrixGeneric(newPage(t, `<p>Only 7 places left!</p>`))
		require.NotNil(t, res)
		assert.Nil(t, res.Registered)
		assert.Equal(t, 7, *res.Remaining)
		assert.Equal(t, "platform-a-generic", res.Note.String())
	})
	t.Run("capacity phrase", func(t *testing.T) {
		res := MetrixGeneric(newPage(t, `<p>Capacity of the event: 90</p><p>Registered = 31</p>`))
		assertCounts(t, res, 31, 90)
	})
}

func TestMetrixEmbedded(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		res, name := MetrixChain.Run(newPage(t, `<div id="app"></div><script>window.x = {"remaining": 4};</script>`))
		assert.Equal(t, "embedded-json", name)
		require.NotNil(t, res)
		assert.Equal(t, 4, *res.Remaining)
	})
	t.Run("data attribute", func(t *testing.T) {
		res := MetrixEmbedded(newPage(t, `<div data-spots="-3"></div>`))
		require.NotNil(t, res)
		assert.Equal(t, -3, *res.Remaining)
		assert.Equal(t, "platform-a-embedded", res.Note.String())
	})
	t.Run("nothing", func(t *testing.T) {
		assert.Nil(t, MetrixEmbedded(newPage(t, `<p>Welcome</p>`)))
	})
}

// ---------- registration dates ----------

func TestRegistrationNotOpen(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		start string
	}{
		{"english date", `<p>Registration opens 31.12.2099</p>`, "2099-12-31T00:00:00"},
		{"with time", `<p>Registration starts: 1.3.2099 klo 18:00</p>`, "2099-03-01T18:00:00"},
		{"finnish", `<p>Ilmoittautuminen alkaa 15.6.2099 klo 9.30</p>`, "2099-06-15T09:30:00"},
		{"swedish iso", `<p>Anmälan öppnar 2099-06-15 kl 09:00</p>`, "2099-06-15T09:00:00"},
		{"definition list", `<dl><dt>Registration starts</dt><dd>31.12.2099 18:00</dd></dl>`, "2099-12-31T18:00:00"},
		{"label and value divs", `<div>Ilmoittautuminen alkaa</div><div>31.12.2099</div>`, "2099-12-31T00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := RegistrationNotOpen(newPage(t, tt.html))
			require.NotNil(t, res)
			assert.Equal(t, tt.start, res.Start)
			assert.Equal(t, "registration-not-open", res.Note.String())
			assert.Nil(t, res.Registered)
		})
	}
}

func TestRegistrationNotOpenIgnoresPastAndInvalid(t *testing.T) {
	assert.Nil(t, RegistrationNotOpen(newPage(t, `<p>Registration starts 1.1.2020</p>`)))
	assert.Nil(t, RegistrationNotOpen(newPage(t, `<p>Registration starts 31.2.2099</p>`)))
	assert.Nil(t, RegistrationNotOpen(newPage(t, `<p>Final round 31.12.2099</p>`)))
	assert.Nil(t, RegistrationNotOpen(newPage(t, `<div>Registration starts</div><div>Round one</div><div>31.12.2099</div>`)))
}

func TestRegistrationNotOpenOutranksCounts(t *testing.T) {
	p := newPage(t, `<div class="main-header-meta">Max players: 72</div>
		<p>Registration opens 31.12.2099</p>`+playersTable)
	res, name := MetrixChain.Run(p)
	assert.Equal(t, "registration-not-open", name)
	assert.Equal(t, "2099-12-31T00:00:00", res.Start)
}

// ---------- Tjing ----------

func TestTjingJSON(t *testing.T) {
	p := newPage(t, `<script>window.__event = {"confirmed": 50, "capacity": 72};</script>`)
	res, name := TjingChain.Run(p)
	assert.Equal(t, "json-fields", name)
	assertCounts(t, res, 50, 72)
	assert.True(t, res.Note.IsTjing())
}

func TestTjingJSONNeedsBothFields(t *testing.T) {
	assert.Nil(t, TjingJSON(newPage(t, `<script>{"confirmed": 50}</script>`)))
}

func TestTjingLabelled(t *testing.T) {
	p := newPage(t, `<div><b>72</b> max spots</div><div><b>10</b> spots available</div>`)
	res, name := TjingChain.Run(p)
	assert.Equal(t, "labelled-bold", name)
	assertCounts(t, res, 62, 72)
	assert.Equal(t, "platform-b-labelled", res.Note.String())
}

func TestTjingLabelledLabelInNextBlock(t *testing.T) {
	p := newPage(t, `<div><div><b>72</b></div><div>Max spots</div></div>
		<div><div><strong>5</strong></div><div>Spots left</div></div>`)
	res := TjingLabelled(p)
	assertCounts(t, res, 67, 72)
}

func TestTjingText(t *testing.T) {
	res, name := TjingChain.Run(newPage(t, `<p>24 confirmed players</p><p>60 max</p>`))
	assert.Equal(t, "free-text", name)
	assertCounts(t, res, 24, 60)

	// "12 spots left" is not a limit.
	res = TjingText(newPage(t, `<p>5 confirmed</p><p>12 spots left</p>`))
	require.NotNil(t, res)
	assert.Equal(t, 5, *res.Registered)
	assert.Nil(t, res.Limit)
}

func TestTjingRemaining(t *testing.T) {
	res, name := TjingChain.Run(newPage(t, `<p>Hurry, 8 spots left</p>`))
	assert.Equal(t, "remaining-text", name)
	require.NotNil(t, res)
	assert.Equal(t, 8, *res.Remaining)

	res, name = TjingChain.Run(newPage(t, `<div data-available="2"></div>`))
	assert.Equal(t, "data-attributes", name)
	assert.Equal(t, 2, *res.Remaining)

	res, name = TjingChain.Run(newPage(t, `<script>{"remainingSlots": "11"}</script>`))
	assert.Equal(t, "embedded-json", name)
	assert.Equal(t, 11, *res.Remaining)
}

func TestTjingURLs(t *testing.T) {
	assert.True(t, IsTjingURL("https://tjing.se/event/abc"))
	assert.True(t, IsTjingURL("www.tjing.se/event/abc"))
	assert.False(t, IsTjingURL("https://tjing.se.example.com/event"))
	assert.False(t, IsTjingURL("https://discgolfmetrix.com/1"))

	assert.Equal(t, "https://tjing.se/event/abc/players/confirmed", ConfirmedURL("https://tjing.se/event/abc/?tab=info#top"))
	assert.Equal(t, "https://tjing.se/event/abc/players/confirmed", ConfirmedURL("https://tjing.se/event/abc/players/confirmed"))
}

// ---------- links ----------

func TestFindTjingLink(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		url       string
		rootOnly  bool
		mentioned bool
	}{
		{"event anchor", `<a href="https://tjing.se/event/abc">Register here</a>`, "https://tjing.se/event/abc", false, false},
		{"event beats root", `<a href="https://tjing.se/">Tjing</a><a href="https://tjing.se/event/abc">Sign up</a>`, "https://tjing.se/event/abc", false, true},
		{"root only", `<a href="https://tjing.se/">Tjing</a>`, "https://tjing.se/", true, true},
		{"onclick", `<button onclick="location.href='https://tjing.se/event/xyz'">Ilmoittaudu</button>`, "https://tjing.se/event/xyz", false, false},
		{"bare text", `<p>Registration via tjing.se/event/q1</p>`, "https://tjing.se/event/q1", false, true},
		{"mention only", `<p>Ilmoittautuminen Tjingissä</p>`, "", false, true},
		{"nothing", `<p>Welcome</p>`, "", false, false},
		{"lookalike host in text", `<p>Results at notjing.se/event/1</p>`, "", false, false},
		{"lookalike host in attribute", `<button data-url="https://notjing.se/event/1">Go</button>`, "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := FindTjingLink(newPage(t, tt.html))
			assert.Equal(t, tt.url, link.URL)
			assert.Equal(t, tt.rootOnly, link.RootOnly)
			assert.Equal(t, tt.mentioned, link.Mentioned)
		})
	}
}

func TestTjingAnchorsResolvesRelative(t *testing.T) {
	p, err := NewPage("https://tjing.se/", `<a href="/event/rel1">Event</a>`, testNow, time.UTC)
	require.NoError(t, err)
	event, root := TjingAnchors(p.Doc, p.URL)
	assert.Equal(t, "https://tjing.se/event/rel1", event)
	assert.Empty(t, root)
}

// ---------- sanitizer ----------

func TestSanitizeWaitlist(t *testing.T) {
	in := plugin.Counts(30, 24, plugin.NoteOf(plugin.NoteMetrixHeader))
	out := Sanitize(in)

	assert.Equal(t, 30, *out.Registered)
	assert.Equal(t, 24, *out.Limit)
	assert.Equal(t, 0, *out.Remaining)
	require.NotNil(t, out.Queued)
	assert.Equal(t, 6, *out.Queued)
	assert.Equal(t, "platform-a-header-waitlist", out.Note.String())

	assert.Equal(t, out, Sanitize(out))
}

func TestSanitizeRecomputesRemaining(t *testing.T) {
	in := plugin.CapacityResult{Registered: plugin.Int(10), Limit: plugin.Int(20), Remaining: plugin.Int(3)}
	assert.Equal(t, 10, *Sanitize(in).Remaining)
}

func TestSanitizeRemainingOnly(t *testing.T) {
	out := Sanitize(plugin.RemainingOnly(-2, plugin.NoteOf(plugin.NoteTjingDataAttr)))
	assert.Equal(t, 0, *out.Remaining)
	assert.Equal(t, 2, *out.Queued)
	assert.Nil(t, out.Registered)
	assert.Equal(t, "platform-b-data-attr-waitlist", out.Note.String())

	untouched := plugin.Counts(5, 10, plugin.NoteOf(plugin.NoteTjingJSON))
	assert.Equal(t, untouched, Sanitize(untouched))
}

// ---------- render ----------

func TestFromState(t *testing.T) {
	state := map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{
				"title": "Spring Open",
				"event": map[string]any{"confirmed": 40.0, "maxPlayers": 72.0},
			},
		},
	}
	res := FromState(state)
	assertCounts(t, res, 40, 72)
	assert.Equal(t, "render-state", res.Note.String())

	res = FromState(map[string]any{"a": []any{map[string]any{"registeredCount": "15"}}})
	require.NotNil(t, res)
	assert.Equal(t, 15, *res.Registered)
	assert.Nil(t, res.Limit)

	assert.Nil(t, FromState(map[string]any{"capacity": 72.0}))
	assert.Nil(t, FromState(nil))
}

func TestFromStatePrefersPairedObject(t *testing.T) {
	state := map[string]any{
		"a": map[string]any{"registered": 3.0},
		"b": map[string]any{"registered": 20.0, "capacity": 30.0},
	}
	assertCounts(t, FromState(state), 20, 30)
}

func TestRenderPhrases(t *testing.T) {
	p := newPage(t, `<p>Max players: 5000</p><p>17 confirmed</p><p>90 spots</p>`)
	res, name := RenderChain.Run(p)
	assert.Equal(t, "render-phrases", name)
	assertCounts(t, res, 17, 90)
	assert.Equal(t, "render-text", res.Note.String())
}

func TestRenderTable(t *testing.T) {
	t.Run("keyword row", func(t *testing.T) {
		p := newPage(t, `<table>
			<tr><td><b>3</b></td><td><b>999</b></td></tr>
			<tr><td>Total</td><td>20</td><td>50</td></tr>
		</table>`)
		res := RenderTable(p)
		assertCounts(t, res, 20, 50)
		assert.Equal(t, "render-table", res.Note.String())
	})
	t.Run("largest bold limit", func(t *testing.T) {
		p := newPage(t, `<table>
			<tr><td><b>3</b></td><td><b>10</b></td></tr>
			<tr><td><b>8</b></td><td><b>64</b></td></tr>
			<tr><td><b>1</b></td><td><b>4000</b></td></tr>
		</table>`)
		assertCounts(t, RenderTable(p), 8, 64)
	})
	t.Run("nothing", func(t *testing.T) {
		assert.Nil(t, RenderTable(newPage(t, `<table><tr><td>a</td></tr></table>`)))
	})
}
