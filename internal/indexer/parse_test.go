package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const torznabFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <title>Tracker</title>
    <item>
      <title>The.Movie.2024.1080p.WEB-DL.x264-GROUP</title>
      <guid>https://tracker.example/details/1</guid>
      <comments>https://tracker.example/details/1</comments>
      <pubDate>Mon, 02 Jan 2024 15:04:05 +0000</pubDate>
      <enclosure url="https://tracker.example/dl/1.torrent" length="1500000000" type="application/x-bittorrent" />
      <torznab:attr name="seeders" value="42" />
      <torznab:attr name="peers" value="50" />
      <torznab:attr name="category" value="2000" />
      <torznab:attr name="category" value="2040" />
    </item>
    <item>
      <title>The.Movie.2024.720p.HDTV.x264-OTHER</title>
      <guid>https://tracker.example/details/2</guid>
      <link>magnet:?xt=urn:btih:abcdef</link>
      <torznab:attr name="size" value="700000000" />
    </item>
  </channel>
</rss>`

const newznabFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:newznab="http://www.newznab.com/DTD/2010/feeds/attributes/">
  <channel>
    <item>
      <title>Show.S01E02.720p.HDTV.x264-LOL</title>
      <guid isPermaLink="false">abc123</guid>
      <link>https://nzb.example/getnzb/abc123</link>
      <category>5040</category>
      <pubDate>Tue, 03 Jan 2023 10:00:00 GMT</pubDate>
      <enclosure url="https://nzb.example/getnzb/abc123.nzb" length="0" type="application/x-nzb" />
      <newznab:attr name="size" value="123456" />
    </item>
  </channel>
</rss>`

func TestParseTorznabXML(t *testing.T) {
	idx := Indexer{ID: 7, Name: "tracker", Type: TypeTorznab}
	releases, err := ParseResponse([]byte(torznabFeed), idx)
	require.NoError(t, err)
	require.Len(t, releases, 2)

	r := releases[0]
	assert.Equal(t, "The.Movie.2024.1080p.WEB-DL.x264-GROUP", r.Title)
	assert.Equal(t, int64(1500000000), r.Size)
	assert.Equal(t, 42, r.Seeders)
	assert.Equal(t, 8, r.Leechers)
	assert.Equal(t, "https://tracker.example/dl/1.torrent", r.DownloadURL)
	assert.Equal(t, ProtocolTorrent, r.Protocol)
	assert.Equal(t, []int{2000, 2040}, r.Categories)
	assert.Equal(t, int64(7), r.IndexerID)
	assert.Equal(t, 2024, r.PublishDate.Year())

	r = releases[1]
	assert.Equal(t, "magnet:?xt=urn:btih:abcdef", r.DownloadURL)
	assert.Equal(t, int64(700000000), r.Size)
	assert.Zero(t, r.Seeders)
}

func TestParseNewznabXML(t *testing.T) {
	releases, err := ParseResponse([]byte(newznabFeed), Indexer{Name: "nzb", Type: TypeNewznab})
	require.NoError(t, err)
	require.Len(t, releases, 1)

	r := releases[0]
	assert.Equal(t, "abc123", r.GUID)
	assert.Equal(t, int64(123456), r.Size)
	assert.Equal(t, ProtocolUsenet, r.Protocol)
	assert.Equal(t, []int{5040}, r.Categories)
	assert.False(t, r.PublishDate.IsZero())
}

func TestParseXMLErrorDocument(t *testing.T) {
	_, err := ParseResponse([]byte(`<error code="100" description="Incorrect user credentials"/>`), Indexer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect user credentials")
}

func TestParseJSONArray(t *testing.T) {
	body := `[{"title":"The Movie 2024 1080p","guid":"g1","size":1000,"seeders":5,"leechers":2,
		"downloadUrl":"https://x/1.torrent","categories":[2000,{"id":2040}]},
		{"title":"","guid":"skipped"}]`

	releases, err := ParseResponse([]byte(body), Indexer{Name: "json"})
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, "g1", releases[0].GUID)
	assert.Equal(t, int64(1000), releases[0].Size)
	assert.Equal(t, 5, releases[0].Seeders)
	assert.Equal(t, 2, releases[0].Leechers)
	assert.Equal(t, []int{2000, 2040}, releases[0].Categories)
	assert.Equal(t, ProtocolTorrent, releases[0].Protocol)
}

func TestParseJSONWrapped(t *testing.T) {
	for _, key := range []string{"results", "data", "items"} {
		t.Run(key, func(t *testing.T) {
			body := `{"` + key + `":[{"title":"Show S01E01","link":"https://x/get/1.nzb","protocol":"usenet"}]}`
			releases, err := ParseResponse([]byte(body), Indexer{Name: "json"})
			require.NoError(t, err)
			require.Len(t, releases, 1)
			assert.Equal(t, ProtocolUsenet, releases[0].Protocol)
			assert.Zero(t, releases[0].Size)
		})
	}
}

func TestParseUnknownFormat(t *testing.T) {
	_, err := ParseResponse([]byte("not a feed"), Indexer{})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	releases, err := ParseResponse([]byte("   "), Indexer{})
	assert.NoError(t, err)
	assert.Empty(t, releases)
}

func TestInferProtocol(t *testing.T) {
	tests := []struct {
		name     string
		explicit Protocol
		typ      Type
		url      string
		want     Protocol
	}{
		{name: "explicit wins", explicit: ProtocolUsenet, typ: TypeTorznab, url: "https://x/a.torrent", want: ProtocolUsenet},
		{name: "nzb alias", explicit: "nzb", want: ProtocolUsenet},
		{name: "indexer type", typ: TypeNewznab, url: "https://x/a.torrent", want: ProtocolUsenet},
		{name: "torrent suffix", url: "https://x/a.torrent?passkey=1", want: ProtocolTorrent},
		{name: "magnet", url: "magnet:?xt=urn:btih:abc", want: ProtocolTorrent},
		{name: "nzb suffix", url: "https://x/a.NZB", want: ProtocolUsenet},
		{name: "unknown", url: "https://x/get/1", want: ProtocolUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferProtocol(tt.explicit, tt.typ, tt.url); got != tt.want {
				t.Errorf("inferProtocol() = %q, want %q", got, tt.want)
			}
		})
	}
}
