package indexer

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownFormat is returned for bodies that are neither XML nor JSON
var ErrUnknownFormat = errors.New("unrecognized response format")

type rssResponse struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title      string       `xml:"title"`
	GUID       string       `xml:"guid"`
	Link       string       `xml:"link"`
	Comments   string       `xml:"comments"`
	PubDate    string       `xml:"pubDate"`
	Size       string       `xml:"size"`
	Categories []string     `xml:"category"`
	Enclosure  rssEnclosure `xml:"enclosure"`
	Attributes []rssAttr    `xml:"attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// rssAttr matches torznab:attr and newznab:attr alike
type rssAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type errorResponse struct {
	XMLName     xml.Name `xml:"error"`
	Code        string   `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

// ParseResponse normalizes an indexer reply into releases. XML RSS, a JSON array,
// or a JSON object wrapping an array under results, data or items are accepted.
func ParseResponse(body []byte, idx Indexer) ([]Release, error) {
	trimmed := bytes.TrimSpace(body)
	trimmed = bytes.TrimPrefix(trimmed, []byte("\xef\xbb\xbf"))
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '<':
		return parseXML(trimmed, idx)
	case '[':
		var items []map[string]any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode JSON array: %w", err)
		}
		return convertJSON(items, idx), nil
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to decode JSON object: %w", err)
		}
		for _, key := range []string{"results", "data", "items"} {
			raw, ok := wrapper[key]
			if !ok {
				continue
			}
			var items []map[string]any
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("failed to decode JSON %s: %w", key, err)
			}
			return convertJSON(items, idx), nil
		}
		return nil, nil
	default:
		return nil, ErrUnknownFormat
	}
}

func parseXML(body []byte, idx Indexer) ([]Release, error) {
	var apiErr errorResponse
	if xml.Unmarshal(body, &apiErr) == nil && apiErr.XMLName.Local == "error" {
		return nil, fmt.Errorf("indexer error %s: %s", apiErr.Code, apiErr.Description)
	}

	var response rssResponse
	if err := xml.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode XML: %w", err)
	}

	releases := make([]Release, 0, len(response.Channel.Items))
	for _, item := range response.Channel.Items {
		attrs := make(map[string]string, len(item.Attributes))
		var categories []int
		for _, attr := range item.Attributes {
			if attr.Name == "category" {
				if id, err := strconv.Atoi(attr.Value); err == nil {
					categories = appendUnique(categories, id)
				}
				continue
			}
			attrs[attr.Name] = attr.Value
		}
		for _, c := range item.Categories {
			if id, err := strconv.Atoi(strings.TrimSpace(c)); err == nil {
				categories = appendUnique(categories, id)
			}
		}

		release := Release{
			GUID:        item.GUID,
			Title:       strings.TrimSpace(item.Title),
			DownloadURL: item.Enclosure.URL,
			InfoURL:     item.Comments,
			IndexerID:   idx.ID,
			IndexerName: idx.Name,
			Categories:  categories,
			PublishDate: parsePubDate(item.PubDate),
		}
		if release.DownloadURL == "" {
			release.DownloadURL = item.Link
		}
		if release.DownloadURL == "" {
			release.DownloadURL = attrs["magneturl"]
		}

		release.Size = item.Enclosure.Length
		if release.Size == 0 {
			release.Size = parseInt64(attrs["size"])
		}
		if release.Size == 0 {
			release.Size = parseInt64(item.Size)
		}

		release.Seeders = int(parseInt64(attrs["seeders"]))
		if peers := int(parseInt64(attrs["peers"])); peers > release.Seeders {
			release.Leechers = peers - release.Seeders
		}
		if leechers := int(parseInt64(attrs["leechers"])); leechers > 0 {
			release.Leechers = leechers
		}

		release.Protocol = inferProtocol(protocolFromMIME(item.Enclosure.Type), idx.Type, release.DownloadURL)
		releases = append(releases, release)
	}

	return releases, nil
}

func convertJSON(items []map[string]any, idx Indexer) []Release {
	releases := make([]Release, 0, len(items))
	for _, m := range items {
		release := Release{
			GUID:        jsonString(m, "guid", "id", "infoHash"),
			Title:       strings.TrimSpace(jsonString(m, "title", "name")),
			Size:        jsonInt64(m, "size"),
			Seeders:     int(jsonInt64(m, "seeders", "seeds")),
			Leechers:    int(jsonInt64(m, "leechers", "peers")),
			DownloadURL: jsonString(m, "downloadUrl", "download_url", "link", "magnetUrl", "magnet"),
			InfoURL:     jsonString(m, "infoUrl", "info_url", "comments", "details"),
			IndexerID:   idx.ID,
			IndexerName: idx.Name,
			PublishDate: parsePubDate(jsonString(m, "publishDate", "publish_date", "pubDate")),
			Categories:  jsonCategories(m),
		}
		if release.Title == "" {
			continue
		}
		release.Protocol = inferProtocol(Protocol(strings.ToLower(jsonString(m, "protocol"))), idx.Type, release.DownloadURL)
		releases = append(releases, release)
	}
	return releases
}

// inferProtocol picks the explicit protocol, else the indexer type, else the URL shape
func inferProtocol(explicit Protocol, indexerType Type, downloadURL string) Protocol {
	switch explicit {
	case ProtocolTorrent, ProtocolUsenet:
		return explicit
	case "nzb":
		return ProtocolUsenet
	}

	switch indexerType {
	case TypeTorznab:
		return ProtocolTorrent
	case TypeNewznab:
		return ProtocolUsenet
	}

	lower := strings.ToLower(downloadURL)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	switch {
	case strings.HasPrefix(strings.ToLower(downloadURL), "magnet:"), strings.HasSuffix(lower, ".torrent"):
		return ProtocolTorrent
	case strings.HasSuffix(lower, ".nzb"):
		return ProtocolUsenet
	default:
		return ProtocolUnknown
	}
}

func protocolFromMIME(mime string) Protocol {
	switch strings.ToLower(mime) {
	case "application/x-bittorrent":
		return ProtocolTorrent
	case "application/x-nzb":
		return ProtocolUsenet
	default:
		return ProtocolUnknown
	}
}

func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func appendUnique(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func jsonString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

func jsonInt64(m map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int64(v)
		case string:
			if n := parseInt64(v); n != 0 {
				return n
			}
		}
	}
	return 0
}

func jsonCategories(m map[string]any) []int {
	var ids []int
	add := func(v any) {
		switch c := v.(type) {
		case float64:
			ids = appendUnique(ids, int(c))
		case string:
			if n, err := strconv.Atoi(c); err == nil {
				ids = appendUnique(ids, n)
			}
		case map[string]any:
			if id, ok := c["id"].(float64); ok {
				ids = appendUnique(ids, int(id))
			}
		}
	}

	for _, key := range []string{"categories", "category"} {
		switch v := m[key].(type) {
		case []any:
			for _, c := range v {
				add(c)
			}
		case nil:
		default:
			add(v)
		}
	}
	return ids
}
