package downloadclient

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// magnetInfoHash extracts the lower-case hex info-hash of a magnet link
func magnetInfoHash(uri string) (string, error) {
	m, err := metainfo.ParseMagnetUri(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse magnet link: %w", err)
	}
	return strings.ToLower(m.InfoHash.HexString()), nil
}

// torrentInfoHash computes the lower-case hex info-hash of a .torrent file
func torrentInfoHash(data []byte) (string, error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode torrent file: %w", err)
	}
	return strings.ToLower(mi.HashInfoBytes().HexString()), nil
}

func isMagnet(uri string) bool {
	return strings.HasPrefix(strings.ToLower(uri), "magnet:")
}
