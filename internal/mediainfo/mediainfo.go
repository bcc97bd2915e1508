package mediainfo

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/quality"
	"go.uber.org/zap"
)

// Info is what the container says about a media file
type Info struct {
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	CodecVideo string   `json:"codec_video"`
	CodecAudio string   `json:"codec_audio"`
	HDR        []string `json:"hdr,omitempty"`
	Channels   string   `json:"channels"`
	Languages  []string `json:"languages,omitempty"`
}

// Container converts to the detector's container view
func (i *Info) Container() *quality.ContainerInfo {
	if i == nil {
		return nil
	}
	return &quality.ContainerInfo{
		Width:      i.Width,
		Height:     i.Height,
		CodecVideo: i.CodecVideo,
		CodecAudio: i.CodecAudio,
		HDR:        i.HDR,
		Channels:   i.Channels,
	}
}

// Prober runs ffprobe against local files
type Prober struct {
	path    string
	timeout time.Duration
	logger  *zap.Logger
}

// NewProber creates a prober. An empty path resolves ffprobe from PATH.
func NewProber(ffprobePath string, logger *zap.Logger) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{
		path:    ffprobePath,
		timeout: 30 * time.Second,
		logger:  logger.With(zap.String("component", "mediainfo")),
	}
}

// Available reports whether the ffprobe binary can be found
func (p *Prober) Available() bool {
	_, err := exec.LookPath(p.path)
	return err == nil
}

// GetMediaInfo probes a file's streams
func (p *Prober) GetMediaInfo(ctx context.Context, path string) (*Info, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, p.path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-i", path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe execution: %w", err)
	}

	info, err := parseProbe(output)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("probed media file",
		zap.String("path", path),
		zap.Int("height", info.Height),
		zap.String("codec_video", info.CodecVideo))
	return info, nil
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType     string            `json:"codec_type"`
	CodecName     string            `json:"codec_name"`
	Profile       string            `json:"profile"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Channels      int               `json:"channels"`
	ColorTransfer string            `json:"color_transfer"`
	Tags          map[string]string `json:"tags"`
	SideData      []struct {
		Type string `json:"side_data_type"`
	} `json:"side_data_list"`
}

func parseProbe(data []byte) (*Info, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse probe output: %w", err)
	}

	info := &Info{}
	seenLang := make(map[string]struct{})
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.CodecVideo != "" {
				continue
			}
			info.Width, info.Height = s.Width, s.Height
			info.CodecVideo = videoCodec(s.CodecName)
			info.HDR = hdrFormats(s)
		case "audio":
			if lang := s.Tags["language"]; lang != "" && lang != "und" {
				if _, ok := seenLang[lang]; !ok {
					seenLang[lang] = struct{}{}
					info.Languages = append(info.Languages, lang)
				}
			}
			if info.CodecAudio != "" {
				continue
			}
			info.CodecAudio = audioCodec(s.CodecName, s.Profile)
			info.Channels = channelLayout(s.Channels)
		}
	}
	return info, nil
}

func videoCodec(name string) string {
	switch strings.ToLower(name) {
	case "h264":
		return "x264"
	case "hevc", "h265":
		return "x265"
	case "av1":
		return "AV1"
	case "mpeg4":
		return "XviD"
	default:
		return name
	}
}

func audioCodec(name, profile string) string {
	switch strings.ToLower(name) {
	case "truehd":
		return "TrueHD"
	case "eac3":
		return "DDP"
	case "ac3":
		return "DD"
	case "dts":
		if strings.Contains(strings.ToLower(profile), "ma") {
			return "DTS-HD MA"
		}
		return "DTS"
	case "aac":
		return "AAC"
	case "flac":
		return "FLAC"
	case "opus":
		return "Opus"
	default:
		return name
	}
}

func hdrFormats(s probeStream) []string {
	var formats []string
	for _, sd := range s.SideData {
		if strings.Contains(strings.ToLower(sd.Type), "dovi") {
			formats = append(formats, "DV")
			break
		}
	}
	switch s.ColorTransfer {
	case "smpte2084":
		formats = append(formats, "HDR10")
	case "arib-std-b67":
		formats = append(formats, "HLG")
	}
	return formats
}

func channelLayout(channels int) string {
	switch {
	case channels <= 0:
		return ""
	case channels == 1:
		return "1.0"
	case channels == 2:
		return "2.0"
	case channels == 6:
		return "5.1"
	case channels == 8:
		return "7.1"
	default:
		return fmt.Sprintf("%d.0", channels)
	}
}
