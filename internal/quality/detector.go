package quality

import (
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/moistari/rls"
)

// Detector handles quality detection from release names
type Detector struct {
	resolutionRegex *regexp.Regexp
	lowSourceRegex  *regexp.Regexp
	bareLowRegex    *regexp.Regexp
	titleEndRegex   *regexp.Regexp
	sourceRegex     *regexp.Regexp
	codecVideoRegex *regexp.Regexp
	codecAudioRegex *regexp.Regexp
	hdrRegex        *regexp.Regexp
	channelsRegex   *regexp.Regexp
	groupRegex      *regexp.Regexp
}

// NewDetector creates a new quality detector
func NewDetector() *Detector {
	return &Detector{
		resolutionRegex: regexp.MustCompile(`(?i)\b(480|576|720|1080|2160)[pi]\b|\b(4k|uhd)\b`),
		lowSourceRegex:  regexp.MustCompile(`(?i)\b(hdcam|camrip|hdts|telesync|hdtc|telecine|dvdscr|dvdscreener|workprint)\b`),
		bareLowRegex:    regexp.MustCompile(`(?i)\b(cam|ts|tc|screener|r5)\b`),
		titleEndRegex:   regexp.MustCompile(`(?i)\b(?:19|20)\d{2}\b|\b(?:480|576|720|1080|2160)[pi]\b|\bs\d{1,2}e\d{1,3}\b`),
		sourceRegex:     regexp.MustCompile(`(?i)\b(remux|blu[-\s.]?ray|bdrip|brrip|bd25|bd50|web[-\s.]?dl|webdl|web[-\s.]?rip|webrip|web|hdtv|sdtv|pdtv|dvd[-\s.]?rip|dvdrip|dvd)\b`),
		codecVideoRegex: regexp.MustCompile(`(?i)\b(x264|x265|h\.?264|h\.?265|hevc|avc|mpeg[-\s]?2|xvid|divx|av1|vp9)\b`),
		codecAudioRegex: regexp.MustCompile(`(?i)(atmos|truehd|dts[-\s.]?hd|dts[-\s.]?x|dts|ddp|dd\+|eac3|dd5\.1|ac3|aac|mp3|flac|opus|pcm)`),
		hdrRegex:        regexp.MustCompile(`(?i)\b(hdr10\+|(?:hdr10|hdr|dv|dovi|dolby[.\s]?vision|hlg)\b)`),
		channelsRegex:   regexp.MustCompile(`(?:^|[^0-9])([1-7]\.[01])(?:[^0-9]|$)`),
		groupRegex:      regexp.MustCompile(`-([A-Za-z0-9]+)$`),
	}
}

// lowSource finds a low-quality source tag. Short tags such as CAM or TS only
// count after the title, so "The.Cam.Girl.2020" is not a cam release.
func (d *Detector) lowSource(name string) string {
	if matches := d.lowSourceRegex.FindStringSubmatch(name); len(matches) > 1 {
		return matches[1]
	}
	loc := d.titleEndRegex.FindStringIndex(name)
	if loc == nil {
		return ""
	}
	if matches := d.bareLowRegex.FindStringSubmatch(name[loc[1]:]); len(matches) > 1 {
		return matches[1]
	}
	return ""
}

// DetectQuality detects quality information from a release name.
// Low-quality sources take precedence over any other source tag in the name.
func (d *Detector) DetectQuality(releaseName string) *DetectedQualityInfo {
	info := &DetectedQualityInfo{
		QualityName: "Unknown",
	}

	name := strings.TrimSpace(releaseName)
	if ext := filepath.Ext(name); isMediaExtension(ext) {
		name = strings.TrimSuffix(name, ext)
	}
	normalized := strings.ToLower(name)
	parsed := rls.ParseString(name)

	if matches := d.resolutionRegex.FindStringSubmatch(name); matches != nil {
		resolution := 2160
		if matches[1] != "" {
			resolution, _ = strconv.Atoi(matches[1])
		}
		info.Resolution = &resolution
	} else if resolution := parseResolution(parsed.Resolution); resolution > 0 {
		info.Resolution = &resolution
	}

	if low := d.lowSource(name); low != "" {
		source := normalizeLowSource(low)
		info.Source = &source
		info.LowQualitySource = true
	} else if matches := d.sourceRegex.FindStringSubmatch(name); len(matches) > 1 {
		source := normalizeSource(matches[1])
		info.Source = &source
	} else if parsed.Source != "" {
		source := normalizeSource(parsed.Source)
		info.Source = &source
		info.LowQualitySource = isLowSource(source)
	}

	if matches := d.codecVideoRegex.FindStringSubmatch(name); len(matches) > 1 {
		codec := normalizeCodec(matches[1])
		info.CodecVideo = &codec
	} else if len(parsed.Codec) > 0 {
		codec := normalizeCodec(parsed.Codec[0])
		info.CodecVideo = &codec
	}

	if matches := d.codecAudioRegex.FindStringSubmatch(name); len(matches) > 1 {
		codec := normalizeAudioCodec(matches[1])
		info.CodecAudio = &codec
	} else if len(parsed.Audio) > 0 {
		codec := normalizeAudioCodec(parsed.Audio[0])
		info.CodecAudio = &codec
	}

	info.HDR = d.detectHDR(name, parsed.HDR)

	if matches := d.channelsRegex.FindStringSubmatch(name); len(matches) > 1 {
		info.Channels = matches[1]
	}

	info.ReleaseGroup = parsed.Group
	if info.ReleaseGroup == "" {
		if matches := d.groupRegex.FindStringSubmatch(name); len(matches) > 1 {
			info.ReleaseGroup = matches[1]
		}
	}

	// Detect modifiers
	if strings.Contains(normalized, "remux") {
		info.IsRemux = true
	}
	if strings.Contains(normalized, "proper") {
		info.IsProper = true
	}
	if strings.Contains(normalized, "repack") {
		info.IsRepack = true
	}
	if strings.Contains(normalized, "remastered") {
		info.IsRemastered = true
	}

	info.QualityName = d.buildQualityName(info)

	return info
}

// MergeContainerInfo fills gaps in a name-based detection from container metadata.
// The release name stays authoritative: a low-quality source keeps its quality and
// resolution no matter what the container reports.
func (d *Detector) MergeContainerInfo(info *DetectedQualityInfo, container *ContainerInfo) {
	if info == nil || container == nil {
		return
	}

	if info.CodecVideo == nil && container.CodecVideo != "" {
		codec := normalizeCodec(container.CodecVideo)
		info.CodecVideo = &codec
	}
	if info.CodecAudio == nil && container.CodecAudio != "" {
		codec := normalizeAudioCodec(container.CodecAudio)
		info.CodecAudio = &codec
	}
	if len(info.HDR) == 0 && len(container.HDR) > 0 {
		info.HDR = append([]string(nil), container.HDR...)
	}
	if info.Channels == "" {
		info.Channels = container.Channels
	}

	if info.LowQualitySource {
		return
	}

	if info.Resolution == nil {
		if resolution := resolutionFromDimensions(container.Width, container.Height); resolution > 0 {
			info.Resolution = &resolution
		}
	}

	if info.QualityName == "Unknown" {
		info.QualityName = d.buildQualityName(info)
	}
}

func (d *Detector) detectHDR(name string, parsed []string) []string {
	var formats []string
	add := func(v string) {
		v = normalizeHDR(v)
		if v != "" && !slices.Contains(formats, v) {
			formats = append(formats, v)
		}
	}
	for _, m := range d.hdrRegex.FindAllStringSubmatch(name, -1) {
		add(m[1])
	}
	for _, v := range parsed {
		add(v)
	}
	return formats
}

// buildQualityName constructs a quality name from detected info
func (d *Detector) buildQualityName(info *DetectedQualityInfo) string {
	if info.Source != nil && info.LowQualitySource {
		return *info.Source
	}
	if info.Source != nil {
		switch *info.Source {
		case "DVD":
			return "DVD"
		case "TV":
			return "SDTV"
		}
	}
	if info.Source == nil || info.Resolution == nil {
		return "Unknown"
	}

	resStr := resolutionName(*info.Resolution)
	if resStr == "" {
		return "Unknown"
	}

	if info.IsRemux {
		return "Remux-" + resStr
	}

	return *info.Source + "-" + resStr
}

// MatchQualityDefinition matches detected quality to a quality definition
func (d *Detector) MatchQualityDefinition(info *DetectedQualityInfo, definitions []QualityDefinition) *QualityDefinition {
	// Try exact name match first
	for i := range definitions {
		if strings.EqualFold(definitions[i].Name, info.QualityName) {
			return &definitions[i]
		}
	}

	// Low-quality sources only ever match their own definition
	if !info.LowQualitySource && info.Resolution != nil && info.Source != nil {
		for i := range definitions {
			if definitions[i].Resolution != nil && *definitions[i].Resolution == *info.Resolution {
				if definitions[i].Source != nil && strings.EqualFold(*definitions[i].Source, *info.Source) {
					return &definitions[i]
				}
			}
		}
	}

	if !info.LowQualitySource && info.Resolution != nil {
		var bestMatch *QualityDefinition
		for i := range definitions {
			if definitions[i].Resolution != nil && *definitions[i].Resolution == *info.Resolution {
				if bestMatch == nil || definitions[i].Weight > bestMatch.Weight {
					bestMatch = &definitions[i]
				}
			}
		}
		if bestMatch != nil {
			return bestMatch
		}
	}

	for i := range definitions {
		if definitions[i].Name == "Unknown" {
			return &definitions[i]
		}
	}

	return nil
}

// CompareQuality compares two definitions by weight
func CompareQuality(current, available *QualityDefinition) QualityComparisonResult {
	switch {
	case current == nil && available == nil:
		return QualitySame
	case current == nil:
		return QualityBetter
	case available == nil:
		return QualityWorse
	case available.Weight > current.Weight:
		return QualityBetter
	case available.Weight < current.Weight:
		return QualityWorse
	default:
		return QualitySame
	}
}

// CutoffMet reports whether current reaches the profile cutoff
func CutoffMet(current, cutoff *QualityDefinition) bool {
	if current == nil || cutoff == nil {
		return false
	}
	return current.Weight >= cutoff.Weight
}

func resolutionName(resolution int) string {
	switch resolution {
	case 480, 576, 720, 1080, 2160:
		return strconv.Itoa(resolution) + "p"
	default:
		return ""
	}
}

func parseResolution(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "4k", "uhd":
		return 2160
	}
	n, err := strconv.Atoi(strings.TrimRight(s, "pi"))
	if err != nil || resolutionName(n) == "" {
		return 0
	}
	return n
}

func resolutionFromDimensions(width, height int) int {
	switch {
	case width >= 3200 || height >= 1800:
		return 2160
	case width >= 1800 || height >= 1000:
		return 1080
	case width >= 1200 || height >= 700:
		return 720
	case width > 0 || height > 0:
		return 480
	default:
		return 0
	}
}

func isMediaExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mkv", ".mp4", ".avi", ".m4v", ".ts", ".wmv", ".mov", ".nzb", ".torrent":
		return true
	}
	return false
}

func isLowSource(source string) bool {
	switch source {
	case "CAM", "TELESYNC", "TELECINE", "DVDSCR", "WORKPRINT", "R5":
		return true
	}
	return false
}

// normalizeLowSource maps pre-release source tags to their canonical names
func normalizeLowSource(source string) string {
	switch strings.ToUpper(source) {
	case "HDCAM", "CAMRIP", "CAM":
		return "CAM"
	case "HDTS", "TELESYNC", "TS":
		return "TELESYNC"
	case "HDTC", "TELECINE", "TC":
		return "TELECINE"
	case "DVDSCR", "DVDSCREENER", "SCREENER":
		return "DVDSCR"
	case "WORKPRINT":
		return "WORKPRINT"
	default:
		return "R5"
	}
}

// normalizeSource normalizes source strings
func normalizeSource(source string) string {
	normalized := strings.ToUpper(strings.NewReplacer("-", "", " ", "", ".", "").Replace(source))

	switch {
	case normalized == "REMUX":
		return "BLURAY"
	case strings.Contains(normalized, "BLURAY"), strings.Contains(normalized, "BRRIP"),
		strings.Contains(normalized, "BDRIP"), strings.HasPrefix(normalized, "BD"), normalized == "UHDBLURAY":
		return "BLURAY"
	case strings.Contains(normalized, "WEBDL"), normalized == "WEB":
		return "WEBDL"
	case strings.Contains(normalized, "WEBRIP"):
		return "WEBRIP"
	case strings.Contains(normalized, "HDTV"):
		return "HDTV"
	case strings.Contains(normalized, "SDTV"), strings.Contains(normalized, "PDTV"):
		return "TV"
	case strings.Contains(normalized, "DVDSCR"), strings.Contains(normalized, "SCREENER"):
		return "DVDSCR"
	case strings.Contains(normalized, "DVD"):
		return "DVD"
	case strings.Contains(normalized, "CAM"):
		return "CAM"
	case normalized == "TS", strings.Contains(normalized, "TELESYNC"):
		return "TELESYNC"
	case normalized == "TC", strings.Contains(normalized, "TELECINE"):
		return "TELECINE"
	case strings.Contains(normalized, "WORKPRINT"):
		return "WORKPRINT"
	case normalized == "R5":
		return "R5"
	default:
		return normalized
	}
}

// normalizeCodec normalizes video codec strings
func normalizeCodec(codec string) string {
	normalized := strings.ToUpper(strings.NewReplacer(".", "", " ", "", "-", "").Replace(codec))

	switch {
	case normalized == "X264", normalized == "H264", normalized == "AVC":
		return "H.264"
	case normalized == "X265", normalized == "H265", normalized == "HEVC":
		return "H.265"
	case normalized == "AV1":
		return "AV1"
	case normalized == "VP9":
		return "VP9"
	case strings.Contains(normalized, "XVID"):
		return "XviD"
	case strings.Contains(normalized, "DIVX"):
		return "DivX"
	case strings.Contains(normalized, "MPEG2"):
		return "MPEG-2"
	default:
		return normalized
	}
}

// normalizeAudioCodec normalizes audio codec strings
func normalizeAudioCodec(codec string) string {
	normalized := strings.ToUpper(strings.NewReplacer(".", "", " ", "", "-", "").Replace(codec))

	switch {
	case strings.Contains(normalized, "ATMOS"):
		return "Atmos"
	case strings.Contains(normalized, "TRUEHD"):
		return "TrueHD"
	case strings.Contains(normalized, "DTSHD"):
		return "DTS-HD"
	case strings.Contains(normalized, "DTSX"):
		return "DTS-X"
	case normalized == "DTS":
		return "DTS"
	case normalized == "DDP", normalized == "DD+", normalized == "EAC3":
		return "DD+"
	case strings.Contains(normalized, "DD51"), normalized == "AC3":
		return "DD5.1"
	case normalized == "AAC":
		return "AAC"
	case normalized == "MP3":
		return "MP3"
	case normalized == "FLAC":
		return "FLAC"
	case normalized == "OPUS":
		return "Opus"
	case normalized == "PCM":
		return "PCM"
	default:
		return normalized
	}
}

func normalizeHDR(format string) string {
	normalized := strings.ToUpper(strings.NewReplacer(".", "", " ", "").Replace(format))

	switch normalized {
	case "HDR10+":
		return "HDR10+"
	case "HDR10":
		return "HDR10"
	case "HDR":
		return "HDR"
	case "DV", "DOVI", "DOLBYVISION":
		return "DV"
	case "HLG":
		return "HLG"
	default:
		return ""
	}
}
