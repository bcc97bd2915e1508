package quality

import (
	"slices"
	"testing"
)

func TestDetectQuality(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name        string
		release     string
		wantQuality string
		wantLow     bool
		wantRemux   bool
	}{
		{name: "web-dl", release: "The.Movie.2024.1080p.WEB-DL.x264-GROUP", wantQuality: "WEBDL-1080p"},
		{name: "remux", release: "The.Movie.2024.2160p.BluRay.REMUX.HEVC.DTS-HD.MA.7.1-FGT", wantQuality: "Remux-2160p", wantRemux: true},
		{name: "hdtv episode", release: "Show.S01E02.720p.HDTV.x264-LOL", wantQuality: "HDTV-720p"},
		{name: "dvdrip", release: "Movie.2019.DVDRip.XviD", wantQuality: "DVD"},
		{name: "cam", release: "The.Movie.2024.HDCAM.x264-GRP", wantQuality: "CAM", wantLow: true},
		{name: "telesync beats resolution", release: "Movie.2024.720p.HDTS.x264-GRP", wantQuality: "TELESYNC", wantLow: true},
		{name: "telecine", release: "Movie.2024.TELECINE.x264", wantQuality: "TELECINE", wantLow: true},
		{name: "screener", release: "Movie.2024.DVDSCR.XviD", wantQuality: "DVDSCR", wantLow: true},
		{name: "cam in title", release: "The.Cam.Girl.2020.1080p.WEB-DL.x264-GRP", wantQuality: "WEBDL-1080p"},
		{name: "ts in title", release: "TS.Eliot.Story.2019.720p.HDTV.x264-GRP", wantQuality: "HDTV-720p"},
		{name: "bare ts after year", release: "Movie.2024.TS.x264-GRP", wantQuality: "TELESYNC", wantLow: true},
		{name: "unknown", release: "Random.Name", wantQuality: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := d.DetectQuality(tt.release)
			if info.QualityName != tt.wantQuality {
				t.Errorf("QualityName = %q, want %q", info.QualityName, tt.wantQuality)
			}
			if info.LowQualitySource != tt.wantLow {
				t.Errorf("LowQualitySource = %v, want %v", info.LowQualitySource, tt.wantLow)
			}
			if info.IsRemux != tt.wantRemux {
				t.Errorf("IsRemux = %v, want %v", info.IsRemux, tt.wantRemux)
			}
		})
	}
}

func TestDetectQualityDetails(t *testing.T) {
	d := NewDetector()

	info := d.DetectQuality("The.Movie.2024.2160p.BluRay.REMUX.HEVC.DTS-HD.MA.7.1-FGT")
	if info.CodecVideo == nil || *info.CodecVideo != "H.265" {
		t.Errorf("CodecVideo = %v, want H.265", info.CodecVideo)
	}
	if info.CodecAudio == nil || *info.CodecAudio != "DTS-HD" {
		t.Errorf("CodecAudio = %v, want DTS-HD", info.CodecAudio)
	}
	if info.Channels != "7.1" {
		t.Errorf("Channels = %q, want %q", info.Channels, "7.1")
	}

	info = d.DetectQuality("The.Movie.2024.1080p.WEB-DL.x264-GROUP.mkv")
	if info.ReleaseGroup != "GROUP" {
		t.Errorf("ReleaseGroup = %q, want %q", info.ReleaseGroup, "GROUP")
	}

	info = d.DetectQuality("Movie.2024.2160p.WEB-DL.DV.HDR10+.H.265-GRP")
	for _, want := range []string{"DV", "HDR10+"} {
		if !slices.Contains(info.HDR, want) {
			t.Errorf("HDR = %v, want it to contain %q", info.HDR, want)
		}
	}

	info = d.DetectQuality("Movie.2020.1080p.BluRay.PROPER.REPACK.x264-GRP")
	if !info.IsProper || !info.IsRepack {
		t.Errorf("IsProper = %v, IsRepack = %v, want both true", info.IsProper, info.IsRepack)
	}
}

func TestMergeContainerInfoNeverOverridesLowQuality(t *testing.T) {
	d := NewDetector()

	info := d.DetectQuality("The.Movie.2024.CAM.x264-GRP")
	d.MergeContainerInfo(info, &ContainerInfo{Width: 1920, Height: 1080, CodecAudio: "aac", Channels: "2.0"})

	if info.QualityName != "CAM" {
		t.Errorf("QualityName = %q, want CAM", info.QualityName)
	}
	if info.Resolution != nil {
		t.Errorf("Resolution = %d, want nil", *info.Resolution)
	}
	if info.CodecAudio == nil || *info.CodecAudio != "AAC" {
		t.Errorf("CodecAudio = %v, want AAC filled from container", info.CodecAudio)
	}
}

func TestMergeContainerInfoFillsResolution(t *testing.T) {
	d := NewDetector()

	info := d.DetectQuality("Movie.2024.WEB-DL-GRP")
	if info.QualityName != "Unknown" {
		t.Fatalf("QualityName = %q before merge, want Unknown", info.QualityName)
	}

	d.MergeContainerInfo(info, &ContainerInfo{Width: 1920, Height: 800})
	if info.QualityName != "WEBDL-1080p" {
		t.Errorf("QualityName = %q, want WEBDL-1080p", info.QualityName)
	}
}

func TestMergeContainerInfoKeepsNameQuality(t *testing.T) {
	d := NewDetector()

	info := d.DetectQuality("Movie.2024.720p.WEB-DL-GRP")
	d.MergeContainerInfo(info, &ContainerInfo{Width: 3840, Height: 2160})
	if info.QualityName != "WEBDL-720p" {
		t.Errorf("QualityName = %q, want WEBDL-720p", info.QualityName)
	}
}

func TestMatchQualityDefinition(t *testing.T) {
	d := NewDetector()
	res1080 := 1080
	webdl := "WEBDL"
	cam := "CAM"
	definitions := []QualityDefinition{
		{ID: 1, Name: "Unknown", Weight: 0},
		{ID: 2, Name: "CAM", Source: &cam, Weight: 1},
		{ID: 3, Name: "WEBDL-1080p", Resolution: &res1080, Source: &webdl, Weight: 32},
		{ID: 4, Name: "BLURAY-1080p", Resolution: &res1080, Weight: 33},
	}

	tests := []struct {
		release string
		wantID  int
	}{
		{release: "The.Movie.2024.1080p.WEB-DL.x264-GROUP", wantID: 3},
		{release: "The.Movie.2024.HDCAM.x264-GRP", wantID: 2},
		{release: "The.Movie.2024.1080p.HDTV.x264-GRP", wantID: 4},
		{release: "Random.Name", wantID: 1},
	}

	for _, tt := range tests {
		t.Run(tt.release, func(t *testing.T) {
			got := d.MatchQualityDefinition(d.DetectQuality(tt.release), definitions)
			if got == nil || got.ID != tt.wantID {
				t.Errorf("MatchQualityDefinition() = %+v, want id %d", got, tt.wantID)
			}
		})
	}
}

func TestCutoffMet(t *testing.T) {
	low := &QualityDefinition{Name: "HDTV-720p", Weight: 20}
	high := &QualityDefinition{Name: "BLURAY-1080p", Weight: 33}

	if CutoffMet(low, high) {
		t.Error("CutoffMet(low, high) = true, want false")
	}
	if !CutoffMet(high, high) {
		t.Error("CutoffMet(high, high) = false, want true")
	}
	if CutoffMet(nil, high) {
		t.Error("CutoffMet(nil, high) = true, want false")
	}
	if CompareQuality(low, high) != QualityBetter {
		t.Error("CompareQuality(low, high) != QualityBetter")
	}
}
