package importer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blakestevenson/nimbus-acquire/internal/configstore"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"github.com/blakestevenson/nimbus-acquire/internal/mediainfo"
	"github.com/blakestevenson/nimbus-acquire/internal/naming"
	"github.com/blakestevenson/nimbus-acquire/internal/quality"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const release = "The.Movie.2024.1080p.WEB-DL.x264-GROUP"

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

type fakeQuality struct {
	cutoff map[string]bool
}

func (f *fakeQuality) ListQualityDefinitions(context.Context) ([]quality.QualityDefinition, error) {
	return []quality.QualityDefinition{
		{ID: 1, Name: "Remux-2160p", Resolution: intPtr(2160), Source: strPtr("BLURAY"), Weight: 100},
		{ID: 2, Name: "WEBDL-1080p", Resolution: intPtr(1080), Source: strPtr("WEBDL"), Weight: 60},
		{ID: 3, Name: "HDTV-720p", Resolution: intPtr(720), Source: strPtr("HDTV"), Weight: 30},
		{ID: 4, Name: "CAM", Source: strPtr("CAM"), Weight: 1},
		{ID: 5, Name: "Unknown", Weight: 0},
	}, nil
}

func (f *fakeQuality) IsCutoffMet(_ context.Context, _ int, name string) (bool, error) {
	return f.cutoff[name], nil
}

type fakeLibrary struct {
	files     []media.MediaFile
	deleted   []int64
	monitored map[int64]bool
	nextID    int64
}

func (f *fakeLibrary) ListFiles(_ context.Context, itemID int64) ([]media.MediaFile, error) {
	var out []media.MediaFile
	for _, file := range f.files {
		if file.MediaItemID == itemID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeLibrary) DeleteFile(_ context.Context, fileID int64) error {
	f.deleted = append(f.deleted, fileID)
	kept := f.files[:0]
	for _, file := range f.files {
		if file.ID != fileID {
			kept = append(kept, file)
		}
	}
	f.files = kept
	return nil
}

func (f *fakeLibrary) AddFile(_ context.Context, file media.MediaFile) (*media.MediaFile, error) {
	f.nextID++
	file.ID = 100 + f.nextID
	f.files = append(f.files, file)
	return &file, nil
}

func (f *fakeLibrary) SetMonitored(_ context.Context, itemID int64, monitored bool) error {
	if f.monitored == nil {
		f.monitored = make(map[int64]bool)
	}
	f.monitored[itemID] = monitored
	return nil
}

type fakeProber struct {
	info *mediainfo.Info
}

func (f *fakeProber) GetMediaInfo(context.Context, string) (*mediainfo.Info, error) {
	return f.info, nil
}

func writeFile(t *testing.T, fs afero.Fs, path string, size int) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(strings.Repeat("x", size)), 0o644))
}

func newTestService(fs afero.Fs, lib *fakeLibrary, q *fakeQuality, opts ...Option) *Service {
	cfg := configstore.NewMemory(map[string]any{
		configstore.KeyRootLibraryPath: "/media",
	})
	namer := naming.NewService(configstore.NewMemory(nil), zap.NewNop())
	opts = append([]Option{WithFs(fs)}, opts...)
	return NewService(cfg, namer, q, lib, zap.NewNop(), opts...)
}

func movieTarget(monitored bool) *media.TargetInfo {
	return &media.TargetInfo{
		Target:           media.MovieTarget(1),
		ItemID:           10,
		Title:            "The Movie",
		Year:             2024,
		Monitored:        monitored,
		QualityProfileID: intPtr(1),
	}
}

func TestImportMovieFromCompletedFolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/downloads/complete/" + release
	writeFile(t, fs, dir+"/"+release+".mkv", 4096)
	writeFile(t, fs, dir+"/"+release+"-sample.mkv", 512)
	writeFile(t, fs, dir+"/"+release+".en.srt", 64)

	lib := &fakeLibrary{}
	svc := newTestService(fs, lib, &fakeQuality{cutoff: map[string]bool{"WEBDL-1080p": true}})

	res, err := svc.Import(context.Background(), Request{
		DownloadID:  "d1",
		ReleaseName: release,
		Target:      movieTarget(true),
		Job: PathJob{
			ContentPath: "/downloads/incomplete/" + release,
			SavePath:    "/downloads/incomplete",
			Name:        release,
		},
	})
	require.NoError(t, err)

	wantPath := "/media/Movies/The Movie (2024)/The Movie (2024) WEBDL-1080p.mkv"
	assert.Equal(t, wantPath, res.Path)
	assert.Equal(t, dir, res.ResolvedFrom)
	assert.Equal(t, "WEBDL-1080p", res.Quality)
	assert.Equal(t, MethodCopy, res.Method)
	assert.True(t, res.Unmonitored)
	assert.Equal(t, []string{"/media/Movies/The Movie (2024)/The Movie (2024) WEBDL-1080p.en.srt"}, res.Extras)

	info, err := fs.Stat(wantPath)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, info.Size())

	// sources outside the library stay for the client to seed
	_, err = fs.Stat(dir + "/" + release + ".mkv")
	assert.NoError(t, err)
	assert.False(t, res.CleanedUp)

	require.Len(t, lib.files, 1)
	assert.Equal(t, wantPath, lib.files[0].Path)
	assert.Equal(t, "WEBDL-1080p", lib.files[0].Quality)
	assert.Equal(t, release, lib.files[0].ReleaseName)
	assert.False(t, lib.monitored[10])
}

func TestImportCamIsNotUpgradedByContainer(t *testing.T) {
	fs := afero.NewMemMapFs()
	name := "The.Movie.2024.HDCAM.x264-GRP"
	writeFile(t, fs, "/downloads/complete/"+name+".mkv", 2048)

	lib := &fakeLibrary{}
	prober := &fakeProber{info: &mediainfo.Info{Width: 1920, Height: 1080, CodecVideo: "h264"}}
	svc := newTestService(fs, lib, &fakeQuality{}, WithProber(prober))

	res, err := svc.Import(context.Background(), Request{
		ReleaseName: name,
		Target:      movieTarget(true),
		Job:         PathJob{ContentPath: "/downloads/complete/" + name + ".mkv"},
	})
	require.NoError(t, err)

	assert.Equal(t, "CAM", res.Quality)
	assert.Equal(t, "/media/Movies/The Movie (2024)/The Movie (2024) CAM.mkv", res.Path)
	assert.False(t, res.Unmonitored)
}

func TestImportUpgradeReplacesPreviousFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	oldPath := "/media/Movies/The Movie (2024)/The Movie (2024) HDTV-720p.mkv"
	writeFile(t, fs, oldPath, 1024)
	writeFile(t, fs, "/downloads/complete/"+release+"/"+release+".mkv", 4096)

	lib := &fakeLibrary{files: []media.MediaFile{
		{ID: 7, MediaItemID: 10, Path: oldPath, Quality: "HDTV-720p"},
	}}
	svc := newTestService(fs, lib, &fakeQuality{})

	res, err := svc.Import(context.Background(), Request{
		ReleaseName: release,
		Target:      movieTarget(true),
		Job:         PathJob{ContentPath: "/downloads/complete/" + release},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{oldPath}, res.Replaced)
	assert.Equal(t, []int64{7}, lib.deleted)
	_, err = fs.Stat(oldPath)
	assert.Error(t, err)

	require.Len(t, lib.files, 1)
	assert.Equal(t, res.Path, lib.files[0].Path)
}

func TestImportMovesNestedReleaseUp(t *testing.T) {
	fs := afero.NewMemMapFs()
	movieDir := "/media/Movies/The Movie (2024)"
	nested := movieDir + "/" + release
	writeFile(t, fs, nested+"/"+release+".mkv", 4096)
	writeFile(t, fs, nested+"/info.txt", 10)

	lib := &fakeLibrary{}
	svc := newTestService(fs, lib, &fakeQuality{})

	res, err := svc.Import(context.Background(), Request{
		ReleaseName: release,
		Target:      movieTarget(false),
		Job:         PathJob{SavePath: movieDir, Name: release},
	})
	require.NoError(t, err)

	assert.Equal(t, MethodMove, res.Method)
	assert.Equal(t, movieDir+"/The Movie (2024) WEBDL-1080p.mkv", res.Path)
	assert.True(t, res.CleanedUp)

	exists, err := afero.DirExists(fs, nested)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestImportKeepsSourceNameWhenRenamingDisabled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/downloads/complete/"+release+".mkv", 100)

	cfg := configstore.NewMemory(map[string]any{configstore.KeyRootLibraryPath: "/media"})
	namer := naming.NewService(configstore.NewMemory(map[string]any{naming.KeyRenameMovies: false}), zap.NewNop())
	svc := NewService(cfg, namer, &fakeQuality{}, &fakeLibrary{}, zap.NewNop(), WithFs(fs))

	res, err := svc.Import(context.Background(), Request{
		ReleaseName: release,
		Target:      movieTarget(false),
		Job:         PathJob{ContentPath: "/downloads/complete/" + release + ".mkv"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/media/Movies/The Movie (2024)/"+release+".mkv", res.Path)
}

func TestImportEpisode(t *testing.T) {
	fs := afero.NewMemMapFs()
	name := "The.Show.S01E03.720p.HDTV.x264-LOL"
	writeFile(t, fs, "/downloads/tv/"+name+"/"+name+".mkv", 100)

	svc := newTestService(fs, &fakeLibrary{}, &fakeQuality{})

	res, err := svc.Import(context.Background(), Request{
		ReleaseName: name,
		Target: &media.TargetInfo{
			Target:       media.EpisodeTarget(5, 1, 3),
			ItemID:       55,
			Title:        "The Show",
			EpisodeTitle: "Pilot",
		},
		Job: PathJob{SavePath: "/downloads", Name: name, Category: "tv"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/media/TV/The Show/Season 01/The Show - S01E03 - Pilot HDTV-720p.mkv", res.Path)
}

func TestImportFailsWithTriedPaths(t *testing.T) {
	svc := newTestService(afero.NewMemMapFs(), &fakeLibrary{}, &fakeQuality{})

	_, err := svc.Import(context.Background(), Request{
		ReleaseName: release,
		Target:      movieTarget(true),
		Job:         PathJob{ContentPath: "/downloads/incomplete/" + release},
	})

	var pathErr *PathResolutionError
	require.True(t, errors.As(err, &pathErr))
	assert.Contains(t, err.Error(), `"/downloads/incomplete/`+release+`"`)
	assert.Contains(t, err.Error(), `"/downloads/complete/`+release+`"`)
}

func TestImportWithoutVideo(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/downloads/complete/"+release+"/readme.nfo", 10)

	svc := newTestService(fs, &fakeLibrary{}, &fakeQuality{})

	_, err := svc.Import(context.Background(), Request{
		ReleaseName: release,
		Target:      movieTarget(true),
		Job:         PathJob{ContentPath: "/downloads/complete/" + release},
	})
	assert.ErrorIs(t, err, ErrNoVideo)
}
