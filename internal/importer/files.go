package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var videoExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".m4v": {}, ".mov": {}, ".wmv": {},
	".ts": {}, ".m2ts": {}, ".mpg": {}, ".mpeg": {}, ".webm": {}, ".flv": {},
}

var samplePattern = regexp.MustCompile(`(?i)(^|[\W_])sample([\W_]|$)`)

func isVideo(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

type videoFile struct {
	Path string
	Size int64
}

// findVideoFiles lists video files under root, largest first. Samples are
// dropped unless nothing else is there.
func findVideoFiles(fs afero.Fs, root string) ([]videoFile, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !isVideo(root) {
			return nil, nil
		}
		return []videoFile{{Path: root, Size: info.Size()}}, nil
	}

	var files, samples []videoFile
	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || !isVideo(path) {
			return nil
		}
		f := videoFile{Path: path, Size: fi.Size()}
		if samplePattern.MatchString(filepath.Base(path)) {
			samples = append(samples, f)
			return nil
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	if len(files) == 0 {
		files = samples
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Size != files[j].Size {
			return files[i].Size > files[j].Size
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// Placement methods
const (
	MethodHardlink = "hardlink"
	MethodCopy     = "copy"
	MethodMove     = "move"
	MethodInPlace  = "in-place"
)

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// placeFile puts src at dst. A file already below the destination folder is
// moved up; otherwise a hardlink is tried before copying. Copies of files that
// live inside a library tree remove the source.
func (s *Service) placeFile(src, dst string, useHardlinks bool, libraryRoots []string) (string, error) {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return MethodInPlace, nil
	}

	if within(src, filepath.Dir(dst)) {
		if err := s.fs.Rename(src, dst); err != nil {
			return "", fmt.Errorf("failed to move %s up: %w", src, err)
		}
		return MethodMove, nil
	}

	if useHardlinks && s.link != nil {
		err := s.link(src, dst)
		if err == nil {
			return MethodHardlink, nil
		}
		s.logger.Debug("hardlink failed, falling back to copy", zap.String("source", src), zap.Error(err))
	}

	if err := copyFile(s.fs, src, dst); err != nil {
		return "", err
	}

	for _, root := range libraryRoots {
		if within(src, root) {
			if err := s.fs.Remove(src); err != nil {
				return MethodCopy, fmt.Errorf("copied but failed to remove source %s: %w", src, err)
			}
			break
		}
	}
	return MethodCopy, nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy: %w", err)
	}
	return out.Close()
}

// findExtraFiles lists sidecar files next to a video that share its base name
func findExtraFiles(fs afero.Fs, video string, exts map[string]struct{}) []string {
	dir := filepath.Dir(video)
	base := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil
	}

	var extras []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, ok := exts[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		if strings.HasPrefix(name, base) || strings.EqualFold(filepath.Ext(name), ".nfo") {
			extras = append(extras, filepath.Join(dir, name))
		}
	}
	return extras
}

// extraFileName keeps language and flag suffixes such as ".en.forced.srt"
func extraFileName(newBase, video, extra string) string {
	videoBase := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	extraBase := filepath.Base(extra)
	suffix := strings.TrimPrefix(extraBase, videoBase)
	if suffix == extraBase {
		suffix = filepath.Ext(extra)
	}
	return newBase + suffix
}

// cleanupReleaseDir removes a release folder once only leftovers remain:
// non-video files or files smaller than maxLeftover bytes.
func cleanupReleaseDir(fs afero.Fs, dir string, maxLeftover int64) (bool, error) {
	keep := false
	err := afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		if isVideo(path) && fi.Size() >= maxLeftover {
			keep = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if keep {
		return false, nil
	}
	if err := fs.RemoveAll(dir); err != nil {
		return false, err
	}
	return true, nil
}
