package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dj-oyu/motionglyph/internal/logger"
	"github.com/dj-oyu/motionglyph/pkg/types"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// DirSource replays the image files of a directory in file name order.
type DirSource struct {
	dir      string
	files    []string
	next     int
	loop     bool
	norm     *Normalizer
	frameNum uint64
}

// NewDirSource lists the images in dir. A nil normalizer locks the resolution
// to the first file.
func NewDirSource(dir string, loop bool, norm *Normalizer) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no image files in %s", dir)
	}
	sort.Strings(files)

	if norm == nil {
		norm = NewNormalizer(0, 0)
	}

	logger.Info("DirSource", "Loaded %d frames from %s (loop=%v)", len(files), dir, loop)
	return &DirSource{dir: dir, files: files, loop: loop, norm: norm}, nil
}

// Len returns the number of frame files.
func (d *DirSource) Len() int {
	return len(d.files)
}

// Next decodes the next file.
func (d *DirSource) Next(ctx context.Context) (*types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.next >= len(d.files) {
		if !d.loop {
			return nil, ErrExhausted
		}
		d.next = 0
		logger.Debug("DirSource", "Looping %s", d.dir)
	}

	path := d.files[d.next]
	d.next++

	img, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}

	frame := d.norm.Image(img)
	frame.FrameNum = d.frameNum
	frame.Timestamp = time.Now()
	d.frameNum++
	return frame, nil
}

// Close implements Source.
func (d *DirSource) Close() error {
	return nil
}
