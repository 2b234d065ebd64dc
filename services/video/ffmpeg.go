package videosvc

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
)

type runFunc func(ctx context.Context, name string, args ...string) error

// FFmpegTranscoder converts lesson videos to HLS with the ffmpeg binary.
type FFmpegTranscoder struct {
	bin   string
	media core.MediaStorage
	run   runFunc
}

var _ course.Transcoder = (*FFmpegTranscoder)(nil)

func NewFFmpegTranscoder(conf *core.Config, media core.MediaStorage) *FFmpegTranscoder {
	return &FFmpegTranscoder{bin: conf.Media.FFmpegPath, media: media, run: execRun}
}

func execRun(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s: %s", name, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Transcode writes the HLS playlist under videos/<lessonID>/hls/ and a thumbnail taken at 5s next to the source.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, lessonID, src string) (string, string, error) {
	srcPath := t.media.Path(src)
	if _, err := os.Stat(srcPath); err != nil {
		return "", "", errors.Wrap(err, "source video not found")
	}

	playlist := path.Join("videos", lessonID, "hls", "index.m3u8")
	playlistPath := t.media.Path(playlist)
	if err := os.MkdirAll(filepath.Dir(playlistPath), 0o755); err != nil {
		return "", "", errors.Wrap(err, "creating hls dir")
	}
	err := t.run(ctx, t.bin,
		"-y", "-i", srcPath,
		"-profile:v", "baseline", "-level", "3.0",
		"-start_number", "0", "-hls_time", "10", "-hls_list_size", "0",
		playlistPath,
	)
	if err != nil {
		return "", "", errors.Wrap(err, "generating hls")
	}

	thumbnail := strings.TrimSuffix(src, path.Ext(src)) + "_thumb.jpg"
	err = t.run(ctx, t.bin, "-y", "-i", srcPath, "-ss", "00:00:05.000", "-vframes", "1", t.media.Path(thumbnail))
	if err != nil {
		return "", "", errors.Wrap(err, "generating thumbnail")
	}
	return playlist, thumbnail, nil
}
