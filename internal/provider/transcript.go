package provider

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/resolver"
)

// FetchTranscript downloads subtitles (manual first, then automatic) in the
// configured language priority and normalizes them to plain text and cues.
func (p *YtDlp) FetchTranscript(ctx context.Context, id string) (*TranscriptPayload, error) {
	if id == "" {
		return nil, errors.New(errors.CodeInvalidArg, "video ID is required")
	}

	tmpDir, err := os.MkdirTemp("", "ytlib-subs-")
	if err != nil {
		return nil, errors.WrapPath(err, errors.CodeIO, "failed to create temporary directory", os.TempDir())
	}
	defer os.RemoveAll(tmpDir)

	args := []string{
		"--dump-json",
		"--no-simulate",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", p.subLangs(),
		"--sub-format", "vtt",
		"-o", filepath.Join(tmpDir, "%(id)s.%(ext)s"),
		resolver.VideoURL(id),
	}

	output, err := p.cmdRunner.Run(ctx, p.binary, args...)
	if err != nil {
		return nil, classifyError(err, "failed to fetch transcript for "+id)
	}

	var info ytDlpVideoInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, errors.Wrap(err, errors.CodeTransient, "failed to parse yt-dlp transcript output")
	}

	path, lang := p.pickSubtitle(tmpDir)
	if path == "" {
		return nil, errors.New(errors.CodeNotFound, "no transcript available for video "+id)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapPath(err, errors.CodeIO, "failed to read subtitle file", path)
	}

	cues, err := ParseVTT(string(content))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTransient, "failed to parse subtitle file")
	}
	if len(cues) == 0 {
		return nil, errors.New(errors.CodeNotFound, "transcript for video "+id+" is empty")
	}

	chapters := make([]ChapterSpan, 0, len(info.Chapters))
	for _, ch := range info.Chapters {
		chapters = append(chapters, ChapterSpan{Start: ch.StartTime, End: ch.EndTime, Title: ch.Title})
	}

	return &TranscriptPayload{
		Language:  lang,
		PlainText: PlainText(cues),
		Cues:      cues,
		Chapters:  chapters,
	}, nil
}

// subLangs builds the --sub-langs selector, e.g. "en.*,it.*"
func (p *YtDlp) subLangs() string {
	parts := make([]string, 0, len(p.languages))
	for _, lang := range p.languages {
		parts = append(parts, lang+".*")
	}
	return strings.Join(parts, ",")
}

// pickSubtitle returns the best subtitle file in dir by language priority.
// Files are named "<id>.<lang>.vtt"; an exact language match beats a regional variant.
func (p *YtDlp) pickSubtitle(dir string) (string, string) {
	files, _ := filepath.Glob(filepath.Join(dir, "*.vtt"))
	if len(files) == 0 {
		return "", ""
	}
	sort.Strings(files)

	langOf := func(path string) string {
		base := strings.TrimSuffix(filepath.Base(path), ".vtt")
		if i := strings.LastIndex(base, "."); i >= 0 {
			return base[i+1:]
		}
		return ""
	}

	for _, want := range p.languages {
		for _, f := range files {
			if langOf(f) == want {
				return f, want
			}
		}
		for _, f := range files {
			if strings.HasPrefix(langOf(f), want+"-") {
				return f, langOf(f)
			}
		}
	}
	return files[0], langOf(files[0])
}
