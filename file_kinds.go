package main

import (
	"path/filepath"
	"strings"
)

// FileKind is a coarse classification by extension. It decides which probe
// runs for a file and which archives the extractor accepts.
type FileKind string

const (
	KindVideo    FileKind = "video"
	KindAudio    FileKind = "audio"
	KindImage    FileKind = "image"
	KindArchive  FileKind = "archive"
	KindSubtitle FileKind = "subtitle"
	KindOther    FileKind = "other"
)

var kindByExt = map[string]FileKind{
	".mp4": KindVideo, ".mkv": KindVideo, ".avi": KindVideo, ".mov": KindVideo,
	".wmv": KindVideo, ".flv": KindVideo, ".webm": KindVideo, ".m4v": KindVideo,
	".mpg": KindVideo, ".mpeg": KindVideo, ".ts": KindVideo,

	".wav": KindAudio, ".mp3": KindAudio, ".ogg": KindAudio, ".flac": KindAudio,
	".aac": KindAudio, ".m4a": KindAudio, ".wma": KindAudio, ".opus": KindAudio,

	".jpg": KindImage, ".jpeg": KindImage, ".png": KindImage, ".gif": KindImage,
	".bmp": KindImage, ".webp": KindImage, ".tiff": KindImage,

	".srt": KindSubtitle, ".sub": KindSubtitle, ".ass": KindSubtitle, ".vtt": KindSubtitle,

	".zip": KindArchive, ".rar": KindArchive, ".7z": KindArchive,
	".tar": KindArchive, ".tgz": KindArchive, ".tbz2": KindArchive, ".txz": KindArchive,
}

// compound tar extensions checked before the plain Ext lookup so
// "x.tar.gz" reads as one archive, not a gzip of unknown content
var tarCompoundSuffixes = []string{".tar.gz", ".tar.bz2", ".tar.xz"}

// KindOf classifies path by its extension, case-insensitively.
func KindOf(path string) FileKind {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range tarCompoundSuffixes {
		if strings.HasSuffix(name, suffix) {
			return KindArchive
		}
	}
	if kind, ok := kindByExt[filepath.Ext(name)]; ok {
		return kind
	}
	return KindOther
}
