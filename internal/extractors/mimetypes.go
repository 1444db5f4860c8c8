package extractors

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

type fileType struct {
	kind domain.SourceKind
	mime string
}

var extensions = map[string]fileType{
	".txt":      {domain.KindDocument, "text/plain"},
	".text":     {domain.KindDocument, "text/plain"},
	".log":      {domain.KindDocument, "text/plain"},
	".md":       {domain.KindDocument, "text/markdown"},
	".markdown": {domain.KindDocument, "text/markdown"},
	".csv":      {domain.KindDocument, "text/csv"},
	".json":     {domain.KindDocument, "application/json"},
	".pdf":      {domain.KindDocument, "application/pdf"},
	".doc":      {domain.KindDocument, "application/msword"},
	".xls":      {domain.KindDocument, "application/vnd.ms-excel"},
	".ppt":      {domain.KindDocument, "application/vnd.ms-powerpoint"},
	".docx":     {domain.KindDocument, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".xlsx":     {domain.KindDocument, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	".pptx":     {domain.KindDocument, "application/vnd.openxmlformats-officedocument.presentationml.presentation"},
	".png":      {domain.KindImage, "image/png"},
	".jpg":      {domain.KindImage, "image/jpeg"},
	".jpeg":     {domain.KindImage, "image/jpeg"},
	".gif":      {domain.KindImage, "image/gif"},
	".webp":     {domain.KindImage, "image/webp"},
	".eml":      {domain.KindEmail, "message/rfc822"},
	".vtt":      {domain.KindRecording, "text/plain"},
	".srt":      {domain.KindRecording, "text/plain"},
}

// DetectFile infers kind and MIME type from a file name.
// Unknown extensions report ok=false.
func DetectFile(name string) (kind domain.SourceKind, mimeType string, ok bool) {
	ft, ok := extensions[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return "", "", false
	}
	return ft.kind, ft.mime, true
}

// TitleFromPath derives a display name from a file path.
func TitleFromPath(path string) string {
	filename := filepath.Base(path)
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// SniffMIME returns mimeType when set, else the type detected from content.
func SniffMIME(mimeType string, content []byte) string {
	if m := NormaliseMIME(mimeType); m != "" && m != "application/octet-stream" {
		return m
	}
	return NormaliseMIME(http.DetectContentType(content))
}
