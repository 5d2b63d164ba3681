package editor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// MaxContentSize bounds the files getContent will return
const MaxContentSize = 8 << 20

// FileContent is the getContent reply
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	MIME    string `json:"mime"`
	Charset string `json:"charset"`
}

// ReadContent reads path as text, decoding legacy encodings to UTF-8
func ReadContent(path string) (*FileContent, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if info.Size() > MaxContentSize {
		return nil, fmt.Errorf("%s exceeds maximum size of %d bytes", path, MaxContentSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	mtype := mimetype.Detect(data)
	label := detectCharset(data)

	content, err := decode(data, label)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s as %s: %w", path, label, err)
	}

	return &FileContent{
		Path:    path,
		Content: content,
		MIME:    mtype.String(),
		Charset: label,
	}, nil
}

// detectCharset returns a lower-case charset label. Valid UTF-8 is reported
// as such without consulting the detector, which is unreliable on short
// ASCII input.
func detectCharset(data []byte) string {
	if utf8.Valid(data) {
		return "utf-8"
	}

	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func decode(data []byte, label string) (string, error) {
	if label == "utf-8" {
		return string(data), nil
	}

	reader, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
