package asset

import (
	"bytes"
	"strings"
)

// FormatUnknown 是没有匹配到任何签名时的格式名
const FormatUnknown = "unknown"

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
)

// DetectImageFormat 根据文件头识别 PNG / JPEG / GIF / BMP
func DetectImageFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return "png"
	case bytes.HasPrefix(data, jpegMagic):
		return "jpeg"
	case len(data) >= 6 && bytes.HasPrefix(data, []byte("GIF")):
		return "gif"
	case len(data) >= 4 && bytes.HasPrefix(data, []byte("BM")):
		return "bmp"
	default:
		return FormatUnknown
	}
}

// DetectSoundFormat 识别 WAV / OGG / MP3 (MPEG 帧同步)
func DetectSoundFormat(data []byte) string {
	if len(data) < 4 {
		return FormatUnknown
	}
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "ogg"
	case data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	default:
		return FormatUnknown
	}
}

// DetectFontFormat 识别 OTF / TTF / WOFF
func DetectFontFormat(data []byte) string {
	if len(data) < 4 {
		return FormatUnknown
	}
	switch {
	case bytes.HasPrefix(data, []byte("OTTO")):
		return "otf"
	case bytes.HasPrefix(data, []byte{0x00, 0x01, 0x00, 0x00}):
		return "ttf"
	case bytes.HasPrefix(data, []byte("wOFF")):
		return "woff"
	default:
		return FormatUnknown
	}
}

// DecodeText 把字节当作 UTF-8 文本：去掉开头的 BOM 和末尾的 NUL 填充
func DecodeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	return string(bytes.TrimRight(data, "\x00"))
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeShader 把 CRLF 和单独的 CR 统一为 LF。
// 结果为空时返回原文。
func NormalizeShader(src string) string {
	out := lineEndings.Replace(src)
	if out == "" {
		return src
	}
	return out
}
