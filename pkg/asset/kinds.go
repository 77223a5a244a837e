package asset

import "context"

// ImageData 是图片 Asset 的 payload。只做格式嗅探，不解码像素。
type ImageData struct {
	Format string // png / jpeg / gif / bmp / unknown
	Pixels []byte
}

// SoundData 是音频 Asset 的 payload
type SoundData struct {
	Format  string // wav / ogg / mp3 / unknown
	Samples []byte
}

// FontData 是字体 Asset 的 payload
type FontData struct {
	Format  string // otf / ttf / woff / unknown
	Payload []byte
}

// Binary 原样拷贝字节
type Binary struct{ *Asset[[]byte] }

func NewBinary(path string, opts ...Option) *Binary {
	return &Binary{newAsset(KindBinary, path, copyBytes, opts...)}
}

func (b *Binary) Data(ctx context.Context) ([]byte, error) { return b.Payload(ctx) }

type Image struct{ *Asset[*ImageData] }

func NewImage(path string, opts ...Option) *Image {
	return &Image{newAsset(KindImage, path, parseImage, opts...)}
}

func (i *Image) Image(ctx context.Context) (*ImageData, error) { return i.Payload(ctx) }

// Shader 的源码统一为 LF 换行
type Shader struct{ *Asset[string] }

func NewShader(path string, opts ...Option) *Shader {
	return &Shader{newAsset(KindShader, path, parseShader, opts...)}
}

func (s *Shader) Source(ctx context.Context) (string, error) { return s.Payload(ctx) }

type Sound struct{ *Asset[*SoundData] }

func NewSound(path string, opts ...Option) *Sound {
	return &Sound{newAsset(KindSound, path, parseSound, opts...)}
}

func (s *Sound) Sound(ctx context.Context) (*SoundData, error) { return s.Payload(ctx) }

type Font struct{ *Asset[*FontData] }

func NewFont(path string, opts ...Option) *Font {
	return &Font{newAsset(KindFont, path, parseFont, opts...)}
}

func (f *Font) Font(ctx context.Context) (*FontData, error) { return f.Payload(ctx) }

// Text 去掉 BOM 和末尾的 NUL
type Text struct{ *Asset[string] }

func NewText(path string, opts ...Option) *Text {
	return &Text{newAsset(KindText, path, DecodeText, opts...)}
}

func (t *Text) Text(ctx context.Context) (string, error) { return t.Payload(ctx) }

func copyBytes(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

func parseImage(data []byte) *ImageData {
	return &ImageData{Format: DetectImageFormat(data), Pixels: copyBytes(data)}
}

func parseSound(data []byte) *SoundData {
	return &SoundData{Format: DetectSoundFormat(data), Samples: copyBytes(data)}
}

func parseFont(data []byte) *FontData {
	return &FontData{Format: DetectFontFormat(data), Payload: copyBytes(data)}
}

func parseShader(data []byte) string {
	return NormalizeShader(DecodeText(data))
}
