package helper

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// MarkerIconSize マーカーアイコンの一辺 (px)
const MarkerIconSize = 150

// EncodeAsJPEG 任意の形式の画像をJPEG（品質100）に変換する
func EncodeAsJPEG(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("画像のデコードに失敗: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(100)); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}

// CircleIcon 画像を size x size に切り抜き、円形にくり抜いたPNGを返す
func CircleIcon(data []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = MarkerIconSize
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("画像のデコードに失敗: %w", err)
	}

	square := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
	icon := image.NewNRGBA(square.Bounds())
	draw.DrawMask(icon, icon.Bounds(), square, image.Point{}, circleMask{size: size}, image.Point{}, draw.Over)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, icon, imaging.PNG); err != nil {
		return nil, fmt.Errorf("PNGエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}

// circleMask 内接円の内側だけ不透明なマスク
type circleMask struct {
	size int
}

func (c circleMask) ColorModel() color.Model {
	return color.AlphaModel
}

func (c circleMask) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.size, c.size)
}

func (c circleMask) At(x, y int) color.Color {
	r := float64(c.size) / 2
	dx := float64(x) + 0.5 - r
	dy := float64(y) + 0.5 - r
	if dx*dx+dy*dy <= r*r {
		return color.Alpha{A: 255}
	}
	return color.Alpha{A: 0}
}
