package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/docscan-worker/internal/document"
	apperrors "github.com/adverant/nexus/docscan-worker/internal/errors"
)

func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*37 + y*11) % 256)})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestApplyImage_NeutralStagesOnlyThresholdAndRemap(t *testing.T) {
	src := gradient(16, 12)
	cfg := Neutral(100)
	cfg.Contrast = 0.5
	cfg.Brightness = 20

	out := ApplyImage(src, cfg)

	require.Equal(t, src.Bounds().Dx(), out.Width())
	require.Equal(t, src.Bounds().Dy(), out.Height())
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			want := uint8(20)
			if src.GrayAt(x, y).Y > 100 {
				want = 148 // round(0.5*255 + 20)
			}
			assert.Equal(t, want, out.Gray.GrayAt(x, y).Y, "pixel %d,%d", x, y)
		}
	}
}

func TestApplyImage_BinarizeIsStrictlyBlackOrWhite(t *testing.T) {
	out := ApplyImage(gradient(32, 32), Neutral(127))
	for _, v := range out.Gray.Pix {
		assert.True(t, v == 0 || v == 255, "unexpected value %d", v)
	}
}

func TestApplyImage_DownscalesTallImages(t *testing.T) {
	out := ApplyImage(gradient(300, 1600), Neutral(128))
	assert.Equal(t, MaxHeight, out.Height())
	assert.Equal(t, 150, out.Width())
}

func TestApplyImage_NeverUpscales(t *testing.T) {
	out := ApplyImage(gradient(120, 400), Neutral(128))
	assert.Equal(t, 400, out.Height())
	assert.Equal(t, 120, out.Width())
}

func TestApplyImage_Invert(t *testing.T) {
	src := gradient(8, 8)
	plain := ApplyImage(src, Neutral(90))

	cfg := Neutral(90)
	cfg.Invert = true
	inverted := ApplyImage(src, cfg)

	for i := range plain.Gray.Pix {
		assert.Equal(t, 255-plain.Gray.Pix[i], inverted.Gray.Pix[i])
	}
}

func TestApplyImage_ResizeFactor(t *testing.T) {
	cfg := Neutral(128)
	cfg.ResizeFactor = 2.0
	out := ApplyImage(gradient(30, 20), cfg)
	assert.Equal(t, 60, out.Width())
	assert.Equal(t, 40, out.Height())
}

func TestApplyImage_EdgeDetect(t *testing.T) {
	cfg := Neutral(128)
	cfg.EdgeDetect = true

	flat := image.NewGray(image.Rect(0, 0, 20, 20))
	out := ApplyImage(flat, cfg)
	for _, v := range out.Gray.Pix {
		require.Equal(t, uint8(0), v)
	}

	step := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 10; x < 20; x++ {
			step.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	out = ApplyImage(step, cfg)
	edges := 0
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if out.Gray.GrayAt(x, y).Y == 255 {
				edges++
				assert.InDelta(t, 9.5, float64(x), 1.5, "edge far from the step at x=%d", x)
			}
		}
	}
	assert.Greater(t, edges, 0)
}

func TestApplyImage_ProfilesStaySingleChannel(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 24, 18))
	for y := 0; y < 18; y++ {
		for x := 0; x < 24; x++ {
			src.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 12), B: 90, A: 255})
		}
	}

	for _, p := range document.All() {
		cfg, ok := ForProfile(p)
		require.True(t, ok)

		out := ApplyImage(src, cfg)
		assert.IsType(t, &image.Gray{}, out.Gray, p)
		assert.Equal(t, 48, out.Width(), p)
		assert.Equal(t, 36, out.Height(), p)
	}
}

func TestApplyImage_DenoiseAndSharpenAndBlur(t *testing.T) {
	cfg := Neutral(128)
	cfg.DenoiseStrength = 10
	cfg.SharpenAmount = 1
	cfg.BlurRadius = 1

	out := ApplyImage(gradient(20, 20), cfg)
	assert.Equal(t, 20, out.Width())
	assert.Equal(t, 20, out.Height())
}

func patch3x3() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 3, 3))
	copy(img.Pix, []uint8{
		10, 20, 30,
		40, 50, 60,
		70, 80, 90,
	})
	return img
}

func TestSharpen_CentreWeightIsFivePlusAmount(t *testing.T) {
	src := patch3x3()

	out := sharpen(src, 1)

	// 6*50 - (20+40+60+80)
	assert.Equal(t, uint8(100), out.GrayAt(1, 1).Y)
	// edges repeat the border pixel: 6*10 - (10+10+20+40)
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
	// 6*20 - (20+10+30+50)
	assert.Equal(t, uint8(10), out.GrayAt(1, 0).Y)

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			want := 6*at(src, x, y) - at(src, x-1, y) - at(src, x+1, y) - at(src, x, y-1) - at(src, x, y+1)
			assert.Equal(t, clamp8(float64(want)), out.GrayAt(x, y).Y, "pixel %d,%d", x, y)
		}
	}

	assert.Equal(t, uint8(150), sharpen(src, 2).GrayAt(1, 1).Y)
}

func TestBlur_SpreadsImpulseSymmetrically(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 9, 9))
	img.SetGray(4, 4, color.Gray{Y: 255})

	out := blur(img, 1)

	centre := out.GrayAt(4, 4).Y
	assert.Less(t, centre, uint8(255))
	assert.Greater(t, out.GrayAt(3, 4).Y, uint8(0))
	assert.Less(t, out.GrayAt(3, 4).Y, centre)
	assert.Equal(t, out.GrayAt(3, 4), out.GrayAt(5, 4))
	assert.Equal(t, out.GrayAt(4, 3), out.GrayAt(4, 5))
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
}

func TestApplyImage_StageOrder(t *testing.T) {
	// dark left half, bright right half
	src := image.NewGray(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			v := uint8(20)
			if x >= 4 {
				v = 230
			}
			src.SetGray(x, y, color.Gray{Y: v})
		}
	}

	cfg := Neutral(128)
	cfg.Brightness = -100
	cfg.BlurRadius = 1
	cfg.Invert = true

	out := ApplyImage(src, cfg).Gray

	// binarize {0,255} -> remap {0,155} -> blur -> invert {255,100}
	assert.Equal(t, uint8(255), out.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(100), out.GrayAt(7, 0).Y)
	edge := out.GrayAt(3, 1).Y
	assert.Greater(t, edge, uint8(100))
	assert.Less(t, edge, uint8(255))

	want := grayscale(src)
	binarize(want, 128)
	remap(want, 1, -100)
	want = blur(want, 1)
	invert(want)
	assert.Equal(t, want.Pix, out.Pix)
}

func TestDenoise_FlatImageUnchanged(t *testing.T) {
	flat := image.NewGray(image.Rect(0, 0, 9, 9))
	for i := range flat.Pix {
		flat.Pix[i] = 77
	}
	out := denoise(flat, 13)
	for _, v := range out.Pix {
		assert.Equal(t, uint8(77), v)
	}
}

func TestApply_DecodesPNG(t *testing.T) {
	src := gradient(10, 10)
	out, err := Apply(encodePNG(t, src), Neutral(100))
	require.NoError(t, err)
	assert.Equal(t, ApplyImage(src, Neutral(100)).Gray.Pix, out.Gray.Pix)
}

func TestApply_UndecodableBytes(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("definitely not an image"), {0x89, 'P', 'N', 'G'}} {
		_, err := Apply(raw, TranscriptConfig())
		require.Error(t, err)
		code, ok := apperrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrorImageDecodeFailure, code)
	}
}

func TestProcessedImage_PNGRoundTrip(t *testing.T) {
	out := ApplyImage(gradient(12, 7), Neutral(64))
	data, err := out.PNG()
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, out.Gray.Bounds(), decoded.Bounds())
}

func TestProfiles(t *testing.T) {
	tr := TranscriptConfig()
	assert.Equal(t, 222, tr.ThresholdLevel)
	assert.Equal(t, 13.0, tr.DenoiseStrength)
	assert.Equal(t, 1.0, tr.SharpenAmount)

	ex := ExamResultConfig()
	assert.Equal(t, 147, ex.ThresholdLevel)
	assert.Equal(t, 19.0, ex.DenoiseStrength)
	assert.Equal(t, ex, VotersIDConfig())

	// Returned by value: mutating a copy never leaks into the next caller.
	tr.ThresholdLevel = 1
	assert.Equal(t, 222, TranscriptConfig().ThresholdLevel)

	_, ok := ForProfile(document.Profile("passport"))
	assert.False(t, ok)
}
