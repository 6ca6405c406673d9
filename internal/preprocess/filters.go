package preprocess

import (
	"image"
	"math"
)

// Non-local means window radii. 3x3 patches searched over a 7x7 neighbourhood.
const (
	patchRadius  = 1
	searchRadius = 3
)

// binarize maps every pixel above level to 255 and the rest to 0
func binarize(gray *image.Gray, level int) {
	for i, v := range gray.Pix {
		if int(v) > level {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
}

// remap applies clamp(alpha*v + beta) to every pixel
func remap(gray *image.Gray, alpha, beta float64) {
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		lut[v] = clamp8(alpha*float64(v) + beta)
	}
	for i, v := range gray.Pix {
		gray.Pix[i] = lut[v]
	}
}

func invert(gray *image.Gray) {
	for i, v := range gray.Pix {
		gray.Pix[i] = 255 - v
	}
}

func clamp8(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// at reads a pixel with coordinates clamped to the image edge
func at(gray *image.Gray, x, y int) int {
	b := gray.Bounds()
	if x < 0 {
		x = 0
	} else if x >= b.Dx() {
		x = b.Dx() - 1
	}
	if y < 0 {
		y = 0
	} else if y >= b.Dy() {
		y = b.Dy() - 1
	}
	return int(gray.Pix[y*gray.Stride+x])
}

// denoise is non-local means: each pixel becomes a weighted mean of its
// neighbours, weighted by how alike the patches around them look.
func denoise(gray *image.Gray, h float64) *image.Gray {
	b := gray.Bounds()
	w, ht := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, ht))

	patchArea := float64((2*patchRadius + 1) * (2*patchRadius + 1))
	h2 := h * h

	// Weights depend only on the mean squared patch distance, which is an integer sum.
	maxDist := int(255 * 255 * patchArea)
	weights := make(map[int]float64)
	weight := func(dist int) float64 {
		if wt, ok := weights[dist]; ok {
			return wt
		}
		wt := math.Exp(-(float64(dist) / patchArea) / h2)
		weights[dist] = wt
		return wt
	}

	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			var sum, norm float64
			for sy := -searchRadius; sy <= searchRadius; sy++ {
				for sx := -searchRadius; sx <= searchRadius; sx++ {
					dist := 0
					for py := -patchRadius; py <= patchRadius; py++ {
						for px := -patchRadius; px <= patchRadius; px++ {
							d := at(gray, x+px, y+py) - at(gray, x+sx+px, y+sy+py)
							dist += d * d
						}
					}
					if dist > maxDist {
						dist = maxDist
					}
					wt := weight(dist)
					sum += wt * float64(at(gray, x+sx, y+sy))
					norm += wt
				}
			}
			dst.Pix[y*dst.Stride+x] = clamp8(sum / norm)
		}
	}
	return dst
}

// canny marks edges with 255 using Sobel gradients, non-maximum suppression and
// hysteresis between low and high thresholds.
func canny(gray *image.Gray, low, high float64) *image.Gray {
	b := gray.Bounds()
	w, ht := b.Dx(), b.Dy()
	mag := make([]float64, w*ht)
	gxs := make([]float64, w*ht)
	gys := make([]float64, w*ht)

	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			gx := float64(at(gray, x+1, y-1) + 2*at(gray, x+1, y) + at(gray, x+1, y+1) -
				at(gray, x-1, y-1) - 2*at(gray, x-1, y) - at(gray, x-1, y+1))
			gy := float64(at(gray, x-1, y+1) + 2*at(gray, x, y+1) + at(gray, x+1, y+1) -
				at(gray, x-1, y-1) - 2*at(gray, x, y-1) - at(gray, x+1, y-1))
			i := y*w + x
			gxs[i], gys[i] = gx, gy
			mag[i] = math.Abs(gx) + math.Abs(gy)
		}
	}

	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= ht {
			return 0
		}
		return mag[y*w+x]
	}

	tan22 := math.Tan(math.Pi / 8)
	tan67 := math.Tan(3 * math.Pi / 8)

	const (
		none = iota
		weak
		strong
	)
	state := make([]uint8, w*ht)
	var stack []int

	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			ax, ay := math.Abs(gxs[i]), math.Abs(gys[i])
			var a, c float64
			switch {
			case ay <= ax*tan22:
				a, c = magAt(x-1, y), magAt(x+1, y)
			case ay >= ax*tan67:
				a, c = magAt(x, y-1), magAt(x, y+1)
			case (gxs[i] > 0) == (gys[i] > 0):
				a, c = magAt(x-1, y-1), magAt(x+1, y+1)
			default:
				a, c = magAt(x+1, y-1), magAt(x-1, y+1)
			}
			if m <= a || m < c {
				continue
			}
			if m > high {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = weak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= ht {
					continue
				}
				j := ny*w + nx
				if state[j] == weak {
					state[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, ht))
	for i, s := range state {
		if s == strong {
			dst.Pix[(i/w)*dst.Stride+i%w] = 255
		}
	}
	return dst
}
