package recognize

import "image"

// lbpBins is the number of histogram bins per grid cell, one per
// possible 8-neighbor LBP code.
const lbpBins = 256

// lbpCodes computes the local binary pattern code image. Each interior
// pixel is encoded by thresholding its 8 neighbors against it,
// clockwise from the top-left. Border pixels are left zero.
func lbpCodes(img *image.Gray) []uint8 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	codes := make([]uint8, w*h)

	at := func(x, y int) uint8 {
		return img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := at(x, y)
			var code uint8
			if at(x-1, y-1) >= center {
				code |= 1 << 7
			}
			if at(x, y-1) >= center {
				code |= 1 << 6
			}
			if at(x+1, y-1) >= center {
				code |= 1 << 5
			}
			if at(x+1, y) >= center {
				code |= 1 << 4
			}
			if at(x+1, y+1) >= center {
				code |= 1 << 3
			}
			if at(x, y+1) >= center {
				code |= 1 << 2
			}
			if at(x-1, y+1) >= center {
				code |= 1 << 1
			}
			if at(x-1, y) >= center {
				code |= 1
			}
			codes[y*w+x] = code
		}
	}

	return codes
}

// spatialHistogram splits the code image into a gridX x gridY grid and
// concatenates the per-cell LBP histograms. Each cell histogram is
// L1-normalized so the distance between two images does not depend on
// their pixel count.
func spatialHistogram(img *image.Gray, gridX, gridY int) []float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	codes := lbpCodes(img)

	hist := make([]float64, gridX*gridY*lbpBins)
	if w == 0 || h == 0 {
		return hist
	}

	cellW := w / gridX
	cellH := h / gridY
	if cellW == 0 || cellH == 0 {
		return hist
	}

	for cy := 0; cy < gridY; cy++ {
		for cx := 0; cx < gridX; cx++ {
			cell := hist[(cy*gridX+cx)*lbpBins : (cy*gridX+cx+1)*lbpBins]

			count := 0
			for y := cy * cellH; y < (cy+1)*cellH; y++ {
				for x := cx * cellW; x < (cx+1)*cellW; x++ {
					cell[codes[y*w+x]]++
					count++
				}
			}
			if count > 0 {
				for i := range cell {
					cell[i] /= float64(count)
				}
			}
		}
	}

	return hist
}

// chiSquare computes the chi-square distance between two histograms of
// equal length. Lower is more similar; zero for identical histograms.
func chiSquare(a, b []float64) float64 {
	var sum float64
	for i := range a {
		s := a[i] + b[i]
		if s == 0 {
			continue
		}
		d := a[i] - b[i]
		sum += d * d / s
	}
	return sum
}
