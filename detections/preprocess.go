package detections

import (
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
)

// letterbox records how a source image was fitted into the model input,
// so boxes can be mapped back.
type letterbox struct {
	scale      float64
	padX, padY int
	srcW, srcH int
}

// letterboxImage scales img to fit width x height keeping the aspect ratio
// and centers it on a gray canvas.
func letterboxImage(img image.Image, width, height int) (*image.NRGBA, letterbox) {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	scale := math.Min(float64(width)/float64(srcW), float64(height)/float64(srcH))
	newW := max(1, int(math.Round(float64(srcW)*scale)))
	newH := max(1, int(math.Round(float64(srcH)*scale)))

	var resized *image.NRGBA
	if newW == srcW && newH == srcH {
		resized = imaging.Clone(img)
	} else {
		resized = imaging.Resize(img, newW, newH, imaging.Linear)
	}

	padX := (width - newW) / 2
	padY := (height - newH) / 2

	canvas := imaging.New(width, height, color.NRGBA{R: LetterboxFill, G: LetterboxFill, B: LetterboxFill, A: 255})
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return canvas, letterbox{
		scale: scale,
		padX:  padX,
		padY:  padY,
		srcW:  srcW,
		srcH:  srcH,
	}
}

// toSource maps a box from model input space to clipped source pixels.
func (lb letterbox) toSource(box [4]float32) [4]float64 {
	x1 := (float64(box[0]) - float64(lb.padX)) / lb.scale
	y1 := (float64(box[1]) - float64(lb.padY)) / lb.scale
	x2 := (float64(box[2]) - float64(lb.padX)) / lb.scale
	y2 := (float64(box[3]) - float64(lb.padY)) / lb.scale

	return [4]float64{
		clamp(x1, 0, float64(lb.srcW)),
		clamp(y1, 0, float64(lb.srcH)),
		clamp(x2, 0, float64(lb.srcW)),
		clamp(y2, 0, float64(lb.srcH)),
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// fillCHW writes img into dst as planar RGB scaled to [0,1].
// dst must hold 3*W*H values.
func fillCHW(img *image.NRGBA, dst []float32) {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	channelSize := width * height

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers < 1 {
		return
	}
	rowsPerWorker := height / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		endY := startY + rowsPerWorker
		if w == numWorkers-1 {
			endY = height
		}

		go func(startY, endY int) {
			defer wg.Done()
			for y := startY; y < endY; y++ {
				src := img.Pix[y*img.Stride : y*img.Stride+width*4]
				offset := y * width
				for x := 0; x < width; x++ {
					i := offset + x
					dst[i] = float32(src[x*4]) / 255.0
					dst[channelSize+i] = float32(src[x*4+1]) / 255.0
					dst[channelSize*2+i] = float32(src[x*4+2]) / 255.0
				}
			}
		}(startY, endY)
	}

	wg.Wait()
}
