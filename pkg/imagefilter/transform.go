package imagefilter

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/askiada/go-reconstruct/pkg/config"
)

const (
	denoiseStrength       = 10
	denoiseTemplateWindow = 7
	denoiseSearchWindow   = 21
	claheClipLimit        = 2.0
)

var claheTileGrid = image.Pt(8, 8)

// Options selects the transforms, applied in field order.
type Options struct {
	Denoise bool
	Enhance bool
	Sharpen bool
}

// OptionsFrom returns the transforms enabled in cfg.
func OptionsFrom(cfg config.Validated) Options {
	filter := cfg.Filter()

	return Options{
		Denoise: filter.Denoise,
		Enhance: filter.Enhance,
		Sharpen: filter.Sharpen,
	}
}

// Any reports whether at least one transform is enabled.
func (o Options) Any() bool {
	return o.Denoise || o.Enhance || o.Sharpen
}

// Apply returns a new BGR image holding src after the enabled transforms. With no transform
// enabled it returns an exact copy. The caller owns the returned Mat.
func Apply(src gocv.Mat, opts Options) (gocv.Mat, error) {
	current := src.Clone()

	steps := []struct {
		enabled bool
		name    string
		fn      func(gocv.Mat) (gocv.Mat, error)
	}{
		{opts.Denoise, "denoise", denoise},
		{opts.Enhance, "enhance", enhance},
		{opts.Sharpen, "sharpen", sharpen},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		next, err := step.fn(current)
		current.Close()
		if err != nil {
			return gocv.NewMat(), errors.Wrapf(err, "unable to %s", step.name)
		}
		current = next
	}

	return current, nil
}

// denoise runs colour non-local means denoising.
func denoise(src gocv.Mat) (gocv.Mat, error) {
	dst := gocv.NewMat()
	err := gocv.FastNlMeansDenoisingColoredWithParams(src, &dst, denoiseStrength, denoiseStrength, denoiseTemplateWindow, denoiseSearchWindow)
	if err != nil {
		dst.Close()

		return gocv.NewMat(), errors.Wrap(err, "unable to denoise")
	}
	if dst.Empty() {
		dst.Close()

		return gocv.NewMat(), errors.New("denoising produced an empty image")
	}

	return dst, nil
}

// enhance equalises the luma channel with CLAHE, leaving chroma untouched.
func enhance(src gocv.Mat) (gocv.Mat, error) {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	err := gocv.CvtColor(src, &ycrcb, gocv.ColorBGRToYCrCb)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "unable to convert to YCrCb")
	}

	channels := gocv.Split(ycrcb)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()
	if len(channels) != 3 {
		return gocv.NewMat(), errors.Errorf("expected 3 channels, got %d", len(channels))
	}

	clahe := gocv.NewCLAHEWithParams(claheClipLimit, claheTileGrid)
	defer clahe.Close()
	luma := gocv.NewMat()
	err = clahe.Apply(channels[0], &luma)
	channels[0].Close()
	channels[0] = luma
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "unable to equalise luma")
	}

	merged := gocv.NewMat()
	defer merged.Close()
	err = gocv.Merge(channels, &merged)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "unable to merge channels")
	}

	dst := gocv.NewMat()
	err = gocv.CvtColor(merged, &dst, gocv.ColorYCrCbToBGR)
	if err != nil {
		dst.Close()

		return gocv.NewMat(), errors.Wrap(err, "unable to convert to BGR")
	}

	return dst, nil
}

// sharpen convolves with the 3x3 kernel [0 -1 0; -1 5 -1; 0 -1 0].
func sharpen(src gocv.Mat) (gocv.Mat, error) {
	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	weights := [3][3]float32{
		{0, -1, 0},
		{-1, 5, -1},
		{0, -1, 0},
	}
	for row := range weights {
		for col, weight := range weights[row] {
			kernel.SetFloatAt(row, col, weight)
		}
	}

	dst := gocv.NewMat()
	err := gocv.Filter2D(src, &dst, -1, kernel, image.Point{X: -1, Y: -1}, 0, gocv.BorderDefault)
	if err != nil {
		dst.Close()

		return gocv.NewMat(), errors.Wrap(err, "unable to convolve")
	}

	return dst, nil
}
