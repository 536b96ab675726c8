package imagefilter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/askiada/go-reconstruct/pkg/imagefilter"
)

func uniform(t *testing.T, value uint8) gocv.Mat {
	t.Helper()

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(value), float64(value), float64(value), 0), 16, 16, gocv.MatTypeCV8UC3)
	require.False(t, mat.Empty())

	return mat
}

func TestApply(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		opts      imagefilter.Options
		unchanged bool
	}{
		"none":    {opts: imagefilter.Options{}, unchanged: true},
		"sharpen": {opts: imagefilter.Options{Sharpen: true}, unchanged: true},
		"denoise": {opts: imagefilter.Options{Denoise: true}},
		"enhance": {opts: imagefilter.Options{Enhance: true}},
		"all":     {opts: imagefilter.Options{Denoise: true, Enhance: true, Sharpen: true}},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			src := uniform(t, 120)
			defer src.Close()

			dst, err := imagefilter.Apply(src, tc.opts)
			require.NoError(t, err)
			defer dst.Close()

			assert.Equal(t, src.Rows(), dst.Rows())
			assert.Equal(t, src.Cols(), dst.Cols())
			assert.Equal(t, src.Type(), dst.Type())
			if tc.unchanged {
				// The sharpen kernel sums to one, so a flat image stays flat.
				assert.Equal(t, src.ToBytes(), dst.ToBytes())
			}
		})
	}
}

func TestApplyDoesNotModifySource(t *testing.T) {
	t.Parallel()

	src := uniform(t, 80)
	defer src.Close()
	src.SetUCharAt(4, 4, 255)
	before := src.ToBytes()

	dst, err := imagefilter.Apply(src, imagefilter.Options{Denoise: true, Enhance: true, Sharpen: true})
	require.NoError(t, err)
	defer dst.Close()

	assert.Equal(t, before, src.ToBytes())
}

func TestOptionsAny(t *testing.T) {
	t.Parallel()

	assert.False(t, imagefilter.Options{}.Any())
	assert.True(t, imagefilter.Options{Enhance: true}.Any())
}

func TestApplyReportsOpenCVErrors(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		opts    imagefilter.Options
		message string
	}{
		"denoise": {opts: imagefilter.Options{Denoise: true}, message: "unable to denoise"},
		"enhance": {opts: imagefilter.Options{Enhance: true}, message: "unable to enhance"},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 0, 0, 0), 16, 16, gocv.MatTypeCV8UC1)
			defer gray.Close()

			dst, err := imagefilter.Apply(gray, tc.opts)
			defer dst.Close()
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.message)
			assert.True(t, dst.Empty())
		})
	}
}
