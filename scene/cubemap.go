package scene

import (
	"fmt"
	"image"
	"math"
	"os"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
	"github.com/vkforge/vkforge/gfxstate"
)

// CubemapFaces names the six face image paths in Vulkan's cube layer
// order: +X, -X, +Y, -Y, +Z, -Z.
type CubemapFaces [6]string

// LoadCubemap decodes six equal-sized face images and uploads them as
// one R9G9B9E5 shared-exponent cube image. Unlike LoadScene's
// per-image mip chains, a skybox cubemap
// is sampled at a single level — there is no reason to filter a sky
// that is infinitely far away.
//
// Runs its own single-shot staging round-trip rather than taking a
// caller-supplied StagingUploader, mirroring LoadScene's own
// construct-upload-destroy pattern.
func LoadCubemap(ctx *gfx.Context, faces CubemapFaces) (*gfx.ImageWithView, error) {
	var width, height uint32
	packed := make([][]byte, 6)

	for i, path := range faces {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("scene: opening cubemap face %q: %w", path, err)
		}
		decoded, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("scene: decoding cubemap face %q: %w", path, err)
		}
		b := decoded.Bounds()
		w, h := uint32(b.Dx()), uint32(b.Dy())
		if i == 0 {
			width, height = w, h
		} else if w != width || h != height {
			return nil, fmt.Errorf("scene: cubemap face %q is %dx%d, want %dx%d matching face 0", path, w, h, width, height)
		}
		packed[i] = packRGB9E5Image(decoded)
	}

	img, err := ctx.CreateImage(gfx.ImageOpts{
		Format: vk.FormatE5b9g9r9UfloatPack32, Width: width, Height: height,
		Layers: 6, Levels: 1, Cube: true, ViewType: vk.ImageViewTypeCube,
		Usage:  vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit,
		Aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	})
	if err != nil {
		return nil, err
	}

	staging, err := NewStagingUploader(ctx)
	if err != nil {
		img.Destroy(ctx)
		return nil, err
	}
	defer staging.Destroy()

	if err := staging.beginUnsynchronized(); err != nil {
		img.Destroy(ctx)
		return nil, err
	}
	barrier := img.State.Barrier(img.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.TransferWrite)
	recordBarrier(staging.cmd, barrier)
	for layer, data := range packed {
		staging.UploadImage(img.Handle, width, height, 0, uint32(layer), data)
	}
	final := img.State.Barrier(img.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.FragmentShaderReadOptimal)
	recordBarrier(staging.cmd, final)
	if err := staging.submitUnsynchronized(); err != nil {
		img.Destroy(ctx)
		return nil, err
	}
	staging.Wait()

	return img, nil
}

// packRGB9E5Image converts a decoded image's texels (treated as
// linear RGB in [0,1], matching the 8-bit sources skyboxes are
// authored from) to the packed 32-bit shared-exponent format a
// FormatE5b9g9r9UfloatPack32 image expects.
func packRGB9E5Image(src image.Image) []byte {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			rf := float32(r) / 65535
			gf := float32(g) / 65535
			bf := float32(bl) / 65535
			packed := packRGB9E5(rf, gf, bf)
			out[i] = byte(packed)
			out[i+1] = byte(packed >> 8)
			out[i+2] = byte(packed >> 16)
			out[i+3] = byte(packed >> 24)
			i += 4
		}
	}
	return out
}

// packRGB9E5 follows the reference conversion from the
// EXT_texture_shared_exponent extension: a shared 5-bit exponent is
// chosen to fit the largest of the three channels in a 9-bit
// mantissa, then every channel is quantized against that exponent.
func packRGB9E5(r, g, b float32) uint32 {
	const (
		expBias        = 15
		maxBiasedExp   = 31
		mantissaBits   = 9
		mantissaValues = 1 << mantissaBits
		maxExp         = maxBiasedExp - expBias
	)
	maxRGB9E5 := float64(mantissaValues-1) / float64(mantissaValues) * math.Pow(2, maxExp)

	clamp := func(x float32) float64 {
		xf := float64(x)
		if xf <= 0 {
			return 0
		}
		if xf >= maxRGB9E5 {
			return maxRGB9E5
		}
		return xf
	}
	rc, gc, bc := clamp(r), clamp(g), clamp(b)
	maxc := math.Max(rc, math.Max(gc, bc))

	floorLog2 := func(x float64) int {
		if x <= 0 {
			return -expBias - 1
		}
		return int(math.Floor(math.Log2(x)))
	}
	expShared := floorLog2(maxc)
	if expShared < -expBias-1 {
		expShared = -expBias - 1
	}
	expShared += 1 + expBias

	denom := math.Pow(2, float64(expShared-expBias-mantissaBits))
	maxm := int(math.Floor(maxc/denom + 0.5))
	if maxm == mantissaValues {
		denom *= 2
		expShared++
	}

	quant := func(x float64) uint32 {
		return uint32(math.Floor(x/denom + 0.5))
	}
	rm, gm, bm := quant(rc), quant(gc), quant(bc)

	return (rm & 0x1FF) | ((gm & 0x1FF) << 9) | ((bm & 0x1FF) << 18) | (uint32(expShared) << 27)
}
