package scene

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	vk "github.com/goki/vulkan"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/vkforge/vkforge/gfx"
	"github.com/vkforge/vkforge/gfxstate"
)

// ImageUploader decodes the image sources gathered by Load and
// uploads them into the bindless image table, generating a full mip
// chain per image via blit.
//
// Each Queue call records, submits and waits for its own upload on
// the graphics queue: there is no separate apply step, no batching
// of copies across images, and no ownership transfer between a
// transfer queue and the graphics queue.
type ImageUploader struct {
	ctx     *gfx.Context
	staging *StagingUploader
	queued  []queuedImage
}

type queuedImage struct {
	img  *gfx.ImageWithView
	srgb bool
}

func NewImageUploader(ctx *gfx.Context, staging *StagingUploader) *ImageUploader {
	return &ImageUploader{ctx: ctx, staging: staging}
}

// Queue decodes src from disk, records the upload commands (layout
// transition to TransferDst, buffer-to-image copy of level 0, mip
// chain generation by sequential blits, final transition to
// FragmentShaderReadOptimal), submits them on the graphics queue and
// waits for them to finish, so the returned image is ready to sample.
func (u *ImageUploader) Queue(src ImageSource) (*gfx.ImageWithView, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("scene: opening image %q: %w", src.Path, err)
	}
	defer f.Close()
	decoded, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("scene: decoding image %q: %w", src.Path, err)
	}

	bounds := decoded.Bounds()
	w, h := uint32(bounds.Dx()), uint32(bounds.Dy())
	pixels := toRGBA8(decoded)

	format := vk.FormatR8g8b8a8Unorm
	if src.SRGB {
		format = vk.FormatR8g8b8a8Srgb
	}
	levels := gfx.MipLevels(w, h)

	img, err := u.ctx.CreateImage(gfx.ImageOpts{
		Format: format, Width: w, Height: h, Levels: levels,
		Usage:  vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit | vk.ImageUsageSampledBit,
		Aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	})
	if err != nil {
		return nil, err
	}

	if err := u.staging.beginUnsynchronized(); err != nil {
		return nil, err
	}
	barrier := img.State.Barrier(img.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.TransferWrite)
	recordBarrier(u.staging.cmd, barrier)
	u.staging.UploadImage(img.Handle, w, h, 0, 0, pixels)
	u.generateMipmaps(img, w, h, levels)
	final := img.State.Barrier(img.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.FragmentShaderReadOptimal)
	recordBarrier(u.staging.cmd, final)
	if err := u.staging.submitUnsynchronized(); err != nil {
		return nil, err
	}
	u.staging.Wait()

	u.queued = append(u.queued, queuedImage{img: img, srgb: src.SRGB})
	return img, nil
}

// generateMipmaps blits level i into level i+1 successively, the
// standard box-filter-via-linear-blit mip generation technique; each
// step barriers level i to TransferRead before blitting from it and
// the freshly blitted level i+1 stays TransferWrite until the next
// iteration reads from it.
func (u *ImageUploader) generateMipmaps(img *gfx.ImageWithView, w, h, levels uint32) {
	cmd := u.staging.cmd
	mw, mh := int32(w), int32(h)
	for level := uint32(1); level < levels; level++ {
		src := gfxstate.MipBarrier(img.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit), level-1,
			gfxstate.TransferWrite, gfxstate.TransferRead)
		recordBarrier(cmd, src)

		nw, nh := mw, mh
		if nw > 1 {
			nw /= 2
		}
		if nh > 1 {
			nh /= 2
		}
		blit := vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), MipLevel: level - 1, LayerCount: 1},
			SrcOffsets:     [2]vk.Offset3D{{}, {X: mw, Y: mh, Z: 1}},
			DstSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), MipLevel: level, LayerCount: 1},
			DstOffsets:     [2]vk.Offset3D{{}, {X: nw, Y: nh, Z: 1}},
		}
		vk.CmdBlitImage(cmd, img.Handle, vk.ImageLayoutTransferSrcOptimal, img.Handle, vk.ImageLayoutTransferDstOptimal,
			1, []vk.ImageBlit{blit}, vk.FilterLinear)
		mw, mh = nw, nh
	}
	// Every level except the last ends this loop in TransferRead;
	// the last level is still TransferWrite from its own copy/blit.
	// The caller's final full-resource barrier (TransferWrite or
	// TransferRead -> FragmentShaderReadOptimal) covers both, since
	// Barrier transitions the whole subresource range.
}

func recordBarrier(cmd vk.CommandBuffer, b vk.ImageMemoryBarrier2) {
	dep := vk.DependencyInfo{
		SType:                   vk.StructureTypeDependencyInfo,
		ImageMemoryBarrierCount: 1,
		PImageMemoryBarriers:    []vk.ImageMemoryBarrier2{b},
	}
	vk.CmdPipelineBarrier2(cmd, &dep)
}

func toRGBA8(img image.Image) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			out[i] = byte(r >> 8)
			out[i+1] = byte(g >> 8)
			out[i+2] = byte(bl >> 8)
			out[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return out
}
