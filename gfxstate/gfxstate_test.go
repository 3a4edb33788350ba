package gfxstate

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestTrackedBarrierUpdatesState(t *testing.T) {
	tr := NewTracked(Undefined)
	if tr.Last() != Undefined {
		t.Fatalf("NewTracked: have %v, want Undefined", tr.Last())
	}
	b := tr.Barrier(vk.Image(0), vk.ImageAspectFlags(vk.ImageAspectColorBit), TransferWrite)
	if b.OldLayout != vk.ImageLayoutUndefined || b.NewLayout != vk.ImageLayoutTransferDstOptimal {
		t.Fatalf("Barrier layouts\nhave old=%v new=%v\nwant old=Undefined new=TransferDstOptimal", b.OldLayout, b.NewLayout)
	}
	if tr.Last() != TransferWrite {
		t.Fatalf("Barrier must update tracked state to next access\nhave %v\nwant %v", tr.Last(), TransferWrite)
	}

	b2 := tr.Barrier(vk.Image(0), vk.ImageAspectFlags(vk.ImageAspectColorBit), FragmentShaderReadOptimal)
	if b2.OldLayout != vk.ImageLayoutTransferDstOptimal {
		t.Fatalf("second Barrier must chain from the updated state\nhave old=%v\nwant TransferDstOptimal", b2.OldLayout)
	}
}

func TestQueueTransferPreservesFamilies(t *testing.T) {
	tr := NewTracked(TransferWrite)
	release, acquire := tr.QueueTransfer(vk.Image(0), vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, 0, FragmentShaderReadOptimal)
	if release.SrcQueueFamilyIndex != 1 || release.DstQueueFamilyIndex != 0 {
		t.Fatalf("release barrier families\nhave src=%d dst=%d\nwant src=1 dst=0", release.SrcQueueFamilyIndex, release.DstQueueFamilyIndex)
	}
	if acquire.SrcQueueFamilyIndex != 1 || acquire.DstQueueFamilyIndex != 0 {
		t.Fatalf("acquire barrier families\nhave src=%d dst=%d\nwant src=1 dst=0", acquire.SrcQueueFamilyIndex, acquire.DstQueueFamilyIndex)
	}
	if tr.Last() != FragmentShaderReadOptimal {
		t.Fatalf("QueueTransfer must update tracked state\nhave %v\nwant %v", tr.Last(), FragmentShaderReadOptimal)
	}
}
