package gfx

import (
	"fmt"
	"os"

	vk "github.com/goki/vulkan"
)

// ShaderLoader turns SPIR-V bytecode on disk into VkShaderModule
// objects, caching by path so repeated pipeline builds (e.g. F5
// pipeline reload, see cmd/vkforge/input.go) don't re-read and re-create
// modules that are already loaded.
type ShaderLoader struct {
	ctx     *Context
	root    string
	modules map[string]vk.ShaderModule
}

func NewShaderLoader(ctx *Context, root string) *ShaderLoader {
	return &ShaderLoader{ctx: ctx, root: root, modules: map[string]vk.ShaderModule{}}
}

// Load returns the shader module for the SPIR-V file at name
// (relative to the loader's root), creating and caching it on first
// use.
func (l *ShaderLoader) Load(name string) (vk.ShaderModule, error) {
	if m, ok := l.modules[name]; ok {
		return m, nil
	}
	code, err := os.ReadFile(l.root + "/" + name)
	if err != nil {
		return 0, fmt.Errorf("gfx: reading shader %q: %w", name, err)
	}
	create := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceToU32(code),
	}
	var mod vk.ShaderModule
	if res := vk.CreateShaderModule(l.ctx.Device, &create, nil, &mod); res != vk.Success {
		return 0, fmt.Errorf("gfx: CreateShaderModule(%q) failed: %d", name, res)
	}
	l.modules[name] = mod
	return mod, nil
}

// Reload drops every cached module and destroys its VkShaderModule,
// so the next Load call re-reads from disk. Used by the F5
// "reload pipelines" debug action.
func (l *ShaderLoader) Reload() {
	for _, m := range l.modules {
		vk.DestroyShaderModule(l.ctx.Device, m, nil)
	}
	l.modules = map[string]vk.ShaderModule{}
}

func (l *ShaderLoader) Destroy() {
	for _, m := range l.modules {
		vk.DestroyShaderModule(l.ctx.Device, m, nil)
	}
}

func sliceToU32(b []byte) []uint32 {
	n := len(b) / 4
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return out
}
