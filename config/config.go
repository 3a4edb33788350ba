// Package config loads the renderer's tunable settings.
//
// Settings mirror debug/Settings.h in the original C++
// implementation: values an ImGui panel would edit in the original
// become plain TOML fields here, since ImGui integration itself is
// out of scope for this renderer.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds every renderer tunable that is not derived from the
// loaded scene or the windowing system.
type Config struct {
	Window struct {
		Width  int `toml:"width"`
		Height int `toml:"height"`
		Title  string `toml:"title"`
	} `toml:"window"`

	Resources string `toml:"resources"`

	Camera struct {
		FovY     float32 `toml:"fov_y"`
		Near     float32 `toml:"near"`
		Far      float32 `toml:"far"`
		MoveSpeed float32 `toml:"move_speed"`
		FastMul  float32 `toml:"fast_multiplier"`
	} `toml:"camera"`

	Shadow struct {
		CascadeCount   int     `toml:"cascade_count"`
		Resolution     int     `toml:"resolution"`
		SplitLambda    float32 `toml:"split_lambda"`
		ExtrusionBias  float32 `toml:"extrusion_bias"`
		NormalBias     float32 `toml:"normal_bias"`
		SampleBias     float32 `toml:"sample_bias"`
		SampleBiasClamp float32 `toml:"sample_bias_clamp"`
		DepthBiasConstant float32 `toml:"depth_bias_constant"`
		DepthBiasClamp    float32 `toml:"depth_bias_clamp"`
		DepthBiasSlope    float32 `toml:"depth_bias_slope"`
	} `toml:"shadow"`

	SSAO struct {
		Slices  int     `toml:"slices"`
		Samples int     `toml:"samples"`
		Radius  float32 `toml:"radius"`
		Bias    float32 `toml:"bias"`
		Sharpness float32 `toml:"sharpness"`
		Exponent  float32 `toml:"exponent"`
	} `toml:"ssao"`

	Blob struct {
		CellSize float32 `toml:"cell_size"`
	} `toml:"blob"`

	Fog struct {
		Density float32 `toml:"density"`
		R, G, B float32 `toml:"color"`
	} `toml:"fog"`

	Tonemap struct {
		EVMin      float32 `toml:"ev_min"`
		EVMax      float32 `toml:"ev_max"`
		MidGray    float32 `toml:"mid_gray"`
		Offset     float32 `toml:"offset"`
		Slope      float32 `toml:"slope"`
		Power      float32 `toml:"power"`
		Saturation float32 `toml:"saturation"`
	} `toml:"tonemap"`
}

// Default returns the configuration used when no config file is
// present, matching the original implementation's constant defaults.
func Default() Config {
	var c Config
	c.Window.Width = 1600
	c.Window.Height = 900
	c.Window.Title = "vkforge"
	c.Resources = "./resources"
	c.Camera.FovY = 1.0471976 // 60 degrees
	c.Camera.Near = 0.1
	c.Camera.Far = 500
	c.Camera.MoveSpeed = 4
	c.Camera.FastMul = 4
	c.Shadow.CascadeCount = 5
	c.Shadow.Resolution = 2048
	c.Shadow.SplitLambda = 0.75
	c.Shadow.ExtrusionBias = 2
	c.Shadow.NormalBias = 1.5
	c.Shadow.SampleBias = 0.002
	c.Shadow.SampleBiasClamp = 0.01
	c.Shadow.DepthBiasConstant = 1.25
	c.Shadow.DepthBiasClamp = 0
	c.Shadow.DepthBiasSlope = 1.75
	c.SSAO.Slices = 3
	c.SSAO.Samples = 3
	c.SSAO.Radius = 0.5
	c.SSAO.Bias = 0.025
	c.SSAO.Sharpness = 8
	c.SSAO.Exponent = 1.5
	c.Blob.CellSize = 0.05
	c.Fog.Density = 0.0
	c.Fog.R, c.Fog.G, c.Fog.B = 0.6, 0.7, 0.8
	c.Tonemap.EVMin = -12.47393
	c.Tonemap.EVMax = 4.026069
	c.Tonemap.MidGray = 0.18
	c.Tonemap.Offset = 0
	c.Tonemap.Slope = 1
	c.Tonemap.Power = 1
	c.Tonemap.Saturation = 1
	return c
}

// Load reads a TOML config file at path, overlaying it on top of
// Default. A missing file is not an error: Default is returned as
// is — the only required input is the resources directory, not a
// config file.
func Load(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, err
	}
	if err := toml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}
