package scene

import (
	"encoding/json"
	"math"

	"github.com/qmuntal/gltf"

	"github.com/vkforge/vkforge/linear"
)

const lightsExtensionName = "KHR_lights_punctual"

type khrLight struct {
	Type      string     `json:"type"`
	Color     [3]float32 `json:"color"`
	Intensity float32    `json:"intensity"`
	Range     float32    `json:"range"`
	Spot      *struct {
		InnerConeAngle float32 `json:"innerConeAngle"`
		OuterConeAngle float32 `json:"outerConeAngle"`
	} `json:"spot"`
}

type khrNodeLight struct {
	Light int `json:"light"`
}

// lightExtension reports whether a node carries a
// KHR_lights_punctual light reference, returning its index into the
// document-level light array.
func lightExtension(ext gltf.Extensions) (int, bool) {
	raw, ok := ext[lightsExtensionName]
	if !ok {
		return 0, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return 0, false
	}
	var ref khrNodeLight
	if err := json.Unmarshal(b, &ref); err != nil {
		return 0, false
	}
	return ref.Light, true
}

// gatherLights resolves every pending KHR_lights_punctual reference
// collected during the scene walk against the document's light
// array, converting each to world space. Directional lights become
// the scene's sun (the first directional light found) and are not
// added to Points/Spots.
func (l *loader) gatherLights() {
	raw, ok := l.doc.Extensions[lightsExtensionName]
	if !ok {
		return
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return
	}
	var lightsDoc struct {
		Lights []khrLight `json:"lights"`
	}
	if err := json.Unmarshal(b, &lightsDoc); err != nil {
		return
	}

	for _, pl := range l.pendingLights {
		if pl.idx < 0 || pl.idx >= len(lightsDoc.Lights) {
			continue
		}
		light := lightsDoc.Lights[pl.idx]

		pos := linear.V3{pl.world[3][0], pl.world[3][1], pl.world[3][2]}
		// glTF punctual lights point down -Z in local space.
		dir := linear.V3{-pl.world[2][0], -pl.world[2][1], -pl.world[2][2]}
		dir.Norm(&dir)

		switch light.Type {
		case "point":
			l.points = append(l.points, PointLight{
				Position: pos, Color: light.Color, Intensity: light.Intensity, Range: light.Range,
			})
		case "spot":
			sp := SpotLight{
				Position: pos, Direction: dir, Color: light.Color,
				Intensity: light.Intensity, Range: light.Range,
			}
			if light.Spot != nil {
				sp.OuterConeCos = cosf(light.Spot.OuterConeAngle)
				sp.InnerConeCos = cosf(light.Spot.InnerConeAngle)
			}
			l.spots = append(l.spots, sp)
		case "directional":
			// Carried by the caller as the scene's sun direction,
			// not stored in Scene.Points/Spots.
			if l.sunDirection == nil {
				l.sunDirection = &dir
				l.sunColor = light.Color
				l.sunIntensity = light.Intensity
			}
		}
	}
}

func cosf(radians float32) float32 {
	return float32(math.Cos(float64(radians)))
}
