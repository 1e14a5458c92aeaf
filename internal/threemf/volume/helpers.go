package volume

import (
	"strconv"
	"strings"

	"github.com/flywave/go3d/vec4"

	"github.com/kjplatz/threemf/internal/threemf/xform"
)

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atofSafe(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// decodeRowMajorMatrix parses the 16-element row-major `matrix` metadata
// value modelconfig.Write emits, distinct from the geometry document's
// 12-element column-major `transform` attribute encoding (xform.Decode).
func decodeRowMajorMatrix(text string) (xform.Mat4, bool) {
	fields := strings.Fields(text)
	if len(fields) != 16 {
		return xform.Identity(), false
	}
	var v [16]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return xform.Identity(), false
		}
		v[i] = n
	}
	var m xform.Mat4
	for r := 0; r < 4; r++ {
		m[r] = vec4.T{
			float32(v[r*4]), float32(v[r*4+1]), float32(v[r*4+2]), float32(v[r*4+3]),
		}
	}
	return m, true
}
