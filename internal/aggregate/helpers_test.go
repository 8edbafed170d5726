package aggregate

import "github.com/starford/asterisk/internal/host"

// hostWithSharedElement returns a canvas where both pages contain element "5:5".
func hostWithSharedElement() (*host.Canvas, error) {
	return host.NewCanvas(host.DocumentSpec{
		ID: "design",
		Pages: []host.PageSpec{
			{ID: "0:1", Name: "Cover", Elements: []host.ElementSpec{{ID: "5:5", Name: "Shared"}}},
			{ID: "0:2", Name: "Icons", Elements: []host.ElementSpec{{ID: "5:5", Name: "Shared"}}},
		},
	})
}
