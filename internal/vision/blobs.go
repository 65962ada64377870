package vision

import "sort"

// Box is an axis-aligned bounding box in pixel coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Center returns the box centre in floating-point pixel coordinates.
func (b Box) Center() (x, y float64) {
	return float64(b.X) + float64(b.W)/2, float64(b.Y) + float64(b.H)/2
}

// Area returns the box area in pixels squared.
func (b Box) Area() int {
	return b.W * b.H
}

// findBlobs extracts 8-connected foreground components from a 0/255 mask and
// returns a bounding box for each component whose pixel count is at least
// minArea. Output is sorted by (X, Y) so repeated runs over the same mask
// are deterministic.
func findBlobs(mask []uint8, width, height, minArea int) []Box {
	visited := make([]bool, len(mask))
	var boxes []Box
	var stack []int

	for start := range mask {
		if mask[start] == 0 || visited[start] {
			continue
		}

		// Iterative flood fill; recursion would overflow on large blobs.
		stack = stack[:0]
		stack = append(stack, start)
		visited[start] = true

		minX, minY := start%width, start/width
		maxX, maxY := minX, minY
		area := 0

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++

			x, y := idx%width, idx/width
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= width || ny >= height {
						continue
					}
					n := ny*width + nx
					if mask[n] != 0 && !visited[n] {
						visited[n] = true
						stack = append(stack, n)
					}
				}
			}
		}

		if area >= minArea {
			boxes = append(boxes, Box{
				X: minX,
				Y: minY,
				W: maxX - minX + 1,
				H: maxY - minY + 1,
			})
		}
	}

	sort.Slice(boxes, func(i, j int) bool {
		if boxes[i].X != boxes[j].X {
			return boxes[i].X < boxes[j].X
		}
		return boxes[i].Y < boxes[j].Y
	})
	return boxes
}
