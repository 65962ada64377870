package vision

import "testing"

// maskFrom builds a 0/255 mask from rows of '.' and '#'.
func maskFrom(rows []string) ([]uint8, int, int) {
	h := len(rows)
	w := len(rows[0])
	mask := make([]uint8, w*h)
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				mask[y*w+x] = 255
			}
		}
	}
	return mask, w, h
}

func TestFindBlobsSeparatesComponents(t *testing.T) {
	mask, w, h := maskFrom([]string{
		"##......",
		"##......",
		"........",
		".....###",
		".....###",
	})

	boxes := findBlobs(mask, w, h, 1)
	if len(boxes) != 2 {
		t.Fatalf("len(boxes) = %d, want 2: %v", len(boxes), boxes)
	}

	// Sorted by X: the 2x2 block first, the 3x2 block second.
	if boxes[0] != (Box{X: 0, Y: 0, W: 2, H: 2}) {
		t.Errorf("boxes[0] = %+v", boxes[0])
	}
	if boxes[1] != (Box{X: 5, Y: 3, W: 3, H: 2}) {
		t.Errorf("boxes[1] = %+v", boxes[1])
	}
}

func TestFindBlobsDiagonalConnectivity(t *testing.T) {
	// Diagonal touch: 8-connectivity merges these into one component.
	mask, w, h := maskFrom([]string{
		"#...",
		".#..",
		"..#.",
	})

	boxes := findBlobs(mask, w, h, 1)
	if len(boxes) != 1 {
		t.Fatalf("len(boxes) = %d, want 1 (8-connected): %v", len(boxes), boxes)
	}
	if boxes[0] != (Box{X: 0, Y: 0, W: 3, H: 3}) {
		t.Errorf("boxes[0] = %+v", boxes[0])
	}
}

func TestFindBlobsAreaFilter(t *testing.T) {
	mask, w, h := maskFrom([]string{
		"#....###",
		".....###",
		".....###",
	})

	// Single pixel (area 1) is filtered at minArea 4; 3x3 block survives.
	boxes := findBlobs(mask, w, h, 4)
	if len(boxes) != 1 {
		t.Fatalf("len(boxes) = %d, want 1: %v", len(boxes), boxes)
	}
	if boxes[0].Area() != 9 {
		t.Errorf("surviving box area = %d, want 9", boxes[0].Area())
	}
}

func TestFindBlobsEmptyMask(t *testing.T) {
	mask, w, h := maskFrom([]string{"....", "...."})
	if boxes := findBlobs(mask, w, h, 1); len(boxes) != 0 {
		t.Errorf("empty mask produced boxes: %v", boxes)
	}
}

func TestBoxCenter(t *testing.T) {
	b := Box{X: 10, Y: 20, W: 4, H: 6}
	cx, cy := b.Center()
	if cx != 12 || cy != 23 {
		t.Errorf("Center() = (%v, %v), want (12, 23)", cx, cy)
	}
}

func TestMorphologyOpeningRemovesSpeckle(t *testing.T) {
	mask, w, h := maskFrom([]string{
		"........",
		"..#.....",
		"........",
		"...#####",
		"...#####",
		"...#####",
		"...#####",
	})

	cleaned := openThenClose(mask, w, h)

	if cleaned[1*w+2] != 0 {
		t.Error("isolated speckle should be removed by opening")
	}
	// The interior of the large block survives.
	if cleaned[4*w+5] == 0 {
		t.Error("interior of large blob should survive open/close")
	}
}

func TestMorphologyClosingFillsHole(t *testing.T) {
	mask, w, h := maskFrom([]string{
		"#####",
		"#####",
		"##.##",
		"#####",
		"#####",
	})

	cleaned := openThenClose(mask, w, h)
	if cleaned[2*w+2] == 0 {
		t.Error("single-pixel hole should be filled by closing")
	}
}
