package vision

// Binary morphology over 0/255 masks with a 3x3 structuring element.
// Opening (erode then dilate) removes speckle noise; closing (dilate then
// erode) fills small holes inside blobs.

func erode(mask []uint8, width, height int) []uint8 {
	out := make([]uint8, len(mask))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			keep := true
			for dy := -1; dy <= 1 && keep; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= width || ny >= height {
						keep = false
						break
					}
					if mask[ny*width+nx] == 0 {
						keep = false
						break
					}
				}
			}
			if keep {
				out[y*width+x] = 255
			}
		}
	}
	return out
}

func dilate(mask []uint8, width, height int) []uint8 {
	out := make([]uint8, len(mask))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			hit := false
			for dy := -1; dy <= 1 && !hit; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= width || ny >= height {
						continue
					}
					if mask[ny*width+nx] != 0 {
						hit = true
						break
					}
				}
			}
			if hit {
				out[y*width+x] = 255
			}
		}
	}
	return out
}

// openThenClose applies morphological opening followed by closing.
func openThenClose(mask []uint8, width, height int) []uint8 {
	opened := dilate(erode(mask, width, height), width, height)
	closed := erode(dilate(opened, width, height), width, height)
	return closed
}
