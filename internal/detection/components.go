package detection

import "image"

// point is a pixel position in mask coordinates.
type point struct {
	x, y int
}

// component is a connected foreground region found by externalComponents.
type component struct {
	minX, minY, maxX, maxY int
	external               bool
}

func (c component) rect() Rect {
	return Rect{X: c.minX, Y: c.minY, Width: c.maxX - c.minX + 1, Height: c.maxY - c.minY + 1}
}

// externalComponents returns the bounding rectangles of the outermost
// foreground components of a binary mask in row-major discovery order.
//
// Foreground is 8-connected and background 4-connected. A component counts
// as external when it touches the image border or borders background that is
// reachable from the border; components sitting inside a hole of another
// component are dropped.
func externalComponents(mask *image.Gray) []Rect {
	b := mask.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	fg := make([]bool, width*height)
	for y := 0; y < height; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+width]
		for x, px := range row {
			fg[y*width+x] = px != 0
		}
	}

	outside := outerBackground(fg, width, height)
	visited := make([]bool, width*height)
	rects := make([]Rect, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if !fg[i] || visited[i] {
				continue
			}
			c := floodFill(fg, visited, outside, x, y, width, height)
			if c.external {
				rects = append(rects, c.rect())
			}
		}
	}
	return rects
}

// outerBackground marks background pixels 4-connected to the image border.
func outerBackground(fg []bool, width, height int) []bool {
	outside := make([]bool, width*height)
	stack := make([]point, 0, 2*(width+height))

	push := func(x, y int) {
		i := y*width + x
		if !fg[i] && !outside[i] {
			outside[i] = true
			stack = append(stack, point{x, y})
		}
	}

	for x := 0; x < width; x++ {
		push(x, 0)
		push(x, height-1)
	}
	for y := 0; y < height; y++ {
		push(0, y)
		push(width-1, y)
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.x > 0 {
			push(p.x-1, p.y)
		}
		if p.x < width-1 {
			push(p.x+1, p.y)
		}
		if p.y > 0 {
			push(p.x, p.y-1)
		}
		if p.y < height-1 {
			push(p.x, p.y+1)
		}
	}
	return outside
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack rather than recursion so large marks cannot overflow the
// goroutine stack. Marks visited pixels, tracks the bounding box and records
// whether any pixel touches the border or the outer background.
func floodFill(fg, visited, outside []bool, startX, startY, width, height int) component {
	c := component{minX: startX, minY: startY, maxX: startX, maxY: startY}
	stack := []point{{startX, startY}}
	visited[startY*width+startX] = true

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c.minX = min(c.minX, p.x)
		c.maxX = max(c.maxX, p.x)
		c.minY = min(c.minY, p.y)
		c.maxY = max(c.maxY, p.y)

		if !c.external {
			c.external = touchesOutside(outside, p.x, p.y, width, height)
		}

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := p.x+dx, p.y+dy
				if nx < 0 || nx >= width || ny < 0 || ny >= height {
					continue
				}
				i := ny*width + nx
				if fg[i] && !visited[i] {
					visited[i] = true
					stack = append(stack, point{nx, ny})
				}
			}
		}
	}
	return c
}

func touchesOutside(outside []bool, x, y, width, height int) bool {
	if x == 0 || y == 0 || x == width-1 || y == height-1 {
		return true
	}
	return outside[y*width+x-1] || outside[y*width+x+1] ||
		outside[(y-1)*width+x] || outside[(y+1)*width+x]
}
