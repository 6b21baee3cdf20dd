package surface

import "github.com/abdullathedruid/termdeck/internal/workspace"

const (
	// StatusBarHeight is the height reserved for the status bar at the bottom.
	StatusBarHeight = 2
	// SidebarWidth is the width of the session list in characters.
	SidebarWidth = 24
)

// Layout is the position of a view in screen coordinates, borders included.
type Layout struct {
	X0, Y0, X1, Y1 int
}

// Width returns the interior width (excluding borders).
func (l Layout) Width() int {
	w := l.X1 - l.X0 - 1
	if w < 1 {
		return 1
	}
	return w
}

// Height returns the interior height (excluding borders).
func (l Layout) Height() int {
	h := l.Y1 - l.Y0 - 1
	if h < 1 {
		return 1
	}
	return h
}

// Screen holds the layouts of every view in the workspace.
//
//	[sidebar][      top      ][ right ]
//	[       ][    bottom     ][       ]
//	[            status             ]
type Screen struct {
	Sidebar Layout
	Slots   map[workspace.Slot]Layout
	Status  Layout
}

// CalculateScreen lays out the sidebar, the three slots and the status bar.
// The top slot takes 60% of the terminal height and the right column 35% of
// the terminal width.
func CalculateScreen(maxX, maxY int) Screen {
	sidebarWidth := SidebarWidth
	if sidebarWidth > maxX/4 {
		sidebarWidth = maxX / 4
	}
	if sidebarWidth < 10 {
		sidebarWidth = 10
	}

	bottomEdge := maxY - StatusBarHeight
	if bottomEdge < 4 {
		bottomEdge = 4
	}

	mainWidth := maxX - sidebarWidth
	rightX := sidebarWidth + mainWidth*65/100
	splitY := bottomEdge * 60 / 100

	return Screen{
		Sidebar: Layout{0, 0, sidebarWidth - 1, bottomEdge - 1},
		Slots: map[workspace.Slot]Layout{
			workspace.SlotTop:    {sidebarWidth, 0, rightX - 1, splitY - 1},
			workspace.SlotBottom: {sidebarWidth, splitY, rightX - 1, bottomEdge - 1},
			workspace.SlotRight:  {rightX, 0, maxX - 1, bottomEdge - 1},
		},
		Status: Layout{-1, bottomEdge, maxX, maxY},
	}
}
