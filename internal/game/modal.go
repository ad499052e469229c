package game

// Panel is an overlay that can be opened over the game.
type Panel string

// Panels.
const (
	PanelLeaderboard Panel = "leaderboard"
	PanelDevSettings Panel = "devSettings"
	PanelAuth        Panel = "auth"
)

// exclusivePanels may not be open at the same time as each other.
var exclusivePanels = map[Panel]bool{
	PanelLeaderboard: true,
	PanelDevSettings: true,
}

// DefaultPanelControls lists each panel's focusable controls in tab order.
var DefaultPanelControls = map[Panel][]string{
	PanelLeaderboard: {"leaderboard.close", "leaderboard.account"},
	PanelDevSettings: {"dev.resetLeaderboard", "dev.toggleSplit", "dev.resetGame", "dev.close"},
	PanelAuth:        {"auth.email", "auth.password", "auth.submit", "auth.google", "auth.close"},
}

// ModalCoordinator tracks which panels are open. Opening the leaderboard
// closes developer settings and vice versa; the auth panel is independent.
// It is not safe for concurrent use; Game serialises access.
type ModalCoordinator struct {
	controls map[Panel][]string
	open     []Panel // in opening order
	focus    string
}

// NewModalCoordinator creates a coordinator with every panel closed. A nil
// controls map uses DefaultPanelControls.
func NewModalCoordinator(controls map[Panel][]string) *ModalCoordinator {
	if controls == nil {
		controls = DefaultPanelControls
	}
	return &ModalCoordinator{controls: controls}
}

// Open shows p, closing any conflicting exclusive panel, and moves focus to
// the first control of p.
func (m *ModalCoordinator) Open(p Panel) error {
	if _, ok := m.controls[p]; !ok {
		return ErrUnknownPanel
	}
	if exclusivePanels[p] {
		for _, other := range m.open {
			if other != p && exclusivePanels[other] {
				m.remove(other)
			}
		}
	}
	m.remove(p)
	m.open = append(m.open, p)
	m.refocus()
	return nil
}

// Close hides p. Closing a closed panel is a no-op.
func (m *ModalCoordinator) Close(p Panel) {
	if m.remove(p) {
		m.refocus()
	}
}

// Toggle opens p if it is closed and closes it otherwise. It returns whether
// p is open afterwards.
func (m *ModalCoordinator) Toggle(p Panel) (bool, error) {
	if m.IsOpen(p) {
		m.Close(p)
		return false, nil
	}
	if err := m.Open(p); err != nil {
		return false, err
	}
	return true, nil
}

// Escape closes every open panel.
func (m *ModalCoordinator) Escape() {
	m.open = nil
	m.focus = ""
}

// ClickOutside closes p; a click outside a panel's bounds dismisses it.
func (m *ModalCoordinator) ClickOutside(p Panel) {
	m.Close(p)
}

// IsOpen reports whether p is open.
func (m *ModalCoordinator) IsOpen(p Panel) bool {
	for _, o := range m.open {
		if o == p {
			return true
		}
	}
	return false
}

// OpenPanels returns the open panels in opening order.
func (m *ModalCoordinator) OpenPanels() []Panel {
	out := make([]Panel, len(m.open))
	copy(out, m.open)
	return out
}

// Focus returns the control that has focus, or "" if no panel is open.
func (m *ModalCoordinator) Focus() string {
	return m.focus
}

func (m *ModalCoordinator) remove(p Panel) bool {
	for i, o := range m.open {
		if o == p {
			m.open = append(m.open[:i], m.open[i+1:]...)
			return true
		}
	}
	return false
}

func (m *ModalCoordinator) refocus() {
	m.focus = ""
	if len(m.open) == 0 {
		return
	}
	top := m.open[len(m.open)-1]
	if controls := m.controls[top]; len(controls) > 0 {
		m.focus = controls[0]
	}
}
