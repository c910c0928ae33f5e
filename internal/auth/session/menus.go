package session

import "atlas/internal/auth/models"

// FilteredMenus prunes the user's navigation tree down to entries the
// session may see. Nodes with a required permission the user lacks are
// removed with their subtree; a parent whose children are all pruned
// is removed too, unless it is itself a navigable leaf.
func (m *Manager) FilteredMenus() []models.MenuItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	return m.filterMenus(m.user.Menus)
}

func (m *Manager) filterMenus(items []models.MenuItem) []models.MenuItem {
	var visible []models.MenuItem
	for _, item := range items {
		if item.Permission != "" {
			if _, ok := m.permissions[item.Permission]; !ok {
				continue
			}
		}
		if len(item.Children) > 0 {
			children := m.filterMenus(item.Children)
			if len(children) == 0 {
				continue
			}
			item.Children = children
		}
		visible = append(visible, item)
	}
	return visible
}
