package reducer

import (
	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/state"
)

// Notifications reduces the notification list. Notifications are displayed
// in the order they were added. RemoveNotification addresses one by
// position and DismissNotification by id; either is a no-op when nothing
// matches.
func Notifications(s *state.Notifications, a action.Action) *state.Notifications {
	switch a.Type {
	case action.ResetAppState:
		return state.DefaultNotifications()

	case action.AddNotification:
		n, ok := payload[state.Notification](a)
		if !ok {
			return s
		}
		return &state.Notifications{All: concat(s.All, []state.Notification{n})}

	case action.RemoveNotification:
		i, ok := payload[int](a)
		if !ok || i < 0 || i >= len(s.All) {
			return s
		}
		return &state.Notifications{All: without(s.All, i)}

	case action.DismissNotification:
		id, ok := payload[string](a)
		if !ok {
			return s
		}
		for i, n := range s.All {
			if n.ID == id {
				return &state.Notifications{All: without(s.All, i)}
			}
		}
	}
	return s
}

func without(all []state.Notification, i int) []state.Notification {
	out := make([]state.Notification, 0, len(all)-1)
	out = append(out, all[:i]...)
	return append(out, all[i+1:]...)
}
