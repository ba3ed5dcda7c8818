package manager

import "errors"

// ErrClosed is returned by any Manager method called after Run has exited.
var ErrClosed = errors.New("manager: closed")

// Status is a point-in-time snapshot used by the operator console's "S"
// command and the ambient HTTP status endpoint.
type Status struct {
	KnownCount     int      `json:"known_count"`
	ConnectedCount int      `json:"connected_count"`
	Connected      []string `json:"connected"`
}

func (m *Manager) buildStatus(st *state) Status {
	status := Status{KnownCount: len(st.order)}
	for _, name := range st.order {
		e := st.turtles[name]
		if e != nil && e.connected {
			status.ConnectedCount++
			status.Connected = append(status.Connected, name)
		}
	}
	return status
}
