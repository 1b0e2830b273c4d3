package features

import "time"

// clockUpdater renders current time with a Go time layout.
type clockUpdater struct {
	format string
	now    func() time.Time
}

func (u *clockUpdater) Update() string {
	return u.now().Format(u.format)
}
