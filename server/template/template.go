package template

import (
	"time"

	"github.com/romshark/todonotify/domain"
	"github.com/romshark/todonotify/pkg/timefmt"
)

func status(t domain.Todo) string {
	if t.Completed {
		return "done"
	}
	return "open"
}

func created(now, tm time.Time) string {
	if tm.IsZero() {
		return ""
	}
	return "added " + timefmt.Ago(now, tm)
}
