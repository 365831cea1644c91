package parser

import "time"

type pendingKind uint8

const (
	pendingIdle pendingKind = iota
	pendingAwaitingUp
)

// pending tracks the open DOWN marker, if any. The zero value is Idle.
type pending struct {
	kind pendingKind
	down time.Time
	line int
}

func (p pending) awaiting() bool {
	return p.kind == pendingAwaitingUp
}

// openDown moves to AwaitingUp. It reports whether an earlier open DOWN was
// discarded; only the most recent DOWN can be closed.
func (p pending) openDown(at time.Time, line int) (pending, bool) {
	overwritten := p.awaiting()
	return pending{kind: pendingAwaitingUp, down: at, line: line}, overwritten
}

// resolve returns to Idle and hands back the open DOWN instant.
// ok is false when there was nothing to close.
func (p pending) resolve() (next pending, down time.Time, ok bool) {
	if !p.awaiting() {
		return p, time.Time{}, false
	}
	return pending{}, p.down, true
}

// void drops the open DOWN, used when the closing timestamp is unreadable.
func (p pending) void() pending {
	return pending{}
}
