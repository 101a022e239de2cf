package automation

import "curtain-bridge/internal/curtain"

// Controller is the curtain device as seen by scripts.
type Controller interface {
	Name() string
	State(ep int) (curtain.State, bool)
	Events() *curtain.EventBus

	Open(ep int) error
	Close(ep int) error
	Stop(ep int) error
	SetPosition(ep, user int) error
}
