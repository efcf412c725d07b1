package filesystem

import "github.com/driftfs/driftfs/internal/protocol/fuse/wire"

// PollHandle binds the kernel's opaque poll token to the reply channel of
// the session it arrived on. A backend keeps the handle after answering a
// POLL with no ready events and calls Notify once the node becomes ready,
// which makes the kernel re-issue the poll.
type PollHandle struct {
	kh     uint64
	sender ReplySender
}

func NewPollHandle(kh uint64, sender ReplySender) *PollHandle {
	return &PollHandle{kh: kh, sender: sender}
}

// Token returns the kernel's identifier for this poll registration.
func (h *PollHandle) Token() uint64 { return h.kh }

// Notify wakes the kernel waiter registered under this token.
func (h *PollHandle) Notify() error {
	buf, err := wire.EncodeNotify(wire.NotifyPoll, &wire.NotifyPollWakeupOut{Kh: h.kh})
	if err != nil {
		return err
	}
	return h.sender.Send(buf)
}
