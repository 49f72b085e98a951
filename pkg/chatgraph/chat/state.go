package chat

// State is the value threaded through the workflow graph. It is JSON
// round-trippable so every node's checkpoint captures the full thread.
type State struct {
	// Inbound is the message being processed by this run.
	Inbound Inbound `json:"inbound"`

	// Messages is the thread history, oldest first. Normalizers append
	// the inbound message; the generator appends the assistant reply.
	Messages []Message `json:"messages"`

	// Answer is the generated reply, set by the generator and delivered
	// by the dispatcher.
	Answer string `json:"answer,omitempty"`
}
