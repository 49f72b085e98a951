package chat

import (
	"context"

	"github.com/sfarooqi/chatgraph/pkg/chatgraph"
)

// dispatch delivers the generated answer to the sender. A delivery failure
// is fatal for the run, but the history committed by earlier nodes stands;
// there is no rollback and no automatic redelivery.
func (w *Workflow) dispatch(ctx chatgraph.Context, s State) (State, error) {
	if s.Answer == "" {
		return s, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.settings.SendTimeout)
	defer cancel()

	if err := w.deps.Sender.Send(sendCtx, s.Inbound.SenderID, s.Answer); err != nil {
		return s, &SendError{Recipient: s.Inbound.SenderID, Err: err}
	}
	return s, nil
}
