package chat

import (
	"fmt"

	"github.com/sfarooqi/chatgraph/pkg/chatgraph"
)

// route selects the normalizer for the inbound message type. The switch is
// exhaustive over MessageType; anything else is an unsupported type and
// aborts the run before a checkpoint is committed.
func (w *Workflow) route(ctx chatgraph.Context, s State) (string, error) {
	switch s.Inbound.Type {
	case TypeText:
		return NodeNormalizeText, nil
	case TypeImage:
		return NodeNormalizeImage, nil
	case TypeAudio:
		return NodeNormalizeAudio, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMessageType, s.Inbound.Type)
	}
}
