package chat

import (
	"context"

	"github.com/sfarooqi/chatgraph/pkg/chatgraph"
	"github.com/sfarooqi/chatgraph/pkg/chatgraph/config"
	"github.com/sfarooqi/chatgraph/pkg/chatgraph/llm"
	"github.com/sfarooqi/chatgraph/pkg/chatgraph/speech"
)

// Node IDs in the message workflow graph.
const (
	NodeIngress        = "ingress"
	NodeNormalizeText  = "normalize_text"
	NodeNormalizeImage = "normalize_image"
	NodeNormalizeAudio = "normalize_audio"
	NodeGenerate       = "generate"
	NodeDispatch       = "dispatch"
)

// MediaFetcher downloads the bytes behind a media ID.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, mediaID string) ([]byte, error)
}

// Sender delivers a reply to a recipient.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Deps are the collaborators the workflow nodes call out to.
type Deps struct {
	// Model generates assistant replies. Required.
	Model llm.Client

	// Media fetches image and audio bytes. Required when the workflow
	// receives media messages.
	Media MediaFetcher

	// Transcriber converts audio to text. Required for audio messages.
	Transcriber speech.Transcriber

	// Sender delivers the reply. Required.
	Sender Sender
}

// Workflow builds the message-processing graph:
//
//	ingress -> {normalize_text | normalize_image | normalize_audio}
//	        -> generate -> dispatch -> END
//
// The ingress router selects the normalizer by message type; an
// unrecognized type aborts the run before any node executes.
type Workflow struct {
	deps     Deps
	settings config.Settings
}

// NewWorkflow creates a workflow over the given collaborators.
func NewWorkflow(deps Deps, settings config.Settings) *Workflow {
	return &Workflow{
		deps:     deps,
		settings: settings.Normalize(),
	}
}

// Compile validates and freezes the graph.
func (w *Workflow) Compile() (*chatgraph.CompiledGraph[State], error) {
	graph := chatgraph.NewGraph[State]().
		AddNode(NodeIngress, w.ingress).
		AddNode(NodeNormalizeText, w.normalizeText).
		AddNode(NodeNormalizeImage, w.normalizeImage).
		AddNode(NodeNormalizeAudio, w.normalizeAudio).
		AddNode(NodeGenerate, w.generate).
		AddNode(NodeDispatch, w.dispatch).
		AddConditionalEdge(NodeIngress, w.route).
		AddEdge(NodeNormalizeText, NodeGenerate).
		AddEdge(NodeNormalizeImage, NodeGenerate).
		AddEdge(NodeNormalizeAudio, NodeGenerate).
		AddEdge(NodeGenerate, NodeDispatch).
		AddEdge(NodeDispatch, chatgraph.END).
		SetEntry(NodeIngress)

	return graph.Compile()
}

// ingress is the graph entry. It does no work; routing happens on its
// conditional edge so an unsupported type fails before any state change.
func (w *Workflow) ingress(ctx chatgraph.Context, s State) (State, error) {
	return s, nil
}
