package constants

// State is the per-document extraction state.
type State string

// Stable values (stored as-is in extraction_runs.state).
const (
	StateTextLayerAttempted State = "TEXT_LAYER_ATTEMPTED"
	StateSatisfied          State = "SATISFIED" // text layer produced fields, OCR not required
	StateNeedsOCR           State = "NEEDS_OCR"
	StateOCRAttempted       State = "OCR_ATTEMPTED"
	StateDone               State = "DONE"
	StatePageOutOfRange     State = "PAGE_OUT_OF_RANGE" // terminal, every field absent
)

// Source tells where a field value came from.
type Source string

const (
	SourceTextLayer Source = "TEXT_LAYER"
	SourceOCR       Source = "OCR"
)
