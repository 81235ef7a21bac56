package extract

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/court-captions/constants"
	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/ocr"
)

// FieldValue is one extracted field. Region is -1 for text-layer values.
type FieldValue struct {
	Value  string           `json:"value"`
	Raw    string           `json:"raw"`
	Source constants.Source `json:"source"`
	Region int              `json:"region"`
}

// Diagnostic records a recovered failure. Region is -1 when the failure is
// not tied to a region.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Code    string `json:"code"`
	Region  int    `json:"region"`
	Message string `json:"message"`
}

// Diagnostic stages.
const (
	StagePageCount = "page_count"
	StageTextLayer = "text_layer"
	StageRasterize = "rasterize"
	StageCrop      = "crop"
	StageOCR       = "ocr"
	StageCanon     = "canonicalize"
	StageArtifact  = "artifact"
)

// diagCode maps the error taxonomy onto stable codes.
func diagCode(err error) string {
	switch {
	case errors.Is(err, common.ErrPageOutOfRange):
		return "PAGE_OUT_OF_RANGE"
	case errors.Is(err, common.ErrRegionOutOfBounds):
		return "REGION_OUT_OF_BOUNDS"
	case errors.Is(err, common.ErrOCRTimeout):
		return "OCR_TIMEOUT"
	case errors.Is(err, common.ErrOCRFailure):
		return "OCR_FAILURE"
	case errors.Is(err, common.ErrRasterize):
		return "RASTERIZE_FAILED"
	case errors.Is(err, common.ErrNoMatch):
		return "NO_MATCH"
	case errors.Is(err, common.ErrCanonicalization):
		return "CANONICALIZATION_FAILED"
	case errors.Is(err, ocr.ErrEngineUnavailable):
		return "ENGINE_UNAVAILABLE"
	default:
		return "ERROR"
	}
}

// Result is the outcome of one document. Fields holds a key for every
// configured field; a nil value means the field is absent. It is not modified
// after Extract returns.
type Result struct {
	ID          uuid.UUID              `json:"id"`
	Document    string                 `json:"document"`
	Path        string                 `json:"path,omitempty"`
	Preset      string                 `json:"preset"`
	PageIndex   int                    `json:"page_index"`
	Fields      map[string]*FieldValue `json:"fields"`
	Order       []string               `json:"order"`
	RegionText  []string               `json:"region_text,omitempty"`
	Diagnostics []Diagnostic           `json:"diagnostics,omitempty"`
	State       constants.State        `json:"state"`
	StartedAt   time.Time              `json:"started_at"`
	Duration    time.Duration          `json:"duration"`
}

func newResult(name, path, preset string, pageIndex int, order []string) *Result {
	r := &Result{
		ID:        uuid.New(),
		Document:  name,
		Path:      path,
		Preset:    preset,
		PageIndex: pageIndex,
		Fields:    make(map[string]*FieldValue, len(order)),
		Order:     order,
		StartedAt: time.Now().UTC(),
	}
	for _, n := range order {
		r.Fields[n] = nil
	}
	return r
}

// Get returns the canonical value of a field.
func (r *Result) Get(name string) (string, bool) {
	v := r.Fields[name]
	if v == nil {
		return "", false
	}
	return v.Value, true
}

// Found counts the present fields.
func (r *Result) Found() int {
	n := 0
	for _, v := range r.Fields {
		if v != nil {
			n++
		}
	}
	return n
}

// Values flattens the result to name -> value|nil in field order.
func (r *Result) Values() map[string]*string {
	out := make(map[string]*string, len(r.Order))
	for _, n := range r.Order {
		if v := r.Fields[n]; v != nil {
			s := v.Value
			out[n] = &s
		} else {
			out[n] = nil
		}
	}
	return out
}

// Party returns the first present field of the given side, in field order.
func (r *Result) Party(role constants.PartyRole) (name, value string, ok bool) {
	for _, n := range r.Order {
		if constants.RoleOf(n) != role {
			continue
		}
		if v, found := r.Get(n); found {
			return n, v, true
		}
	}
	return "", "", false
}

func (r *Result) diag(stage string, region int, err error) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		Stage:   stage,
		Code:    diagCode(err),
		Region:  region,
		Message: err.Error(),
	})
}

func (r *Result) set(name string, v *FieldValue) bool {
	if cur, ok := r.Fields[name]; !ok || cur != nil {
		return false
	}
	r.Fields[name] = v
	return true
}
