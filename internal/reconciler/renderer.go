package reconciler

import "github.com/kieferlin/SDLE-CASFER-WWTP/internal/model"

// Renderer is the external rendering collaborator: the map surface, the
// count label, the progress bar, and the error banner. The reconciler is
// the only caller; invocations are serialized in state order.
type Renderer interface {
	RenderDisplaySet(records []model.FacilityRecord)
	ClearRendering()
	ReportCount(n int)
	ReportProgress(done, total int)
	ReportError(msg string)
}

// NopRenderer discards all rendering calls. Used when the display set is
// consumed through Resolve instead of the stateful control path.
type NopRenderer struct{}

func (NopRenderer) RenderDisplaySet([]model.FacilityRecord) {}
func (NopRenderer) ClearRendering()                         {}
func (NopRenderer) ReportCount(int)                         {}
func (NopRenderer) ReportProgress(int, int)                 {}
func (NopRenderer) ReportError(string)                      {}
