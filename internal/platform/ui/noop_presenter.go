// internal/platform/ui/noop_presenter.go
package ui

// NoopPresenter no produce ninguna salida. Es el presenter de los tests y
// de cualquier invocación headless.
type NoopPresenter struct{}

// NewNoopPresenter crea el presenter sin salida.
func NewNoopPresenter() *NoopPresenter {
	return &NoopPresenter{}
}

func (NoopPresenter) Start(info ScanInfo)        {}
func (NoopPresenter) Line(text string)           {}
func (NoopPresenter) Info(msg string)            {}
func (NoopPresenter) Warning(msg string)         {}
func (NoopPresenter) Error(msg string)           {}
func (NoopPresenter) Finish(summary ScanSummary) {}
func (NoopPresenter) Close() error               { return nil }
