package app

import (
	"github.com/shandysiswandi/inboxed/internal/form"
)

func (a *App) initModules() error {
	return form.New(form.Dependency{
		Config:     a.config,
		Instrument: a.ins,
		UID:        a.uid,
		Clock:      a.clock,
		Validator:  a.validator,
		Router:     a.router,
		Mail:       a.mail,
		Upload:     a.upload,
		Limiter:    a.limiter,
		Metrics:    a.metrics,
	})
}
