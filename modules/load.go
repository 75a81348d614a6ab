package modules

import (
	"github.com/iota-uz/leadflow/modules/leads"
	"github.com/iota-uz/leadflow/pkg/application"
)

var BuiltInModules = []application.Module{
	leads.NewModule(nil),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
