// Package apicfx exposes the API client to fx applications.
package apicfx

import (
	"github.com/eatgo/apic"
	"go.uber.org/fx"
)

// Module provides the client Config and Client. The credential store is
// taken from the container when present, otherwise from Config.
func Module() fx.Option {
	return fx.Module("apic",
		fx.Provide(
			apic.NewConfigFx,
			apic.NewFx,
		),
	)
}

// StoreModule additionally provides the credential store named in Config, so
// other components can share it with the client.
func StoreModule() fx.Option {
	return fx.Module("apic-store",
		fx.Provide(apic.NewStoreFx),
	)
}

// Options contributes client options to the apic_options group.
func Options(opts ...apic.Option) fx.Option {
	provided := make([]any, 0, len(opts))
	for _, opt := range opts {
		opt := opt
		provided = append(provided, fx.Annotate(
			func() apic.Option { return opt },
			fx.ResultTags(`group:"apic_options"`),
		))
	}
	return fx.Provide(provided...)
}
