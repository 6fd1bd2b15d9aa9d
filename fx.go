package apic

import (
	"context"
	"io"

	"github.com/eatgo/apic/credstore"
	"github.com/gostratum/core/configx"
	"github.com/gostratum/core/logx"
	"go.uber.org/fx"
)

// FxConfigParams wires config loading via fx.
type FxConfigParams struct {
	fx.In

	Loader configx.Loader
}

// FxParams captures dependencies resolved via fx when constructing a client.
type FxParams struct {
	fx.In

	Lifecycle     fx.Lifecycle    `optional:"true"`
	Config        Config
	Logger        logx.Logger     `optional:"true"`
	Store         credstore.Store `optional:"true"`
	CustomOptions []Option        `group:"apic_options"`
}

// NewFx constructs a Client from the bound Config. A credential store provided
// to the container takes precedence over the store named in Config.
func NewFx(params FxParams) (Client, error) {
	var opts []Option

	opts = append(opts, WithConfig(params.Config))

	if params.Logger != nil {
		opts = append(opts, WithLogger(params.Logger))
	}
	if params.Store != nil {
		opts = append(opts, WithStore(params.Store))
	}
	if len(params.CustomOptions) > 0 {
		opts = append(opts, params.CustomOptions...)
	}

	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if params.Lifecycle != nil {
		params.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return c.Close() },
		})
	}
	return c, nil
}

// NewConfigFx binds the Config using configx.
func NewConfigFx(params FxConfigParams) (Config, error) {
	return NewConfig(params.Loader)
}

// FxStoreParams captures dependencies for opening the configured store.
type FxStoreParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    Config
}

// NewStoreFx opens the credential store named in Config and closes it when
// the application stops. An empty store kind yields an in-memory store.
func NewStoreFx(params FxStoreParams) (credstore.Store, error) {
	store, err := credstore.Open(params.Config.Store)
	if err != nil {
		return nil, err
	}
	if closer, ok := store.(io.Closer); ok {
		params.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return closer.Close() },
		})
	}
	return store, nil
}
