//go:build wireinject
// +build wireinject

//go:generate wire

// Package wire assembles the application graph using Google Wire
package wire

import (
	"context"

	"github.com/google/wire"

	"github.com/scrapetoapi/scrapetoapi/pkg/config"
)

// InitializeApp builds every component from cfg. The returned cleanup closes
// them in reverse order.
func InitializeApp(ctx context.Context, cfg *config.Config, info BuildInfo) (*App, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
