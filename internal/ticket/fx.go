package ticket

import (
	"github.com/smallbiznis/eventflow/internal/ticket/repository"
	"github.com/smallbiznis/eventflow/internal/ticket/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ticket.inventory",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewInventory),
)
