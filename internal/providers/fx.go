package providers

import (
	"github.com/smallbiznis/eventflow/internal/providers/email"
	"github.com/smallbiznis/eventflow/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
