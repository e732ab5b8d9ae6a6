package providers

import (
	"github.com/roomvision/roomvision/internal/providers/email"
	"github.com/roomvision/roomvision/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
